package geom

import "fmt"

// Direction is the log encoding of a one-cell step.
type Direction int

const (
	Left  Direction = 1 // -x
	Right Direction = 2 // +x
	Down  Direction = 3 // -y
	Up    Direction = 4 // +y
)

var directionDelta = map[Direction]Point{
	Left:  {X: -1, Y: 0},
	Right: {X: 1, Y: 0},
	Down:  {X: 0, Y: -1},
	Up:    {X: 0, Y: 1},
}

// Delta returns the unit vector for d.
func (d Direction) Delta() (Point, error) {
	p, ok := directionDelta[d]
	if !ok {
		return Point{}, fmt.Errorf("unknown direction code %d", int(d))
	}
	return p, nil
}
