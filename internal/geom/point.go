package geom

import (
	"fmt"
	"math"
)

// Point is an integer grid coordinate. (0,0) is the bottom-left cell.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func P(x, y int) Point { return Point{X: x, Y: y} }

func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }
func (p Point) Scale(k int) Point { return Point{X: p.X * k, Y: p.Y * k} }

func (p Point) Manhattan(o Point) int {
	return absInt(p.X-o.X) + absInt(p.Y-o.Y)
}

// In reports whether p lies on a size x size grid.
func (p Point) In(size int) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < size && p.Y < size
}

func (p Point) String() string { return fmt.Sprintf("(%d, %d)", p.X, p.Y) }

// Vec is the float counterpart of Point, used for pixel-space math by renderers.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func FromPoint(p Point) Vec { return Vec{X: float64(p.X), Y: float64(p.Y)} }

func (v Vec) Add(o Vec) Vec     { return Vec{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec     { return Vec{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vec) Mul(k float64) Vec { return Vec{X: v.X * k, Y: v.Y * k} }
func (v Vec) Div(k float64) Vec { return Vec{X: v.X / k, Y: v.Y / k} }
func (v Vec) Len() float64      { return math.Hypot(v.X, v.Y) }
func (v Vec) Round() Point      { return Point{X: int(math.Round(v.X)), Y: int(math.Round(v.Y))} }
func (v Vec) String() string    { return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y) }

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
