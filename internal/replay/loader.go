package replay

import (
	"fmt"

	"gridreplay.ai/internal/game"
)

type span struct{ start, end int }

// Loader navigates a parsed replay. It is positioned at one (round, action-index) key at a
// time and materialises snapshots on demand; the tables themselves are never modified.
type Loader struct {
	t *Tables

	actionPos map[Key]int
	globalPos map[Key]int
	unitSpan  map[Key]span

	cur Key
}

// NewLoader indexes t, checks that the tables agree with each other and positions the loader
// at (0, 0).
func NewLoader(t *Tables) (*Loader, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil tables", ErrMalformedTables)
	}
	if t.GridSize <= 0 || len(t.Terrain) != t.GridSize*t.GridSize {
		return nil, fmt.Errorf("%w: terrain has %d cells for grid size %d", ErrMalformedTables, len(t.Terrain), t.GridSize)
	}
	if i := game.FirstBadTerrain(t.Terrain); i >= 0 {
		return nil, fmt.Errorf("%w: unknown terrain %q at cell %d", ErrMalformedTables, t.Terrain[i], i)
	}
	l := &Loader{
		t:         t,
		actionPos: make(map[Key]int, len(t.Actions)),
		globalPos: make(map[Key]int, len(t.Global)),
		unitSpan:  map[Key]span{},
	}
	for i, a := range t.Actions {
		if _, dup := l.actionPos[a.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate action key %v", ErrMalformedTables, a.Key)
		}
		if i > 0 && !t.Actions[i-1].Key.Less(a.Key) {
			return nil, fmt.Errorf("%w: action key %v out of order", ErrMalformedTables, a.Key)
		}
		l.actionPos[a.Key] = i
	}
	for i, g := range t.Global {
		if _, dup := l.globalPos[g.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate global key %v", ErrMalformedTables, g.Key)
		}
		if !square(g.Soldiers, t.GridSize) || !square(g.Owners, t.GridSize) {
			return nil, fmt.Errorf("%w: board at %v is not %dx%d", ErrMalformedTables, g.Key, t.GridSize, t.GridSize)
		}
		l.globalPos[g.Key] = i
	}
	for i, u := range t.Units {
		sp, ok := l.unitSpan[u.Key]
		switch {
		case !ok:
			l.unitSpan[u.Key] = span{start: i, end: i + 1}
		case sp.end == i:
			sp.end = i + 1
			l.unitSpan[u.Key] = sp
		default:
			return nil, fmt.Errorf("%w: unit rows for %v are not contiguous", ErrMalformedTables, u.Key)
		}
	}
	for _, a := range t.Actions {
		if a.Code == game.ActionGameEnd {
			continue
		}
		if _, ok := l.globalPos[a.Key]; !ok {
			return nil, fmt.Errorf("%w: no global row for %v", ErrMalformedTables, a.Key)
		}
	}
	if _, err := l.JumpTo(0, 0); err != nil {
		return nil, err
	}
	return l, nil
}

// JumpTo moves to (round, actionIndex) and returns the snapshot there. The position is left
// unchanged when the key is absent.
func (l *Loader) JumpTo(round, actionIndex int) (game.Snapshot, error) {
	k := Key{Round: round, Index: actionIndex}
	if _, ok := l.actionPos[k]; !ok {
		return game.Snapshot{}, &KeyError{Key: k, Err: ErrKeyNotFound}
	}
	if _, ok := l.globalPos[k]; !ok {
		return game.Snapshot{}, &KeyError{Key: k, Err: ErrKeyNotFound}
	}
	l.cur = k
	return l.build(k), nil
}

// Advance moves to the next action boundary. It returns false, without moving, at the last
// row or when the next row is the game-end record.
func (l *Loader) Advance() bool {
	i := l.actionPos[l.cur]
	if i+1 >= len(l.t.Actions) {
		return false
	}
	next := l.t.Actions[i+1]
	if next.Code == game.ActionGameEnd {
		return false
	}
	if _, err := l.JumpTo(next.Round, next.Index); err != nil {
		return false
	}
	return true
}

func (l *Loader) Position() Key { return l.cur }

// Snapshot rebuilds the snapshot at the current position.
func (l *Loader) Snapshot() game.Snapshot { return l.build(l.cur) }

func (l *Loader) CurrentAction() ActionRow { return l.t.Actions[l.actionPos[l.cur]] }

// Actions returns the action rows of one round, game end included.
func (l *Loader) Actions(round int) []ActionRow {
	var out []ActionRow
	for _, a := range l.t.Actions {
		if a.Round == round {
			out = append(out, a)
		}
	}
	return out
}

func (l *Loader) Terrain() string { return l.t.Terrain }

func (l *Loader) Outcome() Outcome { return l.t.Outcome }

// Len is the number of navigable snapshots.
func (l *Loader) Len() int { return len(l.t.Global) }

func (l *Loader) build(k Key) game.Snapshot {
	g := l.t.Global[l.globalPos[k]]
	n := l.t.GridSize

	board := make([][]game.Cell, n)
	for x := 0; x < n; x++ {
		board[x] = make([]game.Cell, n)
		for y := 0; y < n; y++ {
			terrain, _ := game.TerrainFromByte(l.t.Terrain[n*x+y])
			board[x][y] = game.Cell{
				Terrain: terrain,
				Owner:   g.Owners[x][y],
				Army:    g.Soldiers[x][y],
			}
		}
	}

	var units []game.Unit
	if sp, ok := l.unitSpan[k]; ok {
		units = make([]game.Unit, 0, sp.end-sp.start)
		for _, row := range l.t.Units[sp.start:sp.end] {
			u := row.Unit
			u.Level = append([]int(nil), u.Level...)
			u.SkillCD = append([]int(nil), u.SkillCD...)
			u.SkillRest = append([]int(nil), u.SkillRest...)
			units = append(units, u)
		}
	}

	return game.Snapshot{
		Round:          k.Round,
		ActionIndex:    k.Index,
		Units:          units,
		Coins:          append([]int(nil), g.Coins...),
		WeaponCDs:      append([]int(nil), g.WeaponCDs...),
		TechLevels:     copyMatrix(g.TechLevels),
		RemainingMoves: append([]int(nil), g.RemainingMoves...),
		Board:          board,
	}
}

func square(m [][]int, n int) bool {
	if len(m) != n {
		return false
	}
	for _, col := range m {
		if len(col) != n {
			return false
		}
	}
	return true
}
