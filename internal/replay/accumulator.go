package replay

import (
	"fmt"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/replaylog"
)

// Accumulator holds the state a replay log only records incrementally: the board (cells are
// logged only when they change) and the movement budgets (never logged at all). One
// Accumulator serves exactly one parse run.
type Accumulator struct {
	rules game.Rules

	owners   [][]int
	soldiers [][]int

	playerMoves []int
	unitMoves   map[int]int
}

func NewAccumulator(rules game.Rules) *Accumulator {
	a := &Accumulator{rules: rules}
	a.Reset()
	return a
}

// Reset clears the board to unowned/empty and drops every movement budget.
func (a *Accumulator) Reset() {
	n := a.rules.GridSize
	a.owners = make([][]int, n)
	a.soldiers = make([][]int, n)
	for x := 0; x < n; x++ {
		a.owners[x] = make([]int, n)
		a.soldiers[x] = make([]int, n)
		for y := 0; y < n; y++ {
			a.owners[x][y] = game.NoOwner
		}
	}
	a.playerMoves = make([]int, a.rules.Players)
	a.unitMoves = map[int]int{}
}

// ApplyCellDeltas overwrites every listed cell with its absolute owner and army.
func (a *Accumulator) ApplyCellDeltas(cells []replaylog.CellUpdate) error {
	for _, c := range cells {
		if !c.Pos.In(a.rules.GridSize) {
			return fmt.Errorf("%w: cell %v outside %dx%d grid", ErrCorruptLog, c.Pos, a.rules.GridSize, a.rules.GridSize)
		}
		a.owners[c.Pos.X][c.Pos.Y] = c.Owner
		a.soldiers[c.Pos.X][c.Pos.Y] = c.Army
	}
	return nil
}

// RefreshRoundBudgets applies round settlement: players get the moves of their mobility tech
// level, generals the moves of their mobility level, oil fields -1.
func (a *Accumulator) RefreshRoundBudgets(techLevels [][]int, units []replaylog.General) error {
	for p := 0; p < a.rules.Players; p++ {
		if p >= len(techLevels) || game.TechMobility.Index() >= len(techLevels[p]) {
			return fmt.Errorf("%w: no mobility tech level for player %d", ErrCorruptLog, p)
		}
		moves, err := a.rules.PlayerMoves(techLevels[p][game.TechMobility.Index()])
		if err != nil {
			return fmt.Errorf("%w: player %d: %v", ErrCorruptLog, p, err)
		}
		a.playerMoves[p] = moves
	}
	for _, g := range units {
		if g.UnitType() == game.OilField {
			a.unitMoves[g.ID] = -1
			continue
		}
		lv, ok := g.QualityLevel(game.QualityMobility)
		if !ok {
			return fmt.Errorf("%w: unit %d has no mobility level", ErrCorruptLog, g.ID)
		}
		moves, err := a.rules.GeneralMoves(lv)
		if err != nil {
			return fmt.Errorf("%w: unit %d: %v", ErrCorruptLog, g.ID, err)
		}
		a.unitMoves[g.ID] = moves
	}
	return nil
}

func (a *Accumulator) PlayerMoves(player int) int {
	if player < 0 || player >= len(a.playerMoves) {
		return 0
	}
	return a.playerMoves[player]
}

// UnitMoves is the remaining move budget of a unit. A unit that was neither settled nor
// recruited has no budget and means the log is out of order.
func (a *Accumulator) UnitMoves(id int) (int, error) {
	n, ok := a.unitMoves[id]
	if !ok {
		return 0, fmt.Errorf("%w: unit %d has no move budget", ErrCorruptLog, id)
	}
	return n, nil
}

func (a *Accumulator) spendPlayerMove(player int) error {
	if player < 0 || player >= len(a.playerMoves) {
		return fmt.Errorf("%w: player %d cannot move soldiers", ErrCorruptLog, player)
	}
	a.playerMoves[player]--
	return nil
}

func (a *Accumulator) spendUnitMove(id int) error {
	if _, ok := a.unitMoves[id]; !ok {
		return fmt.Errorf("%w: unit %d moved without a move budget", ErrCorruptLog, id)
	}
	a.unitMoves[id]--
	return nil
}

func (a *Accumulator) setUnitMoves(id, n int) { a.unitMoves[id] = n }

// Board returns copies of the army and owner matrices, indexed [x][y].
func (a *Accumulator) Board() (soldiers, owners [][]int) {
	return copyMatrix(a.soldiers), copyMatrix(a.owners)
}

func (a *Accumulator) playerMovesCopy() []int {
	return append([]int(nil), a.playerMoves...)
}

func copyMatrix(m [][]int) [][]int {
	out := make([][]int, len(m))
	for i, row := range m {
		out[i] = append([]int(nil), row...)
	}
	return out
}
