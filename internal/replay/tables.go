package replay

import (
	"fmt"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/geom"
)

// Key identifies one action boundary of a replay. Index restarts at 0 every round.
type Key struct {
	Round int `json:"round"`
	Index int `json:"action_index"`
}

func (k Key) String() string { return fmt.Sprintf("(round %d, action %d)", k.Round, k.Index) }

// Less orders keys the way a replay is traversed.
func (k Key) Less(o Key) bool {
	if k.Round != o.Round {
		return k.Round < o.Round
	}
	return k.Index < o.Index
}

// GlobalRow is the board and per-player state after the action at Key.
type GlobalRow struct {
	Key

	// Soldiers and Owners are indexed [x][y].
	Soldiers [][]int
	Owners   [][]int

	Coins          []int
	RemainingMoves []int
	TechLevels     [][]int
	WeaponCDs      []int
}

// ActionRow describes the action at Key in human-readable and structured form.
type ActionRow struct {
	Key

	Player      int             `json:"player"`
	Code        game.ActionCode `json:"action_type"`
	Description string          `json:"description"`
	Params      []int           `json:"raw_params"`

	// RemainCoins is the acting player's coin after the action; nil for system actions and
	// the game-end record.
	RemainCoins *int `json:"remain_coins"`

	// UnitID is the unit the action refers to, or -1.
	UnitID int `json:"unit_id"`
	// Target is the position the action affects, when it has one.
	Target *geom.Point `json:"target,omitempty"`
}

type UnitRow struct {
	Key
	Unit game.Unit
}

// Outcome is taken from the game-end record, when the log has one.
type Outcome struct {
	Ended  bool   `json:"ended"`
	Winner int    `json:"winner"`
	Reason string `json:"reason"`
}

// Tables is the full parse result of one replay. Row order is traversal order.
type Tables struct {
	ReplayID int64
	GridSize int
	Terrain  string

	Global  []GlobalRow
	Actions []ActionRow
	Units   []UnitRow

	Outcome Outcome
}

// Snapshots is the number of navigable states (action rows other than game end).
func (t *Tables) Snapshots() int { return len(t.Global) }

// Rounds is the number of distinct rounds with at least one action row.
func (t *Tables) Rounds() int {
	n, last := 0, -1
	for _, a := range t.Actions {
		if a.Round != last || n == 0 {
			n++
			last = a.Round
		}
	}
	return n
}
