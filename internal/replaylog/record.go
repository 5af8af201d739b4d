package replaylog

import (
	"encoding/json"
	"fmt"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/geom"
)

// Record is one line of a replay log. Field names follow the judge's JSON.
type Record struct {
	Round    int          `json:"Round"`
	Player   int          `json:"Player"`
	Action   []int        `json:"Action"`
	Cells    []CellUpdate `json:"Cells"`
	Generals []General    `json:"Generals"`

	Coins     []int   `json:"Coins"`
	TechLevel [][]int `json:"Tech_level"`
	WeaponCDs []int   `json:"Weapon_cds"`

	// CellType is the flattened terrain string, only present in round 0.
	CellType string `json:"Cell_type,omitempty"`
	// Content is the free-text reason carried by the game-end record.
	Content string `json:"Content,omitempty"`
}

// Code returns the action code, or ActionReserved for an empty action array.
func (r Record) Code() game.ActionCode {
	if len(r.Action) == 0 {
		return game.ActionReserved
	}
	return game.ActionCode(r.Action[0])
}

// Params returns the action parameters after the code.
func (r Record) Params() []int {
	if len(r.Action) == 0 {
		return nil
	}
	return r.Action[1:]
}

// FindGeneral returns the unit with the given id as listed in this record.
func (r Record) FindGeneral(id int) (General, bool) {
	for _, g := range r.Generals {
		if g.ID == id {
			return g, true
		}
	}
	return General{}, false
}

// CellUpdate is the absolute state of one changed cell, encoded as [[x,y], owner, army].
type CellUpdate struct {
	Pos   geom.Point
	Owner int
	Army  int
}

func (c *CellUpdate) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return fmt.Errorf("cell update: %w", err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("cell update: want 3 elements, got %d", len(parts))
	}
	var pos [2]int
	if err := json.Unmarshal(parts[0], &pos); err != nil {
		return fmt.Errorf("cell update position: %w", err)
	}
	if err := json.Unmarshal(parts[1], &c.Owner); err != nil {
		return fmt.Errorf("cell update owner: %w", err)
	}
	if err := json.Unmarshal(parts[2], &c.Army); err != nil {
		return fmt.Errorf("cell update army: %w", err)
	}
	c.Pos = geom.P(pos[0], pos[1])
	return nil
}

func (c CellUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{[2]int{c.Pos.X, c.Pos.Y}, c.Owner, c.Army})
}

type General struct {
	ID        int    `json:"Id"`
	Alive     Flag   `json:"Alive"`
	Player    int    `json:"Player"`
	Type      int    `json:"Type"`
	Position  [2]int `json:"Position"`
	Level     []int  `json:"Level"`
	SkillCD   []int  `json:"Skill_cd"`
	SkillRest []int  `json:"Skill_rest"`
}

func (g General) Pos() geom.Point { return geom.P(g.Position[0], g.Position[1]) }

func (g General) UnitType() game.UnitType { return game.UnitType(g.Type) }

// QualityLevel returns the recorded level on track q, which already reflects upgrades made by the
// record's own action.
func (g General) QualityLevel(q game.Quality) (int, bool) {
	i := q.Index()
	if i < 0 || i >= len(g.Level) {
		return 0, false
	}
	return g.Level[i], true
}

// Flag decodes a JSON bool or a 0/1 number.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "true", "1":
		*f = true
	case "false", "0", "null":
		*f = false
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("flag: %s", string(b))
		}
		*f = n != 0
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("true"), nil
	}
	return []byte("false"), nil
}
