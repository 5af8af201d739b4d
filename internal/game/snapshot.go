package game

import "gridreplay.ai/internal/geom"

type Cell struct {
	Terrain Terrain `json:"terrain"`
	Owner   int     `json:"owner"`
	Army    int     `json:"army"`
}

// Unit is a general or oil field as seen at one snapshot.
type Unit struct {
	ID       int        `json:"id"`
	Alive    bool       `json:"alive"`
	Player   int        `json:"player"`
	Type     UnitType   `json:"type"`
	Position geom.Point `json:"position"`

	Level     []int `json:"level"`
	SkillCD   []int `json:"skill_cd"`
	SkillRest []int `json:"skill_rest"`

	// RemainingMoves is -1 for oil fields.
	RemainingMoves int `json:"remaining_moves"`
}

func (u Unit) IsOilField() bool { return u.Type == OilField }

// QualityLevel returns the unit's level on track q, or 0 when the vector is short.
func (u Unit) QualityLevel(q Quality) int {
	i := q.Index()
	if i < 0 || i >= len(u.Level) {
		return 0
	}
	return u.Level[i]
}

// Snapshot is the full game state at one (round, action-index) coordinate. Loaders build a
// fresh value per query; nothing shares its slices.
type Snapshot struct {
	Round       int `json:"round"`
	ActionIndex int `json:"action_index"`

	Units          []Unit  `json:"units"`
	Coins          []int   `json:"coins"`
	WeaponCDs      []int   `json:"weapon_cds"`
	TechLevels     [][]int `json:"tech_levels"`
	RemainingMoves []int   `json:"remaining_moves"`

	// Board is indexed Board[x][y].
	Board [][]Cell `json:"board"`
}

func (s Snapshot) CellAt(p geom.Point) (Cell, bool) {
	if p.X < 0 || p.X >= len(s.Board) || p.Y < 0 || p.Y >= len(s.Board[p.X]) {
		return Cell{}, false
	}
	return s.Board[p.X][p.Y], true
}

// UnitAt returns the first unit standing on p.
func (s Snapshot) UnitAt(p geom.Point) (Unit, bool) {
	for _, u := range s.Units {
		if u.Position == p {
			return u, true
		}
	}
	return Unit{}, false
}

func (s Snapshot) Soldiers(player int) int {
	n := 0
	for _, col := range s.Board {
		for _, c := range col {
			if c.Owner == player {
				n += c.Army
			}
		}
	}
	return n
}

func (s Snapshot) TotalSoldiers() int {
	n := 0
	for _, col := range s.Board {
		for _, c := range col {
			n += c.Army
		}
	}
	return n
}
