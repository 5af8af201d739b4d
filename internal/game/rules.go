package game

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules holds the grid size and the level lookup tables used to derive movement budgets and
// production figures. Tables are keyed by level (1-based) as recorded in the log.
type Rules struct {
	GridSize int `yaml:"grid_size"`
	Players  int `yaml:"players"`

	PlayerMobility    map[int]int     `yaml:"player_mobility"`
	GeneralMobility   map[int]int     `yaml:"general_mobility"`
	GeneralProduction map[int]int     `yaml:"general_production"`
	GeneralDefence    map[int]int     `yaml:"general_defence"`
	OilFieldDefence   map[int]float64 `yaml:"oil_field_defence"`
}

func DefaultRules() Rules {
	return Rules{
		GridSize:          15,
		Players:           2,
		PlayerMobility:    map[int]int{1: 2, 2: 5, 3: 8},
		GeneralMobility:   map[int]int{1: 1, 2: 2, 3: 4},
		GeneralProduction: map[int]int{1: 1, 2: 2, 3: 4, 4: 6},
		GeneralDefence:    map[int]int{1: 1, 2: 2, 3: 3},
		OilFieldDefence:   map[int]float64{1: 1, 2: 1.5, 3: 2, 4: 3},
	}
}

// LoadRules reads rules.yaml on top of DefaultRules. An empty path yields the defaults.
func LoadRules(path string) (Rules, error) {
	r := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return r, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("rules.yaml: %w", err)
	}
	if err := r.Validate(); err != nil {
		return r, fmt.Errorf("rules.yaml: %w", err)
	}
	return r, nil
}

func (r Rules) Validate() error {
	if r.GridSize <= 0 {
		return fmt.Errorf("grid_size must be > 0 (got %d)", r.GridSize)
	}
	if r.Players <= 0 {
		return fmt.Errorf("players must be > 0 (got %d)", r.Players)
	}
	if len(r.PlayerMobility) == 0 {
		return fmt.Errorf("player_mobility is empty")
	}
	if len(r.GeneralMobility) == 0 {
		return fmt.Errorf("general_mobility is empty")
	}
	if len(r.GeneralProduction) == 0 {
		return fmt.Errorf("general_production is empty")
	}
	return nil
}

func (r Rules) PlayerMoves(mobilityLevel int) (int, error) {
	v, ok := r.PlayerMobility[mobilityLevel]
	if !ok {
		return 0, fmt.Errorf("no player mobility for tech level %d", mobilityLevel)
	}
	return v, nil
}

func (r Rules) GeneralMoves(mobilityLevel int) (int, error) {
	v, ok := r.GeneralMobility[mobilityLevel]
	if !ok {
		return 0, fmt.Errorf("no general mobility for level %d", mobilityLevel)
	}
	return v, nil
}

// OilProduction is the coin a player's oil fields yield per round in snap.
func (r Rules) OilProduction(snap Snapshot, player int) int {
	total := 0
	for _, u := range snap.Units {
		if u.Player == player && u.IsOilField() {
			total += r.GeneralProduction[u.QualityLevel(QualityProduction)]
		}
	}
	return total
}

// SoldierProduction is the number of soldiers a player's generals recruit per round in snap.
func (r Rules) SoldierProduction(snap Snapshot, player int) int {
	total := 0
	for _, u := range snap.Units {
		if u.Player == player && !u.IsOilField() {
			total += r.GeneralProduction[u.QualityLevel(QualityProduction)]
		}
	}
	return total
}
