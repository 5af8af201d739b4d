package replay

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/replaylog"
)

// Parser turns a replay log into Tables in a single forward pass.
type Parser struct {
	rules     game.Rules
	log       zerolog.Logger
	validator *replaylog.Validator
}

func NewParser(rules game.Rules, logger zerolog.Logger) *Parser {
	return &Parser{
		rules: rules,
		log:   logger.With().Str("component", "ReplayParser").Logger(),
	}
}

// WithValidator enables schema validation of every log line.
func (p *Parser) WithValidator(v *replaylog.Validator) *Parser {
	p.validator = v
	return p
}

// ParseFile parses the replay at path; the replay id comes from the file name.
func (p *Parser) ParseFile(path string) (*Tables, error) {
	id, err := replaylog.ReplayIDFromPath(path)
	if err != nil {
		return nil, err
	}
	rc, err := replaylog.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return p.Parse(id, rc)
}

// Parse reads records until the game-end record (or EOF) and returns the three tables plus
// terrain. Any inconsistency aborts the run; partial tables are never returned.
func (p *Parser) Parse(replayID int64, r io.Reader) (*Tables, error) {
	acc := NewAccumulator(p.rules)
	rd := replaylog.NewReader(r, p.validator)
	t := &Tables{ReplayID: replayID, GridSize: p.rules.GridSize}
	log := p.log.With().Int64("replay_id", replayID).Logger()

	fail := func(key Key, err error) (*Tables, error) {
		return nil, fmt.Errorf("replay %d line %d: %w", replayID, rd.Line(), &KeyError{Key: key, Err: err})
	}

	var (
		curRound    = -1
		actionIndex = 0
		seenTerrain = false
	)
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("replay %d: %w", replayID, err)
		}

		if rec.Round != curRound {
			if rec.Round < curRound {
				return fail(Key{Round: rec.Round}, fmt.Errorf("%w: round %d after round %d", ErrCorruptLog, rec.Round, curRound))
			}
			curRound = rec.Round
			actionIndex = 0
			if rec.Round == 0 {
				if len(rec.CellType) != p.rules.GridSize*p.rules.GridSize {
					return fail(Key{}, fmt.Errorf("%w: terrain has %d cells, want %d", ErrCorruptLog, len(rec.CellType), p.rules.GridSize*p.rules.GridSize))
				}
				if i := game.FirstBadTerrain(rec.CellType); i >= 0 {
					return fail(Key{}, fmt.Errorf("%w: unknown terrain %q at cell %d", ErrCorruptLog, rec.CellType[i], i))
				}
				t.Terrain = rec.CellType
				seenTerrain = true
			}
		}
		key := Key{Round: rec.Round, Index: actionIndex}

		act, err := replaylog.DecodeAction(rec.Action)
		if err != nil {
			return fail(key, fmt.Errorf("%w: %v", ErrCorruptLog, err))
		}

		if act.Code() == game.ActionGameEnd {
			row, err := Decode(rec, act, acc)
			if err != nil {
				return fail(key, err)
			}
			row.Key = key
			t.Actions = append(t.Actions, row)
			t.Outcome = Outcome{Ended: true, Winner: rec.Player, Reason: rec.Content}
			break
		}

		if err := acc.ApplyCellDeltas(rec.Cells); err != nil {
			return fail(key, err)
		}
		if act.Code() == game.ActionRoundSettlement {
			if err := acc.RefreshRoundBudgets(rec.TechLevel, rec.Generals); err != nil {
				return fail(key, err)
			}
		}

		row, err := Decode(rec, act, acc)
		if err != nil {
			return fail(key, err)
		}
		row.Key = key
		t.Actions = append(t.Actions, row)

		soldiers, owners := acc.Board()
		t.Global = append(t.Global, GlobalRow{
			Key:            key,
			Soldiers:       soldiers,
			Owners:         owners,
			Coins:          append([]int(nil), rec.Coins...),
			RemainingMoves: acc.playerMovesCopy(),
			TechLevels:     copyMatrix(rec.TechLevel),
			WeaponCDs:      append([]int(nil), rec.WeaponCDs...),
		})

		for _, g := range rec.Generals {
			moves, err := acc.UnitMoves(g.ID)
			if err != nil {
				return fail(key, err)
			}
			t.Units = append(t.Units, UnitRow{Key: key, Unit: game.Unit{
				ID:             g.ID,
				Alive:          bool(g.Alive),
				Player:         g.Player,
				Type:           g.UnitType(),
				Position:       g.Pos(),
				Level:          append([]int(nil), g.Level...),
				SkillCD:        append([]int(nil), g.SkillCD...),
				SkillRest:      append([]int(nil), g.SkillRest...),
				RemainingMoves: moves,
			}})
		}
		actionIndex++
	}

	if !seenTerrain {
		return nil, fmt.Errorf("replay %d: %w: no round 0 record", replayID, ErrCorruptLog)
	}
	if len(t.Global) == 0 {
		return nil, fmt.Errorf("replay %d: %w: no navigable states", replayID, ErrCorruptLog)
	}

	log.Debug().
		Int("actions", len(t.Actions)).
		Int("snapshots", len(t.Global)).
		Int("unit_rows", len(t.Units)).
		Int("rounds", t.Rounds()).
		Bool("ended", t.Outcome.Ended).
		Msg("Replay parsed")
	return t, nil
}
