package replaytest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/replaylog"
)

// LogBuilder writes replay logs record by record for tests. It carries the unit list, coins,
// tech levels and weapon cooldowns forward so each record looks like a judge line.
type LogBuilder struct {
	T    *testing.T
	Size int

	Generals  []replaylog.General
	Coins     []int
	TechLevel [][]int
	WeaponCDs []int

	round        int
	wroteTerrain bool
	buf          bytes.Buffer
}

// NewLogBuilder starts a game with one main general per player in opposite corners.
func NewLogBuilder(t *testing.T, size int) *LogBuilder {
	t.Helper()
	return &LogBuilder{
		T:    t,
		Size: size,
		Generals: []replaylog.General{
			General(0, 0, game.MainGeneral, 2, 2),
			General(1, 1, game.MainGeneral, size-3, size-3),
		},
		Coins:     []int{0, 0},
		TechLevel: [][]int{{1, 0, 0, 0}, {1, 0, 0, 0}},
		WeaponCDs: []int{0, 0},
	}
}

func General(id, player int, typ game.UnitType, x, y int) replaylog.General {
	return replaylog.General{
		ID:        id,
		Alive:     true,
		Player:    player,
		Type:      int(typ),
		Position:  [2]int{x, y},
		Level:     []int{1, 1, 1},
		SkillCD:   []int{0, 0, 0, 0, 0},
		SkillRest: []int{0, 0, 0},
	}
}

func Cell(x, y, owner, army int) replaylog.CellUpdate {
	c := replaylog.CellUpdate{Owner: owner, Army: army}
	c.Pos.X, c.Pos.Y = x, y
	return c
}

// Terrain is the deterministic terrain string used by every builder: plain, sand and swamp
// striped along the diagonals.
func Terrain(size int) string {
	b := make([]byte, 0, size*size)
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			b = append(b, "012"[(x+y)%3])
		}
	}
	return string(b)
}

// Round sets the round of subsequent records.
func (b *LogBuilder) Round(r int) *LogBuilder {
	b.round = r
	return b
}

func (b *LogBuilder) Unit(id int) *replaylog.General {
	for i := range b.Generals {
		if b.Generals[i].ID == id {
			return &b.Generals[i]
		}
	}
	b.T.Fatalf("replaytest: no unit %d", id)
	return nil
}

// Settle appends a round-settlement record.
func (b *LogBuilder) Settle(cells ...replaylog.CellUpdate) *LogBuilder {
	return b.Act(game.SystemPlayer, []int{int(game.ActionRoundSettlement)}, cells...)
}

// Act appends a record for player performing action (code first).
func (b *LogBuilder) Act(player int, action []int, cells ...replaylog.CellUpdate) *LogBuilder {
	rec := replaylog.Record{
		Round:     b.round,
		Player:    player,
		Action:    action,
		Cells:     cells,
		Generals:  b.Generals,
		Coins:     b.Coins,
		TechLevel: b.TechLevel,
		WeaponCDs: b.WeaponCDs,
	}
	if rec.Cells == nil {
		rec.Cells = []replaylog.CellUpdate{}
	}
	if b.round == 0 && !b.wroteTerrain {
		rec.CellType = Terrain(b.Size)
		b.wroteTerrain = true
	}
	return b.write(rec)
}

// End appends the game-end record.
func (b *LogBuilder) End(winner int, reason string) *LogBuilder {
	return b.write(replaylog.Record{
		Round:     b.round,
		Player:    winner,
		Action:    []int{int(game.ActionGameEnd)},
		Cells:     []replaylog.CellUpdate{},
		Generals:  b.Generals,
		Coins:     b.Coins,
		TechLevel: b.TechLevel,
		WeaponCDs: b.WeaponCDs,
		Content:   reason,
	})
}

// Raw appends a line verbatim.
func (b *LogBuilder) Raw(line string) *LogBuilder {
	b.buf.WriteString(line)
	b.buf.WriteByte('\n')
	return b
}

func (b *LogBuilder) Bytes() []byte { return append([]byte(nil), b.buf.Bytes()...) }

// WriteFile stores the log as <dir>/<id>.jsonl and returns the path.
func (b *LogBuilder) WriteFile(dir string, id int64) string {
	b.T.Helper()
	p := filepath.Join(dir, strconv.FormatInt(id, 10)+".jsonl")
	if err := os.WriteFile(p, b.Bytes(), 0o644); err != nil {
		b.T.Fatalf("replaytest: write %s: %v", p, err)
	}
	return p
}

func (b *LogBuilder) write(rec replaylog.Record) *LogBuilder {
	b.T.Helper()
	line, err := json.Marshal(rec)
	if err != nil {
		b.T.Fatalf("replaytest: marshal: %v", err)
	}
	b.buf.Write(line)
	b.buf.WriteByte('\n')
	return b
}

// SampleGame builds a short three-round game on a 15x15 grid that exercises every action code.
// It has 11 action rows, 10 of them navigable.
func SampleGame(t *testing.T) *LogBuilder {
	t.Helper()
	b := NewLogBuilder(t, 15)

	b.Round(0).Settle(Cell(2, 2, 0, 10), Cell(12, 12, 1, 10))
	b.Act(0, []int{1, 2, 2, 2, 3}, Cell(2, 2, 0, 7), Cell(3, 2, 0, 3))
	b.Unit(1).Level[2] = 2
	b.Act(1, []int{3, 1, 3})

	b.Coins = []int{60, 10}
	b.Round(1).Settle(Cell(2, 2, 0, 8), Cell(12, 12, 1, 11))
	b.Generals = append(b.Generals, General(2, 0, game.SubGeneral, 3, 2))
	b.Coins[0] = 10
	b.Act(0, []int{7, 3, 2})
	b.Unit(2).Position = [2]int{3, 3}
	b.Act(0, []int{2, 2, 3, 3})
	b.Act(1, []int{4, 1, 2, 11, 11}, Cell(11, 11, -1, 0))
	b.TechLevel[1] = []int{2, 0, 0, 0}
	b.Act(1, []int{5, 1})

	b.Generals = append(b.Generals, General(3, 1, game.OilField, 10, 10))
	b.Round(2).Settle(Cell(2, 2, 0, 9), Cell(12, 12, 1, 10))
	b.Act(0, []int{6, 1, 12, 12}, Cell(12, 12, 1, 0), Cell(11, 12, -1, 0))
	b.End(0, "elimination")
	return b
}
