package main

import (
	"fmt"
	"io"
	"strings"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/geom"
	"gridreplay.ai/internal/replay"
)

var unitTags = map[game.UnitType]byte{
	game.MainGeneral: '^',
	game.SubGeneral:  '-',
	game.OilField:    '*',
}

var terrainGlyphs = map[game.Terrain]byte{
	game.TerrainPlain: '.',
	game.TerrainSand:  ':',
	game.TerrainSwamp: '~',
}

func show(w io.Writer, a replay.ActionRow, s game.Snapshot, board bool) {
	fmt.Fprintf(w, "\n== round %d action %d: %s\n", s.Round, s.ActionIndex, a.Description)
	for p := range s.Coins {
		moves := 0
		if p < len(s.RemainingMoves) {
			moves = s.RemainingMoves[p]
		}
		fmt.Fprintf(w, "   player %d: coins=%d moves=%d soldiers=%d\n", p, s.Coins[p], moves, s.Soldiers(p))
	}
	if board {
		hl, ok := a.Affected()
		if !ok {
			hl = geom.P(-1, -1)
		}
		renderBoard(w, s, hl)
	}
}

// renderBoard prints the board with y growing upwards. Owned cells show the owner letter and
// army; a trailing tag marks the unit standing there and brackets mark the highlighted cell.
func renderBoard(w io.Writer, s game.Snapshot, highlight geom.Point) {
	n := len(s.Board)
	units := map[geom.Point]game.Unit{}
	for _, u := range s.Units {
		if u.Alive {
			units[u.Position] = u
		}
	}
	var b strings.Builder
	for y := n - 1; y >= 0; y-- {
		fmt.Fprintf(&b, "%3d ", y)
		for x := 0; x < n; x++ {
			c := s.Board[x][y]
			cell := "    " + string(terrainGlyphs[c.Terrain])
			if c.Owner != game.NoOwner {
				cell = fmt.Sprintf("%c%4d", 'A'+byte(c.Owner), c.Army)
			}
			tag := byte(' ')
			if u, ok := units[geom.P(x, y)]; ok {
				tag = unitTags[u.Type]
			}
			if highlight == geom.P(x, y) {
				fmt.Fprintf(&b, "[%s%c]", cell, tag)
			} else {
				fmt.Fprintf(&b, " %s%c ", cell, tag)
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString("    ")
	for x := 0; x < n; x++ {
		fmt.Fprintf(&b, " %5d  ", x)
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(w, b.String())
}
