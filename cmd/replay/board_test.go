package main

import (
	"bytes"
	"strings"
	"testing"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/geom"
)

func TestRenderBoard(t *testing.T) {
	board := make([][]game.Cell, 3)
	for x := range board {
		board[x] = make([]game.Cell, 3)
		for y := range board[x] {
			board[x][y] = game.Cell{Terrain: game.TerrainPlain, Owner: game.NoOwner}
		}
	}
	board[0][2] = game.Cell{Owner: 0, Army: 12}
	board[2][0] = game.Cell{Owner: 1, Army: 3}
	board[1][1].Terrain = game.TerrainSwamp
	s := game.Snapshot{
		Board: board,
		Units: []game.Unit{
			{ID: 0, Alive: true, Player: 0, Type: game.MainGeneral, Position: geom.P(0, 2)},
			{ID: 1, Alive: true, Player: 1, Type: game.OilField, Position: geom.P(2, 0)},
			{ID: 2, Alive: false, Player: 1, Type: game.SubGeneral, Position: geom.P(1, 1)},
		},
	}

	var buf bytes.Buffer
	renderBoard(&buf, s, geom.P(2, 0))
	lines := strings.Split(buf.String(), "\n")

	if !strings.HasPrefix(lines[0], "  2 ") || !strings.Contains(lines[0], "A  12^") {
		t.Fatalf("top row: %q", lines[0])
	}
	if !strings.Contains(lines[1], "~") || strings.Contains(lines[1], "-") {
		t.Fatalf("middle row: %q", lines[1])
	}
	if !strings.Contains(lines[2], "[B   3*]") {
		t.Fatalf("bottom row should highlight (2,0): %q", lines[2])
	}
}
