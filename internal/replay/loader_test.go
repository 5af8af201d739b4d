package replay

import (
	"errors"
	"reflect"
	"testing"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/geom"
	"gridreplay.ai/internal/replay/replaytest"
)

func sampleLoader(t *testing.T) (*Tables, *Loader) {
	t.Helper()
	tables := parse(t, replaytest.SampleGame(t))
	l, err := NewLoader(tables)
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	return tables, l
}

func TestLoader_StartsAtOrigin(t *testing.T) {
	_, l := sampleLoader(t)
	if l.Position() != (Key{}) {
		t.Fatalf("position: %v", l.Position())
	}
	s := l.Snapshot()
	if s.Round != 0 || s.ActionIndex != 0 {
		t.Fatalf("snapshot key: %d/%d", s.Round, s.ActionIndex)
	}
	if c, ok := s.CellAt(geom.P(2, 2)); !ok || c.Owner != 0 || c.Army != 10 {
		t.Fatalf("cell (2,2): %+v", c)
	}
	if c, _ := s.CellAt(geom.P(0, 1)); c.Terrain != game.TerrainSand {
		t.Fatalf("terrain at (0,1): %v", c.Terrain)
	}
	if len(s.Units) != 2 {
		t.Fatalf("units: %d", len(s.Units))
	}
}

func TestLoader_AdvanceVisitsEveryState(t *testing.T) {
	tables, l := sampleLoader(t)

	var keys []Key
	keys = append(keys, l.Position())
	for l.Advance() {
		keys = append(keys, l.Position())
	}
	if len(keys) != 10 || len(keys) != l.Len() || len(keys) != tables.Snapshots() {
		t.Fatalf("visited %d states, loader has %d", len(keys), l.Len())
	}
	for i := 1; i < len(keys); i++ {
		if !keys[i-1].Less(keys[i]) {
			t.Fatalf("navigation went backwards at %v", keys[i])
		}
	}
	if last := keys[len(keys)-1]; last != (Key{Round: 2, Index: 1}) {
		t.Fatalf("last state: %v", last)
	}
	if l.Advance() {
		t.Fatalf("advance past the end should fail")
	}
	if l.CurrentAction().Description != "Nuke at (12, 12)" {
		t.Fatalf("current action: %q", l.CurrentAction().Description)
	}
}

func TestLoader_JumpTo(t *testing.T) {
	_, l := sampleLoader(t)

	s, err := l.JumpTo(1, 2)
	if err != nil {
		t.Fatalf("jump: %v", err)
	}
	if l.Position() != (Key{Round: 1, Index: 2}) {
		t.Fatalf("position: %v", l.Position())
	}
	u, ok := s.UnitAt(geom.P(3, 3))
	if !ok || u.ID != 2 || u.Type != game.SubGeneral || u.RemainingMoves != 0 {
		t.Fatalf("sub general after move: %+v ok=%v", u, ok)
	}
	if s.Coins[0] != 10 || s.RemainingMoves[1] != 2 {
		t.Fatalf("player state: coins=%v moves=%v", s.Coins, s.RemainingMoves)
	}

	if _, err := l.JumpTo(1, 99); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("want ErrKeyNotFound, got %v", err)
	} else {
		var ke *KeyError
		if !errors.As(err, &ke) || ke.Key != (Key{Round: 1, Index: 99}) {
			t.Fatalf("want key in error, got %v", err)
		}
	}
	if l.Position() != (Key{Round: 1, Index: 2}) {
		t.Fatalf("failed jump moved the loader to %v", l.Position())
	}

	// The game-end row is listed but is not a navigable state.
	if _, err := l.JumpTo(2, 2); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("game end should not be navigable, got %v", err)
	}
}

func TestLoader_SnapshotsMatchTables(t *testing.T) {
	tables, l := sampleLoader(t)

	for _, g := range tables.Global {
		s, err := l.JumpTo(g.Round, g.Index)
		if err != nil {
			t.Fatalf("jump %v: %v", g.Key, err)
		}
		for x := 0; x < tables.GridSize; x++ {
			for y := 0; y < tables.GridSize; y++ {
				c := s.Board[x][y]
				if c.Army != g.Soldiers[x][y] || c.Owner != g.Owners[x][y] {
					t.Fatalf("%v cell (%d,%d): %+v vs %d/%d", g.Key, x, y, c, g.Soldiers[x][y], g.Owners[x][y])
				}
			}
		}
		if !reflect.DeepEqual(s.RemainingMoves, g.RemainingMoves) || !reflect.DeepEqual(s.Coins, g.Coins) {
			t.Fatalf("%v player state mismatch", g.Key)
		}
	}
}

func TestLoader_SnapshotIsACopy(t *testing.T) {
	tables, l := sampleLoader(t)
	s := l.Snapshot()
	s.Board[2][2].Army = 1000
	s.Units[0].Level[0] = 9
	s.Coins[0] = 1000

	again := l.Snapshot()
	if again.Board[2][2].Army != 10 || again.Units[0].Level[0] != 1 || again.Coins[0] != 0 {
		t.Fatalf("snapshot shares memory with the loader")
	}
	if tables.Global[0].Soldiers[2][2] != 10 {
		t.Fatalf("tables were modified")
	}
}

func TestLoader_ActionsOfRound(t *testing.T) {
	_, l := sampleLoader(t)
	if got := len(l.Actions(1)); got != 5 {
		t.Fatalf("round 1 actions: %d", got)
	}
	last := l.Actions(2)
	if len(last) != 3 || last[2].Code != game.ActionGameEnd {
		t.Fatalf("round 2 actions: %+v", last)
	}
	if l.Actions(7) != nil {
		t.Fatalf("unknown round should have no actions")
	}
	if o := l.Outcome(); !o.Ended || o.Winner != 0 {
		t.Fatalf("outcome: %+v", o)
	}
}

func TestLoader_RoundTrip(t *testing.T) {
	_, l := sampleLoader(t)
	var keys []Key
	for ok := true; ok; ok = l.Advance() {
		keys = append(keys, l.Position())
	}

	for _, k := range keys {
		s1, err := l.JumpTo(k.Round, k.Index)
		if err != nil {
			t.Fatalf("jump %v: %v", k, err)
		}
		l.Advance()
		s2, err := l.JumpTo(k.Round, k.Index)
		if err != nil {
			t.Fatalf("jump back %v: %v", k, err)
		}
		if !reflect.DeepEqual(s1, s2) {
			t.Fatalf("%v: snapshot changed after advancing and jumping back", k)
		}
	}
}

func TestNewLoader_RejectsMalformedTables(t *testing.T) {
	cases := map[string]func(tb *Tables){
		"short terrain": func(tb *Tables) { tb.Terrain = tb.Terrain[1:] },
		"duplicate key": func(tb *Tables) { tb.Actions[2].Key = tb.Actions[1].Key },
		"missing global": func(tb *Tables) {
			tb.Global = tb.Global[:len(tb.Global)-1]
		},
		"split unit rows": func(tb *Tables) {
			tb.Units[1], tb.Units[2] = tb.Units[2], tb.Units[1]
		},
		"bad board": func(tb *Tables) { tb.Global[3].Soldiers = tb.Global[3].Soldiers[:4] },
		"short owner column": func(tb *Tables) {
			tb.Global[0].Owners[3] = tb.Global[0].Owners[3][:2]
		},
		"missing soldier column": func(tb *Tables) { tb.Global[4].Soldiers[0] = nil },
		"unknown terrain": func(tb *Tables) {
			tb.Terrain = "x" + tb.Terrain[1:]
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tables := parse(t, replaytest.SampleGame(t))
			mutate(tables)
			if _, err := NewLoader(tables); !errors.Is(err, ErrMalformedTables) {
				t.Fatalf("want ErrMalformedTables, got %v", err)
			}
		})
	}
	if _, err := NewLoader(nil); !errors.Is(err, ErrMalformedTables) {
		t.Fatalf("nil tables: %v", err)
	}
}
