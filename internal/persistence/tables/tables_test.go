package tables

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/replay"
	"gridreplay.ai/internal/replay/replaytest"
)

func sampleTables(t *testing.T, id int64) *replay.Tables {
	t.Helper()
	tb, err := replay.NewParser(game.DefaultRules(), zerolog.Nop()).Parse(id, bytes.NewReader(replaytest.SampleGame(t).Bytes()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tb
}

func TestWriteRead_RoundTrip(t *testing.T) {
	root := t.TempDir()
	want := sampleTables(t, 4621648)

	meta, err := Write(root, want, "4621648.jsonl")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if meta.Actions != 11 || meta.Snapshots != 10 || meta.Rounds != 3 || !meta.Outcome.Ended {
		t.Fatalf("meta: %+v", meta)
	}
	if !Exists(root, 4621648) || Exists(root, 1) {
		t.Fatalf("exists mismatch")
	}

	got, err := Read(root, 4621648)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tables changed across write/read")
	}

	// A player with zero coins still has a remain-coins value.
	for i, a := range got.Actions {
		if (a.RemainCoins == nil) != (want.Actions[i].RemainCoins == nil) {
			t.Fatalf("row %v lost remain coins", a.Key)
		}
	}

	l, err := replay.NewLoader(got)
	if err != nil {
		t.Fatalf("loader over stored tables: %v", err)
	}
	if l.Len() != 10 {
		t.Fatalf("len: %d", l.Len())
	}
}

func TestWrite_ReplacesExisting(t *testing.T) {
	root := t.TempDir()
	tb := sampleTables(t, 9)
	if _, err := Write(root, tb, "first"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Write(root, tb, "second"); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	meta, err := ReadMeta(root, 9)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Source != "second" {
		t.Fatalf("source: %q", meta.Source)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "9" {
		t.Fatalf("leftover temp dirs: %v", entries)
	}
}

func TestRead_Malformed(t *testing.T) {
	root := t.TempDir()
	if _, err := Read(root, 5); !errors.Is(err, replay.ErrMalformedTables) {
		t.Fatalf("missing replay: %v", err)
	}

	if _, err := Write(root, sampleTables(t, 5), ""); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(Dir(root, 5), unitFile), []byte("not zstd"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := Read(root, 5); !errors.Is(err, replay.ErrMalformedTables) {
		t.Fatalf("garbled unit table: %v", err)
	}

	if err := os.Remove(filepath.Join(Dir(root, 5), globalFile)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := Read(root, 5); !errors.Is(err, replay.ErrMalformedTables) {
		t.Fatalf("missing global table: %v", err)
	}
}

func TestRead_WrongReplayHeader(t *testing.T) {
	root := t.TempDir()
	if _, err := Write(root, sampleTables(t, 1), ""); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Write(root, sampleTables(t, 2), ""); err != nil {
		t.Fatalf("write: %v", err)
	}
	src := filepath.Join(Dir(root, 1), actionFile)
	b, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(filepath.Join(Dir(root, 2), actionFile), b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Read(root, 2); !errors.Is(err, replay.ErrMalformedTables) {
		t.Fatalf("foreign action table accepted: %v", err)
	}
}
