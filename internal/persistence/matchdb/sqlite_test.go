package matchdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "matches.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAIID(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	ai := AI{UserName: "alice", AIName: "rusher", Version: 3, Comment: "first"}

	if _, err := s.AIID(ctx, ai, false); !errors.Is(err, ErrAINotFound) {
		t.Fatalf("want ErrAINotFound, got %v", err)
	}
	id, err := s.AIID(ctx, ai, true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	again, err := s.AIID(ctx, ai, true)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if again != id {
		t.Fatalf("same ai got two ids: %d %d", id, again)
	}
	other, err := s.AIID(ctx, AI{UserName: "alice", AIName: "rusher", Version: 4}, true)
	if err != nil {
		t.Fatalf("add v4: %v", err)
	}
	if other == id {
		t.Fatalf("different version shares id %d", id)
	}
}

func TestMatches(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	a, _ := s.AIID(ctx, AI{UserName: "a", AIName: "x", Version: 1}, true)
	b, _ := s.AIID(ctx, AI{UserName: "b", AIName: "y", Version: 1}, true)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := Match{ID: 4621648, Timestamp: ts, Player0: a, Player1: b, Winner: 0, EndState: "elimination"}

	if ok, err := s.MatchExists(ctx, m.ID); err != nil || ok {
		t.Fatalf("exists before add: %v %v", ok, err)
	}
	if err := s.AddMatch(ctx, m); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ok, err := s.MatchExists(ctx, m.ID); err != nil || !ok {
		t.Fatalf("exists after add: %v %v", ok, err)
	}
	if err := s.AddMatch(ctx, m); !errors.Is(err, ErrMatchExists) {
		t.Fatalf("want ErrMatchExists, got %v", err)
	}
	got, err := s.Match(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Timestamp.Equal(ts) {
		t.Fatalf("timestamp: %v", got.Timestamp)
	}
	got.Timestamp = ts
	if got != m {
		t.Fatalf("match: got %+v want %+v", got, m)
	}
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	a, _ := s.AIID(ctx, AI{UserName: "a", AIName: "x", Version: 1}, true)
	b, _ := s.AIID(ctx, AI{UserName: "b", AIName: "y", Version: 1}, true)

	games := []Match{
		{ID: 1, Player0: a, Player1: b, Winner: 0, EndState: "elimination"},
		{ID: 2, Player0: b, Player1: a, Winner: 1, EndState: "elimination"},
		{ID: 3, Player0: b, Player1: a, Winner: 0, EndState: "timeout"},
		{ID: 4, Player0: a, Player1: b, Winner: -1, EndState: "draw"},
	}
	for _, m := range games {
		m.Timestamp = time.Unix(m.ID, 0)
		if err := s.AddMatch(ctx, m); err != nil {
			t.Fatalf("add %d: %v", m.ID, err)
		}
	}

	st, err := s.Record(ctx, a)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if st.Matches != 4 || st.Wins != 2 || st.Losses != 1 || st.Draws != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestIngestions(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	if ok, err := s.IsIngested(ctx, 7); err != nil || ok {
		t.Fatalf("ingested before mark: %v %v", ok, err)
	}
	if err := s.MarkIngested(ctx, Ingestion{MatchID: 7, RunID: "run-1", Actions: 11, Snapshots: 10}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := s.MarkIngested(ctx, Ingestion{MatchID: 7, RunID: "run-2", Actions: 11, Snapshots: 10}); err != nil {
		t.Fatalf("re-mark: %v", err)
	}
	if ok, err := s.IsIngested(ctx, 7); err != nil || !ok {
		t.Fatalf("ingested after mark: %v %v", ok, err)
	}
}
