package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gridreplay.ai/internal/replaylog"
)

type fakePlatform struct {
	t       *testing.T
	matches []MatchSummary

	mu        sync.Mutex
	downloads []int64
	queries   []string
}

func (f *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer secret" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/api/matches/" {
		q := r.URL.Query()
		f.queries = append(f.queries, q.Encode())
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		page := Page{Count: len(f.matches)}
		for i := offset; i < len(f.matches) && i < offset+limit; i++ {
			page.Results = append(page.Results, f.matches[i])
		}
		_ = json.NewEncoder(w).Encode(page)
		return
	}
	var id int64
	if _, err := fmt.Sscanf(r.URL.Path, "/api/matches/%d/download/", &id); err != nil {
		http.NotFound(w, r)
		return
	}
	f.downloads = append(f.downloads, id)
	// Even ids are served as a JSON array, odd ids as NDJSON.
	if id%2 == 0 {
		fmt.Fprintf(w, `[{"Round":0,"Player":-1,"Action":[8]}, {"Round":0,"Player":0,"Action":[9],"Content":"m%d"}]`, id)
		return
	}
	fmt.Fprintf(w, "{\"Round\":0,\"Player\":-1,\"Action\":[8]}\n\n{\"Round\":0,\"Player\":0,\"Action\":[9],\"Content\":\"m%d\"}\n", id)
}

func match(id int64, created time.Time, state string, users ...string) MatchSummary {
	m := MatchSummary{ID: id, CreateTime: created.Format(time.RFC1123Z), State: state}
	for i, u := range users {
		m.Info = append(m.Info, Seat{User: User{Username: u}, Code: &Code{Entity: "bot-" + u, Version: i + 1}})
	}
	return m
}

func newTestClient(t *testing.T, f *fakePlatform) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api", "Bearer secret", zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("https://example.com/api", "  ", zerolog.Nop()); err == nil {
		t.Fatalf("empty token accepted")
	}
	if _, err := New("not a url", "x", zerolog.Nop()); err == nil {
		t.Fatalf("bad url accepted")
	}
}

func TestListMatches_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(&fakePlatform{t: t})
	defer srv.Close()
	c, err := New(srv.URL+"/api", "wrong", zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = c.ListMatches(context.Background(), "alice", 10, 0)
	if err == nil || !strings.Contains(err.Error(), "status=401") {
		t.Fatalf("want 401, got %v", err)
	}
}

func TestCrawl_FiltersAndPaginates(t *testing.T) {
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.FixedZone("CST", 8*3600))
	f := &fakePlatform{t: t, matches: []MatchSummary{
		match(10, base, JudgedOK, "alice", "bob"),
		match(9, base.Add(-1*time.Hour), JudgedOK, "alice", "carol"),
		match(8, base.Add(-2*time.Hour), "评测失败", "alice", "bob"),
		match(7, base.Add(-3*time.Hour), JudgedOK, "alice", "bobby"),
		match(6, base.Add(-4*time.Hour), JudgedOK, "alice", "bob"),
		match(5, base.Add(-48*time.Hour), JudgedOK, "alice", "bob"),
	}}
	f.matches[1].Info[1].Code = nil
	c := newTestClient(t, f)
	dir := t.TempDir()

	res, err := c.Crawl(context.Background(), Query{
		Username: "alice",
		Opponent: "bob",
		Since:    base.Add(-24 * time.Hour),
		PageSize: 2,
	}, dir)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if res.Downloaded != 3 || res.Filtered != 2 || res.Cached != 0 {
		t.Fatalf("result: %+v", res)
	}
	if got := fmt.Sprint(f.downloads); got != "[10 7 6]" {
		t.Fatalf("downloads: %s", got)
	}
	if len(f.queries) != 3 {
		t.Fatalf("queries: %v", f.queries)
	}

	for _, id := range []int64{10, 7} {
		rc, err := replaylog.Open(ReplayPath(dir, id))
		if err != nil {
			t.Fatalf("open %d: %v", id, err)
		}
		r := replaylog.NewReader(rc, nil)
		if _, err := r.Next(); err != nil {
			t.Fatalf("first record of %d: %v", id, err)
		}
		rec, err := r.Next()
		if err != nil || rec.Content != fmt.Sprintf("m%d", id) {
			t.Fatalf("second record of %d: %+v %v", id, rec, err)
		}
		_ = rc.Close()
	}

	meta, err := ReadMeta(dir, 10)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if len(meta.Players) != 2 || meta.Players[1].Username != "bob" || meta.Players[1].AIName != "bot-bob" || meta.Players[1].Version != 2 {
		t.Fatalf("meta players: %+v", meta.Players)
	}
	if !meta.CreatedAt.Equal(base) {
		t.Fatalf("created: %v", meta.CreatedAt)
	}

	again, err := c.Crawl(context.Background(), Query{Username: "alice", Opponent: "bob", MaxCount: 2}, dir)
	if err != nil {
		t.Fatalf("second crawl: %v", err)
	}
	if again.Cached != 2 || again.Downloaded != 0 {
		t.Fatalf("second crawl: %+v", again)
	}
	if _, err := os.Stat(MetaPath(dir, 5)); !os.IsNotExist(err) {
		t.Fatalf("match outside the window was stored")
	}
}
