package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gridreplay.ai/internal/persistence/jsonl"
)

// Query selects the matches Crawl downloads. Zero values leave a filter off.
type Query struct {
	Username string
	// Opponent keeps only matches where some seat's username contains it.
	Opponent string
	Since    time.Time
	Until    time.Time
	MaxCount int
	PageSize int
}

type CrawlResult struct {
	Listed     int
	Downloaded int
	Cached     int
	Filtered   int
}

// Player is one seat of a stored match.
type Player struct {
	Username string `json:"username"`
	AIName   string `json:"ai_name"`
	Version  int    `json:"version"`
}

// Meta is written next to every cached replay as <id>.meta.json.
type Meta struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	State     string    `json:"state"`
	Players   []Player  `json:"players"`
}

func ReplayPath(dir string, id int64) string {
	return filepath.Join(dir, strconv.FormatInt(id, 10)+".jsonl.zst")
}

func MetaPath(dir string, id int64) string {
	return filepath.Join(dir, strconv.FormatInt(id, 10)+".meta.json")
}

// ReadMeta loads the metadata stored for match id in dir.
func ReadMeta(dir string, id int64) (Meta, error) {
	var m Meta
	b, err := os.ReadFile(MetaPath(dir, id))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%s: %w", MetaPath(dir, id), err)
	}
	return m, nil
}

// Crawl walks the match list of q.Username newest first and stores every selected replay in
// dir. Listing stops at the first match older than q.Since, after q.MaxCount selected matches,
// or on a short page. Replays already in dir are not downloaded again.
func (c *Client) Crawl(ctx context.Context, q Query, dir string) (CrawlResult, error) {
	var res CrawlResult
	if q.Username == "" {
		return res, fmt.Errorf("crawl: username is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, err
	}
	step := q.PageSize
	if step <= 0 {
		step = 20
	}
	if q.MaxCount > 0 && q.MaxCount < step {
		step = q.MaxCount
	}

	selected := 0
	for offset := 0; ; offset += step {
		page, err := c.ListMatches(ctx, q.Username, step, offset)
		if err != nil {
			return res, err
		}
		res.Listed += len(page.Results)

		for _, m := range page.Results {
			created, err := m.Created()
			if err != nil {
				return res, fmt.Errorf("match %d: create_time: %w", m.ID, err)
			}
			if !q.Since.IsZero() && created.Before(q.Since) {
				return res, nil
			}
			if (!q.Until.IsZero() && created.After(q.Until)) || !m.Judged() || (q.Opponent != "" && !m.HasPlayer(q.Opponent)) {
				res.Filtered++
				continue
			}

			if _, err := os.Stat(ReplayPath(dir, m.ID)); err == nil {
				res.Cached++
			} else {
				if err := c.save(ctx, dir, m, created); err != nil {
					return res, err
				}
				res.Downloaded++
			}
			selected++
			if q.MaxCount > 0 && selected >= q.MaxCount {
				return res, nil
			}
		}
		if len(page.Results) < step {
			return res, nil
		}
	}
}

func (c *Client) save(ctx context.Context, dir string, m MatchSummary, created time.Time) error {
	body, err := c.DownloadReplay(ctx, m.ID)
	if err != nil {
		return err
	}

	meta := Meta{ID: m.ID, CreatedAt: created.UTC(), State: m.State}
	for _, s := range m.Info {
		p := Player{Username: s.User.Username}
		if s.Code != nil {
			p.AIName, p.Version = s.Code.Entity, s.Code.Version
		}
		meta.Players = append(meta.Players, p)
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(MetaPath(dir, m.ID), b, 0o644); err != nil {
		return err
	}

	w, err := jsonl.Create(ReplayPath(dir, m.ID))
	if err != nil {
		return err
	}
	for _, line := range bytes.Split(body, []byte{'\n'}) {
		if err := w.WriteLine(line); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Close()
}
