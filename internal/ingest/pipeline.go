package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gridreplay.ai/internal/fetch"
	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/persistence/jsonl"
	"gridreplay.ai/internal/persistence/matchdb"
	"gridreplay.ai/internal/persistence/tables"
	"gridreplay.ai/internal/replay"
	"gridreplay.ai/internal/replaylog"
)

var ErrAlreadyIngested = errors.New("replay already ingested")

type Config struct {
	// TablesDir receives one directory of persisted tables per replay.
	TablesDir string
	Rules     game.Rules
	// Validate checks every log line against the record schema before decoding it.
	Validate bool
	// Force re-ingests replays that were ingested before.
	Force bool
}

// Pipeline parses replay logs and persists their tables. It is safe for concurrent use; every
// file gets its own parse run.
type Pipeline struct {
	cfg     Config
	parser  *replay.Parser
	db      *matchdb.Store
	journal *jsonl.HourlyWriter
	log     zerolog.Logger
	runID   string
}

// New builds a pipeline. db may be nil, in which case the tables directory alone decides
// whether a replay was ingested and no match rows are written.
func New(cfg Config, db *matchdb.Store, logger zerolog.Logger) (*Pipeline, error) {
	if cfg.TablesDir == "" {
		return nil, fmt.Errorf("ingest: tables dir is required")
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()

	parser := replay.NewParser(cfg.Rules, logger)
	if cfg.Validate {
		v, err := replaylog.NewValidator()
		if err != nil {
			return nil, err
		}
		parser.WithValidator(v)
	}
	return &Pipeline{
		cfg:     cfg,
		parser:  parser,
		db:      db,
		journal: jsonl.NewHourlyWriter(filepath.Join(cfg.TablesDir, "_runs"), "ingest"),
		log:     logger.With().Str("component", "Ingest").Logger(),
		runID:   runID,
	}, nil
}

func (p *Pipeline) RunID() string { return p.runID }

func (p *Pipeline) Close() error { return p.journal.Close() }

// Result describes the ingestion of one replay file.
type Result struct {
	RunID     string        `json:"run_id"`
	ReplayID  int64         `json:"replay_id"`
	Path      string        `json:"path"`
	Bytes     int64         `json:"bytes"`
	Actions   int           `json:"actions"`
	Snapshots int           `json:"snapshots"`
	Rounds    int           `json:"rounds"`
	Skipped   bool          `json:"skipped,omitempty"`
	Error     string        `json:"error,omitempty"`
	Took      time.Duration `json:"took_ns"`
}

// IngestFile parses the replay at path and persists its tables, the match row (when fetch
// metadata sits next to the log) and the ingestion row. A replay ingested before is reported
// with ErrAlreadyIngested unless Force is set.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res := Result{RunID: p.runID, Path: path}
	id, err := replaylog.ReplayIDFromPath(path)
	if err != nil {
		return res, err
	}
	res.ReplayID = id
	if st, err := os.Stat(path); err == nil {
		res.Bytes = st.Size()
	}

	if !p.cfg.Force {
		done, err := p.ingested(ctx, id)
		if err != nil {
			return res, err
		}
		if done {
			res.Skipped = true
			return res, fmt.Errorf("%w: %d", ErrAlreadyIngested, id)
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	t, err := p.parser.ParseFile(path)
	if err != nil {
		return res, err
	}
	res.Actions, res.Snapshots, res.Rounds = len(t.Actions), t.Snapshots(), t.Rounds()

	if _, err := tables.Write(p.cfg.TablesDir, t, filepath.Base(path)); err != nil {
		return res, fmt.Errorf("write tables %d: %w", id, err)
	}
	if p.db != nil {
		if err := p.recordMatch(ctx, filepath.Dir(path), t); err != nil {
			return res, err
		}
		if err := p.db.MarkIngested(ctx, matchdb.Ingestion{
			MatchID:   id,
			RunID:     p.runID,
			Actions:   res.Actions,
			Snapshots: res.Snapshots,
		}); err != nil {
			return res, fmt.Errorf("mark ingested %d: %w", id, err)
		}
	}
	res.Took = time.Since(start)

	p.log.Info().
		Int64("replay_id", id).
		Int("actions", res.Actions).
		Int("snapshots", res.Snapshots).
		Str("size", humanize.Bytes(uint64(res.Bytes))).
		Dur("took", res.Took).
		Msg("Replay ingested")
	return res, nil
}

func (p *Pipeline) ingested(ctx context.Context, id int64) (bool, error) {
	if p.db != nil {
		return p.db.IsIngested(ctx, id)
	}
	return tables.Exists(p.cfg.TablesDir, id), nil
}

func (p *Pipeline) recordMatch(ctx context.Context, dir string, t *replay.Tables) error {
	meta, err := fetch.ReadMeta(dir, t.ReplayID)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(meta.Players) != 2 {
		p.log.Warn().Int64("replay_id", t.ReplayID).Int("players", len(meta.Players)).Msg("Match metadata skipped")
		return nil
	}

	var ids [2]int64
	for i, pl := range meta.Players {
		ids[i], err = p.db.AIID(ctx, matchdb.AI{UserName: pl.Username, AIName: pl.AIName, Version: pl.Version}, true)
		if err != nil {
			return err
		}
	}
	m := matchdb.Match{
		ID:        t.ReplayID,
		Timestamp: meta.CreatedAt,
		Player0:   ids[0],
		Player1:   ids[1],
		Winner:    -1,
		EndState:  t.Outcome.Reason,
	}
	if t.Outcome.Ended {
		m.Winner = t.Outcome.Winner
	}
	if err := p.db.AddMatch(ctx, m); err != nil && !errors.Is(err, matchdb.ErrMatchExists) {
		return err
	}
	return nil
}

type Summary struct {
	RunID    string
	Files    int
	Ingested int
	Skipped  int
	Failed   int
	Bytes    int64
	Results  []Result
}

// IngestDir ingests every replay log in dir with up to workers files in flight. A failing
// replay is recorded in its Result and does not stop the others.
func (p *Pipeline) IngestDir(ctx context.Context, dir string, workers int) (Summary, error) {
	sum := Summary{RunID: p.runID}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return sum, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && replaylog.IsReplayFile(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	sum.Files = len(paths)
	if workers <= 0 {
		workers = 1
	}

	results := make([]Result, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := p.IngestFile(ctx, paths[i])
				if err != nil && !errors.Is(err, ErrAlreadyIngested) {
					res.Error = err.Error()
					p.log.Error().Err(err).Str("path", paths[i]).Msg("Ingest failed")
				}
				if jerr := p.journal.Write(res); jerr != nil {
					p.log.Warn().Err(jerr).Msg("Journal write failed")
				}
				results[i] = res
			}
		}()
	}
feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for _, r := range results {
		if r.Path == "" {
			continue
		}
		sum.Results = append(sum.Results, r)
		switch {
		case r.Error != "":
			sum.Failed++
		case r.Skipped:
			sum.Skipped++
		default:
			sum.Ingested++
			sum.Bytes += r.Bytes
		}
	}
	p.log.Info().
		Int("files", sum.Files).
		Int("ingested", sum.Ingested).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Str("size", humanize.Bytes(uint64(sum.Bytes))).
		Msg("Ingest run finished")
	return sum, ctx.Err()
}
