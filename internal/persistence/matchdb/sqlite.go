package matchdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrAINotFound  = errors.New("ai not found")
	ErrMatchExists = errors.New("match already recorded")
)

// AI identifies one submitted program version.
type AI struct {
	UserName string
	AIName   string
	Version  int
	Comment  string
}

func (a AI) String() string { return fmt.Sprintf("%s/%s v%d", a.UserName, a.AIName, a.Version) }

// Match is one finished game between two AIs. Winner is the winning player index, -1 when
// the game has no winner.
type Match struct {
	ID        int64
	Timestamp time.Time
	Player0   int64
	Player1   int64
	Winner    int
	EndState  string
}

// Ingestion records that a replay's tables were written by one ingest run.
type Ingestion struct {
	MatchID    int64
	RunID      string
	Actions    int
	Snapshots  int
	IngestedAt time.Time
}

type Stats struct {
	AIID    int64
	Matches int
	Wins    int
	Losses  int
	Draws   int
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ais (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_name TEXT NOT NULL,
			ai_name TEXT NOT NULL,
			version INTEGER NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			UNIQUE (user_name, ai_name, version)
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY,
			timestamp TEXT NOT NULL,
			player_id_0 INTEGER NOT NULL REFERENCES ais(id),
			player_id_1 INTEGER NOT NULL REFERENCES ais(id),
			winner INTEGER NOT NULL,
			end_state TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_player0 ON matches(player_id_0);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_player1 ON matches(player_id_1);`,
		`CREATE TABLE IF NOT EXISTS ingestions (
			match_id INTEGER PRIMARY KEY,
			run_id TEXT NOT NULL,
			actions INTEGER NOT NULL,
			snapshots INTEGER NOT NULL,
			ingested_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// AIID returns the id of ai. When addIfMissing is set an unknown AI is inserted, otherwise
// ErrAINotFound is returned.
func (s *Store) AIID(ctx context.Context, ai AI, addIfMissing bool) (int64, error) {
	if addIfMissing {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO ais(user_name,ai_name,version,comment) VALUES(?,?,?,?) ON CONFLICT(user_name,ai_name,version) DO NOTHING`,
			ai.UserName, ai.AIName, ai.Version, ai.Comment,
		); err != nil {
			return 0, fmt.Errorf("insert ai %v: %w", ai, err)
		}
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM ais WHERE user_name=? AND ai_name=? AND version=?`,
		ai.UserName, ai.AIName, ai.Version,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %v", ErrAINotFound, ai)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) MatchExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM matches WHERE id=?`, id)
}

// AddMatch stores m. Recording the same match id twice returns ErrMatchExists.
func (s *Store) AddMatch(ctx context.Context, m Match) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM matches WHERE id=?`, m.ID).Scan(&one)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %d", ErrMatchExists, m.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO matches(id,timestamp,player_id_0,player_id_1,winner,end_state) VALUES(?,?,?,?,?,?)`,
		m.ID, m.Timestamp.UTC().Format(time.RFC3339Nano), m.Player0, m.Player1, m.Winner, m.EndState,
	); err != nil {
		return fmt.Errorf("insert match %d: %w", m.ID, err)
	}
	return tx.Commit()
}

func (s *Store) Match(ctx context.Context, id int64) (Match, error) {
	var (
		m  Match
		ts string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id,timestamp,player_id_0,player_id_1,winner,end_state FROM matches WHERE id=?`, id,
	).Scan(&m.ID, &ts, &m.Player0, &m.Player1, &m.Winner, &m.EndState)
	if err != nil {
		return m, err
	}
	m.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	return m, err
}

func (s *Store) IsIngested(ctx context.Context, matchID int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM ingestions WHERE match_id=?`, matchID)
}

// MarkIngested records in, replacing an earlier ingestion of the same match.
func (s *Store) MarkIngested(ctx context.Context, in Ingestion) error {
	if in.IngestedAt.IsZero() {
		in.IngestedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ingestions(match_id,run_id,actions,snapshots,ingested_at) VALUES(?,?,?,?,?)`,
		in.MatchID, in.RunID, in.Actions, in.Snapshots, in.IngestedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Record aggregates the results of every stored match the AI played.
func (s *Store) Record(ctx context.Context, aiID int64) (Stats, error) {
	st := Stats{AIID: aiID}
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id_0,player_id_1,winner FROM matches WHERE player_id_0=? OR player_id_1=?`,
		aiID, aiID,
	)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var p0, p1 int64
		var winner int
		if err := rows.Scan(&p0, &p1, &winner); err != nil {
			return st, err
		}
		st.Matches++
		switch {
		case winner != 0 && winner != 1:
			st.Draws++
		case (winner == 0 && p0 == aiID) || (winner == 1 && p1 == aiID):
			st.Wins++
		default:
			st.Losses++
		}
	}
	return st, rows.Err()
}

func (s *Store) exists(ctx context.Context, q string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
