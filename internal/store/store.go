package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an episode id is unknown.
var ErrNotFound = errors.New("not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS episodes (
	episode_id    TEXT PRIMARY KEY,
	worker        INTEGER NOT NULL,
	seed          INTEGER NOT NULL,
	started_at    TEXT NOT NULL,
	ended_at      TEXT,
	steps         INTEGER NOT NULL DEFAULT 0,
	total_reward  REAL NOT NULL DEFAULT 0,
	violations    INTEGER NOT NULL DEFAULT 0,
	overrides     INTEGER NOT NULL DEFAULT 0,
	mismatches    INTEGER NOT NULL DEFAULT 0,
	outcome       TEXT
);

CREATE TABLE IF NOT EXISTS steps (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	episode_id    TEXT NOT NULL,
	step          INTEGER NOT NULL,
	proposed      TEXT NOT NULL,
	applied       TEXT,
	reward        REAL NOT NULL,
	done          INTEGER NOT NULL,
	tag           TEXT,
	monitors_json TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (episode_id) REFERENCES episodes(episode_id)
);

CREATE INDEX IF NOT EXISTS idx_steps_episode ON steps(episode_id, step);

CREATE TABLE IF NOT EXISTS notification_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	episode_id    TEXT,
	step          INTEGER NOT NULL,
	monitor       TEXT NOT NULL,
	kind          TEXT NOT NULL,
	label         TEXT NOT NULL,
	state         TEXT,
	shaped_reward REAL,
	unsafe_action TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (episode_id) REFERENCES episodes(episode_id)
);
`

// #endregion schema

// #region store-struct
// Store journals episodes, steps and monitor notifications in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. Writes are funneled
// through a single connection so parallel workers never hit SQLITE_BUSY.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the notification log.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region episodes
// BeginEpisode inserts a new running episode with a fresh id.
func (s *Store) BeginEpisode(worker int, seed int64) (EpisodeRecord, error) {
	rec := EpisodeRecord{
		EpisodeID: uuid.New().String(),
		Worker:    worker,
		Seed:      seed,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO episodes (episode_id, worker, seed, started_at) VALUES (?, ?, ?, ?)`,
		rec.EpisodeID, rec.Worker, rec.Seed, rec.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return EpisodeRecord{}, fmt.Errorf("insert episode: %w", err)
	}
	return rec, nil
}

// FinishEpisode writes the totals and the end time.
func (s *Store) FinishEpisode(id string, sum EpisodeSummary) error {
	res, err := s.db.Exec(
		`UPDATE episodes SET ended_at = ?, steps = ?, total_reward = ?, violations = ?,
		 overrides = ?, mismatches = ?, outcome = ? WHERE episode_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), sum.Steps, sum.TotalReward,
		sum.Violations, sum.Overrides, sum.Mismatches, nullIfEmpty(sum.Outcome), id,
	)
	if err != nil {
		return fmt.Errorf("finish episode: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish episode %s: %w", id, ErrNotFound)
	}
	return nil
}

const episodeColumns = `episode_id, worker, seed, started_at, ended_at, steps, total_reward,
	violations, overrides, mismatches, outcome`

type scanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row scanner) (EpisodeRecord, error) {
	var (
		rec        EpisodeRecord
		startedStr string
		endedStr   sql.NullString
		outcome    sql.NullString
	)
	err := row.Scan(&rec.EpisodeID, &rec.Worker, &rec.Seed, &startedStr, &endedStr,
		&rec.Steps, &rec.TotalReward, &rec.Violations, &rec.Overrides, &rec.Mismatches, &outcome)
	if err != nil {
		return EpisodeRecord{}, err
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	if endedStr.Valid {
		rec.EndedAt, _ = time.Parse(time.RFC3339Nano, endedStr.String)
	}
	if outcome.Valid {
		rec.Outcome = outcome.String
	}
	return rec, nil
}

// GetEpisode retrieves one episode by id.
func (s *Store) GetEpisode(id string) (EpisodeRecord, error) {
	rec, err := scanEpisode(s.db.QueryRow(
		`SELECT `+episodeColumns+` FROM episodes WHERE episode_id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return EpisodeRecord{}, fmt.Errorf("get episode %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return EpisodeRecord{}, fmt.Errorf("get episode %s: %w", id, err)
	}
	return rec, nil
}

// ListEpisodes returns the most recently started episodes first.
func (s *Store) ListEpisodes(limit int) ([]EpisodeRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+episodeColumns+` FROM episodes ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeRecord
	for rows.Next() {
		rec, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion episodes

// #region steps
// RecordStep appends one step row.
func (s *Store) RecordStep(rec StepRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	done := 0
	if rec.Done {
		done = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO steps (episode_id, step, proposed, applied, reward, done, tag, monitors_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EpisodeID, rec.Step, rec.Proposed, nullIfEmpty(rec.Applied), rec.Reward, done,
		nullIfEmpty(rec.Tag), nullIfEmpty(rec.MonitorsJSON), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// Steps returns an episode's steps in order.
func (s *Store) Steps(episodeID string) ([]StepRecord, error) {
	rows, err := s.db.Query(
		`SELECT episode_id, step, proposed, applied, reward, done, tag, monitors_json, created_at
		 FROM steps WHERE episode_id = ? ORDER BY step, id`, episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var (
			rec                    StepRecord
			applied, tag, monitors sql.NullString
			done                   int
			createdStr             string
		)
		if err := rows.Scan(&rec.EpisodeID, &rec.Step, &rec.Proposed, &applied, &rec.Reward,
			&done, &tag, &monitors, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Applied = applied.String
		rec.Tag = tag.String
		rec.MonitorsJSON = monitors.String
		rec.Done = done != 0
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion steps

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
