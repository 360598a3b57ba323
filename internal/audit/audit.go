// Package audit appends a per-run record of every classification and
// conversion to a SQLite database. The log is write-only: nothing in a run
// reads it back.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is an open audit database bound to at most one active run.
type Store struct {
	db    *sql.DB
	runID string
}

// RunInfo describes a run at start.
type RunInfo struct {
	Roots       []string
	OutputExt   string
	BitrateKbps int
	Workers     int
	DryRun      bool
}

// Event is one per-file record.
type Event struct {
	Path        string
	Stage       string // "scan", "classify" or "convert"
	Result      string
	Reason      string
	BitrateKbps int64
	ExitCode    int
	Detail      string
	Duration    time.Duration
}

// RunSummary holds the final counters written when a run ends.
type RunSummary struct {
	Scanned     int
	Converted   int
	Errors      int
	NonAudio    int
	Unchanged   int
	Interrupted bool
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	const runs = `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			roots TEXT NOT NULL,
			output_ext TEXT NOT NULL,
			bitrate_kbps INTEGER NOT NULL,
			workers INTEGER NOT NULL,
			dry_run INTEGER NOT NULL,
			interrupted INTEGER,
			scanned INTEGER,
			converted INTEGER,
			errors INTEGER,
			non_audio INTEGER,
			unchanged INTEGER
		)
	`
	const events = `
		CREATE TABLE IF NOT EXISTS file_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			path TEXT NOT NULL,
			stage TEXT NOT NULL,
			result TEXT NOT NULL,
			reason TEXT,
			bitrate_kbps INTEGER,
			exit_code INTEGER,
			detail TEXT,
			duration_ms INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	const eventsIdx = `CREATE INDEX IF NOT EXISTS idx_file_events_run ON file_events(run_id)`

	for _, stmt := range []string{runs, events, eventsIdx} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// BeginRun inserts a run row and returns its generated ID. Subsequent
// Record and FinishRun calls attach to this run.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, roots, output_ext, bitrate_kbps, workers, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), strings.Join(info.Roots, "\n"), info.OutputExt,
		info.BitrateKbps, info.Workers, info.DryRun,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	s.runID = id
	return id, nil
}

// Record appends one file event to the active run. Safe for concurrent use.
func (s *Store) Record(ctx context.Context, ev Event) error {
	if s.runID == "" {
		return fmt.Errorf("failed to record event for %q: no active run", ev.Path)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_events (run_id, path, stage, result, reason, bitrate_kbps, exit_code, detail, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, ev.Path, ev.Stage, ev.Result, ev.Reason,
		ev.BitrateKbps, ev.ExitCode, ev.Detail, ev.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record event for %q: %w", ev.Path, err)
	}
	return nil
}

// FinishRun stores the final counters of the active run.
func (s *Store) FinishRun(ctx context.Context, sum RunSummary) error {
	if s.runID == "" {
		return fmt.Errorf("failed to finish run: no active run")
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, interrupted = ?, scanned = ?, converted = ?,
			errors = ?, non_audio = ?, unchanged = ?
		WHERE run_id = ?`,
		time.Now().UTC(), sum.Interrupted, sum.Scanned, sum.Converted,
		sum.Errors, sum.NonAudio, sum.Unchanged, s.runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
