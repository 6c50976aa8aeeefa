// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps the history of pipeline runs in a SQLite database:
// one row per run with its counters and one row per attempted file with its
// outcome.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/odparse/pkg/types"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
)

const defaultHistoryLimit = 20

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Ledger is the SQLite-backed run history. It implements pipeline.Recorder.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// RunRecord is one stored run with, when requested, its file outcomes.
type RunRecord struct {
	types.Stats `yaml:",inline"`
	Status      string              `yaml:"status"`
	Files       []types.FileOutcome `yaml:"files,omitempty"`
}

// Open opens or creates the ledger database at path, creating the parent
// directory and the schema when needed.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	l := &Ledger{db: db, logger: logger}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	logger.Debug("ledger opened", "path", path)
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			discovered INTEGER NOT NULL DEFAULT 0,
			processed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			artifacts TEXT,
			relocated_to TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_run_id ON files(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// StartRun stores a new run in the running state.
func (l *Ledger) StartRun(ctx context.Context, stats types.Stats) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, discovered, status) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET started_at = excluded.started_at, discovered = excluded.discovered`,
		stats.RunID, formatTime(stats.StartedAt), stats.Discovered, StatusRunning)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", stats.RunID, err)
	}
	return nil
}

// RecordFile stores the outcome of one file of run runID.
func (l *Ledger) RecordFile(ctx context.Context, runID string, o types.FileOutcome) error {
	artifacts, err := json.Marshal(o.Artifacts)
	if err != nil {
		return fmt.Errorf("marshaling artifacts: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO files (run_id, path, status, reason, artifacts, relocated_to, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Path, string(o.Status), o.Reason, string(artifacts), o.RelocatedTo, o.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("recording file %s: %w", o.Path, err)
	}
	return nil
}

// FinishRun stores the final counters of a run and marks it finished. A
// run that was never started is created.
func (l *Ledger) FinishRun(ctx context.Context, stats types.Stats) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, discovered, processed, failed, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			discovered = excluded.discovered,
			processed = excluded.processed,
			failed = excluded.failed,
			status = excluded.status`,
		stats.RunID, formatTime(stats.StartedAt), formatTime(stats.FinishedAt),
		stats.Discovered, stats.Processed, stats.Failed, StatusFinished)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", stats.RunID, err)
	}
	return nil
}

// History returns the most recent runs, newest first. A limit of 0 or less
// uses the default of 20.
func (l *Ledger) History(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, discovered, processed, failed, status
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns one run with its file outcomes. It returns an error wrapping
// sql.ErrNoRows when the run does not exist.
func (l *Ledger) Run(ctx context.Context, runID string) (RunRecord, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, discovered, processed, failed, status
		 FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		return RunRecord{}, err
	}
	if r.Files, err = l.Files(ctx, runID); err != nil {
		return RunRecord{}, err
	}
	return r, nil
}

// Files returns the file outcomes of run runID in processing order.
func (l *Ledger) Files(ctx context.Context, runID string) ([]types.FileOutcome, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT path, status, reason, artifacts, relocated_to, duration_ms
		 FROM files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying files of run %s: %w", runID, err)
	}
	defer rows.Close()

	var files []types.FileOutcome
	for rows.Next() {
		var (
			o                              types.FileOutcome
			status                         string
			reason, artifacts, relocatedTo sql.NullString
			durationMS                     int64
		)
		if err := rows.Scan(&o.Path, &status, &reason, &artifacts, &relocatedTo, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		o.Status = types.FileStatus(status)
		o.Reason = reason.String
		o.RelocatedTo = relocatedTo.String
		o.Duration = time.Duration(durationMS) * time.Millisecond
		if artifacts.Valid && artifacts.String != "" {
			if err := json.Unmarshal([]byte(artifacts.String), &o.Artifacts); err != nil {
				return nil, fmt.Errorf("decoding artifacts of %s: %w", o.Path, err)
			}
		}
		files = append(files, o)
	}
	return files, rows.Err()
}

// ExportYAML writes the most recent runs, each with its file outcomes, to w
// as YAML.
func (l *Ledger) ExportYAML(ctx context.Context, w io.Writer, limit int) error {
	runs, err := l.History(ctx, limit)
	if err != nil {
		return err
	}
	for i := range runs {
		if runs[i].Files, err = l.Files(ctx, runs[i].RunID); err != nil {
			return err
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(runs); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (RunRecord, error) {
	var (
		r          RunRecord
		startedAt  string
		finishedAt sql.NullString
	)
	err := s.Scan(&r.RunID, &startedAt, &finishedAt, &r.Discovered, &r.Processed, &r.Failed, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run not found: %w", err)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("scanning run row: %w", err)
	}
	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return RunRecord{}, err
	}
	if finishedAt.Valid && finishedAt.String != "" {
		if r.FinishedAt, err = parseTime(finishedAt.String); err != nil {
			return RunRecord{}, err
		}
	}
	return r, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}
