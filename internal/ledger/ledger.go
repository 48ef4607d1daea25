// Package ledger records batch runs and per-file outcomes in a SQLite
// database, so repeated runs over the same directories leave a history.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/backmassage/poissonbatch/internal/config"
	"github.com/backmassage/poissonbatch/internal/pipeline"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// schema.sql creates the runs and file_results tables.
//
//go:embed schema.sql
var schemaSQL string

// ErrNoRun is returned when a file is recorded before StartRun.
var ErrNoRun = errors.New("ledger: no run started")

// Ledger is an open run ledger. One Ledger tracks at most one active run.
type Ledger struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure ledger: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize ledger schema: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RunID returns the active run's identifier, or "".
func (l *Ledger) RunID() string { return l.runID }

// StartRun inserts a runs row for cfg and makes it the active run.
func (l *Ledger) StartRun(ctx context.Context, cfg *config.Config) (string, error) {
	id := uuid.New().String()
	o := cfg.Options
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, started_at_ns, config_file, input_dir, output_dir,
			point_weight, depth, color, trim, num_threads, dry_run
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, l.now().UnixNano(), cfg.ConfigFile, cfg.InputDir, cfg.OutputDir,
		o.PointWeight, o.Depth, o.Color, o.Trim, o.NumThreads, cfg.DryRun,
	)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	l.runID = id
	return id, nil
}

// RecordFile stores one file outcome under the active run. It implements
// pipeline.Recorder.
func (l *Ledger) RecordFile(ctx context.Context, r pipeline.FileResult) error {
	if l.runID == "" {
		return ErrNoRun
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO file_results (
			run_id, file_index, name, input_path, output_path, stage, ok, dry_run,
			error, cause, duration_ns, input_bytes, output_bytes, points, triangles,
			recorded_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.runID, r.Index, r.Name, r.InputPath, r.OutputPath, string(r.Stage), r.OK, r.DryRun,
		nullString(r.Err), nullString(r.Cause), int64(r.Duration), r.InputBytes, r.OutputBytes,
		r.Points, r.Triangles, l.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", r.Name, err)
	}
	return nil
}

// FinishRun stores the final counters of the active run.
func (l *Ledger) FinishRun(ctx context.Context, stats pipeline.RunStats) error {
	if l.runID == "" {
		return ErrNoRun
	}
	_, err := l.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at_ns = ?, total = ?, succeeded = ?, skipped = ?, failed = ?
		WHERE run_id = ?
	`, l.now().UnixNano(), stats.Total, stats.Succeeded, stats.Skipped, stats.Failed, l.runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
