package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/backmassage/poissonbatch/internal/config"
	"github.com/backmassage/poissonbatch/internal/pipeline"
)

// Run is a stored runs row.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is active or after a crash
	ConfigFile string
	InputDir   string
	OutputDir  string
	Options    config.Options
	DryRun     bool
	Total      int
	Succeeded  int
	Skipped    int
	Failed     int
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT run_id, started_at_ns, finished_at_ns, config_file, input_dir, output_dir,
		       point_weight, depth, color, trim, num_threads, dry_run,
		       total, succeeded, skipped, failed
		FROM runs
		ORDER BY started_at_ns DESC, rowid DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                      Run
			started                int64
			finished               sql.NullInt64
			cfgFile, inDir, outDir sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &started, &finished, &cfgFile, &inDir, &outDir,
			&r.Options.PointWeight, &r.Options.Depth, &r.Options.Color, &r.Options.Trim,
			&r.Options.NumThreads, &r.DryRun,
			&r.Total, &r.Succeeded, &r.Skipped, &r.Failed,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}
		r.ConfigFile, r.InputDir, r.OutputDir = cfgFile.String, inDir.String, outDir.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// FileResults returns the recorded outcomes of runID in processing order.
func (l *Ledger) FileResults(ctx context.Context, runID string) ([]pipeline.FileResult, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT file_index, name, input_path, output_path, stage, ok, dry_run,
		       error, cause, duration_ns, input_bytes, output_bytes, points, triangles
		FROM file_results
		WHERE run_id = ?
		ORDER BY file_index, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query file results: %w", err)
	}
	defer rows.Close()

	var results []pipeline.FileResult
	for rows.Next() {
		var (
			r          pipeline.FileResult
			stage      string
			errText    sql.NullString
			cause      sql.NullString
			durationNs int64
		)
		if err := rows.Scan(
			&r.Index, &r.Name, &r.InputPath, &r.OutputPath, &stage, &r.OK, &r.DryRun,
			&errText, &cause, &durationNs, &r.InputBytes, &r.OutputBytes, &r.Points, &r.Triangles,
		); err != nil {
			return nil, fmt.Errorf("scan file result: %w", err)
		}
		r.Stage = pipeline.Stage(stage)
		r.Err, r.Cause = errText.String, cause.String
		r.Duration = time.Duration(durationNs)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// LastFailures returns, for each file name whose most recent recorded
// outcome was a failure, that failure. Dry runs are ignored.
func (l *Ledger) LastFailures(ctx context.Context) ([]pipeline.FileResult, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT f.name, f.input_path, f.stage, f.error, f.cause
		FROM file_results f
		JOIN (
			SELECT name, MAX(id) AS id FROM file_results WHERE dry_run = 0 GROUP BY name
		) latest ON latest.id = f.id
		WHERE f.ok = 0
		ORDER BY f.name
	`)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var results []pipeline.FileResult
	for rows.Next() {
		var (
			r       pipeline.FileResult
			stage   string
			errText sql.NullString
			cause   sql.NullString
		)
		if err := rows.Scan(&r.Name, &r.InputPath, &stage, &errText, &cause); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		r.Stage = pipeline.Stage(stage)
		r.Err, r.Cause = errText.String, cause.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
