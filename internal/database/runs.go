package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one row of crawl history.
type Run struct {
	// ID is a random UUID assigned by StartRun.
	ID string

	StartedAt  time.Time
	FinishedAt time.Time

	// State is the terminal loop state, or "running" for an unfinished run.
	State string

	Cycles    int
	Successes int
	Failures  int

	// PrimaryCount and RelatedCount are the partition sizes at finish.
	PrimaryCount int
	RelatedCount int
}

// RunStateRunning marks a run that has not been finished.
const RunStateRunning = "running"

// StartRun inserts a new run row and returns its id.
func (cdb *CrawlDB) StartRun(ctx context.Context, startedAt time.Time) (string, error) {
	id := uuid.NewString()

	_, err := cdb.db.ExecContext(ctx,
		"INSERT INTO crawl_runs (id, started_at, state) VALUES (?, ?, ?)",
		id, formatTimestamp(startedAt), RunStateRunning,
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun records the outcome of run.ID.
func (cdb *CrawlDB) FinishRun(ctx context.Context, run Run) error {
	result, err := cdb.db.ExecContext(ctx, `
	UPDATE crawl_runs SET
		finished_at = ?,
		state = ?,
		cycles = ?,
		successes = ?,
		failures = ?,
		primary_count = ?,
		related_count = ?
	WHERE id = ?
	`,
		formatTimestamp(run.FinishedAt),
		run.State,
		run.Cycles,
		run.Successes,
		run.Failures,
		run.PrimaryCount,
		run.RelatedCount,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to finish run: unknown run id %q", run.ID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
// A limit of zero or less returns every run.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, started_at, finished_at, state, cycles, successes, failures, primary_count, related_count
	FROM crawl_runs
	ORDER BY started_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt string
		var finishedAt sql.NullString

		err := rows.Scan(
			&run.ID,
			&startedAt,
			&finishedAt,
			&run.State,
			&run.Cycles,
			&run.Successes,
			&run.Failures,
			&run.PrimaryCount,
			&run.RelatedCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = parseTimestamp(finishedAt.String)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
