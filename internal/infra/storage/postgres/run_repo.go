package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/vietddude/archiver/internal/core/domain"
)

// RunRepo implements storage.RunRepository.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new run repository.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

type runRow struct {
	ID            string       `db:"id"`
	StartHeight   int64        `db:"start_height"`
	EndHeight     int64        `db:"end_height"`
	Status        string       `db:"status"`
	InterruptedAt int64        `db:"interrupted_at"`
	StartedAt     time.Time    `db:"started_at"`
	FinishedAt    sql.NullTime `db:"finished_at"`
}

type attemptRow struct {
	RunID         string    `db:"run_id"`
	Seq           int       `db:"seq"`
	Proxy         string    `db:"proxy"`
	StartHeight   int64     `db:"start_height"`
	EndHeight     int64     `db:"end_height"`
	Status        string    `db:"status"`
	InterruptedAt int64     `db:"interrupted_at"`
	HighestFailed int64     `db:"highest_failed"`
	Failures      int64     `db:"failures"`
	Saved         int64     `db:"saved"`
	StartedAt     time.Time `db:"started_at"`
	FinishedAt    time.Time `db:"finished_at"`
}

func (r *RunRepo) SaveRun(ctx context.Context, run *domain.RunResult) error {
	row := runRow{
		ID:            run.ID,
		StartHeight:   run.Range.Start,
		EndHeight:     run.Range.End,
		Status:        string(run.Status),
		InterruptedAt: run.InterruptedAt,
		StartedAt:     run.StartedAt,
		FinishedAt:    sql.NullTime{Time: run.FinishedAt, Valid: !run.FinishedAt.IsZero()},
	}

	query := `
		INSERT INTO archive_runs (id, start_height, end_height, status, interrupted_at, started_at, finished_at)
		VALUES (:id, :start_height, :end_height, :status, :interrupted_at, :started_at, :finished_at)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			interrupted_at = EXCLUDED.interrupted_at,
			finished_at = EXCLUDED.finished_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (r *RunRepo) SaveAttempt(ctx context.Context, runID string, seq int, a *domain.AttemptResult) error {
	row := attemptRow{
		RunID:         runID,
		Seq:           seq,
		Proxy:         a.Proxy,
		StartHeight:   a.Range.Start,
		EndHeight:     a.Range.End,
		Status:        string(a.Status),
		InterruptedAt: a.InterruptedAt,
		HighestFailed: a.HighestFailed,
		Failures:      a.Failures,
		Saved:         a.Saved,
		StartedAt:     a.StartedAt,
		FinishedAt:    a.FinishedAt,
	}

	query := `
		INSERT INTO archive_attempts (
			run_id, seq, proxy, start_height, end_height, status,
			interrupted_at, highest_failed, failures, saved, started_at, finished_at
		) VALUES (
			:run_id, :seq, :proxy, :start_height, :end_height, :status,
			:interrupted_at, :highest_failed, :failures, :saved, :started_at, :finished_at
		)
		ON CONFLICT (run_id, seq) DO NOTHING
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	return nil
}

func (r *RunRepo) ListRuns(ctx context.Context, limit int, statuses ...domain.AttemptStatus) ([]*domain.RunResult, error) {
	if limit <= 0 {
		limit = 20
	}

	filter := make([]string, len(statuses))
	for i, s := range statuses {
		filter[i] = string(s)
	}

	var rows []runRow
	query := `
		SELECT id, start_height, end_height, status, interrupted_at, started_at, finished_at
		FROM archive_runs
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1::text[])
		ORDER BY started_at DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(filter), limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*domain.RunResult, 0, len(rows))
	for _, row := range rows {
		run := &domain.RunResult{
			ID:            row.ID,
			Range:         domain.HeightRange{Start: row.StartHeight, End: row.EndHeight},
			Status:        domain.AttemptStatus(row.Status),
			InterruptedAt: row.InterruptedAt,
			StartedAt:     row.StartedAt,
			FinishedAt:    row.FinishedAt.Time,
		}

		var attempts []attemptRow
		if err := r.db.SelectContext(ctx, &attempts, `
			SELECT run_id, seq, proxy, start_height, end_height, status, interrupted_at,
			       highest_failed, failures, saved, started_at, finished_at
			FROM archive_attempts WHERE run_id = $1 ORDER BY seq
		`, row.ID); err != nil {
			return nil, fmt.Errorf("failed to list attempts: %w", err)
		}
		for _, a := range attempts {
			run.Attempts = append(run.Attempts, domain.AttemptResult{
				Proxy:         a.Proxy,
				Range:         domain.HeightRange{Start: a.StartHeight, End: a.EndHeight},
				Status:        domain.AttemptStatus(a.Status),
				InterruptedAt: a.InterruptedAt,
				HighestFailed: a.HighestFailed,
				Failures:      a.Failures,
				Saved:         a.Saved,
				StartedAt:     a.StartedAt,
				FinishedAt:    a.FinishedAt,
			})
		}
		runs = append(runs, run)
	}
	return runs, nil
}
