package storage

import (
	"context"

	"github.com/vietddude/archiver/internal/core/domain"
)

// FailureLedger tracks heights that could not be archived, keyed by the
// requested range.
type FailureLedger interface {
	// Record adds or refreshes a failed height
	Record(ctx context.Context, r domain.HeightRange, fh *domain.FailedHeight) error

	// Resolve removes a height after it was archived
	Resolve(ctx context.Context, r domain.HeightRange, height int64) error

	// List returns failed heights, highest first
	List(ctx context.Context, r domain.HeightRange) ([]*domain.FailedHeight, error)

	// Count returns the number of failed heights
	Count(ctx context.Context, r domain.HeightRange) (int, error)
}

// RunRepository persists run and attempt history.
type RunRepository interface {
	// SaveRun inserts or updates a run
	SaveRun(ctx context.Context, run *domain.RunResult) error

	// SaveAttempt records one proxy attempt of a run
	SaveAttempt(ctx context.Context, runID string, seq int, attempt *domain.AttemptResult) error

	// ListRuns returns the most recent runs, optionally filtered by status
	ListRuns(ctx context.Context, limit int, statuses ...domain.AttemptStatus) ([]*domain.RunResult, error)
}
