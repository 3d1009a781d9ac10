// Package memory provides in-process implementations of the storage
// interfaces, used when Redis or Postgres are not configured.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/vietddude/archiver/internal/core/domain"
)

// FailureLedger is an in-memory storage.FailureLedger.
type FailureLedger struct {
	mu     sync.RWMutex
	ranges map[domain.HeightRange]map[int64]*domain.FailedHeight
}

// NewFailureLedger creates an empty ledger.
func NewFailureLedger() *FailureLedger {
	return &FailureLedger{ranges: make(map[domain.HeightRange]map[int64]*domain.FailedHeight)}
}

func (l *FailureLedger) Record(_ context.Context, r domain.HeightRange, fh *domain.FailedHeight) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, ok := l.ranges[r]
	if !ok {
		entries = make(map[int64]*domain.FailedHeight)
		l.ranges[r] = entries
	}

	cp := *fh
	if prev, ok := entries[fh.Height]; ok {
		cp.RetryCount = prev.RetryCount + 1
	}
	entries[fh.Height] = &cp
	return nil
}

func (l *FailureLedger) Resolve(_ context.Context, r domain.HeightRange, height int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.ranges[r], height)
	return nil
}

func (l *FailureLedger) List(_ context.Context, r domain.HeightRange) ([]*domain.FailedHeight, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*domain.FailedHeight, 0, len(l.ranges[r]))
	for _, fh := range l.ranges[r] {
		cp := *fh
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Height > result[j].Height })
	return result, nil
}

func (l *FailureLedger) Count(_ context.Context, r domain.HeightRange) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ranges[r]), nil
}

// RunRepo is an in-memory storage.RunRepository.
type RunRepo struct {
	mu       sync.RWMutex
	runs     map[string]*domain.RunResult
	order    []string
	attempts map[string][]domain.AttemptResult
}

// NewRunRepo creates an empty run repository.
func NewRunRepo() *RunRepo {
	return &RunRepo{
		runs:     make(map[string]*domain.RunResult),
		attempts: make(map[string][]domain.AttemptResult),
	}
}

func (r *RunRepo) SaveRun(_ context.Context, run *domain.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		r.order = append(r.order, run.ID)
	}
	cp := *run
	cp.Attempts = nil
	r.runs[run.ID] = &cp
	return nil
}

func (r *RunRepo) SaveAttempt(_ context.Context, runID string, seq int, attempt *domain.AttemptResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.attempts[runID]
	for len(list) <= seq {
		list = append(list, domain.AttemptResult{})
	}
	list[seq] = *attempt
	r.attempts[runID] = list
	return nil
}

func (r *RunRepo) ListRuns(_ context.Context, limit int, statuses ...domain.AttemptStatus) ([]*domain.RunResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.RunResult
	for i := len(r.order) - 1; i >= 0; i-- {
		run := r.runs[r.order[i]]
		if len(statuses) > 0 && !slices.Contains(statuses, run.Status) {
			continue
		}
		cp := *run
		cp.Attempts = append([]domain.AttemptResult(nil), r.attempts[run.ID]...)
		result = append(result, &cp)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}
