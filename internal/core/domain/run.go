package domain

import (
	"sync/atomic"
	"time"
)

// AttemptStatus is the terminal state of one proxy attempt or of a whole run.
type AttemptStatus string

const (
	StatusIdle        AttemptStatus = "idle"
	StatusRunning     AttemptStatus = "running"
	StatusSucceeded   AttemptStatus = "succeeded"
	StatusInterrupted AttemptStatus = "interrupted"
	StatusCancelled   AttemptStatus = "cancelled"
	StatusExhausted   AttemptStatus = "exhausted"
)

// RunState aggregates worker results for one proxy attempt. All methods are
// safe for concurrent use.
type RunState struct {
	interruptedAt atomic.Int64
	highestFailed atomic.Int64
	failures      atomic.Int64
	saved         atomic.Int64
}

// NewRunState returns a state whose watermark starts at start.
func NewRunState(start int64) *RunState {
	s := &RunState{}
	s.interruptedAt.Store(start)
	s.highestFailed.Store(-1)
	return s
}

// RecordFailure lowers the watermark to height if it is lower.
func (s *RunState) RecordFailure(height int64) {
	s.failures.Add(1)
	for {
		cur := s.interruptedAt.Load()
		if height >= cur || s.interruptedAt.CompareAndSwap(cur, height) {
			break
		}
	}
	for {
		cur := s.highestFailed.Load()
		if height <= cur || s.highestFailed.CompareAndSwap(cur, height) {
			break
		}
	}
}

// RecordSaved counts a persisted block.
func (s *RunState) RecordSaved() {
	s.saved.Add(1)
}

// InterruptedAt is the lowest failing height seen, or the start height when none failed.
func (s *RunState) InterruptedAt() int64 { return s.interruptedAt.Load() }

// HighestFailed is the highest failing height seen, or -1.
func (s *RunState) HighestFailed() int64 { return s.highestFailed.Load() }

// Failures is the number of failing heights.
func (s *RunState) Failures() int64 { return s.failures.Load() }

// Saved is the number of blocks written.
func (s *RunState) Saved() int64 { return s.saved.Load() }

// AttemptResult summarises one proxy attempt.
type AttemptResult struct {
	Proxy         string        `json:"proxy"`
	Range         HeightRange   `json:"range"`
	Status        AttemptStatus `json:"status"`
	InterruptedAt int64         `json:"interrupted_at"`
	HighestFailed int64         `json:"highest_failed"`
	Failures      int64         `json:"failures"`
	Saved         int64         `json:"saved"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
}

// RunResult summarises a full run across proxies.
type RunResult struct {
	ID            string          `json:"id"`
	Range         HeightRange     `json:"range"`
	Status        AttemptStatus   `json:"status"`
	InterruptedAt int64           `json:"interrupted_at"`
	Attempts      []AttemptResult `json:"attempts"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}
