// Package rotation drives one download attempt per proxy until the range is
// archived, the proxies run out, or the run is cancelled.
package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/archiver/internal/core/domain"
	"github.com/vietddude/archiver/internal/download/metrics"
	"github.com/vietddude/archiver/internal/download/plan"
	"github.com/vietddude/archiver/internal/download/scheduler"
	"github.com/vietddude/archiver/internal/infra/storage"
)

// FetcherFactory returns the fetcher used for every height of one proxy attempt.
type FetcherFactory func(proxy *domain.Proxy) (scheduler.Fetcher, error)

// Config holds the rotation policy.
type Config struct {
	BatchSize int
	Scheduler scheduler.Config

	// ResumeFromWatermark narrows the next attempt to [End, highest failing
	// height] instead of re-running the full range.
	ResumeFromWatermark bool
}

// Snapshot is the externally visible progress of a run.
type Snapshot struct {
	RunID         string               `json:"run_id"`
	Range         domain.HeightRange   `json:"range"`
	State         domain.AttemptStatus `json:"state"`
	Proxy         string               `json:"proxy"`
	Attempt       int                  `json:"attempt"`
	Attempts      int                  `json:"attempts"`
	Saved         int64                `json:"saved"`
	Failures      int64                `json:"failures"`
	InterruptedAt int64                `json:"interrupted_at"`
}

// Controller owns the RunState and the cancel flag for a run.
type Controller struct {
	cfg      Config
	rng      domain.HeightRange
	gateways []domain.Gateway
	proxies  []*domain.Proxy
	factory  FetcherFactory
	runs     storage.RunRepository // optional
	cancel   *domain.CancelFlag
	log      *slog.Logger

	mu       sync.RWMutex
	snapshot Snapshot
	state    *domain.RunState
}

// NewController creates a controller in the Idle state. runs may be nil.
func NewController(
	cfg Config,
	rng domain.HeightRange,
	gateways []domain.Gateway,
	proxies []*domain.Proxy,
	factory FetcherFactory,
	runs storage.RunRepository,
	cancel *domain.CancelFlag,
) *Controller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = plan.DefaultBatchSize
	}
	if len(proxies) == 0 {
		proxies = []*domain.Proxy{nil}
	}
	if cancel == nil {
		cancel = domain.NewCancelFlag()
	}

	return &Controller{
		cfg:      cfg,
		rng:      rng,
		gateways: gateways,
		proxies:  proxies,
		factory:  factory,
		runs:     runs,
		cancel:   cancel,
		log:      slog.Default().With("component", "rotation", "range", rng.String()),
		snapshot: Snapshot{
			Range:         rng,
			State:         domain.StatusIdle,
			Attempts:      len(proxies),
			InterruptedAt: rng.Start,
		},
	}
}

// Run executes the attempts. Only configuration problems are returned as
// errors; interruption, exhaustion and cancellation are reported in the result.
func (c *Controller) Run(ctx context.Context) (*domain.RunResult, error) {
	if err := c.rng.Validate(); err != nil {
		return nil, err
	}
	if len(c.gateways) == 0 {
		return nil, domain.ConfigErrorf("gateway table is empty")
	}

	run := &domain.RunResult{
		ID:            uuid.New().String(),
		Range:         c.rng,
		Status:        domain.StatusRunning,
		InterruptedAt: c.rng.Start,
		StartedAt:     time.Now(),
	}
	c.update(func(s *Snapshot) {
		s.RunID = run.ID
		s.State = domain.StatusRunning
	})
	c.saveRun(ctx, run)

	c.log.Info("Starting run",
		"run", run.ID,
		"gateways", len(c.gateways),
		"proxies", len(c.proxies),
		"resume_from_watermark", c.cfg.ResumeFromWatermark,
	)

	target := c.rng
	for i, proxy := range c.proxies {
		if c.cancel.IsSet() {
			return c.finish(ctx, run, domain.StatusCancelled), nil
		}

		attempt, err := c.runAttempt(ctx, i, proxy, target)
		if err != nil {
			c.finish(ctx, run, domain.StatusCancelled)
			return nil, err
		}

		run.Attempts = append(run.Attempts, *attempt)
		run.InterruptedAt = attempt.InterruptedAt
		metrics.Attempts.WithLabelValues(attempt.Proxy, string(attempt.Status)).Inc()
		if c.runs != nil {
			if err := c.runs.SaveAttempt(ctx, run.ID, i, attempt); err != nil {
				c.log.Warn("Failed to save attempt", "error", err)
			}
		}

		switch attempt.Status {
		case domain.StatusSucceeded:
			c.log.Info("Proxy completed successfully", "proxy", attempt.Proxy, "saved", attempt.Saved)
			return c.finish(ctx, run, domain.StatusSucceeded), nil

		case domain.StatusCancelled:
			c.log.Info("Run interrupted by user", "proxy", attempt.Proxy)
			return c.finish(ctx, run, domain.StatusCancelled), nil
		}

		c.log.Warn("Interrupted, switching to the next proxy",
			"proxy", attempt.Proxy,
			"interrupted_at", attempt.InterruptedAt,
			"failures", attempt.Failures,
		)
		if c.cfg.ResumeFromWatermark && attempt.HighestFailed >= c.rng.End {
			target = domain.HeightRange{Start: attempt.HighestFailed, End: c.rng.End}
		}
	}

	c.log.Error("All proxies exhausted", "interrupted_at", run.InterruptedAt)
	return c.finish(ctx, run, domain.StatusExhausted), nil
}

// runAttempt performs partition, batching and one scheduling epoch for proxy.
func (c *Controller) runAttempt(
	ctx context.Context,
	index int,
	proxy *domain.Proxy,
	target domain.HeightRange,
) (*domain.AttemptResult, error) {
	proxyName := domain.ProxyName(proxy)
	c.log.Info("Using proxy", "proxy", proxyName, "attempt", index+1, "start", target.Start, "end", target.End)

	fetcher, err := c.factory(proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare proxy %s: %w", proxyName, err)
	}

	batches, err := plan.Build(target, c.gateways, proxy, c.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	state := domain.NewRunState(target.Start)
	c.mu.Lock()
	c.state = state
	c.snapshot.Proxy = proxyName
	c.snapshot.Attempt = index + 1
	c.mu.Unlock()
	metrics.Watermark.Set(float64(target.Start))

	attempt := &domain.AttemptResult{
		Proxy:     proxyName,
		Range:     target,
		StartedAt: time.Now(),
	}

	report := scheduler.New(c.cfg.Scheduler, fetcher, c.cancel).Run(ctx, batches, state)

	attempt.FinishedAt = time.Now()
	attempt.InterruptedAt = state.InterruptedAt()
	attempt.HighestFailed = state.HighestFailed()
	attempt.Failures = state.Failures()
	attempt.Saved = state.Saved()

	switch {
	case report.Cancelled:
		attempt.Status = domain.StatusCancelled
	case state.Failures() > 0:
		attempt.Status = domain.StatusInterrupted
	default:
		attempt.Status = domain.StatusSucceeded
	}

	c.log.Info("Attempt finished",
		"proxy", proxyName,
		"status", attempt.Status,
		"submitted", report.Submitted,
		"saved", attempt.Saved,
		"failures", attempt.Failures,
		"skipped", report.Skipped,
		"pauses", report.Pauses,
		"elapsed", attempt.FinishedAt.Sub(attempt.StartedAt).Round(time.Millisecond),
	)
	return attempt, nil
}

func (c *Controller) finish(ctx context.Context, run *domain.RunResult, status domain.AttemptStatus) *domain.RunResult {
	run.Status = status
	run.FinishedAt = time.Now()
	c.update(func(s *Snapshot) {
		s.State = status
		s.InterruptedAt = run.InterruptedAt
	})
	// Persist even when ctx was cancelled by a forced stop.
	c.saveRun(context.WithoutCancel(ctx), run)
	return run
}

func (c *Controller) saveRun(ctx context.Context, run *domain.RunResult) {
	if c.runs == nil {
		return
	}
	if err := c.runs.SaveRun(ctx, run); err != nil {
		c.log.Warn("Failed to save run", "run", run.ID, "error", err)
	}
}

func (c *Controller) update(fn func(s *Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.snapshot)
}

// Status returns a point-in-time view of the run.
func (c *Controller) Status() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.snapshot
	if c.state != nil && s.State == domain.StatusRunning {
		s.Saved = c.state.Saved()
		s.Failures = c.state.Failures()
		s.InterruptedAt = c.state.InterruptedAt()
	}
	return s
}
