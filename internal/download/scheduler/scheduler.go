// Package scheduler runs fetch work for one proxy attempt on a bounded pool.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/archiver/internal/core/domain"
	"github.com/vietddude/archiver/internal/download/fetch"
	"github.com/vietddude/archiver/internal/download/metrics"
)

// Fetcher runs one worker invocation for one height.
type Fetcher interface {
	Fetch(ctx context.Context, gw domain.Gateway, height int64) fetch.Result
}

// Config holds the submission policy.
type Config struct {
	Concurrency  int           // pool size; 0 = number of distinct gateways
	PaceEvery    int           // submissions between pauses; 0 disables pacing
	PaceInterval time.Duration // pause length
}

// DefaultConfig returns the standard pacing policy.
func DefaultConfig() Config {
	return Config{
		PaceEvery:    10,
		PaceInterval: 5 * time.Second,
	}
}

// Report summarises one scheduling epoch.
type Report struct {
	Submitted int
	Skipped   int
	Pauses    int
	Cancelled bool
}

// Scheduler submits one fetch per height and aggregates the results into a
// RunState.
type Scheduler struct {
	cfg     Config
	fetcher Fetcher
	cancel  *domain.CancelFlag
	log     *slog.Logger
}

// New creates a scheduler.
func New(cfg Config, fetcher Fetcher, cancel *domain.CancelFlag) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		fetcher: fetcher,
		cancel:  cancel,
		log:     slog.Default().With("component", "scheduler"),
	}
}

// Run submits every height of every batch, waits for all of them and
// returns. Failing heights lower state's watermark. Submission stops early
// once the cancel flag is set; work already started is still awaited.
func (s *Scheduler) Run(ctx context.Context, batches []domain.DownloadBatch, state *domain.RunState) Report {
	limit := s.cfg.Concurrency
	if limit <= 0 {
		limit = distinctGateways(batches)
	}

	total := 0
	for _, b := range batches {
		total += len(b.Heights)
	}

	// A failing height must not stop its siblings, so the group has no
	// shared context and workers always return nil.
	var g errgroup.Group
	g.SetLimit(max(limit, 1))

	var skipped atomic.Int64
	report := Report{}

submit:
	for _, b := range batches {
		for _, height := range b.Heights {
			if s.cancel.IsSet() || ctx.Err() != nil {
				report.Cancelled = true
				break submit
			}

			gw := b.Gateway
			g.Go(func() error {
				res := s.fetcher.Fetch(ctx, gw, height)
				switch {
				case res.Skipped:
					skipped.Add(1)
				case res.Failed:
					state.RecordFailure(res.Height)
					metrics.Watermark.Set(float64(state.InterruptedAt()))
				default:
					state.RecordSaved()
				}
				return nil
			})
			report.Submitted++

			if s.cfg.PaceEvery > 0 && report.Submitted%s.cfg.PaceEvery == 0 && report.Submitted < total {
				report.Pauses++
				metrics.PacingPauses.Inc()
				s.log.Info("Pausing submissions",
					"submitted", report.Submitted,
					"gateway", gw.Name,
					"proxy", domain.ProxyName(b.Proxy),
					"pause", s.cfg.PaceInterval,
				)
				s.pause(ctx)
			}
		}
	}

	_ = g.Wait()

	report.Skipped = int(skipped.Load())
	if s.cancel.IsSet() || ctx.Err() != nil {
		report.Cancelled = true
	}
	return report
}

// pause blocks for the pacing interval or until cancellation.
func (s *Scheduler) pause(ctx context.Context) {
	if s.cfg.PaceInterval <= 0 {
		return
	}
	timer := time.NewTimer(s.cfg.PaceInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.cancel.Done():
	case <-ctx.Done():
	}
}

func distinctGateways(batches []domain.DownloadBatch) int {
	seen := make(map[string]struct{})
	for _, b := range batches {
		seen[b.Gateway.Name+"\x00"+b.Gateway.URLTemplate] = struct{}{}
	}
	return len(seen)
}
