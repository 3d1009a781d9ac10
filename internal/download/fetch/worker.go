// Package fetch downloads and persists a single block height.
package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/archiver/internal/core/domain"
	"github.com/vietddude/archiver/internal/download/metrics"
	"github.com/vietddude/archiver/internal/infra/storage"
)

// BlockGetter fetches the JSON document for one height.
type BlockGetter interface {
	FetchBlock(ctx context.Context, gw domain.Gateway, height int64) ([]byte, error)
}

// BlockSink persists a block payload, overwriting any previous copy.
type BlockSink interface {
	Save(height int64, data []byte) (string, error)
}

// Result is the outcome of one worker invocation.
type Result struct {
	Height  int64
	Failed  bool
	Skipped bool // cancelled before any network call
	Err     error
}

// Worker fetches one height at a time through a single proxy.
type Worker struct {
	getter BlockGetter
	sink   BlockSink
	ledger storage.FailureLedger // optional
	rng    domain.HeightRange
	proxy  *domain.Proxy
	cancel *domain.CancelFlag
	log    *slog.Logger
}

// NewWorker creates a worker. ledger may be nil.
func NewWorker(
	getter BlockGetter,
	sink BlockSink,
	ledger storage.FailureLedger,
	rng domain.HeightRange,
	proxy *domain.Proxy,
	cancel *domain.CancelFlag,
) *Worker {
	return &Worker{
		getter: getter,
		sink:   sink,
		ledger: ledger,
		rng:    rng,
		proxy:  proxy,
		cancel: cancel,
		log:    slog.Default().With("component", "fetch", "proxy", domain.ProxyName(proxy)),
	}
}

// Fetch downloads height from gw and saves it. A cancelled flag makes it
// return immediately without a network call and without reporting failure.
func (w *Worker) Fetch(ctx context.Context, gw domain.Gateway, height int64) Result {
	if w.cancel.IsSet() {
		metrics.BlocksSkipped.Inc()
		return Result{Height: height, Skipped: true}
	}

	proxyName := domain.ProxyName(w.proxy)
	start := time.Now()

	data, err := w.getter.FetchBlock(ctx, gw, height)
	metrics.FetchLatency.WithLabelValues(gw.Name).Observe(time.Since(start).Seconds())
	if err == nil {
		var path string
		path, err = w.sink.Save(height, data)
		if err == nil {
			metrics.BlocksSaved.WithLabelValues(gw.Name, proxyName).Inc()
			w.log.Info("Saved block", "height", height, "gateway", gw.Name, "path", path)
			w.resolve(ctx, height)
			return Result{Height: height}
		}
	}

	fetchErr := &domain.FetchError{Height: height, Gateway: gw.Name, Proxy: proxyName, Err: err}
	metrics.BlocksFailed.WithLabelValues(gw.Name, proxyName).Inc()
	w.log.Error("Failed to archive block", "height", height, "gateway", gw.Name, "error", err)
	w.record(ctx, gw, fetchErr)

	return Result{Height: height, Failed: true, Err: fetchErr}
}

func (w *Worker) record(ctx context.Context, gw domain.Gateway, fetchErr *domain.FetchError) {
	if w.ledger == nil {
		return
	}
	fh := &domain.FailedHeight{
		Height:     fetchErr.Height,
		Gateway:    gw.Name,
		Proxy:      fetchErr.Proxy,
		Error:      fetchErr.Err.Error(),
		LastFailed: time.Now(),
	}
	if err := w.ledger.Record(ctx, w.rng, fh); err != nil {
		w.log.Warn("Failed to record failed height", "height", fetchErr.Height, "error", err)
	}
}

func (w *Worker) resolve(ctx context.Context, height int64) {
	if w.ledger == nil {
		return
	}
	if err := w.ledger.Resolve(ctx, w.rng, height); err != nil {
		w.log.Warn("Failed to clear failed height", "height", height, "error", err)
	}
}
