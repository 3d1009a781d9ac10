package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksSaved tracks blocks written to disk per gateway
	BlocksSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_blocks_saved_total",
			Help: "Total number of blocks fetched and persisted",
		},
		[]string{"gateway", "proxy"},
	)

	// BlocksFailed tracks heights that could not be fetched or persisted
	BlocksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_blocks_failed_total",
			Help: "Total number of heights that failed",
		},
		[]string{"gateway", "proxy"},
	)

	// BlocksSkipped tracks heights skipped because the run was cancelled
	BlocksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_blocks_skipped_total",
			Help: "Total number of heights skipped after cancellation",
		},
	)

	// FetchLatency tracks gateway request latency
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "archiver_fetch_latency_seconds",
			Help:    "Gateway block request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway"},
	)

	// PacingPauses counts scheduler throttle pauses
	PacingPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_pacing_pauses_total",
			Help: "Total number of scheduler pacing pauses",
		},
	)

	// Attempts counts finished proxy attempts by outcome
	Attempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_attempts_total",
			Help: "Total number of proxy attempts by outcome",
		},
		[]string{"proxy", "status"},
	)

	// Watermark tracks the lowest failing height of the current attempt
	Watermark = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archiver_interrupted_at",
			Help: "Lowest failing height observed in the current attempt",
		},
	)
)
