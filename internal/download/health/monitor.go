package health

import (
	"context"

	"github.com/vietddude/archiver/internal/core/domain"
	"github.com/vietddude/archiver/internal/download/rotation"
	"github.com/vietddude/archiver/internal/infra/gateway"
	"github.com/vietddude/archiver/internal/infra/storage"
)

// RunStatus reports the progress of the current run.
type RunStatus interface {
	Status() rotation.Snapshot
}

// ClientSource lists the gateway clients created so far.
type ClientSource interface {
	Clients() []gateway.HealthStatus
}

// Monitor aggregates health from the controller, the failure ledger and the
// gateway clients.
type Monitor struct {
	run     RunStatus
	ledger  storage.FailureLedger // optional
	clients ClientSource          // optional
	rng     domain.HeightRange
}

// NewMonitor creates a new health monitor.
func NewMonitor(run RunStatus, ledger storage.FailureLedger, clients ClientSource, rng domain.HeightRange) *Monitor {
	return &Monitor{run: run, ledger: ledger, clients: clients, rng: rng}
}

// CheckHealth builds a report. Exhausted runs are critical; failing heights
// or a client error rate above one half are degraded.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	report := Report{
		Status: StatusHealthy,
		Run:    m.run.Status(),
	}

	if m.ledger != nil {
		if count, err := m.ledger.Count(ctx, m.rng); err == nil {
			report.FailedHeights = count
		}
	}
	if m.clients != nil {
		report.Clients = m.clients.Clients()
	}

	switch {
	case report.Run.State == domain.StatusExhausted:
		report.Status = StatusCritical
	case report.Run.State == domain.StatusInterrupted,
		report.Run.Failures > 0,
		report.FailedHeights > 0:
		report.Status = StatusDegraded
	}

	for _, c := range report.Clients {
		if c.Requests > 0 && c.ErrorRate > 0.5 && report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}
