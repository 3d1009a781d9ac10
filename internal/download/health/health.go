// Package health exposes run progress, gateway client health and metrics over HTTP.
package health

import (
	"github.com/vietddude/archiver/internal/download/rotation"
	"github.com/vietddude/archiver/internal/infra/gateway"
)

// SystemStatus represents the overall health state of the archiver.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full health report.
type Report struct {
	Status        SystemStatus           `json:"status"`
	Run           rotation.Snapshot      `json:"run"`
	FailedHeights int                    `json:"failed_heights"`
	Clients       []gateway.HealthStatus `json:"clients,omitempty"`
}
