// Package health provides system health monitoring and the ops HTTP surface.
package health

import "github.com/lekhoa/enhanceq/internal/breaker"

// SystemStatus represents the overall health state of the orchestrator.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full health report served on /health/detailed.
type Report struct {
	Status          SystemStatus             `json:"status"`
	RemoteReachable bool                     `json:"remote_reachable"`
	Circuits        map[string]breaker.State `json:"circuits,omitempty"`
	DeferredDepth   int                      `json:"deferred_depth"`
	InFlight        int                      `json:"in_flight"`
}
