package health

import (
	"context"
	"sync"
	"time"

	"github.com/lekhoa/enhanceq/internal/breaker"
	"github.com/lekhoa/enhanceq/internal/fallback"
)

// Prober is the liveness check against the remote API.
type Prober interface {
	HealthCheck(ctx context.Context) bool
}

// InFlightCounter reports current in-flight submissions.
type InFlightCounter interface {
	InFlight() int
}

// Monitor aggregates health status from the orchestrator's components.
type Monitor struct {
	prober   Prober
	breaker  *breaker.Breaker
	queue    fallback.DeferredQueue
	inflight InFlightCounter

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a health monitor.
func NewMonitor(
	prober Prober,
	brk *breaker.Breaker,
	queue fallback.DeferredQueue,
	inflight InFlightCounter,
) *Monitor {
	return &Monitor{
		prober:   prober,
		breaker:  brk,
		queue:    queue,
		inflight: inflight,
	}
}

// Check performs a health check. Results are cached for 10s so the ops
// endpoint cannot spam the remote liveness probe.
func (m *Monitor) Check(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	report := Report{
		Status:          StatusHealthy,
		RemoteReachable: m.prober.HealthCheck(ctx),
		Circuits:        m.breaker.Snapshot(),
	}

	if m.queue != nil {
		if depth, err := m.queue.Depth(ctx); err == nil {
			report.DeferredDepth = depth
		}
	}
	if m.inflight != nil {
		report.InFlight = m.inflight.InFlight()
	}

	openCircuits := false
	for _, s := range report.Circuits {
		if s.Open {
			openCircuits = true
			break
		}
	}

	switch {
	case !report.RemoteReachable && openCircuits:
		report.Status = StatusCritical
	case !report.RemoteReachable || openCircuits || report.DeferredDepth > 0:
		report.Status = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
