// Package breaker isolates failing endpoints behind a circuit breaker.
//
// The breaker is the two-counter variant: an endpoint is Closed or Open, and
// an Open circuit whose window has elapsed admits a single optimistic probe
// call instead of holding an explicit half-open state.
package breaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lekhoa/enhanceq/internal/metrics"
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold   int
	OpenTimeout time.Duration
}

// DefaultConfig trips after 5 consecutive failures and holds the circuit
// open for 60 seconds.
func DefaultConfig() Config {
	return Config{
		Threshold:   5,
		OpenTimeout: 60 * time.Second,
	}
}

// State is the circuit record for one endpoint key.
type State struct {
	FailureCount  int       `json:"failure_count"`
	LastFailureAt time.Time `json:"last_failure_at"`
	Open          bool      `json:"open"`

	// probing marks an admitted probe whose result has not been recorded
	// yet; while set, further calls stay rejected.
	probing bool
}

// Breaker tracks failures per endpoint key and short-circuits calls to
// endpoints that keep failing.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	circuits map[string]*State
}

// New creates a breaker.
func New(cfg Config) *Breaker {
	if cfg.Threshold == 0 {
		cfg = DefaultConfig()
	}
	return &Breaker{
		cfg:      cfg,
		now:      time.Now,
		circuits: make(map[string]*State),
	}
}

// Allow reports whether a call to the endpoint may proceed. An open circuit
// rejects calls until OpenTimeout has elapsed since the last failure; after
// that one probe call is admitted. The probe's result (via RecordSuccess or
// RecordFailure) decides whether the circuit closes or re-arms.
func (b *Breaker) Allow(endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.circuits[endpoint]
	if !ok || !s.Open {
		return true
	}

	if b.now().Sub(s.LastFailureAt) > b.cfg.OpenTimeout && !s.probing {
		s.probing = true
		return true
	}
	return false
}

// RecordSuccess fully clears the endpoint's circuit state.
func (b *Breaker) RecordSuccess(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.circuits[endpoint]
	if !ok {
		return
	}
	if s.Open {
		metrics.BreakerTransitions.WithLabelValues(endpoint, "closed").Inc()
		slog.Info("circuit closed", "endpoint", endpoint)
	}
	delete(b.circuits, endpoint)
}

// RecordFailure increments the failure count and trips the circuit at the
// threshold. A failure on an already-open circuit (a failed probe) re-arms
// the open window.
func (b *Breaker) RecordFailure(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.circuits[endpoint]
	if !ok {
		s = &State{}
		b.circuits[endpoint] = s
	}

	s.FailureCount++
	s.LastFailureAt = b.now()
	s.probing = false

	if !s.Open && s.FailureCount >= b.cfg.Threshold {
		s.Open = true
		metrics.BreakerTransitions.WithLabelValues(endpoint, "open").Inc()
		slog.Warn("circuit opened",
			"endpoint", endpoint,
			"failures", s.FailureCount,
		)
	}
}

// ProbeReset clears the circuit after an out-of-band liveness probe
// succeeded. A failure recorded after the reset starts counting from one
// again: between a probe success and a concurrent failure, the most recent
// event wins.
func (b *Breaker) ProbeReset(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.circuits[endpoint]; ok && s.Open {
		metrics.BreakerTransitions.WithLabelValues(endpoint, "closed").Inc()
		slog.Info("circuit reset by liveness probe", "endpoint", endpoint)
	}
	delete(b.circuits, endpoint)
}

// IsOpen reports whether the endpoint's circuit is currently open,
// ignoring the probe window.
func (b *Breaker) IsOpen(endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.circuits[endpoint]
	return ok && s.Open
}

// Snapshot returns a copy of all circuit states for reporting.
func (b *Breaker) Snapshot() map[string]State {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]State, len(b.circuits))
	for k, s := range b.circuits {
		out[k] = *s
	}
	return out
}

// SetClock overrides the breaker's time source. Test helper.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}
