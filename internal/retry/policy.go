// Package retry tracks per-request retry budgets with exponential backoff.
package retry

import (
	"math"
	"sync"
	"time"

	"github.com/lekhoa/enhanceq/internal/classify"
)

// Config holds retry policy settings.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig returns the standard budget: three retries at 1s, 2s, 4s.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// Policy decides whether an operation may be retried and how long to wait
// before the next attempt. State is keyed by idempotency key, so unrelated
// requests retry independently.
type Policy struct {
	cfg Config

	mu       sync.Mutex
	attempts map[string]int
}

// NewPolicy creates a retry policy.
func NewPolicy(cfg Config) *Policy {
	if cfg.BaseDelay == 0 {
		cfg = DefaultConfig()
	}
	return &Policy{
		cfg:      cfg,
		attempts: make(map[string]int),
	}
}

// CanRetry reports whether another attempt is allowed for the key. It is
// false for non-retryable kinds and for exhausted budgets.
func (p *Policy) CanRetry(kind classify.Kind, key string) bool {
	if !kind.Retryable {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[key] < p.cfg.MaxRetries
}

// NextDelay returns the backoff before the next attempt:
// BaseDelay * 2^attempts, clamped to MaxDelay.
func (p *Policy) NextDelay(key string) time.Duration {
	p.mu.Lock()
	attempts := p.attempts[key]
	p.mu.Unlock()

	delay := float64(p.cfg.BaseDelay) * math.Pow(2, float64(attempts))
	if delay > float64(p.cfg.MaxDelay) {
		return p.cfg.MaxDelay
	}
	return time.Duration(delay)
}

// RecordAttempt increments the attempt counter for the key.
func (p *Policy) RecordAttempt(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[key]++
}

// Reset clears retry state for the key. Called on success.
func (p *Policy) Reset(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, key)
}

// Attempts returns the recorded attempt count for the key.
func (p *Policy) Attempts(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[key]
}
