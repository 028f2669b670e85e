// Package fallback provides degraded-mode strategies for when the primary
// path is unavailable.
//
// Strategies are tried in fixed order: cached result, deferred queue,
// degraded local computation. The first success wins; if every strategy
// fails, the caller's original error propagates unchanged.
package fallback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lekhoa/enhanceq/internal/core/domain"
	"github.com/lekhoa/enhanceq/internal/metrics"
)

// ErrExhausted reports that every strategy failed or timed out. Callers are
// expected to propagate their original error instead of this one.
var ErrExhausted = errors.New("all fallback strategies exhausted")

// Strategy is one degraded-mode tier.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req domain.Request) (*domain.Result, error)
}

// Chain tries strategies in order with a per-strategy timeout.
type Chain struct {
	strategies []Strategy
	timeout    time.Duration
	log        *slog.Logger
}

// NewChain creates a fallback chain. A zero timeout defaults to 5s.
func NewChain(timeout time.Duration, strategies ...Strategy) *Chain {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Chain{
		strategies: strategies,
		timeout:    timeout,
		log:        slog.Default(),
	}
}

// Attempt runs the chain. It returns ErrExhausted when no strategy produced
// a result; every produced result carries its source tier.
func (c *Chain) Attempt(ctx context.Context, req domain.Request) (*domain.Result, error) {
	for _, s := range c.strategies {
		sctx, cancel := context.WithTimeout(ctx, c.timeout)
		res, err := s.Attempt(sctx, req)
		cancel()

		if err != nil {
			metrics.FallbackAttempts.WithLabelValues(s.Name(), "error").Inc()
			c.log.Debug("fallback strategy failed",
				"strategy", s.Name(),
				"key", req.IdempotencyKey(),
				"error", err,
			)
			continue
		}
		if res == nil {
			// Strategy declined (e.g. cache miss, capability not registered).
			metrics.FallbackAttempts.WithLabelValues(s.Name(), "miss").Inc()
			continue
		}

		metrics.FallbackAttempts.WithLabelValues(s.Name(), "hit").Inc()
		c.log.Info("fallback strategy succeeded",
			"strategy", s.Name(),
			"source", res.Source,
			"key", req.IdempotencyKey(),
		)
		return res, nil
	}

	return nil, ErrExhausted
}
