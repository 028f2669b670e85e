package fallback

import (
	"context"
	"sync"

	"github.com/lekhoa/enhanceq/internal/core/domain"
)

// DegradedFunc performs a reduced-fidelity version of the work locally.
type DegradedFunc func(ctx context.Context, req domain.Request) (string, error)

// DegradedStrategy runs a registered local computation for the request's
// output format. Last tier of the fallback chain; declines when no
// capability is registered.
type DegradedStrategy struct {
	mu    sync.RWMutex
	funcs map[string]DegradedFunc
}

// NewDegradedStrategy creates the degraded-computation tier.
func NewDegradedStrategy() *DegradedStrategy {
	return &DegradedStrategy{funcs: make(map[string]DegradedFunc)}
}

// Register installs a capability for an output format.
func (s *DegradedStrategy) Register(outputFormat string, fn DegradedFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[outputFormat] = fn
}

func (s *DegradedStrategy) Name() string { return "degraded" }

func (s *DegradedStrategy) Attempt(ctx context.Context, req domain.Request) (*domain.Result, error) {
	s.mu.RLock()
	fn, ok := s.funcs[req.OutputFormat]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	ref, err := fn(ctx, req)
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		Source:    domain.SourceDegraded,
		ResultRef: ref,
	}, nil
}
