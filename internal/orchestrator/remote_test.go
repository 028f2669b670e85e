package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lekhoa/enhanceq/internal/core/domain"
)

// fakeRemote scripts the collaborator API for tests and counts calls.
type fakeRemote struct {
	submitFn func(ctx context.Context, req domain.Request) (*domain.JobHandle, error)
	statusFn func(ctx context.Context, jobID string) (*domain.JobSnapshot, error)
	healthFn func(ctx context.Context) bool

	submitCalls atomic.Int32
	statusCalls atomic.Int32
}

func (f *fakeRemote) Submit(ctx context.Context, req domain.Request) (*domain.JobHandle, error) {
	f.submitCalls.Add(1)
	if f.submitFn == nil {
		return &domain.JobHandle{JobID: "j1", CreatedAt: time.Now()}, nil
	}
	return f.submitFn(ctx, req)
}

func (f *fakeRemote) Status(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
	f.statusCalls.Add(1)
	if f.statusFn == nil {
		return &domain.JobSnapshot{JobID: jobID, Status: domain.JobStatusCompleted}, nil
	}
	return f.statusFn(ctx, jobID)
}

func (f *fakeRemote) HealthCheck(ctx context.Context) bool {
	if f.healthFn == nil {
		return false
	}
	return f.healthFn(ctx)
}

// fastPollerConfig keeps tests quick while preserving the state machine.
func fastPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:             2 * time.Millisecond,
		MaxProcessingTime:    250 * time.Millisecond,
		MaxConsecutiveErrors: 3,
		ErrorBackoff:         1 * time.Millisecond,
		ExpectedDuration:     100 * time.Millisecond,
	}
}
