package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lekhoa/enhanceq/internal/classify"
	"github.com/lekhoa/enhanceq/internal/core/domain"
)

func kindOfErr(t *testing.T, err error) classify.Kind {
	t.Helper()
	var cls *classify.Classified
	if !errors.As(err, &cls) {
		t.Fatalf("error %v is not classified", err)
	}
	return cls.Kind
}

func TestPollResolvesAfterProcessing(t *testing.T) {
	// Three processing polls, then completed with r1 (Scenario C).
	polls := 0
	remote := &fakeRemote{
		statusFn: func(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
			polls++
			if polls <= 3 {
				return &domain.JobSnapshot{JobID: jobID, Status: domain.JobStatusProcessing}, nil
			}
			return &domain.JobSnapshot{JobID: jobID, Status: domain.JobStatusCompleted, ResultRef: "r1"}, nil
		},
	}

	var mu sync.Mutex
	var updates []ProgressUpdate
	observer := func(u ProgressUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	}

	p := NewPoller(remote, fastPollerConfig())
	snap, err := p.Poll(context.Background(), "j1", observer)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if snap.ResultRef != "r1" {
		t.Errorf("result ref = %s, want r1", snap.ResultRef)
	}

	// Progress must be non-decreasing and below 1.0 until the terminal update.
	prev := -1.0
	for i, u := range updates {
		if u.Progress < prev {
			t.Errorf("progress decreased at update %d: %f < %f", i, u.Progress, prev)
		}
		prev = u.Progress
		if u.State == StatePolling && u.Progress > 0.9 {
			t.Errorf("non-terminal progress %f exceeds 90%% cap", u.Progress)
		}
	}
	last := updates[len(updates)-1]
	if last.State != StateCompleted || last.Progress != 1.0 {
		t.Errorf("final update = %+v, want completed at 1.0", last)
	}
}

func TestPollFailedJobClassified(t *testing.T) {
	remote := &fakeRemote{
		statusFn: func(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
			return &domain.JobSnapshot{
				JobID:  jobID,
				Status: domain.JobStatusFailed,
				ErrorPayload: &domain.ErrorPayload{
					DomainCode: "subject_not_in_frame",
					Message:    "no subject detected",
				},
			}, nil
		},
	}

	p := NewPoller(remote, fastPollerConfig())
	_, err := p.Poll(context.Background(), "j1", nil)
	if kind := kindOfErr(t, err); kind.Code != classify.SubjectNotInFrame.Code {
		t.Errorf("kind = %s, want subject_not_in_frame", kind.Code)
	}
}

func TestPollTimeout(t *testing.T) {
	remote := &fakeRemote{
		statusFn: func(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
			return &domain.JobSnapshot{JobID: jobID, Status: domain.JobStatusProcessing}, nil
		},
	}

	cfg := fastPollerConfig()
	cfg.MaxProcessingTime = 20 * time.Millisecond

	p := NewPoller(remote, cfg)
	done := make(chan error, 1)
	go func() {
		_, err := p.Poll(context.Background(), "j1", nil)
		done <- err
	}()

	select {
	case err := <-done:
		if kind := kindOfErr(t, err); kind.Code != classify.ProcessingTimeout.Code {
			t.Errorf("kind = %s, want processing_timeout", kind.Code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll hung past the processing ceiling")
	}
}

func TestPollTimeoutFinalAttemptWins(t *testing.T) {
	// The job completes exactly at the ceiling: the last-chance status call
	// must pick it up instead of reporting a timeout.
	polls := 0
	remote := &fakeRemote{
		statusFn: func(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
			polls++
			if polls >= 3 {
				return &domain.JobSnapshot{JobID: jobID, Status: domain.JobStatusCompleted, ResultRef: "late"}, nil
			}
			return &domain.JobSnapshot{JobID: jobID, Status: domain.JobStatusProcessing}, nil
		},
	}

	cfg := fastPollerConfig()
	cfg.Interval = 10 * time.Millisecond
	cfg.MaxProcessingTime = 5 * time.Millisecond

	p := NewPoller(remote, cfg)
	snap, err := p.Poll(context.Background(), "j1", nil)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if snap.ResultRef != "late" {
		t.Errorf("result ref = %s, want late", snap.ResultRef)
	}
}

func TestPollCancellationBetweenPolls(t *testing.T) {
	// Scenario D: cancel after poll #2; poll #3 must never be issued.
	ctx, cancel := context.WithCancel(context.Background())
	remote := &fakeRemote{}
	remote.statusFn = func(_ context.Context, jobID string) (*domain.JobSnapshot, error) {
		if remote.statusCalls.Load() == 2 {
			cancel()
		}
		return &domain.JobSnapshot{JobID: jobID, Status: domain.JobStatusProcessing}, nil
	}

	p := NewPoller(remote, fastPollerConfig())
	_, err := p.Poll(ctx, "j1", nil)
	if kind := kindOfErr(t, err); kind.Code != classify.Cancelled.Code {
		t.Errorf("kind = %s, want cancelled", kind.Code)
	}
	if got := remote.statusCalls.Load(); got != 2 {
		t.Errorf("status calls = %d, want 2 (no poll after cancellation)", got)
	}
}

func TestPollToleratesTransientErrors(t *testing.T) {
	polls := 0
	remote := &fakeRemote{
		statusFn: func(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
			polls++
			if polls <= 2 {
				return nil, errors.New("connection reset")
			}
			return &domain.JobSnapshot{JobID: jobID, Status: domain.JobStatusCompleted, ResultRef: "r1"}, nil
		},
	}

	p := NewPoller(remote, fastPollerConfig())
	snap, err := p.Poll(context.Background(), "j1", nil)
	if err != nil {
		t.Fatalf("Poll() error = %v after transient failures", err)
	}
	if snap.ResultRef != "r1" {
		t.Errorf("result ref = %s, want r1", snap.ResultRef)
	}
}

func TestPollConsecutiveErrorLimit(t *testing.T) {
	remote := &fakeRemote{
		statusFn: func(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
			return nil, errors.New("connection reset")
		},
	}

	p := NewPoller(remote, fastPollerConfig())
	_, err := p.Poll(context.Background(), "j1", nil)
	if kind := kindOfErr(t, err); kind.Code != classify.ServiceUnavailable.Code {
		t.Errorf("kind = %s, want service_unavailable", kind.Code)
	}
	// Three errors are tolerated; the fourth attempt exceeds the limit.
	if got := remote.statusCalls.Load(); got != 4 {
		t.Errorf("status calls = %d, want 4 (3 tolerated errors plus the failing attempt)", got)
	}
}
