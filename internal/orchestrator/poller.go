package orchestrator

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/lekhoa/enhanceq/internal/classify"
	"github.com/lekhoa/enhanceq/internal/core/domain"
	"github.com/lekhoa/enhanceq/internal/metrics"
)

// PollState is the poller's state machine position. Every state except
// Polling is terminal.
type PollState string

const (
	StateSubmitted PollState = "submitted"
	StatePolling   PollState = "polling"
	StateCompleted PollState = "completed"
	StateFailed    PollState = "failed"
	StateTimedOut  PollState = "timed_out"
	StateCancelled PollState = "cancelled"
)

// ProgressUpdate is emitted to the observer on every state or progress
// change. Progress is monotonic and stays below 1.0 until a terminal status
// has actually been observed.
type ProgressUpdate struct {
	JobID    string
	State    PollState
	Status   domain.JobStatus
	Progress float64
}

// Observer receives progress and status-change notifications.
type Observer func(ProgressUpdate)

// PollerConfig holds polling behavior settings.
type PollerConfig struct {
	Interval             time.Duration
	MaxProcessingTime    time.Duration
	MaxConsecutiveErrors int
	ErrorBackoff         time.Duration
	ExpectedDuration     time.Duration
}

// DefaultPollerConfig polls every 2s for at most 60s, tolerating 3
// consecutive transient errors.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:             2 * time.Second,
		MaxProcessingTime:    60 * time.Second,
		MaxConsecutiveErrors: 3,
		ErrorBackoff:         1 * time.Second,
		ExpectedDuration:     30 * time.Second,
	}
}

// Poller drives the status state machine for one submitted job.
type Poller struct {
	remote Remote
	cfg    PollerConfig
	log    *slog.Logger
}

// NewPoller creates a poller.
func NewPoller(remote Remote, cfg PollerConfig) *Poller {
	if cfg.Interval == 0 {
		cfg = DefaultPollerConfig()
	}
	return &Poller{
		remote: remote,
		cfg:    cfg,
		log:    slog.Default(),
	}
}

// Poll runs the state machine until a terminal state. It returns the
// terminal snapshot on completion, or a classified error for Failed,
// TimedOut, and Cancelled. Cancellation is observed at the next scheduled
// tick and never fires a spurious completion or failure.
func (p *Poller) Poll(ctx context.Context, jobID string, observer Observer) (*domain.JobSnapshot, error) {
	start := time.Now()
	deadline := start.Add(p.cfg.MaxProcessingTime)

	notify := func(u ProgressUpdate) {
		if observer != nil {
			observer(u)
		}
	}

	notify(ProgressUpdate{JobID: jobID, State: StateSubmitted})
	notify(ProgressUpdate{JobID: jobID, State: StatePolling})

	consecutiveErrors := 0
	lastProgress := 0.0

	for {
		if err := ctx.Err(); err != nil {
			return nil, p.cancelled(jobID, start, notify)
		}

		snap, err := p.remote.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, p.cancelled(jobID, start, notify)
			}

			consecutiveErrors++
			p.log.Warn("status poll failed",
				"job_id", jobID,
				"consecutive", consecutiveErrors,
				"error", err,
			)
			// Up to MaxConsecutiveErrors transient failures are tolerated
			// with backoff; only exceeding the limit fails the poll.
			if consecutiveErrors > p.cfg.MaxConsecutiveErrors {
				notify(ProgressUpdate{JobID: jobID, State: StateFailed, Progress: lastProgress})
				metrics.PollDuration.WithLabelValues(string(StateFailed)).Observe(time.Since(start).Seconds())
				cls := classify.NewClassified(classify.ServiceUnavailable,
					"status polling failed repeatedly")
				return nil, cls
			}

			// Backoff between transient poll errors, doubling per failure.
			backoff := time.Duration(float64(p.cfg.ErrorBackoff) *
				math.Pow(2, float64(consecutiveErrors-1)))
			if !p.sleep(ctx, backoff) {
				return nil, p.cancelled(jobID, start, notify)
			}
			continue
		}
		consecutiveErrors = 0

		switch snap.Status {
		case domain.JobStatusCompleted:
			notify(ProgressUpdate{
				JobID: jobID, State: StateCompleted,
				Status: snap.Status, Progress: 1.0,
			})
			metrics.PollDuration.WithLabelValues(string(StateCompleted)).Observe(time.Since(start).Seconds())
			return snap, nil

		case domain.JobStatusFailed:
			notify(ProgressUpdate{
				JobID: jobID, State: StateFailed,
				Status: snap.Status, Progress: lastProgress,
			})
			metrics.PollDuration.WithLabelValues(string(StateFailed)).Observe(time.Since(start).Seconds())
			return nil, classifyPayload(snap.ErrorPayload)
		}

		// Still queued or processing.
		progress := p.estimateProgress(start)
		if progress < lastProgress {
			progress = lastProgress
		}
		lastProgress = progress
		notify(ProgressUpdate{
			JobID: jobID, State: StatePolling,
			Status: snap.Status, Progress: progress,
		})

		if time.Now().After(deadline) {
			return p.finalAttempt(ctx, jobID, start, lastProgress, notify)
		}

		if !p.sleep(ctx, p.cfg.Interval) {
			return nil, p.cancelled(jobID, start, notify)
		}
	}
}

// finalAttempt issues one last status call past the processing ceiling
// before giving up with ProcessingTimeout.
func (p *Poller) finalAttempt(
	ctx context.Context,
	jobID string,
	start time.Time,
	lastProgress float64,
	notify func(ProgressUpdate),
) (*domain.JobSnapshot, error) {
	snap, err := p.remote.Status(ctx, jobID)
	if err == nil && snap.Status == domain.JobStatusCompleted {
		notify(ProgressUpdate{
			JobID: jobID, State: StateCompleted,
			Status: snap.Status, Progress: 1.0,
		})
		metrics.PollDuration.WithLabelValues(string(StateCompleted)).Observe(time.Since(start).Seconds())
		return snap, nil
	}
	if err == nil && snap.Status == domain.JobStatusFailed {
		notify(ProgressUpdate{
			JobID: jobID, State: StateFailed,
			Status: snap.Status, Progress: lastProgress,
		})
		metrics.PollDuration.WithLabelValues(string(StateFailed)).Observe(time.Since(start).Seconds())
		return nil, classifyPayload(snap.ErrorPayload)
	}

	notify(ProgressUpdate{JobID: jobID, State: StateTimedOut, Progress: lastProgress})
	metrics.PollDuration.WithLabelValues(string(StateTimedOut)).Observe(time.Since(start).Seconds())
	p.log.Warn("job exceeded processing ceiling",
		"job_id", jobID,
		"elapsed", time.Since(start),
	)
	return nil, classify.NewClassified(classify.ProcessingTimeout,
		"job did not reach a terminal state in time")
}

func (p *Poller) cancelled(jobID string, start time.Time, notify func(ProgressUpdate)) error {
	notify(ProgressUpdate{JobID: jobID, State: StateCancelled})
	metrics.PollDuration.WithLabelValues(string(StateCancelled)).Observe(time.Since(start).Seconds())
	return classify.NewClassified(classify.Cancelled, "polling cancelled")
}

// sleep waits cooperatively, reporting false on cancellation.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// estimateProgress derives progress from elapsed time against the expected
// duration, capped at 90% so a slow job never implies false completion.
func (p *Poller) estimateProgress(start time.Time) float64 {
	progress := time.Since(start).Seconds() / p.cfg.ExpectedDuration.Seconds()
	if progress > 0.9 {
		return 0.9
	}
	return progress
}

// classifyPayload maps the error payload of a failed snapshot. Unrecognized
// domain codes default to a non-retryable kind: a job the service itself
// marked failed will fail the same way again.
func classifyPayload(payload *domain.ErrorPayload) error {
	if payload == nil {
		return classify.NewClassified(classify.InternalError, "job failed without detail")
	}
	return classify.Classify(&domain.APIError{
		StatusCode: 400,
		DomainCode: payload.DomainCode,
		Message:    payload.Message,
	})
}
