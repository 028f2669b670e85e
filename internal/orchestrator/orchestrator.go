// Package orchestrator composes the resilience primitives around the remote
// enhancement job API: request deduplication, circuit-guarded submission,
// progress-aware polling, and multi-tier fallback.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lekhoa/enhanceq/internal/breaker"
	"github.com/lekhoa/enhanceq/internal/classify"
	"github.com/lekhoa/enhanceq/internal/core/domain"
	"github.com/lekhoa/enhanceq/internal/fallback"
	"github.com/lekhoa/enhanceq/internal/metrics"
	"github.com/lekhoa/enhanceq/internal/retry"
)

// EndpointSubmit is the circuit breaker key for the submission endpoint.
const EndpointSubmit = "submit"

// Remote is the collaborator surface the orchestrator consumes.
type Remote interface {
	Submit(ctx context.Context, req domain.Request) (*domain.JobHandle, error)
	Status(ctx context.Context, jobID string) (*domain.JobSnapshot, error)
	HealthCheck(ctx context.Context) bool
}

// SubmitOptions control per-call behavior.
type SubmitOptions struct {
	// AllowDegraded opts the caller into the fallback chain when the
	// primary path is unavailable.
	AllowDegraded bool
	// Observer receives progress and state-change notifications.
	Observer Observer
}

// Orchestrator is the top-level entry point. A single instance serves many
// concurrent requests; requests sharing an idempotency key are serialized.
type Orchestrator struct {
	remote  Remote
	breaker *breaker.Breaker
	policy  *retry.Policy
	chain   *fallback.Chain
	cache   fallback.ResultCache
	poller  *Poller
	log     *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates an orchestrator. chain and cache may be nil: without a chain
// the fallback tier is disabled, without a cache successful results are not
// retained for degraded reuse.
func New(
	remote Remote,
	brk *breaker.Breaker,
	policy *retry.Policy,
	chain *fallback.Chain,
	cache fallback.ResultCache,
	pollerCfg PollerConfig,
) *Orchestrator {
	return &Orchestrator{
		remote:   remote,
		breaker:  brk,
		policy:   policy,
		chain:    chain,
		cache:    cache,
		poller:   NewPoller(remote, pollerCfg),
		log:      slog.Default(),
		inflight: make(map[string]struct{}),
	}
}

// Submit runs one full submission cycle: dedup, breaker-guarded submit with
// local retries, poll to a terminal state. The idempotency lock is held for
// the whole cycle so a caller cannot spawn a duplicate job while the first
// is still polling.
func (o *Orchestrator) Submit(
	ctx context.Context,
	req domain.Request,
	opts SubmitOptions,
) (*domain.Result, error) {
	key := req.IdempotencyKey()

	if !o.acquire(key) {
		metrics.SubmissionsTotal.WithLabelValues("duplicate").Inc()
		return nil, classify.NewClassified(classify.DuplicateInFlight,
			"a submission for "+key+" is already in flight")
	}
	defer o.release(key)

	handle, err := o.guardedSubmit(ctx, req, key)
	if err != nil {
		cls := asClassified(err)
		if cls.Kind.Code == classify.Cancelled.Code {
			metrics.SubmissionsTotal.WithLabelValues("cancelled").Inc()
			return nil, cls
		}
		return o.degrade(ctx, req, opts, cls)
	}

	o.log.Info("job submitted",
		"job_id", handle.JobID,
		"key", key,
	)

	snap, err := o.poller.Poll(ctx, handle.JobID, opts.Observer)
	if err != nil {
		cls := asClassified(err)
		metrics.SubmissionsTotal.WithLabelValues(outcomeOf(cls)).Inc()
		return nil, cls
	}

	res := &domain.Result{
		Source:    domain.SourcePrimary,
		ResultRef: snap.ResultRef,
	}
	o.primeCache(ctx, key, snap.ResultRef)
	metrics.SubmissionsTotal.WithLabelValues("primary").Inc()
	return res, nil
}

// InFlight returns the number of submissions currently holding a dedup lock.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}

// guardedSubmit consults the breaker and runs the primary submit with local
// retries for retryable failures.
func (o *Orchestrator) guardedSubmit(
	ctx context.Context,
	req domain.Request,
	key string,
) (*domain.JobHandle, error) {
	if !o.breaker.Allow(EndpointSubmit) {
		// The breaker's clock can disagree with actual recovery; one cheap
		// probe decides before rejecting outright.
		if o.remote.HealthCheck(ctx) {
			o.breaker.ProbeReset(EndpointSubmit)
		} else {
			return nil, classify.NewClassified(classify.ServiceUnavailable,
				"submission endpoint circuit is open")
		}
	}

	for {
		handle, err := o.remote.Submit(ctx, req)
		if err == nil {
			o.breaker.RecordSuccess(EndpointSubmit)
			o.policy.Reset(key)
			return handle, nil
		}

		if ctx.Err() != nil {
			return nil, classify.NewClassified(classify.Cancelled, "submission cancelled")
		}

		cls := classify.Classify(err)
		metrics.ClassifiedErrors.WithLabelValues(cls.Kind.Code).Inc()
		o.breaker.RecordFailure(EndpointSubmit)

		if !o.policy.CanRetry(cls.Kind, key) || !o.breaker.Allow(EndpointSubmit) {
			return nil, cls
		}

		delay := o.policy.NextDelay(key)
		o.policy.RecordAttempt(key)
		o.log.Debug("retrying submission",
			"key", key,
			"kind", cls.Kind.Code,
			"delay", delay,
			"attempt", o.policy.Attempts(key),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, classify.NewClassified(classify.Cancelled, "submission cancelled")
		case <-timer.C:
		}
	}
}

// degrade invokes the fallback chain when the caller opted in; otherwise
// the classified error propagates with its full taxonomy attached.
func (o *Orchestrator) degrade(
	ctx context.Context,
	req domain.Request,
	opts SubmitOptions,
	cls *classify.Classified,
) (*domain.Result, error) {
	if !opts.AllowDegraded || o.chain == nil {
		metrics.SubmissionsTotal.WithLabelValues(outcomeOf(cls)).Inc()
		return nil, cls
	}

	res, err := o.chain.Attempt(ctx, req)
	if err != nil {
		// Chain exhausted: the original classified error propagates unchanged.
		metrics.SubmissionsTotal.WithLabelValues(outcomeOf(cls)).Inc()
		return nil, cls
	}

	res.RequestID = cls.RequestID
	metrics.SubmissionsTotal.WithLabelValues(string(res.Source)).Inc()
	return res, nil
}

func (o *Orchestrator) primeCache(ctx context.Context, key, resultRef string) {
	if o.cache == nil || resultRef == "" {
		return
	}
	if err := o.cache.Put(ctx, key, resultRef); err != nil {
		o.log.Warn("failed to cache result", "key", key, "error", err)
	}
}

func (o *Orchestrator) acquire(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.inflight[key]; ok {
		return false
	}
	o.inflight[key] = struct{}{}
	metrics.InFlight.Set(float64(len(o.inflight)))
	return true
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, key)
	metrics.InFlight.Set(float64(len(o.inflight)))
}

func asClassified(err error) *classify.Classified {
	if cls, ok := err.(*classify.Classified); ok {
		return cls
	}
	return classify.Classify(err)
}

func outcomeOf(cls *classify.Classified) string {
	if cls.Kind.Code == classify.Cancelled.Code {
		return "cancelled"
	}
	return "error"
}
