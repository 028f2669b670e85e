package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal tracks orchestrated submissions by final outcome
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhanceq_submissions_total",
			Help: "Total number of orchestrated submissions",
		},
		[]string{"outcome"},
	)

	// ClassifiedErrors tracks classified failures by kind
	ClassifiedErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhanceq_classified_errors_total",
			Help: "Total number of classified failures",
		},
		[]string{"kind"},
	)

	// BreakerTransitions tracks circuit breaker state changes per endpoint
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhanceq_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"endpoint", "state"},
	)

	// FallbackAttempts tracks fallback strategy invocations and outcomes
	FallbackAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhanceq_fallback_attempts_total",
			Help: "Total number of fallback strategy attempts",
		},
		[]string{"strategy", "outcome"},
	)

	// PollDuration tracks how long jobs spend from submission to a terminal poll
	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enhanceq_poll_duration_seconds",
			Help:    "Time from submission to terminal poll state",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90},
		},
		[]string{"state"},
	)

	// DeferredQueueDepth tracks the current deferred queue size
	DeferredQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enhanceq_deferred_queue_depth",
			Help: "Current number of records in the deferred queue",
		},
	)

	// InFlight tracks current in-flight submissions
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enhanceq_inflight_submissions",
			Help: "Current number of in-flight submissions",
		},
	)
)
