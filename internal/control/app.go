// Package control wires the orchestrator and its dependencies together and
// manages the application lifecycle.
package control

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lekhoa/enhanceq/internal/breaker"
	"github.com/lekhoa/enhanceq/internal/core/config"
	"github.com/lekhoa/enhanceq/internal/core/domain"
	"github.com/lekhoa/enhanceq/internal/fallback"
	"github.com/lekhoa/enhanceq/internal/health"
	"github.com/lekhoa/enhanceq/internal/infra/jobapi"
	redisclient "github.com/lekhoa/enhanceq/internal/infra/redis"
	"github.com/lekhoa/enhanceq/internal/orchestrator"
	"github.com/lekhoa/enhanceq/internal/retry"
)

// replayQueue is the durable-queue surface the replay worker needs.
type replayQueue interface {
	Pop(ctx context.Context) (*domain.DeferredRecord, error)
	Append(ctx context.Context, rec domain.DeferredRecord) (int, error)
}

type submitFunc func(
	ctx context.Context,
	req domain.Request,
	opts orchestrator.SubmitOptions,
) (*domain.Result, error)

// App is the composed application: remote client, resilience stack,
// fallback tiers, orchestrator, and the ops HTTP server.
type App struct {
	cfg          config.AppConfig
	client       *jobapi.Client
	orch         *orchestrator.Orchestrator
	healthServer *health.Server
	redisClient  *redisclient.Client
	replayQueue  replayQueue
	submit       submitFunc
	log          *slog.Logger

	stopReplay context.CancelFunc
	wg         sync.WaitGroup
}

// NewApp builds the application from configuration. When Redis is configured
// the deferred queue and result cache are durable; otherwise the in-memory
// variants serve.
func NewApp(cfg config.AppConfig) (*App, error) {
	log := slog.Default()

	client := jobapi.NewClient(
		cfg.Endpoint.URL,
		cfg.Endpoint.Timeout,
		cfg.Endpoint.HealthTimeout,
	)

	var (
		redisClient  *redisclient.Client
		durableQueue *redisclient.DeferredQueue
		cache        fallback.ResultCache
		queue        fallback.DeferredQueue
	)
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-memory tiers", "error", err)
		} else {
			durableQueue = redisclient.NewDeferredQueue(redisClient, cfg.Fallback.QueueCapacity)
			queue = durableQueue
			cache = redisclient.NewResultCache(redisClient, cfg.Fallback.CacheTTL)
			log.Info("Using Redis-backed fallback tiers")
		}
	}
	if queue == nil {
		queue = fallback.NewMemoryQueue(cfg.Fallback.QueueCapacity)
		cache = fallback.NewMemoryCache(cfg.Fallback.CacheTTL)
		log.Info("Using in-memory fallback tiers")
	}

	chain := fallback.NewChain(cfg.Fallback.StrategyTimeout,
		fallback.NewCacheStrategy(cache),
		fallback.NewDeferStrategy(queue),
		fallback.NewDegradedStrategy(),
	)

	brk := breaker.New(breaker.Config{
		Threshold:   cfg.Resilience.BreakerThreshold,
		OpenTimeout: cfg.Resilience.BreakerOpenTimeout,
	})

	policy := retry.NewPolicy(retry.Config{
		MaxRetries: cfg.Resilience.MaxRetries,
		BaseDelay:  cfg.Resilience.BaseBackoff,
		MaxDelay:   cfg.Resilience.MaxBackoff,
	})

	orch := orchestrator.New(client, brk, policy, chain, cache, orchestrator.PollerConfig{
		Interval:             cfg.Resilience.PollInterval,
		MaxProcessingTime:    cfg.Resilience.MaxProcessingTime,
		MaxConsecutiveErrors: cfg.Resilience.MaxConsecutiveErrors,
		ErrorBackoff:         cfg.Resilience.BaseBackoff,
		ExpectedDuration:     cfg.Resilience.ExpectedDuration,
	})

	monitor := health.NewMonitor(client, brk, queue, orch)
	server := health.NewServer(monitor, orch, cfg.Server.Port)

	app := &App{
		cfg:          cfg,
		client:       client,
		orch:         orch,
		healthServer: server,
		redisClient:  redisClient,
		submit:       orch.Submit,
		log:          log,
	}
	if durableQueue != nil {
		app.replayQueue = durableQueue
	}
	return app, nil
}

// Orchestrator exposes the composed orchestrator for embedding callers.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch
}

// Start launches the ops server and, when a durable queue is present, the
// deferred replay worker.
func (a *App) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Ops server failed", "error", err)
		}
	}()
	a.log.Info("Ops server started", "port", a.cfg.Server.Port)

	if a.replayQueue != nil {
		replayCtx, cancel := context.WithCancel(context.Background())
		a.stopReplay = cancel
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.replayLoop(replayCtx)
		}()
	}

	return nil
}

// Stop shuts down the ops server and releases connections.
func (a *App) Stop(ctx context.Context) error {
	if a.stopReplay != nil {
		a.stopReplay()
	}

	if err := a.healthServer.Stop(ctx); err != nil {
		return err
	}
	a.wg.Wait()

	if err := a.client.Close(); err != nil {
		a.log.Warn("Failed to close API client", "error", err)
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis client", "error", err)
		}
	}
	return nil
}

// replayLoop periodically drains deferred records back through the primary
// path once the remote is reachable again.
func (a *App) replayLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !a.client.HealthCheck(ctx) {
			continue
		}
		a.replayDeferred(ctx)
	}
}

// replayDeferred drains the queue head-first. Replays run without the
// fallback tier: a submission that still fails would otherwise be re-deferred
// with err == nil and popped again in the same pass. Instead the record goes
// back on the queue and the pass ends until the next tick.
func (a *App) replayDeferred(ctx context.Context) {
	for {
		rec, err := a.replayQueue.Pop(ctx)
		if err != nil {
			a.log.Warn("Failed to pop deferred record", "error", err)
			return
		}
		if rec == nil {
			return
		}

		req := rec.Request()
		if _, err := a.submit(ctx, req, orchestrator.SubmitOptions{}); err != nil {
			if _, appendErr := a.replayQueue.Append(ctx, *rec); appendErr != nil {
				a.log.Error("Failed to requeue deferred record",
					"key", req.IdempotencyKey(),
					"error", appendErr,
				)
			}
			a.log.Warn("Deferred replay failed, record requeued",
				"key", req.IdempotencyKey(),
				"queued_at", rec.QueuedAt,
				"error", err,
			)
			return
		}
		a.log.Info("Deferred record replayed", "key", req.IdempotencyKey())
	}
}
