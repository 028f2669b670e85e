package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lekhoa/enhanceq/internal/core/config"
	"github.com/lekhoa/enhanceq/internal/core/domain"
	"github.com/lekhoa/enhanceq/internal/orchestrator"
)

func TestNewAppComposesMemoryTiers(t *testing.T) {
	cfg := config.AppConfig{}
	cfg.Endpoint.URL = "http://localhost:9"
	cfg.Resilience.MaxRetries = 1
	cfg.Resilience.BaseBackoff = time.Millisecond
	cfg.Fallback.QueueCapacity = 5
	cfg.Fallback.CacheTTL = time.Minute

	app, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	if app.Orchestrator() == nil {
		t.Error("orchestrator not composed")
	}
	if app.replayQueue != nil {
		t.Error("replay queue set without Redis configured")
	}
	if err := app.client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// fakeQueue is a slice-backed stand-in for the durable deferred queue.
type fakeQueue struct {
	records []domain.DeferredRecord
}

func (q *fakeQueue) Pop(ctx context.Context) (*domain.DeferredRecord, error) {
	if len(q.records) == 0 {
		return nil, nil
	}
	rec := q.records[0]
	q.records = q.records[1:]
	return &rec, nil
}

func (q *fakeQueue) Append(ctx context.Context, rec domain.DeferredRecord) (int, error) {
	q.records = append(q.records, rec)
	return len(q.records), nil
}

func replayApp(q replayQueue, submit submitFunc) *App {
	return &App{
		replayQueue: q,
		submit:      submit,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestReplayDrainsQueueOnSuccess(t *testing.T) {
	q := &fakeQueue{records: []domain.DeferredRecord{
		{SubjectID: "s1", VariantID: "v1", OutputFormat: "png", SourceAssetRef: "a1"},
		{SubjectID: "s2", VariantID: "v2"},
	}}

	var submitted []domain.Request
	app := replayApp(q, func(
		ctx context.Context,
		req domain.Request,
		opts orchestrator.SubmitOptions,
	) (*domain.Result, error) {
		submitted = append(submitted, req)
		return &domain.Result{Source: domain.SourcePrimary, ResultRef: "r"}, nil
	})

	app.replayDeferred(context.Background())

	if len(submitted) != 2 {
		t.Fatalf("submissions = %d, want 2", len(submitted))
	}
	// The replayed request must reproduce the full original job.
	if submitted[0].OutputFormat != "png" || submitted[0].SourceAssetRef != "a1" {
		t.Errorf("replayed request dropped fields: %+v", submitted[0])
	}
	if len(q.records) != 0 {
		t.Errorf("queue depth = %d after successful replay, want 0", len(q.records))
	}
}

func TestReplayRequeuesAndStopsWhenPrimaryStillFailing(t *testing.T) {
	q := &fakeQueue{records: []domain.DeferredRecord{
		{SubjectID: "s1", VariantID: "v1"},
		{SubjectID: "s2", VariantID: "v2"},
	}}

	calls := 0
	app := replayApp(q, func(
		ctx context.Context,
		req domain.Request,
		opts orchestrator.SubmitOptions,
	) (*domain.Result, error) {
		calls++
		return nil, errors.New("connection refused")
	})

	app.replayDeferred(context.Background())

	// One attempt, then the pass stops instead of cycling the queue.
	if calls != 1 {
		t.Errorf("submissions = %d, want 1 (pass must stop on failure)", calls)
	}
	if len(q.records) != 2 {
		t.Errorf("queue depth = %d, want 2 (failed record requeued)", len(q.records))
	}
	if q.records[1].SubjectID != "s1" {
		t.Errorf("requeued record = %+v, want s1 at the tail", q.records[1])
	}
}
