package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/lekhoa/enhanceq/internal/core/domain"
	"github.com/lekhoa/enhanceq/internal/metrics"
)

// DeferredQueue holds work to be retried later when the primary path is
// unavailable. Append returns the record's 1-based queue position.
type DeferredQueue interface {
	Append(ctx context.Context, rec domain.DeferredRecord) (int, error)
	Depth(ctx context.Context) (int, error)
}

// MemoryQueue is a bounded in-process deferred queue. When full, the oldest
// record is evicted to make room.
type MemoryQueue struct {
	capacity int

	mu      sync.Mutex
	records []domain.DeferredRecord
}

// NewMemoryQueue creates a queue with the given capacity (default 10).
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 10
	}
	return &MemoryQueue{capacity: capacity}
}

// Append adds a record, evicting the oldest if at capacity.
func (q *MemoryQueue) Append(ctx context.Context, rec domain.DeferredRecord) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.records) >= q.capacity {
		q.records = q.records[1:]
	}
	q.records = append(q.records, rec)

	metrics.DeferredQueueDepth.Set(float64(len(q.records)))
	return len(q.records), nil
}

// Depth returns the current queue length.
func (q *MemoryQueue) Depth(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records), nil
}

// Drain removes and returns all queued records.
func (q *MemoryQueue) Drain() []domain.DeferredRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.records
	q.records = nil
	metrics.DeferredQueueDepth.Set(0)
	return out
}

// DeferStrategy appends the request to the deferred queue and answers with
// a queued pseudo-result carrying the position. Second tier of the fallback
// chain.
type DeferStrategy struct {
	queue DeferredQueue
}

// NewDeferStrategy creates the deferred-queue tier.
func NewDeferStrategy(queue DeferredQueue) *DeferStrategy {
	return &DeferStrategy{queue: queue}
}

func (s *DeferStrategy) Name() string { return "defer" }

func (s *DeferStrategy) Attempt(ctx context.Context, req domain.Request) (*domain.Result, error) {
	pos, err := s.queue.Append(ctx, domain.DeferredRecord{
		SubjectID:      req.SubjectID,
		VariantID:      req.VariantID,
		OutputFormat:   req.OutputFormat,
		SourceAssetRef: req.SourceAssetRef,
		QueuedAt:       time.Now(),
	})
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		Source:        domain.SourceDeferred,
		QueuePosition: pos,
	}, nil
}
