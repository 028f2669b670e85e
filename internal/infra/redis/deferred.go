package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lekhoa/enhanceq/internal/core/domain"
	"github.com/lekhoa/enhanceq/internal/metrics"
)

const deferredKey = "enhanceq:deferred"

// DeferredQueue is the Redis-backed deferred queue. Unlike the in-memory
// variant it survives process restarts; capacity is enforced with a list
// trim that drops the oldest records first.
type DeferredQueue struct {
	rdb      *redis.Client
	capacity int
}

// NewDeferredQueue creates a Redis-backed deferred queue.
func NewDeferredQueue(client *Client, capacity int) *DeferredQueue {
	if capacity <= 0 {
		capacity = 10
	}
	return &DeferredQueue{rdb: client.rdb, capacity: capacity}
}

// Append pushes a record and trims to capacity, returning the record's
// 1-based position.
func (q *DeferredQueue) Append(ctx context.Context, rec domain.DeferredRecord) (int, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("marshal deferred record: %w", err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.RPush(ctx, deferredKey, data)
	// Keep the newest `capacity` records; oldest are at the head.
	pipe.LTrim(ctx, deferredKey, int64(-q.capacity), -1)
	lenCmd := pipe.LLen(ctx, deferredKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("append deferred record: %w", err)
	}

	depth := int(lenCmd.Val())
	metrics.DeferredQueueDepth.Set(float64(depth))
	return depth, nil
}

// Depth returns the current queue length.
func (q *DeferredQueue) Depth(ctx context.Context) (int, error) {
	n, err := q.rdb.LLen(ctx, deferredKey).Result()
	if err != nil {
		return 0, fmt.Errorf("llen failed: %w", err)
	}
	return int(n), nil
}

// Pop removes and returns the oldest record, or nil when empty. Used by
// callers that replay deferred work once the primary path recovers.
func (q *DeferredQueue) Pop(ctx context.Context) (*domain.DeferredRecord, error) {
	data, err := q.rdb.LPop(ctx, deferredKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lpop failed: %w", err)
	}

	var rec domain.DeferredRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal deferred record: %w", err)
	}
	return &rec, nil
}
