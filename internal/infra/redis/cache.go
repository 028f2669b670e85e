package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lekhoa/enhanceq/internal/fallback"
)

// ResultCache is the Redis-backed result cache. Expiry is delegated to
// Redis TTLs instead of the in-memory timestamp check.
type ResultCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResultCache creates a Redis-backed result cache.
func NewResultCache(client *Client, ttl time.Duration) *ResultCache {
	return &ResultCache{rdb: client.rdb, ttl: ttl}
}

func cacheKey(key string) string {
	return "enhanceq:result:" + key
}

// Get returns the cached result, or nil on a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (*fallback.CachedResult, error) {
	data, err := c.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached result: %w", err)
	}

	var entry fallback.CachedResult
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cached result: %w", err)
	}
	return &entry, nil
}

// Put stores a result with the configured TTL.
func (c *ResultCache) Put(ctx context.Context, key string, resultRef string) error {
	data, err := json.Marshal(fallback.CachedResult{
		ResultRef: resultRef,
		CachedAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal cached result: %w", err)
	}

	if err := c.rdb.Set(ctx, cacheKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached result: %w", err)
	}
	return nil
}
