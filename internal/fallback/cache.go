package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/lekhoa/enhanceq/internal/core/domain"
)

// CachedResult is a previously computed result kept for reuse.
type CachedResult struct {
	ResultRef string    `json:"result_ref"`
	CachedAt  time.Time `json:"cached_at"`
}

// ResultCache stores computed results keyed by idempotency key. Both the
// in-memory and Redis-backed implementations satisfy it.
type ResultCache interface {
	Get(ctx context.Context, key string) (*CachedResult, error)
	Put(ctx context.Context, key string, resultRef string) error
}

// MemoryCache is a mutex-guarded TTL cache of results.
type MemoryCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]CachedResult
}

// NewMemoryCache creates a cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]CachedResult),
	}
}

// Get returns the cached result if present and unexpired, nil otherwise.
// Expired entries are dropped on access.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CachedResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if time.Since(entry.CachedAt) > c.ttl {
		delete(c.entries, key)
		return nil, nil
	}
	return &entry, nil
}

// Put stores a result for the key, stamping the cache time. Each write also
// sweeps expired entries so the map stays bounded across distinct keys.
func (c *MemoryCache) Put(ctx context.Context, key string, resultRef string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if time.Since(e.CachedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
	c.entries[key] = CachedResult{ResultRef: resultRef, CachedAt: time.Now()}
	return nil
}

// CacheStrategy returns a previously computed result for an equivalent
// request. First tier of the fallback chain.
type CacheStrategy struct {
	cache ResultCache
}

// NewCacheStrategy creates the cached-result tier.
func NewCacheStrategy(cache ResultCache) *CacheStrategy {
	return &CacheStrategy{cache: cache}
}

func (s *CacheStrategy) Name() string { return "cache" }

func (s *CacheStrategy) Attempt(ctx context.Context, req domain.Request) (*domain.Result, error) {
	entry, err := s.cache.Get(ctx, req.IdempotencyKey())
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	return &domain.Result{
		Source:    domain.SourceCache,
		ResultRef: entry.ResultRef,
		CachedAt:  entry.CachedAt,
	}, nil
}
