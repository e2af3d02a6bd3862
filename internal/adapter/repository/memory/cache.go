package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iho/cashflow/internal/usecase"
)

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// Cache implements usecase.Cache with a TTL map.
type Cache struct {
	mu    sync.Mutex
	items map[string]cacheItem
	now   func() time.Time
}

// NewCache creates a new Cache. now may be nil.
func NewCache(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		items: make(map[string]cacheItem),
		now:   now,
	}
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, usecase.ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt) {
		delete(c.items, key)
		return nil, usecase.ErrCacheMiss
	}
	return append([]byte(nil), item.value...), nil
}

// Set stores a value with TTL. A non-positive ttl never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := cacheItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = item
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// NopCache is a usecase.Cache that stores nothing.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, error)              { return nil, usecase.ErrCacheMiss }
func (NopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NopCache) Delete(context.Context, string) error                     { return nil }
