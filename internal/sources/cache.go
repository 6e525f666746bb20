// internal/sources/cache.go
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedSnapshot is the last payload that passed validation.
type CachedSnapshot struct {
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	Payload   []byte    `json:"payload"`
}

// Cache keeps the last good snapshot. Load returns nil, nil when empty.
type Cache interface {
	Load(ctx context.Context) (*CachedSnapshot, error)
	Store(ctx context.Context, snap CachedSnapshot) error
}

type MemoryCache struct {
	mu   sync.RWMutex
	snap *CachedSnapshot
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Load(ctx context.Context) (*CachedSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snap == nil {
		return nil, nil
	}
	snap := *c.snap
	return &snap, nil
}

func (c *MemoryCache) Store(ctx context.Context, snap CachedSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap = &snap
	return nil
}

const DefaultCacheKey = "seat-ledger:snapshot:last-good"

// RedisCache shares the last good snapshot between service instances.
type RedisCache struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisCache stores under key; a zero ttl keeps the entry until replaced.
func NewRedisCache(client redis.UniversalClient, key string, ttl time.Duration) *RedisCache {
	if key == "" {
		key = DefaultCacheKey
	}
	return &RedisCache{client: client, key: key, ttl: ttl}
}

func (c *RedisCache) Load(ctx context.Context) (*CachedSnapshot, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached snapshot: %w", err)
	}

	var snap CachedSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode cached snapshot: %w", err)
	}
	return &snap, nil
}

func (c *RedisCache) Store(ctx context.Context, snap CachedSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}
