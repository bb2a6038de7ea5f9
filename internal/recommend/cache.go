package recommend

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores generated recommendations under deterministic breach-pattern
// keys. A miss never blocks other in-flight requests.
type Cache interface {
	Get(ctx context.Context, key string) (text string, ok bool, err error)
	Set(ctx context.Context, key, text string) error
}

// MemoryCache is the in-process Cache used for tests and single-node runs.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.entries[key]
	return text, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key, text string) error {
	c.mu.Lock()
	c.entries[key] = text
	c.mu.Unlock()
	return nil
}

// RedisCache shares recommendations across pipeline runs and hosts.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection before
// returning.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	text, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, text string) error {
	return c.client.Set(ctx, key, text, c.ttl).Err()
}

// Close releases the redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
