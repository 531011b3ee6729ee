// Package cache provides a Redis read-through cache for annotation
// reads. Mutations invalidate; a miss falls through to the store.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type AnnotationCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewAnnotationCache connects to Redis and verifies the connection.
func NewAnnotationCache(redisURL string, ttl time.Duration) (*AnnotationCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &AnnotationCache{
		client: client,
		prefix: "anno:",
		ttl:    ttl,
	}, nil
}

// NewAnnotationCacheWithClient creates a cache from an existing client.
func NewAnnotationCacheWithClient(client *redis.Client, ttl time.Duration) *AnnotationCache {
	return &AnnotationCache{
		client: client,
		prefix: "anno:",
		ttl:    ttl,
	}
}

func (c *AnnotationCache) key(id string) string {
	return c.prefix + id
}

// Get returns the cached canonical JSON for an id, or ok=false on miss.
func (c *AnnotationCache) Get(ctx context.Context, id string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return raw, true, nil
}

// Set stores the canonical JSON for an id with the configured TTL.
func (c *AnnotationCache) Set(ctx context.Context, id string, raw []byte) error {
	if err := c.client.Set(ctx, c.key(id), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry for an id.
func (c *AnnotationCache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *AnnotationCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *AnnotationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
