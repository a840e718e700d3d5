package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "dedup:"

// DedupCache implements domain.DedupCache on Redis. It only short-circuits
// obviously recent duplicates; entries expire and the durable store's unique
// constraint stays authoritative. Keys are written by Mark after the store
// has confirmed them, never at pre-check time.
type DedupCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewDedupCache creates a Redis-backed dedup cache with the given entry TTL.
func NewDedupCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *DedupCache {
	return &DedupCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "dedup_cache"),
	}
}

// Check reports whether logID was recently confirmed persisted. Read-only:
// a record that later fails to persist must stay invisible here so its
// redelivery is not suppressed.
func (c *DedupCache) Check(ctx context.Context, logID string) (bool, error) {
	n, err := c.client.Exists(ctx, dedupKeyPrefix+logID).Result()
	if err != nil {
		return false, fmt.Errorf("dedup cache exists: %w", err)
	}
	return n > 0, nil
}

// Mark records logID as confirmed persisted for the cache TTL.
func (c *DedupCache) Mark(ctx context.Context, logID string) error {
	if err := c.client.Set(ctx, dedupKeyPrefix+logID, 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("dedup cache set: %w", err)
	}
	return nil
}
