package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blobKeyPrefix = "crossfeed:blob:"

// BlobCache keeps raw feed blobs in Redis, keyed by date.
type BlobCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBlobCache connects a cache to the Redis server described by cfg.
func NewBlobCache(cfg RedisConfig) *BlobCache {
	return &BlobCache{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: cfg.TTL,
	}
}

func blobKey(date string) string { return blobKeyPrefix + date }

// Get returns the cached blob for date. ok is false on a miss.
func (c *BlobCache) Get(ctx context.Context, date string) (blob string, ok bool, err error) {
	blob, err = c.rdb.Get(ctx, blobKey(date)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", date, err)
	}
	return blob, true, nil
}

// Put stores blob for date with the configured TTL.
func (c *BlobCache) Put(ctx context.Context, date, blob string) error {
	if err := c.rdb.Set(ctx, blobKey(date), blob, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", date, err)
	}
	return nil
}

// Ping verifies Redis connectivity.
func (c *BlobCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *BlobCache) Close() error {
	return c.rdb.Close()
}

// CachedSource is a read-through cache in front of another BlobSource.
// Only blobs that parse are stored. Cache failures are logged and bypassed.
type CachedSource struct {
	next   BlobSource
	cache  *BlobCache
	logger *zap.Logger
}

// NewCachedSource wraps next with cache.
func NewCachedSource(next BlobSource, cache *BlobCache, logger *zap.Logger) *CachedSource {
	return &CachedSource{next: next, cache: cache, logger: logger}
}

func (s *CachedSource) Fetch(ctx context.Context, date string) (string, error) {
	blob, ok, err := s.cache.Get(ctx, date)
	switch {
	case err != nil:
		s.logger.Warn("blob cache read failed", zap.String("date", date), zap.Error(err))
	case ok:
		s.logger.Debug("blob cache hit", zap.String("date", date))
		return blob, nil
	}

	blob, err = s.next.Fetch(ctx, date)
	if err != nil {
		return "", err
	}

	if _, perr := ParseResponse(blob); perr != nil {
		return blob, nil
	}
	if err := s.cache.Put(ctx, date, blob); err != nil {
		s.logger.Warn("blob cache write failed", zap.String("date", date), zap.Error(err))
	}
	return blob, nil
}
