// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/recommend"
)

const cacheName = "redis"

// RedisOptions configures the recommendation read cache.
type RedisOptions struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

const defaultRedisTTL = 15 * time.Minute

// RedisCache wraps a Backend and caches each user's full recommendation
// list in Redis. Replacement writes through to the backend first and then
// overwrites the cached entry; misses fill the cache only when no entry
// exists. Redis failures are logged and treated as misses.
type RedisCache struct {
	Backend

	client *redis.Client
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

// NewRedisCache connects to Redis and wraps backend.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRedisCache(ctx context.Context, backend Backend, opts RedisOptions, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // ping error is reported
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return NewRedisCacheWithClient(backend, client, opts, logger), nil
}

// NewRedisCacheWithClient wraps backend using an existing client.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRedisCacheWithClient(backend Backend, client *redis.Client, opts RedisOptions, logger zerolog.Logger) *RedisCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "resonance:"
	}
	return &RedisCache{
		Backend: backend,
		client:  client,
		ttl:     ttl,
		prefix:  prefix,
		logger:  logger.With().Str("component", "storage").Str("cache", "redis").Logger(),
	}
}

func (c *RedisCache) key(userID int64) string {
	return c.prefix + "recs:" + strconv.FormatInt(userID, 10)
}

// Name implements Backend.
func (c *RedisCache) Name() string { return c.Backend.Name() + "+redis" }

// Ping checks both Redis and the wrapped backend.
func (c *RedisCache) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return c.Backend.Ping(ctx)
}

// Close closes the Redis client and the wrapped backend.
func (c *RedisCache) Close() error {
	return errors.Join(c.client.Close(), c.Backend.Close())
}

// GetRecommendations serves the user's list from Redis, filling the cache
// from the backend on a miss.
func (c *RedisCache) GetRecommendations(ctx context.Context, userID int64, limit int) ([]recommend.Recommendation, error) {
	key := c.key(userID)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var recs []recommend.Recommendation
		jsonErr := json.Unmarshal(data, &recs)
		if jsonErr == nil {
			metrics.RecordCacheHit(cacheName)
			return truncate(recs, limit), nil
		}
		metrics.RecordCacheError(cacheName, "decode")
		c.logger.Warn().Err(jsonErr).Str("key", key).Msg("discarding undecodable cache entry")
		_ = c.client.Del(ctx, key).Err() //nolint:errcheck // the miss path refills or retries next read
	case errors.Is(err, redis.Nil):
	default:
		metrics.RecordCacheError(cacheName, "get")
		c.logger.Warn().Err(err).Str("key", key).Msg("redis read failed, using backend")
	}

	metrics.RecordCacheMiss(cacheName)

	recs, err := c.Backend.GetRecommendations(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, recs)
	return truncate(recs, limit), nil
}

// fill caches a list read on a miss. SetNX leaves an entry written by a
// concurrent replacement in place, so a slow reader cannot re-cache a
// superseded list.
func (c *RedisCache) fill(ctx context.Context, key string, recs []recommend.Recommendation) {
	payload, err := json.Marshal(recs)
	if err != nil {
		return
	}
	if err := c.client.SetNX(ctx, key, payload, c.ttl).Err(); err != nil {
		metrics.RecordCacheError(cacheName, "set")
		c.logger.Warn().Err(err).Str("key", key).Msg("redis write failed")
	}
}

// ReplaceRecommendations writes through to the backend and then stores the
// new list in Redis. If the cache cannot be updated the entry is dropped.
func (c *RedisCache) ReplaceRecommendations(ctx context.Context, userID int64, recs []recommend.Recommendation) error {
	if err := c.Backend.ReplaceRecommendations(ctx, userID, recs); err != nil {
		return err
	}

	key := c.key(userID)
	payload, err := json.Marshal(recs)
	if err == nil {
		err = c.client.Set(ctx, key, payload, c.ttl).Err()
		if err == nil {
			return nil
		}
	}
	metrics.RecordCacheError(cacheName, "set")
	if delErr := c.client.Del(ctx, key).Err(); delErr != nil {
		metrics.RecordCacheError(cacheName, "del")
		c.logger.Warn().Err(errors.Join(err, delErr)).Int64("user_id", userID).Msg("redis invalidation failed")
	}
	return nil
}

func truncate(recs []recommend.Recommendation, limit int) []recommend.Recommendation {
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	if limit > 0 && len(recs) > limit {
		return recs[:limit]
	}
	return recs
}

var _ Backend = (*RedisCache)(nil)
