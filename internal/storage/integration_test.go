// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/recommend"
	"github.com/tomtom215/resonance/internal/testinfra"
)

func TestPostgresBackend(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { testinfra.CleanupContainer(t, context.Background(), pg) })

	if err := RunMigrations(pg.DSN); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	// A second run is a no-op.
	if err := RunMigrations(pg.DSN); err != nil {
		t.Fatalf("RunMigrations() second run error = %v", err)
	}

	runBackendSuite(t, func(t *testing.T) Backend {
		t.Helper()
		b, err := NewPostgres(ctx, PostgresOptions{DSN: pg.DSN, MaxConns: 4}, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewPostgres() error = %v", err)
		}
		truncatePostgres(t, b)
		return b
	})
}

func truncatePostgres(t *testing.T, b *Postgres) {
	t.Helper()
	if _, err := b.pool.Exec(context.Background(),
		`TRUNCATE tracks, likes, preferences, recommendations`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func TestRedisCache(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	rc, err := testinfra.NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { testinfra.CleanupContainer(t, context.Background(), rc) })

	runBackendSuite(t, func(t *testing.T) Backend {
		t.Helper()
		client := redis.NewClient(&redis.Options{Addr: rc.Addr})
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		return NewRedisCacheWithClient(openMemory(t), client, RedisOptions{}, zerolog.Nop())
	})

	t.Run("ServesFromCache", func(t *testing.T) {
		mem := openMemory(t)
		cache, err := NewRedisCache(ctx, mem, RedisOptions{Addr: rc.Addr, KeyPrefix: "cache-test:"}, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewRedisCache() error = %v", err)
		}
		defer cache.Close()

		if err := cache.ReplaceRecommendations(ctx, 1, recs(1, 4, 5)); err != nil {
			t.Fatalf("ReplaceRecommendations() error = %v", err)
		}
		if _, err := cache.GetRecommendations(ctx, 1, 0); err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}

		// Bypass the cache; the cached list must still be served.
		if err := mem.ReplaceRecommendations(ctx, 1, recs(1, 9)); err != nil {
			t.Fatalf("backend replace: %v", err)
		}
		got, err := cache.GetRecommendations(ctx, 1, 1)
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if len(got) != 1 || got[0].TrackID != 4 {
			t.Errorf("cached read = %+v, want track 4", got)
		}

		// Replacing through the cache invalidates it.
		if err := cache.ReplaceRecommendations(ctx, 1, []recommend.Recommendation{}); err != nil {
			t.Fatalf("ReplaceRecommendations(empty) error = %v", err)
		}
		got, _ = cache.GetRecommendations(ctx, 1, 0)
		if len(got) != 0 {
			t.Errorf("after invalidation = %+v, want none", got)
		}
	})

	t.Run("LateMissFillKeepsReplacement", func(t *testing.T) {
		mem := openMemory(t)
		cache, err := NewRedisCache(ctx, mem, RedisOptions{Addr: rc.Addr, KeyPrefix: "race-test:"}, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewRedisCache() error = %v", err)
		}
		defer cache.Close()

		// A reader missed and read the old list from the backend...
		stale := recs(2, 4, 5, 6)
		if err := mem.ReplaceRecommendations(ctx, 2, stale); err != nil {
			t.Fatalf("backend replace: %v", err)
		}

		// ...a replacement commits before the reader fills the cache...
		if err := cache.ReplaceRecommendations(ctx, 2, recs(2, 9)); err != nil {
			t.Fatalf("ReplaceRecommendations() error = %v", err)
		}
		cache.fill(ctx, cache.key(2), stale)

		// ...and the replacement still wins.
		got, err := cache.GetRecommendations(ctx, 2, 0)
		if err != nil {
			t.Fatalf("GetRecommendations() error = %v", err)
		}
		if len(got) != 1 || got[0].TrackID != 9 {
			t.Errorf("read after late fill = %+v, want [9]", got)
		}
	})

	t.Run("UndecodableEntryIsReplaced", func(t *testing.T) {
		mem := openMemory(t)
		cache, err := NewRedisCache(ctx, mem, RedisOptions{Addr: rc.Addr, KeyPrefix: "decode-test:"}, zerolog.Nop())
		if err != nil {
			t.Fatalf("NewRedisCache() error = %v", err)
		}
		defer cache.Close()

		if err := mem.ReplaceRecommendations(ctx, 3, recs(3, 7)); err != nil {
			t.Fatalf("backend replace: %v", err)
		}
		if err := cache.client.Set(ctx, cache.key(3), "not json", 0).Err(); err != nil {
			t.Fatalf("seed garbage: %v", err)
		}
		for i := 0; i < 2; i++ {
			got, err := cache.GetRecommendations(ctx, 3, 0)
			if err != nil {
				t.Fatalf("GetRecommendations() error = %v", err)
			}
			if len(got) != 1 || got[0].TrackID != 7 {
				t.Errorf("read %d = %+v, want [7]", i, got)
			}
		}
		if data, err := cache.client.Get(ctx, cache.key(3)).Bytes(); err != nil || string(data) == "not json" {
			t.Errorf("cache entry not refilled: %q, %v", data, err)
		}
	})
}
