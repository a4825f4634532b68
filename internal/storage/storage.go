// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/recommend"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Seeder writes the inputs the surrounding application normally owns.
// It backs fixtures, the CLI seed command and tests.
type Seeder interface {
	// UpsertTrack inserts or updates a track, including its embedding when
	// one is set. A nil Embedding keeps any stored embedding.
	UpsertTrack(ctx context.Context, t recommend.Track) error

	// AddLike records that userID liked trackID. Repeated likes are ignored.
	AddLike(ctx context.Context, userID, trackID int64) error

	// SetPreferences replaces a user's declared preferences. nil clears them.
	SetPreferences(ctx context.Context, userID int64, p *recommend.DeclaredPreferences) error
}

// Backend is a complete persistence gateway.
type Backend interface {
	recommend.Store
	Seeder

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error

	// Name returns the backend name.
	Name() string
}

// Options selects and configures a backend.
type Options struct {
	Backend  string
	Memory   MemoryOptions
	Badger   BadgerOptions
	SQLite   SQLiteOptions
	Postgres PostgresOptions
	Redis    RedisOptions
}

// Open creates the backend named in opts and, when enabled, wraps its
// recommendation reads in a Redis cache.
//
//nolint:gocritic // opts passed by value; called once at startup
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (Backend, error) {
	var (
		backend Backend
		err     error
	)

	switch opts.Backend {
	case BackendMemory, "":
		backend, err = NewMemory(opts.Memory, logger)
	case BackendBadger:
		backend, err = NewBadger(opts.Badger, logger)
	case BackendSQLite:
		backend, err = NewSQLite(ctx, opts.SQLite, logger)
	case BackendPostgres:
		backend, err = NewPostgres(ctx, opts.Postgres, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", opts.Backend, err)
	}

	if !opts.Redis.Enabled {
		return backend, nil
	}

	cached, err := NewRedisCache(ctx, backend, opts.Redis, logger)
	if err != nil {
		_ = backend.Close() //nolint:errcheck // error path; the cache error is reported
		return nil, err
	}
	return cached, nil
}

// embeddingValues returns the components of an optional embedding.
func embeddingValues(v *recommend.AudioVector) []float64 {
	if v == nil || v.IsEmpty() {
		return nil
	}
	return v.Values()
}

// decodeEmbedding rebuilds an embedding read from storage. Empty or
// non-finite values yield nil so the track is treated as having no vector.
func decodeEmbedding(values []float64) *recommend.AudioVector {
	if len(values) == 0 {
		return nil
	}
	v, err := recommend.NewVector[recommend.AudioSchema](values)
	if err != nil {
		return nil
	}
	return &v
}

func validateStatus(s recommend.ApprovalStatus) error {
	_, err := recommend.ParseApprovalStatus(string(s))
	return err
}

// pingTimeout bounds health checks.
const pingTimeout = 5 * time.Second
