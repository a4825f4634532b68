// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package testinfra provides container-backed infrastructure for
// integration tests.
//
// It uses testcontainers-go to start the external services Resonance can
// be configured against: PostgreSQL for the SQL backend, Redis for the
// recommendation cache and MinIO for the audio object source. All files
// carry the integration build tag, so the default test run never needs
// Docker:
//
//	go test -tags integration ./internal/storage/...
//
// # Usage
//
//	func TestPostgresBackend(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//
//	    backend, err := storage.NewPostgres(ctx, storage.PostgresOptions{
//	        DSN:            pg.DSN,
//	        MigrateOnStart: true,
//	    }, zerolog.Nop())
//	    // ...
//	}
package testinfra
