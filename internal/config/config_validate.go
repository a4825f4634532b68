// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package config

import (
	"errors"
	"fmt"

	"github.com/tomtom215/resonance/internal/validation"
)

// Validate checks value ranges with the shared validator, then the
// cross-field rules of each section. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if verr := validation.ValidateStruct(c); verr != nil {
		errs = append(errs, verr)
	}

	errs = append(errs,
		c.validateServer(),
		c.validateStorage(),
		c.validateRecommend(),
		c.validateExtraction(),
		c.validateEvents(),
	)

	return errors.Join(errs...)
}

// validateServer rejects a wildcard CORS origin in production.
func (c *Config) validateServer() error {
	if c.Server.Environment != "production" {
		return nil
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			return errors.New("CORS_ORIGINS must list explicit origins when ENVIRONMENT=production")
		}
	}
	return nil
}

// validateStorage checks that the selected backend has what it needs.
func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "badger":
		if !c.Storage.Badger.InMemory && c.Storage.Badger.Path == "" {
			return errors.New("BADGER_PATH is required when STORAGE_BACKEND=badger")
		}
	case "sqlite":
		if c.Storage.SQLite.DSN == "" {
			return errors.New("SQLITE_DSN is required when STORAGE_BACKEND=sqlite")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
		}
	}
	return nil
}

// validateRecommend checks that the default sizes fit under MaxK.
func (c *Config) validateRecommend() error {
	r := c.Recommend
	if r.TopN > r.MaxK {
		return fmt.Errorf("recommend.top_n (%d) must not exceed recommend.max_k (%d)", r.TopN, r.MaxK)
	}
	if r.SimilarK > r.MaxK {
		return fmt.Errorf("recommend.similar_k (%d) must not exceed recommend.max_k (%d)", r.SimilarK, r.MaxK)
	}
	if r.UserTimeout > r.RunTimeout {
		return fmt.Errorf("recommend.user_timeout (%s) must not exceed recommend.run_timeout (%s)",
			r.UserTimeout, r.RunTimeout)
	}
	return nil
}

// validateExtraction checks the audio source settings (only if enabled).
func (c *Config) validateExtraction() error {
	e := c.Extraction
	if !e.Enabled {
		return nil
	}

	switch e.AudioSource {
	case "file":
		if e.AudioDir == "" {
			return errors.New("EXTRACTION_AUDIO_DIR is required when EXTRACTION_AUDIO_SOURCE=file")
		}
	case "minio":
		if e.MinIO.Endpoint == "" || e.MinIO.Bucket == "" {
			return errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required when EXTRACTION_AUDIO_SOURCE=minio")
		}
	}
	return nil
}

// validateEvents checks that a NATS transport has somewhere to connect.
func (c *Config) validateEvents() error {
	if c.Events.Backend != "nats" {
		return nil
	}
	if !c.Events.EmbeddedNATS && c.Events.NATSURL == "" {
		return errors.New("NATS_URL is required when EVENTS_BACKEND=nats and NATS_EMBEDDED=false")
	}
	if c.Events.EmbeddedNATS && c.Events.StoreDir == "" {
		return errors.New("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	return nil
}
