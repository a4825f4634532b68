// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package recommend

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Limits contains result size limits.
	Limits LimitsConfig `json:"limits"`

	// Batch contains parameters for full recomputation runs.
	Batch BatchConfig `json:"batch"`
}

// LimitsConfig contains result size limits.
type LimitsConfig struct {
	// TopN is the number of recommendations persisted per user.
	// Default: 10.
	TopN int `json:"top_n"`

	// SimilarK is the number of similar tracks returned when the caller does
	// not ask for a specific count.
	// Default: 5.
	SimilarK int `json:"similar_k"`

	// MaxK is the largest count a caller may request.
	// Default: 100.
	MaxK int `json:"max_k"`
}

// BatchConfig contains parameters for full recomputation runs.
type BatchConfig struct {
	// Workers is the number of users recomputed concurrently.
	// Default: 4.
	Workers int `json:"workers"`

	// Timeout bounds a whole run.
	// Default: 30m.
	Timeout time.Duration `json:"timeout"`

	// UserTimeout bounds the recomputation of a single user.
	// Default: 30s.
	UserTimeout time.Duration `json:"user_timeout"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Limits: LimitsConfig{
			TopN:     10,
			SimilarK: 5,
			MaxK:     100,
		},
		Batch: BatchConfig{
			Workers:     4,
			Timeout:     30 * time.Minute,
			UserTimeout: 30 * time.Second,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Limits.TopN <= 0 {
		return fmt.Errorf("limits.top_n must be positive, got %d", c.Limits.TopN)
	}
	if c.Limits.SimilarK <= 0 {
		return fmt.Errorf("limits.similar_k must be positive, got %d", c.Limits.SimilarK)
	}
	if c.Limits.MaxK < c.Limits.SimilarK {
		return fmt.Errorf("limits.max_k must be >= limits.similar_k, got %d < %d", c.Limits.MaxK, c.Limits.SimilarK)
	}
	if c.Limits.MaxK < c.Limits.TopN {
		return fmt.Errorf("limits.max_k must be >= limits.top_n, got %d < %d", c.Limits.MaxK, c.Limits.TopN)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be positive, got %d", c.Batch.Workers)
	}
	if c.Batch.Timeout <= 0 {
		return fmt.Errorf("batch.timeout must be positive, got %v", c.Batch.Timeout)
	}
	if c.Batch.UserTimeout <= 0 {
		return fmt.Errorf("batch.user_timeout must be positive, got %v", c.Batch.UserTimeout)
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	return &Config{
		Limits: c.Limits,
		Batch:  c.Batch,
	}
}

// MarshalJSON renders durations as strings.
func (c *Config) MarshalJSON() ([]byte, error) {
	type batch struct {
		Workers     int    `json:"workers"`
		Timeout     string `json:"timeout"`
		UserTimeout string `json:"user_timeout"`
	}
	return json.Marshal(&struct {
		Limits LimitsConfig `json:"limits"`
		Batch  batch        `json:"batch"`
	}{
		Limits: c.Limits,
		Batch: batch{
			Workers:     c.Batch.Workers,
			Timeout:     c.Batch.Timeout.String(),
			UserTimeout: c.Batch.UserTimeout.String(),
		},
	})
}
