// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/resonance/internal/events"
	"github.com/tomtom215/resonance/internal/recommend"
	"github.com/tomtom215/resonance/internal/storage"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any mapped setting
//
// Example:
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	backend, err := storage.Open(ctx, cfg.Storage.Options(), logger)
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Storage    StorageConfig    `koanf:"storage"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Extraction ExtractionConfig `koanf:"extraction"`
	Events     EventsConfig     `koanf:"events"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// Environment is "development" or "production". Production refuses a
	// wildcard CORS origin.
	Environment string `koanf:"environment" validate:"oneof=development production"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the listen address.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`

	// Format is the output format: json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend  string         `koanf:"backend" validate:"oneof=memory badger sqlite postgres"`
	Memory   MemoryConfig   `koanf:"memory"`
	Badger   BadgerConfig   `koanf:"badger"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Redis    RedisConfig    `koanf:"redis"`
}

// MemoryConfig configures the in-memory backend.
type MemoryConfig struct {
	// SnapshotPath is loaded at startup and written at shutdown when set.
	SnapshotPath string `koanf:"snapshot_path"`
}

// BadgerConfig configures the Badger backend.
type BadgerConfig struct {
	Path       string `koanf:"path"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	DSN string `koanf:"dsn"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	DSN            string `koanf:"dsn"`
	MaxConns       int32  `koanf:"max_conns" validate:"min=0"`
	MigrateOnStart bool   `koanf:"migrate_on_start"`
}

// RedisConfig configures the recommendation read cache.
type RedisConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Addr      string        `koanf:"addr" validate:"required_if=Enabled true,omitempty,hostname_port"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db" validate:"min=0"`
	TTL       time.Duration `koanf:"ttl" validate:"min=0"`
	KeyPrefix string        `koanf:"key_prefix"`
}

// RecommendConfig holds recommendation engine settings.
type RecommendConfig struct {
	// TopN is the default number of recommendations stored per user.
	TopN int `koanf:"top_n" validate:"min=1"`

	// SimilarK is the default neighbor count for similar-track queries.
	SimilarK int `koanf:"similar_k" validate:"min=1"`

	// MaxK caps any requested result size.
	MaxK int `koanf:"max_k" validate:"min=1"`

	// Workers is the number of users scored concurrently during a batch.
	Workers int `koanf:"workers" validate:"min=1,max=256"`

	// RunTimeout bounds a whole batch; UserTimeout bounds one user.
	RunTimeout  time.Duration `koanf:"run_timeout" validate:"gt=0"`
	UserTimeout time.Duration `koanf:"user_timeout" validate:"gt=0"`

	// Interval schedules periodic batches. Zero disables the schedule.
	Interval time.Duration `koanf:"interval" validate:"min=0"`

	// RunOnStartup triggers a batch as soon as the service starts.
	RunOnStartup bool `koanf:"run_on_startup"`
}

// ExtractionConfig holds the feature extraction pipeline settings.
type ExtractionConfig struct {
	Enabled bool `koanf:"enabled"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `koanf:"max_retries" validate:"min=0,max=100"`

	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration `koanf:"retry_delay" validate:"min=0"`

	ExtractorURL string        `koanf:"extractor_url" validate:"required_if=Enabled true,omitempty,http_url"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`

	// RateLimit is extractor requests per second. Zero means unlimited.
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`
	RateBurst int     `koanf:"rate_burst" validate:"min=1"`

	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`

	// AudioSource is "file" or "minio".
	AudioSource string      `koanf:"audio_source" validate:"oneof=file minio"`
	AudioDir    string      `koanf:"audio_dir"`
	MinIO       MinIOConfig `koanf:"minio"`

	// MaxJobs bounds the job tracker.
	MaxJobs int `koanf:"max_jobs" validate:"min=1"`
}

// MinIOConfig configures the object storage audio source.
type MinIOConfig struct {
	Endpoint      string        `koanf:"endpoint"`
	AccessKey     string        `koanf:"access_key"`
	SecretKey     string        `koanf:"secret_key"`
	Bucket        string        `koanf:"bucket"`
	UseSSL        bool          `koanf:"use_ssl"`
	PresignExpiry time.Duration `koanf:"presign_expiry" validate:"min=0"`
}

// EventsConfig selects the message transport.
type EventsConfig struct {
	// Backend is "memory" (watermill gochannel) or "nats" (JetStream).
	Backend      string        `koanf:"backend" validate:"oneof=memory nats"`
	NATSURL      string        `koanf:"nats_url"`
	EmbeddedNATS bool          `koanf:"embedded_nats"`
	StoreDir     string        `koanf:"store_dir"`
	QueueGroup   string        `koanf:"queue_group"`
	CloseTimeout time.Duration `koanf:"close_timeout" validate:"gt=0"`
}

// SupervisorConfig holds supervisor tree settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Options converts the section into storage.Options.
func (s *StorageConfig) Options() storage.Options {
	return storage.Options{
		Backend: s.Backend,
		Memory:  storage.MemoryOptions{SnapshotPath: s.Memory.SnapshotPath},
		Badger: storage.BadgerOptions{
			Path:       s.Badger.Path,
			InMemory:   s.Badger.InMemory,
			SyncWrites: s.Badger.SyncWrites,
		},
		SQLite: storage.SQLiteOptions{DSN: s.SQLite.DSN},
		Postgres: storage.PostgresOptions{
			DSN:            s.Postgres.DSN,
			MaxConns:       s.Postgres.MaxConns,
			MigrateOnStart: s.Postgres.MigrateOnStart,
		},
		Redis: storage.RedisOptions{
			Enabled:   s.Redis.Enabled,
			Addr:      s.Redis.Addr,
			Password:  s.Redis.Password,
			DB:        s.Redis.DB,
			TTL:       s.Redis.TTL,
			KeyPrefix: s.Redis.KeyPrefix,
		},
	}
}

// EngineConfig converts the section into the engine's configuration.
func (r *RecommendConfig) EngineConfig() *recommend.Config {
	cfg := recommend.DefaultConfig()
	cfg.Limits.TopN = r.TopN
	cfg.Limits.SimilarK = r.SimilarK
	cfg.Limits.MaxK = r.MaxK
	cfg.Batch.Workers = r.Workers
	cfg.Batch.Timeout = r.RunTimeout
	cfg.Batch.UserTimeout = r.UserTimeout
	return cfg
}

// BusOptions converts the section into events.Options. With an embedded
// server the URL is only known at runtime and is passed in.
func (e *EventsConfig) BusOptions(embeddedURL string) events.Options {
	url := e.NATSURL
	if e.EmbeddedNATS && embeddedURL != "" {
		url = embeddedURL
	}
	return events.Options{
		Backend:      e.Backend,
		NATSURL:      url,
		QueueGroup:   e.QueueGroup,
		CloseTimeout: e.CloseTimeout,
	}
}

// RouterOptions derives the router retry policy from the extraction section.
func (c *Config) RouterOptions() events.RouterOptions {
	return events.RouterOptions{
		CloseTimeout: c.Events.CloseTimeout,
		MaxRetries:   c.Extraction.MaxRetries,
		RetryDelay:   c.Extraction.RetryDelay,
		PoisonTopic:  events.TopicExtractionPoison,
	}
}

// String returns a short description safe for logs.
func (c *Config) String() string {
	return fmt.Sprintf("server=%s storage=%s events=%s extraction=%t",
		c.Server.Addr(), c.Storage.Backend, c.Events.Backend, c.Extraction.Enabled)
}
