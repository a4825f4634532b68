// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/resonance/config.yaml",
	"/etc/resonance/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8420,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Storage: StorageConfig{
			Backend: "memory",
			Badger: BadgerConfig{
				Path: "/data/badger",
			},
			SQLite: SQLiteConfig{
				DSN: "file:/data/resonance.db",
			},
			Postgres: PostgresConfig{
				MaxConns:       10,
				MigrateOnStart: true,
			},
			Redis: RedisConfig{
				Enabled:   false,
				Addr:      "127.0.0.1:6379",
				TTL:       15 * time.Minute,
				KeyPrefix: "resonance:",
			},
		},
		Recommend: RecommendConfig{
			TopN:         10,
			SimilarK:     5,
			MaxK:         100,
			Workers:      4,
			RunTimeout:   30 * time.Minute,
			UserTimeout:  30 * time.Second,
			Interval:     0, // batches run on demand and on approval events
			RunOnStartup: false,
		},
		Extraction: ExtractionConfig{
			Enabled:         false,
			MaxRetries:      3,
			RetryDelay:      60 * time.Second,
			Timeout:         2 * time.Minute,
			RateLimit:       2,
			RateBurst:       1,
			BreakerFailures: 5,
			BreakerTimeout:  60 * time.Second,
			AudioSource:     "file",
			AudioDir:        "/data/audio",
			MinIO: MinIOConfig{
				Bucket:        "audio",
				PresignExpiry: 15 * time.Minute,
			},
			MaxJobs: 10000,
		},
		Events: EventsConfig{
			Backend:      "memory",
			NATSURL:      "nats://127.0.0.1:4222",
			EmbeddedNATS: false,
			StoreDir:     "/data/nats/jetstream",
			QueueGroup:   "resonance",
			CloseTimeout: 30 * time.Second,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile loads configuration like LoadWithKoanf but reads the YAML file at
// path instead of searching the default locations. An empty path loads
// defaults and environment only.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ConfigFile returns the file LoadWithKoanf reads, or "" when none exists.
func ConfigFile() string {
	return findConfigFile()
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Storage
	"storage_backend":      "storage.backend",
	"memory_snapshot_path": "storage.memory.snapshot_path",
	"badger_path":          "storage.badger.path",
	"badger_in_memory":     "storage.badger.in_memory",
	"badger_sync_writes":   "storage.badger.sync_writes",
	"sqlite_dsn":           "storage.sqlite.dsn",
	"postgres_dsn":         "storage.postgres.dsn",
	"postgres_max_conns":   "storage.postgres.max_conns",
	"postgres_migrate":     "storage.postgres.migrate_on_start",
	"redis_enabled":        "storage.redis.enabled",
	"redis_addr":           "storage.redis.addr",
	"redis_password":       "storage.redis.password",
	"redis_db":             "storage.redis.db",
	"redis_ttl":            "storage.redis.ttl",
	"redis_key_prefix":     "storage.redis.key_prefix",

	// Recommendation engine
	"recommend_top_n":          "recommend.top_n",
	"recommend_similar_k":      "recommend.similar_k",
	"recommend_max_k":          "recommend.max_k",
	"recommend_workers":        "recommend.workers",
	"recommend_run_timeout":    "recommend.run_timeout",
	"recommend_user_timeout":   "recommend.user_timeout",
	"recommend_interval":       "recommend.interval",
	"recommend_run_on_startup": "recommend.run_on_startup",

	// Extraction pipeline
	"extraction_enabled":         "extraction.enabled",
	"extraction_max_retries":     "extraction.max_retries",
	"extraction_retry_delay":     "extraction.retry_delay",
	"extractor_url":              "extraction.extractor_url",
	"extractor_timeout":          "extraction.timeout",
	"extractor_rate_limit":       "extraction.rate_limit",
	"extractor_rate_burst":       "extraction.rate_burst",
	"extractor_breaker_failures": "extraction.breaker_failures",
	"extractor_breaker_timeout":  "extraction.breaker_timeout",
	"extraction_audio_source":    "extraction.audio_source",
	"extraction_audio_dir":       "extraction.audio_dir",
	"extraction_max_jobs":        "extraction.max_jobs",
	"minio_endpoint":             "extraction.minio.endpoint",
	"minio_access_key":           "extraction.minio.access_key",
	"minio_secret_key":           "extraction.minio.secret_key",
	"minio_bucket":               "extraction.minio.bucket",
	"minio_use_ssl":              "extraction.minio.use_ssl",
	"minio_presign_expiry":       "extraction.minio.presign_expiry",

	// Events
	"events_backend":       "events.backend",
	"nats_url":             "events.nats_url",
	"nats_embedded":        "events.embedded_nats",
	"nats_store_dir":       "events.store_dir",
	"nats_queue_group":     "events.queue_group",
	"events_close_timeout": "events.close_timeout",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - STORAGE_BACKEND -> storage.backend
//   - POSTGRES_DSN -> storage.postgres.dsn
//   - EXTRACTOR_URL -> extraction.extractor_url
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables never
	// pollute the configuration.
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The callback runs on every change; the caller reloads and applies what
// can change at runtime.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
