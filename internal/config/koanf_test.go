// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8420 {
		t.Errorf("Server.Port = %d, want 8420", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Recommend.TopN != 10 {
		t.Errorf("Recommend.TopN = %d, want 10", cfg.Recommend.TopN)
	}
	if cfg.Recommend.SimilarK != 5 {
		t.Errorf("Recommend.SimilarK = %d, want 5", cfg.Recommend.SimilarK)
	}
	if cfg.Extraction.Enabled {
		t.Error("Extraction.Enabled should be false by default")
	}
	if cfg.Extraction.MaxRetries != 3 || cfg.Extraction.RetryDelay != 60*time.Second {
		t.Errorf("Extraction retry = %d/%v, want 3/60s", cfg.Extraction.MaxRetries, cfg.Extraction.RetryDelay)
	}
	if cfg.Events.Backend != "memory" {
		t.Errorf("Events.Backend = %q, want memory", cfg.Events.Backend)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"CORS_ORIGINS", "server.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"STORAGE_BACKEND", "storage.backend"},
		{"POSTGRES_DSN", "storage.postgres.dsn"},
		{"REDIS_ADDR", "storage.redis.addr"},
		{"RECOMMEND_TOP_N", "recommend.top_n"},
		{"EXTRACTOR_URL", "extraction.extractor_url"},
		{"EXTRACTION_RETRY_DELAY", "extraction.retry_delay"},
		{"MINIO_BUCKET", "extraction.minio.bucket"},
		{"NATS_EMBEDDED", "events.embedded_nats"},
		{"SUPERVISOR_SHUTDOWN_TIMEOUT", "supervisor.shutdown_timeout"},
		{"log_format", "logging.format"},

		// Unknown (should return empty)
		{"RANDOM_VAR", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestFindConfigFile verifies config file discovery
func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv(ConfigPathEnvVar, "")

	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q, want empty string", got)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "config.yml"), []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := findConfigFile(); got != "config.yml" {
		t.Errorf("findConfigFile() = %q, want config.yml", got)
	}

	custom := filepath.Join(tmpDir, "custom.yaml")
	if err := os.WriteFile(custom, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, custom)
	if got := findConfigFile(); got != custom {
		t.Errorf("findConfigFile() = %q, want %q", got, custom)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadFile_Layering verifies file values override defaults and env
// overrides the file.
func TestLoadFile_Layering(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
storage:
  backend: sqlite
  sqlite:
    dsn: "file::memory:"
recommend:
  top_n: 20
  workers: 8
`)
	t.Setenv("RECOMMEND_WORKERS", "2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000 from file", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.SQLite.DSN != "file::memory:" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Recommend.TopN != 20 {
		t.Errorf("Recommend.TopN = %d, want 20 from file", cfg.Recommend.TopN)
	}
	if cfg.Recommend.Workers != 2 {
		t.Errorf("Recommend.Workers = %d, want 2 from env", cfg.Recommend.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug from env", cfg.Logging.Level)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	// Untouched sections keep their defaults.
	if cfg.Recommend.SimilarK != 5 {
		t.Errorf("Recommend.SimilarK = %d, want default 5", cfg.Recommend.SimilarK)
	}
}

func TestLoadFile_Durations(t *testing.T) {
	path := writeConfig(t, `
extraction:
  retry_delay: 250ms
recommend:
  interval: 1h
`)
	t.Setenv("EXTRACTION_MAX_RETRIES", "7")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Extraction.RetryDelay != 250*time.Millisecond {
		t.Errorf("RetryDelay = %v, want 250ms", cfg.Extraction.RetryDelay)
	}
	if cfg.Extraction.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", cfg.Extraction.MaxRetries)
	}
	if cfg.Recommend.Interval != time.Hour {
		t.Errorf("Interval = %v, want 1h", cfg.Recommend.Interval)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile() with a missing file should fail")
	}

	bad := writeConfig(t, "server: [unclosed\n")
	if _, err := LoadFile(bad); err == nil {
		t.Error("LoadFile() with invalid YAML should fail")
	}

	invalid := writeConfig(t, "storage:\n  backend: cassandra\n")
	_, err := LoadFile(invalid)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("LoadFile() error = %v, want validation failure", err)
	}
}

func TestLoadFile_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile(\"\") error = %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want memory", cfg.Storage.Backend)
	}
}
