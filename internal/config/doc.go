// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package config provides centralized configuration management for Resonance.

Configuration is loaded in three layers with Koanf v2, each overriding the
one before:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml or
    /etc/resonance/config.yaml
 3. Environment variables listed in envMappings

Unmapped environment variables are ignored.

# Sections

  - server: HTTP listener, CORS origins, per-IP rate limit
  - logging: level, format (json or console), caller info
  - storage: backend (memory, badger, sqlite, postgres) and the Redis cache
  - recommend: top_n, similar_k, max_k, workers, batch timeouts and schedule
  - extraction: extractor service, retry policy, audio source (file or minio)
  - events: memory (watermill gochannel) or nats (JetStream, optionally embedded)
  - supervisor: suture failure thresholds and shutdown timeout

# Environment Variables

Common overrides:

  - HTTP_PORT, HTTP_HOST, ENVIRONMENT, CORS_ORIGINS
  - LOG_LEVEL, LOG_FORMAT
  - STORAGE_BACKEND, SQLITE_DSN, POSTGRES_DSN, BADGER_PATH
  - REDIS_ENABLED, REDIS_ADDR
  - RECOMMEND_TOP_N, RECOMMEND_WORKERS, RECOMMEND_INTERVAL
  - EXTRACTION_ENABLED, EXTRACTOR_URL, EXTRACTION_MAX_RETRIES, EXTRACTION_RETRY_DELAY
  - EVENTS_BACKEND, NATS_URL, NATS_EMBEDDED

# Validation

Validate runs the shared go-playground validator over the struct tags, then
cross-field checks (a backend's DSN, MinIO settings when selected, NATS
reachability, sizes within max_k). Every failure is reported in one joined
error.
*/
package config
