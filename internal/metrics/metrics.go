// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package metrics holds the Prometheus collectors for Resonance. The
// collectors are registered with the default registry through promauto and
// served by the API at /metrics.
package metrics

import (
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Batch recommendation metrics
	BatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_batch_runs_total",
			Help: "Total number of batch recommendation runs by status",
		},
		[]string{"status"}, // "success", "error"
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resonance_batch_duration_seconds",
			Help:    "Duration of batch recommendation runs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
	)

	BatchLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resonance_batch_last_success_timestamp",
			Help: "Unix timestamp of the last successful batch run",
		},
	)

	UsersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_users_processed_total",
			Help: "Total number of users processed by outcome and profile kind",
		},
		[]string{"outcome", "profile"},
	)

	CandidatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_candidates_skipped_total",
			Help: "Candidates skipped because their vector could not be compared",
		},
		[]string{"mode"}, // "user", "similar"
	)

	// Similarity metrics
	SimilarityQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_similarity_queries_total",
			Help: "Total number of track similarity queries by outcome",
		},
		[]string{"outcome"}, // "success", "not_found", "error"
	)

	SimilarityDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resonance_similarity_duration_seconds",
			Help:    "Duration of track similarity queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Recommendation read cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_cache_hits_total",
			Help: "Total number of recommendation cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_cache_misses_total",
			Help: "Total number of recommendation cache misses",
		},
		[]string{"cache"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_cache_errors_total",
			Help: "Total number of failed cache operations",
		},
		[]string{"cache", "operation"},
	)

	// Extraction metrics
	ExtractionJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_extraction_jobs_total",
			Help: "Extraction jobs that reached a terminal state",
		},
		[]string{"state"}, // "succeeded", "skipped", "failed", "abandoned"
	)

	ExtractionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_extraction_attempts_total",
			Help: "Extraction attempts by result",
		},
		[]string{"result"}, // "success", "transient", "permanent", "missing"
	)

	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resonance_extraction_duration_seconds",
			Help:    "Duration of single extraction attempts in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resonance_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_events_published_total",
			Help: "Total number of events published by topic",
		},
		[]string{"topic"},
	)

	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_events_handled_total",
			Help: "Total number of events handled by topic and result",
		},
		[]string{"topic", "result"}, // "ack", "error"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resonance_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resonance_http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resonance_http_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resonance_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version", "storage_backend"},
	)
)

// RecordBatchRun records one finished batch run.
func RecordBatchRun(status string, duration time.Duration) {
	BatchRuns.WithLabelValues(status).Inc()
	BatchDuration.Observe(duration.Seconds())
	if status == "success" {
		BatchLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordCacheHit counts a hit in the named cache.
func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss counts a miss in the named cache.
func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

// RecordCacheError counts a failed read or write against the cache.
func RecordCacheError(cache, operation string) {
	CacheErrors.WithLabelValues(cache, operation).Inc()
}

// RecordExtractionAttempt records one call to the extractor.
func RecordExtractionAttempt(result string, duration time.Duration) {
	ExtractionAttempts.WithLabelValues(result).Inc()
	ExtractionDuration.Observe(duration.Seconds())
}

// RecordExtractionJob counts a job reaching a terminal state.
func RecordExtractionJob(state string) {
	ExtractionJobs.WithLabelValues(state).Inc()
}

// RecordBreakerTransition updates the state gauge and counts the transition.
// State values follow gobreaker: closed=0, half-open=1, open=2.
func RecordBreakerTransition(name, from, to string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordBreakerRequest counts a call through the named breaker.
func RecordBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordEventPublished counts a published event.
func RecordEventPublished(topic string) {
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventHandled counts a handled event.
func RecordEventHandled(topic string, err error) {
	result := "ack"
	if err != nil {
		result = "error"
	}
	EventsHandled.WithLabelValues(topic, result).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit counts a request rejected by the rate limiter.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// SetAppInfo publishes build information.
func SetAppInfo(version, storageBackend string) {
	AppInfo.WithLabelValues(version, runtime.Version(), storageBackend).Set(1)
}
