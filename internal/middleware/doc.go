// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - Request ID: UUID-based request tracking, propagated into the logging
    context together with a fresh correlation ID
  - Prometheus Metrics: request counts, latencies and in-flight requests,
    labelled by the matched chi route pattern

Both are plain http.HandlerFunc decorators. The api package adapts them to
chi's func(http.Handler) http.Handler form.

Usage Example:

	handler := middleware.RequestID(middleware.PrometheusMetrics(next))

Endpoint labels use the route pattern ("/api/v1/users/{userID}/recommendations")
rather than the raw path, so per-user URLs do not create new series.
*/
package middleware
