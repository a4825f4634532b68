// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package api provides the HTTP REST API layer for Resonance.

Key Components:

  - Router: chi route table and middleware stack
  - Handler: request handlers for recommendations, similar tracks and the
    extraction pipeline
  - Response formatting: the APIResponse envelope with request metadata
  - Error handling: machine-readable error codes with matching HTTP status
  - Rate limiting: httprate per client IP, rejections counted in Prometheus
  - CORS: go-chi/cors with explicitly configured origins

Endpoints:

	GET  /api/v1/users/{userID}/recommendations?limit=N
	POST /api/v1/users/{userID}/recommendations/recompute
	POST /api/v1/recommendations/recompute
	GET  /api/v1/recommendations/status
	GET  /api/v1/tracks/{trackID}/similar?k=N
	POST /api/v1/tracks/{trackID}/approved
	POST /api/v1/tracks/{trackID}/extract
	GET  /api/v1/tracks/{trackID}/extraction
	GET  /health/live
	GET  /health/ready
	GET  /metrics

Response Format:

Every endpoint except /metrics answers with the same envelope:

	{
	  "success": true,
	  "data": { ... },
	  "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 3}
	}

Errors set success to false and fill "error" with a code from the
ErrCode* constants, a message and optional details.

Batch recomputation and event publication are asynchronous and answer 202
Accepted. Single-user recomputation runs inside the request.
*/
package api
