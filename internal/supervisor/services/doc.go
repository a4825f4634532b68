// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

/*
Package services provides suture.Service wrappers for Resonance components.

Each wrapper adapts a component's lifecycle (ListenAndServe, Run/Close, a
periodic batch) to suture's context-aware Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Configurable shutdown timeout for draining connections

Recommendation Batches (RecommendService):
  - Runs RecomputeAll on startup, on an interval and on demand
  - Trigger is non-blocking; requests made while a run is pending coalesce
    into that run

Event Router (RouterService):
  - Builds a fresh watermill router through a factory on every Serve, so a
    restart after a crash gets new handler state
  - Closes the router when the context is cancelled

# Event Handlers

NewApprovalHandler turns TrackApproved events into RecommendService
triggers. It never fails: a malformed payload is logged and dropped.

# Restart Behavior

Returning an error from Serve makes suture restart the service with
backoff. Returning ctx.Err() after cancellation is a clean stop.
*/
package services
