// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"context"
	"time"

	"github.com/tomtom215/resonance/internal/extraction"
	"github.com/tomtom215/resonance/internal/recommend"
)

// Recommender is the part of *recommend.Engine the handlers call.
type Recommender interface {
	Recommendations(ctx context.Context, userID int64, limit int) ([]recommend.Recommendation, error)
	RecomputeUser(ctx context.Context, userID int64) ([]recommend.Recommendation, error)
	SimilarTracks(ctx context.Context, trackID int64, k int) ([]recommend.ScoredTrack, error)
	GetStatus() recommend.RunStatus
}

// BatchTrigger schedules a full recomputation. Trigger reports false when a
// run was already pending and the request was coalesced into it.
type BatchTrigger interface {
	Trigger() bool
}

// EventPublisher publishes pipeline events.
type EventPublisher interface {
	RequestExtraction(ctx context.Context, trackID int64, audioKey string) error
	TrackApproved(ctx context.Context, trackID int64) error
}

// JobStore exposes extraction job state.
type JobStore interface {
	Enqueue(trackID int64, audioKey string) extraction.Job
	Finish(trackID int64, messageID string, state extraction.JobState, err error)
	Get(trackID int64) (extraction.Job, error)
}

// HealthChecker verifies a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies wires the handler to the rest of the service. Engine and
// Store are required; the others are nil when their feature is disabled.
type Dependencies struct {
	Engine    Recommender
	Store     HealthChecker
	Trigger   BatchTrigger
	Publisher EventPublisher
	Jobs      JobStore

	// RequestTimeout bounds engine and storage calls made by one request.
	RequestTimeout time.Duration
}

const defaultRequestTimeout = 10 * time.Second

// Handler serves the API endpoints.
type Handler struct {
	engine    Recommender
	store     HealthChecker
	trigger   BatchTrigger
	publisher EventPublisher
	jobs      JobStore
	timeout   time.Duration
	startTime time.Time
}

// NewHandler creates a Handler.
//
//nolint:gocritic // deps passed by value; called once at startup
func NewHandler(deps Dependencies) *Handler {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Handler{
		engine:    deps.Engine,
		store:     deps.Store,
		trigger:   deps.Trigger,
		publisher: deps.Publisher,
		jobs:      deps.Jobs,
		timeout:   timeout,
		startTime: time.Now(),
	}
}

// requestContext bounds a handler's downstream calls.
func (h *Handler) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.timeout)
}
