// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"net/http"

	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/recommend"
)

// RecommendationsResponse is the payload of the recommendation endpoints.
type RecommendationsResponse struct {
	UserID          int64                      `json:"user_id"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

// RecomputeAccepted is the payload of POST /recommendations/recompute.
type RecomputeAccepted struct {
	// Queued is false when the request joined a run that was already pending.
	Queued bool                `json:"queued"`
	Status recommend.RunStatus `json:"status"`
}

// GetRecommendations handles GET /api/v1/users/{userID}/recommendations.
// Returns the stored list ordered by rank. A user without stored rows gets
// an empty list, not a 404.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, err := pathID(r, "userID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	limit, err := getIntParam(r, "limit", 0)
	if err != nil {
		rw.ValidationError(err.Error(), map[string]interface{}{"field": "limit"})
		return
	}
	req := RecommendationsRequest{Limit: limit}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	ctx, cancel := h.requestContext(r.Context())
	defer cancel()

	recs, err := h.engine.Recommendations(ctx, userID, req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.List(RecommendationsResponse{UserID: userID, Recommendations: recs}, len(recs))
}

// RecomputeUser handles POST /api/v1/users/{userID}/recommendations/recompute.
// The user's list is rebuilt and persisted before the response is written.
func (h *Handler) RecomputeUser(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, err := pathID(r, "userID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	ctx, cancel := h.requestContext(r.Context())
	defer cancel()

	recs, err := h.engine.RecomputeUser(ctx, userID)
	if err != nil {
		rw.InternalError("Failed to recompute recommendations", err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Int64("user_id", userID).
		Int("count", len(recs)).
		Msg("user recommendations recomputed on request")

	rw.List(RecommendationsResponse{UserID: userID, Recommendations: recs}, len(recs))
}

// TriggerRecompute handles POST /api/v1/recommendations/recompute.
// The batch runs in the background; repeated requests while one is pending
// coalesce into a single run.
func (h *Handler) TriggerRecompute(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.trigger == nil {
		rw.ServiceUnavailable("Batch recomputation is not running")
		return
	}

	queued := h.trigger.Trigger()
	logging.Ctx(r.Context()).Info().Bool("queued", queued).Msg("batch recomputation requested")

	rw.Accepted(RecomputeAccepted{Queued: queued, Status: h.engine.GetStatus()})
}

// RecommendationStatus handles GET /api/v1/recommendations/status.
func (h *Handler) RecommendationStatus(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.engine.GetStatus())
}
