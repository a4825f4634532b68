// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tomtom215/resonance/internal/events"
	"github.com/tomtom215/resonance/internal/extraction"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/recommend"
)

// SimilarResponse is the payload of GET /tracks/{trackID}/similar.
type SimilarResponse struct {
	TrackID int64                   `json:"track_id"`
	Similar []recommend.ScoredTrack `json:"similar"`
}

// EventAccepted is the payload of endpoints that publish an event.
type EventAccepted struct {
	TrackID int64           `json:"track_id"`
	Topic   string          `json:"topic"`
	Job     *extraction.Job `json:"job,omitempty"`
}

// SimilarTracks handles GET /api/v1/tracks/{trackID}/similar.
// Returns 404 when the track is unknown or has no embedding yet, and 409 when
// its stored embedding is malformed.
func (h *Handler) SimilarTracks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	trackID, err := pathID(r, "trackID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	k, err := getIntParam(r, "k", 0)
	if err != nil {
		rw.ValidationError(err.Error(), map[string]interface{}{"field": "k"})
		return
	}
	req := SimilarRequest{K: k}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	ctx, cancel := h.requestContext(r.Context())
	defer cancel()

	similar, err := h.engine.SimilarTracks(ctx, trackID, req.K)
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		rw.NotFound("Track " + strconv.FormatInt(trackID, 10) + " not found or not yet analyzed")
		return
	case errors.Is(err, recommend.ErrDimensionMismatch):
		rw.Conflict("Track " + strconv.FormatInt(trackID, 10) + " has a malformed feature vector; request extraction again")
		return
	case err != nil:
		rw.DatabaseError(err)
		return
	}
	if similar == nil {
		similar = []recommend.ScoredTrack{}
	}

	rw.List(SimilarResponse{TrackID: trackID, Similar: similar}, len(similar))
}

// ApproveTrack handles POST /api/v1/tracks/{trackID}/approved.
// The approval itself is recorded upstream; this publishes the signal that
// schedules a recomputation.
func (h *Handler) ApproveTrack(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	trackID, err := pathID(r, "trackID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	if h.publisher == nil {
		rw.ServiceUnavailable(ErrEventsDisabled.Error())
		return
	}

	if err := h.publisher.TrackApproved(r.Context(), trackID); err != nil {
		rw.InternalError("Failed to publish approval", err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("track_id", trackID).Msg("track approval published")
	rw.Accepted(EventAccepted{TrackID: trackID, Topic: events.TopicTrackApproved})
}

// RequestExtraction handles POST /api/v1/tracks/{trackID}/extract.
//
// The optional body {"audio_key": "..."} names the audio object; it defaults
// to the track ID. A track whose previous job is still pending or running
// is rejected with 409 unless ?force=true is given.
func (h *Handler) RequestExtraction(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	trackID, err := pathID(r, "trackID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	if h.publisher == nil || h.jobs == nil {
		rw.ServiceUnavailable(ErrExtractionDisabled.Error())
		return
	}

	var req ExtractRequest
	if err := decodeJSONBody(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	if req.AudioKey == "" {
		req.AudioKey = strconv.FormatInt(trackID, 10)
	}

	if r.URL.Query().Get("force") != "true" {
		if existing, err := h.jobs.Get(trackID); err == nil && !existing.State.Terminal() {
			rw.ErrorWithDetails(http.StatusConflict, ErrCodeConflict,
				"An extraction job is already in progress for this track", existing)
			return
		}
	}

	job := h.jobs.Enqueue(trackID, req.AudioKey)
	if err := h.publisher.RequestExtraction(r.Context(), trackID, req.AudioKey); err != nil {
		h.jobs.Finish(trackID, "", extraction.JobFailed, err)
		rw.InternalError("Failed to publish extraction request", err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Int64("track_id", trackID).
		Str("audio_key", sanitizeLogValue(req.AudioKey)).
		Str("job_id", job.ID).
		Msg("extraction requested")

	rw.Accepted(EventAccepted{TrackID: trackID, Topic: events.TopicExtractionRequested, Job: &job})
}

// ExtractionStatus handles GET /api/v1/tracks/{trackID}/extraction.
func (h *Handler) ExtractionStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	trackID, err := pathID(r, "trackID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	if h.jobs == nil {
		rw.ServiceUnavailable(ErrExtractionDisabled.Error())
		return
	}

	job, err := h.jobs.Get(trackID)
	if errors.Is(err, extraction.ErrJobNotFound) {
		rw.NotFound("No extraction job for track " + strconv.FormatInt(trackID, 10))
		return
	}
	if err != nil {
		rw.InternalError("Failed to read extraction job", err)
		return
	}

	rw.Success(job)
}
