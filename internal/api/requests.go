// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

// Request structs carry go-playground/validator tags. Field names in
// validation errors come from the json tag. The limit and k bounds sit above
// the engine's configured cap, which still applies.
//
// Example usage:
//
//	req := RecommendationsRequest{Limit: limit}
//	if apiErr := validateRequest(&req); apiErr != nil {
//	    rw.ValidationError(apiErr.Message, apiErr.Details)
//	    return
//	}

// RecommendationsRequest represents the validated query parameters for
// GET /users/{userID}/recommendations.
//
// Fields:
//   - Limit: Maximum rows to return (0 returns the whole stored list)
type RecommendationsRequest struct {
	Limit int `json:"limit" validate:"min=0,max=1000"`
}

// SimilarRequest represents the validated query parameters for
// GET /tracks/{trackID}/similar.
//
// Fields:
//   - K: Neighbor count (0 selects the configured default)
type SimilarRequest struct {
	K int `json:"k" validate:"min=0,max=1000"`
}

// ExtractRequest is the optional JSON body of POST /tracks/{trackID}/extract.
// An empty AudioKey defaults to the track ID.
type ExtractRequest struct {
	AudioKey string `json:"audio_key" validate:"omitempty,max=1024"`
}
