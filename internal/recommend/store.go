// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package recommend

import "context"

// The store interfaces below are the only way the engine reaches persistent
// state. Backends live in internal/storage.

// CatalogStore lists tracks.
type CatalogStore interface {
	// ListTracks returns tracks matching filter ordered by ascending id.
	// Tracks without an embedding are included with a nil Embedding.
	ListTracks(ctx context.Context, filter TrackFilter) ([]Track, error)
}

// InteractionStore exposes positive interactions.
type InteractionStore interface {
	// LikedTrackIDs returns the ids of tracks the user liked. Unknown users
	// yield an empty slice.
	LikedTrackIDs(ctx context.Context, userID int64) ([]int64, error)

	// ListUserIDs returns every user the batch run must visit, ascending.
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// PreferenceStore exposes declared preferences.
type PreferenceStore interface {
	// DeclaredPreferences returns nil when the user declared nothing.
	DeclaredPreferences(ctx context.Context, userID int64) (*DeclaredPreferences, error)
}

// VectorWriter persists track embeddings.
type VectorWriter interface {
	// SaveFeatureVector stores v as the embedding of trackID, replacing any
	// previous one. Implementations reject vectors that fail Validate.
	SaveFeatureVector(ctx context.Context, trackID int64, v AudioVector) error
}

// RecommendationStore persists ranked lists.
type RecommendationStore interface {
	// ReplaceRecommendations atomically replaces the user's set. Readers
	// observe either the complete previous set or the complete new one.
	// An empty recs clears the set.
	ReplaceRecommendations(ctx context.Context, userID int64, recs []Recommendation) error

	// GetRecommendations returns at most limit rows ordered by rank
	// ascending. limit <= 0 returns every row.
	GetRecommendations(ctx context.Context, userID int64, limit int) ([]Recommendation, error)
}

// Store is the full persistence gateway.
type Store interface {
	CatalogStore
	InteractionStore
	PreferenceStore
	VectorWriter
	RecommendationStore
}
