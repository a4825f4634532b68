// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package recommend

import (
	"fmt"
	"time"
)

// ApprovalStatus is the moderation state of a track, owned by the
// surrounding application.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// ParseApprovalStatus validates a status string.
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	switch st := ApprovalStatus(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("unknown approval status %q", s)
	}
}

// String implements fmt.Stringer.
func (s ApprovalStatus) String() string { return string(s) }

// Track is a catalog entry as seen by the recommender.
type Track struct {
	ID     int64          `json:"id" yaml:"id"`
	Status ApprovalStatus `json:"status" yaml:"status"`
	Genre  string         `json:"genre,omitempty" yaml:"genre,omitempty"`

	// Embedding is nil until feature extraction has produced a vector.
	Embedding *AudioVector `json:"-" yaml:"-"`
}

// HasEmbedding reports whether the track carries a non-empty embedding.
func (t *Track) HasEmbedding() bool {
	return t.Embedding != nil && !t.Embedding.IsEmpty()
}

// TrackFilter restricts ListTracks. A nil Status matches every track.
type TrackFilter struct {
	Status *ApprovalStatus
}

// ApprovedOnly returns a filter matching approved tracks.
func ApprovedOnly() TrackFilter {
	st := StatusApproved
	return TrackFilter{Status: &st}
}

// Matches reports whether t passes the filter.
func (f TrackFilter) Matches(t *Track) bool {
	return f.Status == nil || t.Status == *f.Status
}

// ScoredTrack is a track id with its similarity score.
type ScoredTrack struct {
	TrackID int64   `json:"track_id"`
	Score   float64 `json:"score"`
}

// Recommendation is one persisted row of a user's ranked list.
// Rank is 1-based and contiguous within a user's set.
type Recommendation struct {
	UserID     int64     `json:"user_id" db:"user_id"`
	TrackID    int64     `json:"track_id" db:"track_id"`
	Rank       int       `json:"rank" db:"rank"`
	Score      float64   `json:"score" db:"score"`
	ComputedAt time.Time `json:"computed_at" db:"computed_at"`
}

// NewRecommendations converts a ranking into persisted rows for userID.
func NewRecommendations(userID int64, ranked []ScoredTrack, computedAt time.Time) []Recommendation {
	recs := make([]Recommendation, len(ranked))
	for i, st := range ranked {
		recs[i] = Recommendation{
			UserID:     userID,
			TrackID:    st.TrackID,
			Rank:       i + 1,
			Score:      st.Score,
			ComputedAt: computedAt,
		}
	}
	return recs
}

// ValidateRecommendations checks the ranking invariants of a replacement set:
// every row belongs to userID, ranks run 1..n without gaps and scores do not
// increase with rank.
func ValidateRecommendations(userID int64, recs []Recommendation) error {
	seen := make(map[int64]struct{}, len(recs))
	for i, r := range recs {
		if r.UserID != userID {
			return fmt.Errorf("row %d belongs to user %d, want %d", i, r.UserID, userID)
		}
		if r.Rank != i+1 {
			return fmt.Errorf("row %d has rank %d, want %d", i, r.Rank, i+1)
		}
		if i > 0 && r.Score > recs[i-1].Score {
			return fmt.Errorf("row %d score %f exceeds previous %f", i, r.Score, recs[i-1].Score)
		}
		if _, dup := seen[r.TrackID]; dup {
			return fmt.Errorf("track %d appears twice", r.TrackID)
		}
		seen[r.TrackID] = struct{}{}
	}
	return nil
}

// UserOutcome classifies what happened to a single user during a run.
type UserOutcome string

const (
	OutcomeRecommended UserOutcome = "recommended"
	OutcomeNoProfile   UserOutcome = "no_profile"
	OutcomeFailed      UserOutcome = "failed"
)

// RunSummary describes one batch recomputation.
type RunSummary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`

	// CatalogSize is the number of tracks carrying an embedding.
	CatalogSize int `json:"catalog_size"`

	// Candidates is the number of approved tracks with an embedding.
	Candidates int `json:"candidates"`

	Users             int `json:"users"`
	Recommended       int `json:"recommended"`
	NoProfile         int `json:"no_profile"`
	PreferenceBased   int `json:"preference_based"`
	Failed            int `json:"failed"`
	SkippedCandidates int `json:"skipped_candidates"`

	Error string `json:"error,omitempty"`
}

// RunStatus is the engine's batch state.
type RunStatus struct {
	Running   bool        `json:"running"`
	Runs      int         `json:"runs"`
	LastRun   *RunSummary `json:"last_run,omitempty"`
	StartedAt time.Time   `json:"started_at,omitempty"`
}
