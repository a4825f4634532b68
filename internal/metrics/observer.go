// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package metrics

import (
	"time"

	"github.com/tomtom215/resonance/internal/recommend"
)

// EngineObserver feeds recommendation engine events into the collectors.
type EngineObserver struct{}

// NewEngineObserver returns an observer for recommend.Engine.SetObserver.
func NewEngineObserver() EngineObserver { return EngineObserver{} }

// ObserveRun implements recommend.Observer.
func (EngineObserver) ObserveRun(status string, duration time.Duration) {
	RecordBatchRun(status, duration)
}

// ObserveUser implements recommend.Observer.
func (EngineObserver) ObserveUser(outcome recommend.UserOutcome, profile recommend.ProfileKind) {
	UsersProcessed.WithLabelValues(string(outcome), profile.String()).Inc()
}

// ObserveSkippedCandidates implements recommend.Observer.
func (EngineObserver) ObserveSkippedCandidates(mode string, n int) {
	if n > 0 {
		CandidatesSkipped.WithLabelValues(mode).Add(float64(n))
	}
}

// ObserveSimilarity implements recommend.Observer.
func (EngineObserver) ObserveSimilarity(outcome string, duration time.Duration) {
	SimilarityQueries.WithLabelValues(outcome).Inc()
	SimilarityDuration.Observe(duration.Seconds())
}

var _ recommend.Observer = EngineObserver{}
