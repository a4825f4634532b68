// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Note: This package has no dependencies on other internal packages. Storage
// is reached through the interfaces in store.go and metrics through Observer.

// Observer receives engine events for metrics. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveRun(status string, duration time.Duration)
	ObserveUser(outcome UserOutcome, profile ProfileKind)
	ObserveSkippedCandidates(mode string, n int)
	ObserveSimilarity(outcome string, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRun(string, time.Duration)        {}
func (nopObserver) ObserveUser(UserOutcome, ProfileKind)    {}
func (nopObserver) ObserveSkippedCandidates(string, int)    {}
func (nopObserver) ObserveSimilarity(string, time.Duration) {}

// Stores groups the persistence dependencies of the engine.
// Preferences may be nil.
type Stores struct {
	Catalog         CatalogStore
	Interactions    InteractionStore
	Preferences     PreferenceStore
	Recommendations RecommendationStore
}

// StoresFrom builds Stores from a single backend implementing every interface.
func StoresFrom(s Store) Stores {
	return Stores{
		Catalog:         s,
		Interactions:    s,
		Preferences:     s,
		Recommendations: s,
	}
}

// Engine computes per-user recommendations and track similarity.
// It is safe for concurrent use; only one batch run executes at a time.
type Engine struct {
	config *Config
	logger zerolog.Logger
	stores Stores

	profiles *ProfileBuilder
	observer Observer
	now      func() time.Time

	runMu     sync.Mutex
	statusMu  sync.RWMutex
	runStatus RunStatus
}

// NewEngine creates a new recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, stores Stores, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if stores.Catalog == nil || stores.Interactions == nil || stores.Recommendations == nil {
		return nil, fmt.Errorf("catalog, interaction and recommendation stores are required")
	}

	return &Engine{
		config:   cfg,
		logger:   logger.With().Str("component", "recommend").Logger(),
		stores:   stores,
		profiles: NewProfileBuilder(stores.Interactions, stores.Preferences),
		observer: nopObserver{},
		now:      time.Now,
	}, nil
}

// SetObserver installs a metrics observer. Call before the engine is used.
func (e *Engine) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	e.observer = o
}

// GetConfig returns a copy of the engine configuration.
func (e *Engine) GetConfig() *Config {
	return e.config.Clone()
}

// GetStatus returns the batch run status.
func (e *Engine) GetStatus() RunStatus {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()

	status := e.runStatus
	if status.LastRun != nil {
		last := *status.LastRun
		status.LastRun = &last
	}
	return status
}

// catalogSnapshot is the read-only catalog state shared by every user of a
// run.
type catalogSnapshot struct {
	// embeddings holds every track with a vector, approved or not.
	embeddings map[int64]AudioVector

	// audio and preference hold approved tracks with a vector, ascending id.
	audio      []Candidate[AudioSchema]
	preference []Candidate[PreferenceSchema]

	// malformed counts approved tracks that could not be encoded in the
	// preference schema.
	malformed int
}

func (e *Engine) loadCatalog(ctx context.Context) (*catalogSnapshot, error) {
	tracks, err := e.stores.Catalog.ListTracks(ctx, TrackFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}

	approved := ApprovedOnly()
	snap := &catalogSnapshot{embeddings: make(map[int64]AudioVector, len(tracks))}
	for i := range tracks {
		t := &tracks[i]
		if !t.HasEmbedding() {
			continue
		}
		snap.embeddings[t.ID] = *t.Embedding

		if !approved.Matches(t) {
			continue
		}
		snap.audio = append(snap.audio, Candidate[AudioSchema]{TrackID: t.ID, Vector: *t.Embedding})

		pv, err := BuildTrackPreferenceVector(t.Genre, *t.Embedding)
		if err != nil {
			snap.malformed++
			e.logger.Debug().Int64("track_id", t.ID).Err(err).Msg("track excluded from preference ranking")
			continue
		}
		snap.preference = append(snap.preference, Candidate[PreferenceSchema]{TrackID: t.ID, Vector: pv})
	}

	return snap, nil
}

func excludeLiked[S Schema](candidates []Candidate[S], liked map[int64]struct{}) []Candidate[S] {
	if len(liked) == 0 {
		return candidates
	}
	out := make([]Candidate[S], 0, len(candidates))
	for _, c := range candidates {
		if _, ok := liked[c.TrackID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// userResult is the outcome of recomputing one user.
type userResult struct {
	recs    []Recommendation
	profile ProfileKind
	outcome UserOutcome
	skipped int
}

// recomputeUser builds the profile, ranks the candidate set and atomically
// replaces the user's stored list.
func (e *Engine) recomputeUser(ctx context.Context, snap *catalogSnapshot, userID int64, computedAt time.Time) (userResult, error) {
	profile, err := e.profiles.Build(ctx, userID, snap.embeddings)
	if err != nil {
		return userResult{outcome: OutcomeFailed}, err
	}

	res := userResult{profile: profile.Kind}

	var ranked RankResult
	switch profile.Kind {
	case ProfileFromLikes:
		ranked = Rank(profile.Audio, excludeLiked(snap.audio, profile.Liked), e.config.Limits.TopN)
	case ProfileFromPreferences:
		ranked = Rank(profile.Preference, excludeLiked(snap.preference, profile.Liked), e.config.Limits.TopN)
	default:
		res.outcome = OutcomeNoProfile
	}

	res.skipped = len(ranked.Skipped)
	if res.skipped > 0 {
		e.logger.Warn().
			Int64("user_id", userID).
			Int("skipped", res.skipped).
			Msg("candidates skipped for dimension mismatch")
	}

	res.recs = NewRecommendations(userID, ranked.Tracks, computedAt)
	if err := e.stores.Recommendations.ReplaceRecommendations(ctx, userID, res.recs); err != nil {
		return userResult{outcome: OutcomeFailed, profile: profile.Kind}, fmt.Errorf("replace recommendations for user %d: %w", userID, err)
	}

	if res.outcome == "" {
		res.outcome = OutcomeRecommended
	}
	return res, nil
}

// RecomputeAll recomputes and persists recommendations for every user.
// Failures for individual users are logged and counted; the run continues.
// Returns ErrRunInProgress when another run holds the batch lock.
func (e *Engine) RecomputeAll(ctx context.Context) (RunSummary, error) {
	if !e.runMu.TryLock() {
		return RunSummary{}, ErrRunInProgress
	}
	defer e.runMu.Unlock()

	start := e.now()
	e.markRunning(start)
	e.logger.Info().Msg("starting recommendation run")

	summary := RunSummary{StartedAt: start}
	err := e.runBatch(ctx, &summary)

	summary.FinishedAt = e.now()
	summary.DurationMS = summary.FinishedAt.Sub(start).Milliseconds()
	status := "success"
	if err != nil {
		status = "error"
		summary.Error = err.Error()
	}
	e.observer.ObserveRun(status, summary.FinishedAt.Sub(start))
	e.finishRun(summary)

	if err != nil {
		e.logger.Error().Err(err).Msg("recommendation run failed")
		return summary, err
	}

	e.logger.Info().
		Int("users", summary.Users).
		Int("recommended", summary.Recommended).
		Int("no_profile", summary.NoProfile).
		Int("failed", summary.Failed).
		Int("candidates", summary.Candidates).
		Int64("duration_ms", summary.DurationMS).
		Msg("recommendation run complete")

	return summary, nil
}

func (e *Engine) runBatch(ctx context.Context, summary *RunSummary) error {
	runCtx, cancel := context.WithTimeout(ctx, e.config.Batch.Timeout)
	defer cancel()

	snap, err := e.loadCatalog(runCtx)
	if err != nil {
		return err
	}
	summary.CatalogSize = len(snap.embeddings)
	summary.Candidates = len(snap.audio)

	users, err := e.stores.Interactions.ListUserIDs(runCtx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	summary.Users = len(users)

	e.recomputeUsers(runCtx, snap, users, summary)

	if err := runCtx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

// recomputeUsers fans users out over a bounded worker pool.
func (e *Engine) recomputeUsers(ctx context.Context, snap *catalogSnapshot, users []int64, summary *RunSummary) {
	computedAt := e.now().UTC()

	var recommended, noProfile, preferenceBased, failed, skipped atomic.Int64

	jobs := make(chan int64)
	var wg sync.WaitGroup

	workers := e.config.Batch.Workers
	if workers > len(users) {
		workers = len(users)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				userCtx, cancel := context.WithTimeout(ctx, e.config.Batch.UserTimeout)
				res, err := e.recomputeUser(userCtx, snap, userID, computedAt)
				cancel()

				skipped.Add(int64(res.skipped))
				if res.skipped > 0 {
					e.observer.ObserveSkippedCandidates("user", res.skipped)
				}
				e.observer.ObserveUser(res.outcome, res.profile)

				switch res.outcome {
				case OutcomeRecommended:
					recommended.Add(1)
					if res.profile == ProfileFromPreferences {
						preferenceBased.Add(1)
					}
				case OutcomeNoProfile:
					noProfile.Add(1)
				default:
					failed.Add(1)
					e.logger.Error().Err(err).Int64("user_id", userID).Msg("user recomputation failed")
				}
			}
		}()
	}

feed:
	for _, userID := range users {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- userID:
		}
	}
	close(jobs)
	wg.Wait()

	summary.Recommended = int(recommended.Load())
	summary.NoProfile = int(noProfile.Load())
	summary.PreferenceBased = int(preferenceBased.Load())
	summary.Failed = int(failed.Load())
	summary.SkippedCandidates = int(skipped.Load())
}

// RecomputeUser recomputes and persists recommendations for one user and
// returns the stored rows. A user without a profile gets an empty list.
func (e *Engine) RecomputeUser(ctx context.Context, userID int64) ([]Recommendation, error) {
	userCtx, cancel := context.WithTimeout(ctx, e.config.Batch.UserTimeout)
	defer cancel()

	snap, err := e.loadCatalog(userCtx)
	if err != nil {
		return nil, err
	}

	res, err := e.recomputeUser(userCtx, snap, userID, e.now().UTC())
	e.observer.ObserveUser(res.outcome, res.profile)
	if res.skipped > 0 {
		e.observer.ObserveSkippedCandidates("user", res.skipped)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Int64("user_id", userID).
		Str("profile", res.profile.String()).
		Int("count", len(res.recs)).
		Msg("recomputed user recommendations")

	return res.recs, nil
}

// Recommendations returns the stored list for userID ordered by rank.
// limit <= 0 returns every row.
func (e *Engine) Recommendations(ctx context.Context, userID int64, limit int) ([]Recommendation, error) {
	recs, err := e.stores.Recommendations.GetRecommendations(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get recommendations for user %d: %w", userID, err)
	}
	if recs == nil {
		recs = []Recommendation{}
	}
	return recs, nil
}

// SimilarTracks returns the k tracks most similar to trackID, excluding the
// track itself. No approval filter is applied. k <= 0 selects the configured
// default and k is capped at the configured maximum. Returns ErrNotFound when
// trackID is unknown or has no embedding, and ErrDimensionMismatch when its
// stored embedding is malformed.
func (e *Engine) SimilarTracks(ctx context.Context, trackID int64, k int) ([]ScoredTrack, error) {
	start := time.Now()
	result, err := e.similarTracks(ctx, trackID, k)

	outcome := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	e.observer.ObserveSimilarity(outcome, time.Since(start))

	return result, err
}

func (e *Engine) similarTracks(ctx context.Context, trackID int64, k int) ([]ScoredTrack, error) {
	k = e.normalizeK(k)

	tracks, err := e.stores.Catalog.ListTracks(ctx, TrackFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}

	var query *AudioVector
	candidates := make([]Candidate[AudioSchema], 0, len(tracks))
	for i := range tracks {
		t := &tracks[i]
		if !t.HasEmbedding() {
			continue
		}
		if t.ID == trackID {
			query = t.Embedding
			continue
		}
		candidates = append(candidates, Candidate[AudioSchema]{TrackID: t.ID, Vector: *t.Embedding})
	}

	if query == nil {
		return nil, fmt.Errorf("track %d: %w", trackID, ErrNotFound)
	}
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("track %d embedding: %w", trackID, err)
	}

	ranked := Rank(*query, candidates, k)
	if n := len(ranked.Skipped); n > 0 {
		e.observer.ObserveSkippedCandidates("similar", n)
		e.logger.Warn().
			Int64("track_id", trackID).
			Int("skipped", n).
			Msg("candidates skipped for dimension mismatch")
	}

	if ranked.Tracks == nil {
		return []ScoredTrack{}, nil
	}
	return ranked.Tracks, nil
}

func (e *Engine) normalizeK(k int) int {
	if k <= 0 {
		return e.config.Limits.SimilarK
	}
	if k > e.config.Limits.MaxK {
		return e.config.Limits.MaxK
	}
	return k
}

func (e *Engine) markRunning(start time.Time) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	e.runStatus.Running = true
	e.runStatus.StartedAt = start
}

//nolint:gocritic // hugeParam: summary copied into status
func (e *Engine) finishRun(summary RunSummary) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	e.runStatus.Running = false
	e.runStatus.Runs++
	e.runStatus.LastRun = &summary
}
