// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/recommend"
)

// MemoryOptions configures the in-memory backend.
type MemoryOptions struct {
	// SnapshotPath, when set, is loaded on open and written on Close.
	SnapshotPath string
}

// Memory is an in-process backend. Recommendation replacement swaps the
// user's slice under the write lock, so readers never see a partial set.
type Memory struct {
	mu          sync.RWMutex
	tracks      map[int64]memoryTrack
	likes       map[int64]map[int64]struct{}
	preferences map[int64]recommend.DeclaredPreferences
	recs        map[int64][]recommend.Recommendation

	snapshot *SnapshotFile
	logger   zerolog.Logger
}

type memoryTrack struct {
	status    recommend.ApprovalStatus
	genre     string
	embedding []float64
}

// NewMemory creates an empty in-memory backend, restoring the snapshot file
// when one is configured and present.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewMemory(opts MemoryOptions, logger zerolog.Logger) (*Memory, error) {
	m := &Memory{
		tracks:      make(map[int64]memoryTrack),
		likes:       make(map[int64]map[int64]struct{}),
		preferences: make(map[int64]recommend.DeclaredPreferences),
		recs:        make(map[int64][]recommend.Recommendation),
		logger:      logger.With().Str("component", "storage").Str("backend", BackendMemory).Logger(),
	}

	if opts.SnapshotPath == "" {
		return m, nil
	}

	m.snapshot = NewSnapshotFile(opts.SnapshotPath)
	state, meta, err := m.snapshot.Load(context.Background())
	switch {
	case err == nil:
		m.Restore(state)
		m.logger.Info().
			Str("path", opts.SnapshotPath).
			Int("tracks", meta.Tracks).
			Int("users", meta.Users).
			Msg("restored memory snapshot")
	case IsSnapshotMissing(err):
		m.logger.Info().Str("path", opts.SnapshotPath).Msg("no memory snapshot found, starting empty")
	default:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	return m, nil
}

// Name implements Backend.
func (m *Memory) Name() string { return BackendMemory }

// Ping implements Backend.
func (m *Memory) Ping(context.Context) error { return nil }

// Close writes the snapshot file when one is configured.
func (m *Memory) Close() error {
	if m.snapshot == nil {
		return nil
	}
	if _, err := m.snapshot.Save(context.Background(), m.State()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// ListTracks implements recommend.CatalogStore.
func (m *Memory) ListTracks(_ context.Context, filter recommend.TrackFilter) ([]recommend.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]recommend.Track, 0, len(m.tracks))
	for id, mt := range m.tracks {
		t := recommend.Track{
			ID:        id,
			Status:    mt.status,
			Genre:     mt.genre,
			Embedding: decodeEmbedding(mt.embedding),
		}
		if filter.Matches(&t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LikedTrackIDs implements recommend.InteractionStore.
func (m *Memory) LikedTrackIDs(_ context.Context, userID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedIDs(m.likes[userID]), nil
}

// ListUserIDs implements recommend.InteractionStore.
func (m *Memory) ListUserIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make(map[int64]struct{}, len(m.likes)+len(m.preferences))
	for id := range m.likes {
		users[id] = struct{}{}
	}
	for id := range m.preferences {
		users[id] = struct{}{}
	}
	for id := range m.recs {
		users[id] = struct{}{}
	}
	return sortedIDs(users), nil
}

// DeclaredPreferences implements recommend.PreferenceStore.
func (m *Memory) DeclaredPreferences(_ context.Context, userID int64) (*recommend.DeclaredPreferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.preferences[userID]
	if !ok {
		return nil, nil
	}
	cp := copyPreferences(p)
	return &cp, nil
}

// SaveFeatureVector implements recommend.VectorWriter.
func (m *Memory) SaveFeatureVector(_ context.Context, trackID int64, v recommend.AudioVector) error {
	if err := v.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.tracks[trackID]
	if !ok {
		mt = memoryTrack{status: recommend.StatusPending}
	}
	mt.embedding = v.Values()
	m.tracks[trackID] = mt
	return nil
}

// ReplaceRecommendations implements recommend.RecommendationStore.
func (m *Memory) ReplaceRecommendations(_ context.Context, userID int64, recs []recommend.Recommendation) error {
	if err := recommend.ValidateRecommendations(userID, recs); err != nil {
		return fmt.Errorf("invalid recommendation set: %w", err)
	}

	next := append([]recommend.Recommendation(nil), recs...)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(next) == 0 {
		delete(m.recs, userID)
		return nil
	}
	m.recs[userID] = next
	return nil
}

// GetRecommendations implements recommend.RecommendationStore.
func (m *Memory) GetRecommendations(_ context.Context, userID int64, limit int) ([]recommend.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.recs[userID]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return append([]recommend.Recommendation{}, recs...), nil
}

// UpsertTrack implements Seeder.
//
//nolint:gocritic // hugeParam: track passed by value for interface symmetry
func (m *Memory) UpsertTrack(_ context.Context, t recommend.Track) error {
	if err := validateStatus(t.Status); err != nil {
		return err
	}
	if t.Embedding != nil {
		if err := t.Embedding.Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mt := m.tracks[t.ID]
	mt.status = t.Status
	mt.genre = t.Genre
	if t.Embedding != nil {
		mt.embedding = t.Embedding.Values()
	}
	m.tracks[t.ID] = mt
	return nil
}

// AddLike implements Seeder.
func (m *Memory) AddLike(_ context.Context, userID, trackID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.likes[userID]
	if !ok {
		set = make(map[int64]struct{})
		m.likes[userID] = set
	}
	set[trackID] = struct{}{}
	return nil
}

// SetPreferences implements Seeder.
func (m *Memory) SetPreferences(_ context.Context, userID int64, p *recommend.DeclaredPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p == nil {
		delete(m.preferences, userID)
		return nil
	}
	m.preferences[userID] = copyPreferences(*p)
	return nil
}

// State returns a deep copy of the backend contents.
func (m *Memory) State() *MemoryState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := &MemoryState{
		Tracks:          make([]TrackRecord, 0, len(m.tracks)),
		Likes:           make(map[int64][]int64, len(m.likes)),
		Preferences:     make(map[int64]recommend.DeclaredPreferences, len(m.preferences)),
		Recommendations: make(map[int64][]recommend.Recommendation, len(m.recs)),
	}
	for id, mt := range m.tracks {
		state.Tracks = append(state.Tracks, TrackRecord{
			ID:        id,
			Status:    string(mt.status),
			Genre:     mt.genre,
			Embedding: append([]float64(nil), mt.embedding...),
		})
	}
	sort.Slice(state.Tracks, func(i, j int) bool { return state.Tracks[i].ID < state.Tracks[j].ID })
	for id, set := range m.likes {
		state.Likes[id] = sortedIDs(set)
	}
	for id, p := range m.preferences {
		state.Preferences[id] = copyPreferences(p)
	}
	for id, recs := range m.recs {
		state.Recommendations[id] = append([]recommend.Recommendation(nil), recs...)
	}
	return state
}

// Restore replaces the backend contents with state.
func (m *Memory) Restore(state *MemoryState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tracks = make(map[int64]memoryTrack, len(state.Tracks))
	for _, tr := range state.Tracks {
		m.tracks[tr.ID] = memoryTrack{
			status:    recommend.ApprovalStatus(tr.Status),
			genre:     tr.Genre,
			embedding: append([]float64(nil), tr.Embedding...),
		}
	}
	m.likes = make(map[int64]map[int64]struct{}, len(state.Likes))
	for user, ids := range state.Likes {
		set := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		m.likes[user] = set
	}
	m.preferences = make(map[int64]recommend.DeclaredPreferences, len(state.Preferences))
	for user, p := range state.Preferences {
		m.preferences[user] = copyPreferences(p)
	}
	m.recs = make(map[int64][]recommend.Recommendation, len(state.Recommendations))
	for user, recs := range state.Recommendations {
		m.recs[user] = append([]recommend.Recommendation(nil), recs...)
	}
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

//nolint:gocritic // hugeParam: value copy is the point
func copyPreferences(p recommend.DeclaredPreferences) recommend.DeclaredPreferences {
	return recommend.DeclaredPreferences{
		Genres:          append([]string(nil), p.Genres...),
		Moods:           append([]string(nil), p.Moods...),
		AvgTempo:        copyFloat(p.AvgTempo),
		AvgDanceability: copyFloat(p.AvgDanceability),
		AvgEnergy:       copyFloat(p.AvgEnergy),
		AvgValence:      copyFloat(p.AvgValence),
	}
}

var _ Backend = (*Memory)(nil)
