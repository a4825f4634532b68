// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package recommend

import (
	"context"
	"sort"
	"sync"
)

// mockStore implements Store for testing.
type mockStore struct {
	mu          sync.Mutex
	tracks      map[int64]Track
	likes       map[int64][]int64
	preferences map[int64]*DeclaredPreferences
	recs        map[int64][]Recommendation

	listErr      error
	likesErr     map[int64]error
	replaceErr   map[int64]error
	replaceCalls int

	// replaceGate blocks ReplaceRecommendations until closed when non-nil.
	replaceGate chan struct{}
}

func newMockStore() *mockStore {
	return &mockStore{
		tracks:      make(map[int64]Track),
		likes:       make(map[int64][]int64),
		preferences: make(map[int64]*DeclaredPreferences),
		recs:        make(map[int64][]Recommendation),
		likesErr:    make(map[int64]error),
		replaceErr:  make(map[int64]error),
	}
}

func (m *mockStore) addTrack(id int64, status ApprovalStatus, genre string, embedding *AudioVector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks[id] = Track{ID: id, Status: status, Genre: genre, Embedding: embedding}
}

func (m *mockStore) like(userID int64, trackIDs ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.likes[userID] = append(m.likes[userID], trackIDs...)
}

func (m *mockStore) ListTracks(_ context.Context, filter TrackFilter) ([]Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Track, 0, len(m.tracks))
	for _, t := range m.tracks {
		t := t
		if filter.Matches(&t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) LikedTrackIDs(_ context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.likesErr[userID]; err != nil {
		return nil, err
	}
	return append([]int64(nil), m.likes[userID]...), nil
}

func (m *mockStore) ListUserIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]struct{})
	for id := range m.likes {
		seen[id] = struct{}{}
	}
	for id := range m.preferences {
		seen[id] = struct{}{}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *mockStore) DeclaredPreferences(_ context.Context, userID int64) (*DeclaredPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preferences[userID], nil
}

func (m *mockStore) SaveFeatureVector(_ context.Context, trackID int64, v AudioVector) error {
	if err := v.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tracks[trackID]
	t.ID = trackID
	t.Embedding = &v
	m.tracks[trackID] = t
	return nil
}

func (m *mockStore) ReplaceRecommendations(_ context.Context, userID int64, recs []Recommendation) error {
	if m.replaceGate != nil {
		<-m.replaceGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if err := m.replaceErr[userID]; err != nil {
		return err
	}
	m.recs[userID] = append([]Recommendation(nil), recs...)
	return nil
}

func (m *mockStore) GetRecommendations(_ context.Context, userID int64, limit int) ([]Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.recs[userID]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return append([]Recommendation(nil), recs...), nil
}

func (m *mockStore) getReplaceCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceCalls
}

func (m *mockStore) storedRecs(userID int64) ([]Recommendation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs, ok := m.recs[userID]
	return recs, ok
}

var _ Store = (*mockStore)(nil)
