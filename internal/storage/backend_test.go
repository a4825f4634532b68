// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/recommend"
)

var testComputedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func embedding(values ...float64) *recommend.AudioVector {
	v := recommend.MustVector[recommend.AudioSchema](values...)
	return &v
}

func audio(danceability, energy float64) *recommend.AudioVector {
	v := recommend.BuildAudioVector(recommend.AudioFeatures{
		Danceability: danceability,
		Energy:       energy,
		Valence:      0.5,
		Tempo:        120,
		Mood:         recommend.MoodHappy,
	})
	return &v
}

func floatPtr(f float64) *float64 { return &f }

func recs(userID int64, trackIDs ...int64) []recommend.Recommendation {
	out := make([]recommend.Recommendation, len(trackIDs))
	for i, id := range trackIDs {
		out[i] = recommend.Recommendation{
			UserID:     userID,
			TrackID:    id,
			Rank:       i + 1,
			Score:      1 - float64(i)*0.1,
			ComputedAt: testComputedAt,
		}
	}
	return out
}

// backendFactory opens a fresh, empty backend.
type backendFactory func(t *testing.T) Backend

func openMemory(t *testing.T) Backend {
	t.Helper()
	b, err := NewMemory(MemoryOptions{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	return b
}

func openBadger(t *testing.T) Backend {
	t.Helper()
	b, err := NewBadger(BadgerOptions{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBadger() error = %v", err)
	}
	return b
}

func openSQLite(t *testing.T) Backend {
	t.Helper()
	b, err := NewSQLite(context.Background(), SQLiteOptions{
		DSN: "file:" + filepath.Join(t.TempDir(), "resonance.db"),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	return b
}

func TestMemoryBackend(t *testing.T) { runBackendSuite(t, openMemory) }
func TestBadgerBackend(t *testing.T) { runBackendSuite(t, openBadger) }
func TestSQLiteBackend(t *testing.T) { runBackendSuite(t, openSQLite) }

// runBackendSuite checks the behavior every Backend must share.
func runBackendSuite(t *testing.T, open backendFactory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, b Backend)
	}{
		{"ListTracksFiltersByStatus", testListTracksFiltersByStatus},
		{"UpsertKeepsEmbedding", testUpsertKeepsEmbedding},
		{"SaveFeatureVector", testSaveFeatureVector},
		{"SaveFeatureVectorRejectsWrongDimension", testSaveFeatureVectorRejectsWrongDimension},
		{"Likes", testLikes},
		{"Preferences", testPreferences},
		{"ReplaceRecommendations", testReplaceRecommendations},
		{"ReplaceRejectsInvalidSet", testReplaceRejectsInvalidSet},
		{"ReplaceIsAtomicUnderReads", testReplaceIsAtomicUnderReads},
		{"ListUserIDs", testListUserIDs},
		{"SignedIDsKeepNumericOrder", testSignedIDsKeepNumericOrder},
		{"EngineRoundTrip", testEngineRoundTrip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := open(t)
			t.Cleanup(func() {
				if err := b.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			})
			if err := b.Ping(context.Background()); err != nil {
				t.Fatalf("Ping() error = %v", err)
			}
			tt.fn(t, b)
		})
	}
}

func mustUpsert(t *testing.T, b Backend, tracks ...recommend.Track) {
	t.Helper()
	for i := range tracks {
		if err := b.UpsertTrack(context.Background(), tracks[i]); err != nil {
			t.Fatalf("UpsertTrack(%d) error = %v", tracks[i].ID, err)
		}
	}
}

func testListTracksFiltersByStatus(t *testing.T, b Backend) {
	ctx := context.Background()
	mustUpsert(t, b,
		recommend.Track{ID: 3, Status: recommend.StatusApproved, Genre: "rock", Embedding: audio(0.5, 0.5)},
		recommend.Track{ID: 1, Status: recommend.StatusApproved, Genre: "pop"},
		recommend.Track{ID: 2, Status: recommend.StatusPending},
		recommend.Track{ID: 4, Status: recommend.StatusRejected},
	)

	all, err := b.ListTracks(ctx, recommend.TrackFilter{})
	if err != nil {
		t.Fatalf("ListTracks() error = %v", err)
	}
	if got := trackIDs(all); !equalIDs(got, []int64{1, 2, 3, 4}) {
		t.Errorf("ListTracks(all) ids = %v, want [1 2 3 4]", got)
	}

	approved, err := b.ListTracks(ctx, recommend.ApprovedOnly())
	if err != nil {
		t.Fatalf("ListTracks(approved) error = %v", err)
	}
	if got := trackIDs(approved); !equalIDs(got, []int64{1, 3}) {
		t.Errorf("ListTracks(approved) ids = %v, want [1 3]", got)
	}

	for _, tr := range approved {
		switch tr.ID {
		case 1:
			if tr.HasEmbedding() {
				t.Error("track 1 should have no embedding")
			}
			if tr.Genre != "pop" {
				t.Errorf("track 1 genre = %q, want pop", tr.Genre)
			}
		case 3:
			if !tr.HasEmbedding() {
				t.Fatal("track 3 should have an embedding")
			}
			if !tr.Embedding.Equal(*audio(0.5, 0.5)) {
				t.Errorf("track 3 embedding = %v", tr.Embedding.Values())
			}
		}
	}
}

func testUpsertKeepsEmbedding(t *testing.T, b Backend) {
	ctx := context.Background()
	mustUpsert(t, b, recommend.Track{ID: 7, Status: recommend.StatusPending, Embedding: audio(0.2, 0.9)})
	mustUpsert(t, b, recommend.Track{ID: 7, Status: recommend.StatusApproved, Genre: "jazz"})

	tracks, err := b.ListTracks(ctx, recommend.ApprovedOnly())
	if err != nil {
		t.Fatalf("ListTracks() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("ListTracks() returned %d tracks, want 1", len(tracks))
	}
	if !tracks[0].HasEmbedding() || !tracks[0].Embedding.Equal(*audio(0.2, 0.9)) {
		t.Error("status update dropped the stored embedding")
	}

	if err := b.UpsertTrack(ctx, recommend.Track{ID: 8, Status: "bogus"}); err == nil {
		t.Error("UpsertTrack() with unknown status should fail")
	}
}

func testSaveFeatureVector(t *testing.T, b Backend) {
	ctx := context.Background()
	mustUpsert(t, b, recommend.Track{ID: 10, Status: recommend.StatusApproved, Genre: "edm"})

	if err := b.SaveFeatureVector(ctx, 10, *audio(0.9, 0.8)); err != nil {
		t.Fatalf("SaveFeatureVector() error = %v", err)
	}
	// Unknown tracks are created pending so the vector is not lost.
	if err := b.SaveFeatureVector(ctx, 11, *audio(0.1, 0.1)); err != nil {
		t.Fatalf("SaveFeatureVector(new) error = %v", err)
	}

	tracks, err := b.ListTracks(ctx, recommend.TrackFilter{})
	if err != nil {
		t.Fatalf("ListTracks() error = %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("ListTracks() returned %d tracks, want 2", len(tracks))
	}
	if tracks[0].Status != recommend.StatusApproved || tracks[0].Genre != "edm" {
		t.Errorf("track 10 = %+v, status and genre should be preserved", tracks[0])
	}
	if !tracks[0].HasEmbedding() || !tracks[0].Embedding.Equal(*audio(0.9, 0.8)) {
		t.Error("track 10 embedding not saved")
	}
	if tracks[1].Status != recommend.StatusPending {
		t.Errorf("track 11 status = %s, want pending", tracks[1].Status)
	}
}

func testSaveFeatureVectorRejectsWrongDimension(t *testing.T, b Backend) {
	err := b.SaveFeatureVector(context.Background(), 1, *embedding(1, 2, 3))
	if !errors.Is(err, recommend.ErrDimensionMismatch) {
		t.Errorf("SaveFeatureVector() error = %v, want ErrDimensionMismatch", err)
	}
}

func testLikes(t *testing.T, b Backend) {
	ctx := context.Background()
	for _, id := range []int64{30, 10, 20, 10} {
		if err := b.AddLike(ctx, 1, id); err != nil {
			t.Fatalf("AddLike() error = %v", err)
		}
	}

	got, err := b.LikedTrackIDs(ctx, 1)
	if err != nil {
		t.Fatalf("LikedTrackIDs() error = %v", err)
	}
	if !equalIDs(got, []int64{10, 20, 30}) {
		t.Errorf("LikedTrackIDs() = %v, want [10 20 30]", got)
	}

	none, err := b.LikedTrackIDs(ctx, 2)
	if err != nil {
		t.Fatalf("LikedTrackIDs(unknown) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("LikedTrackIDs(unknown) = %v, want empty", none)
	}
}

func testPreferences(t *testing.T, b Backend) {
	ctx := context.Background()

	p, err := b.DeclaredPreferences(ctx, 5)
	if err != nil {
		t.Fatalf("DeclaredPreferences(absent) error = %v", err)
	}
	if p != nil {
		t.Fatalf("DeclaredPreferences(absent) = %+v, want nil", p)
	}

	want := recommend.DeclaredPreferences{
		Genres:    []string{"rock", "jazz"},
		Moods:     []string{"calm"},
		AvgTempo:  floatPtr(0.6),
		AvgEnergy: floatPtr(0.4),
	}
	if err := b.SetPreferences(ctx, 5, &want); err != nil {
		t.Fatalf("SetPreferences() error = %v", err)
	}

	got, err := b.DeclaredPreferences(ctx, 5)
	if err != nil {
		t.Fatalf("DeclaredPreferences() error = %v", err)
	}
	if got == nil {
		t.Fatal("DeclaredPreferences() = nil after SetPreferences")
	}
	if len(got.Genres) != 2 || got.Genres[0] != "rock" || got.Genres[1] != "jazz" {
		t.Errorf("Genres = %v", got.Genres)
	}
	if len(got.Moods) != 1 || got.Moods[0] != "calm" {
		t.Errorf("Moods = %v", got.Moods)
	}
	if got.AvgTempo == nil || *got.AvgTempo != 0.6 {
		t.Errorf("AvgTempo = %v, want 0.6", got.AvgTempo)
	}
	if got.AvgDanceability != nil {
		t.Errorf("AvgDanceability = %v, want nil", *got.AvgDanceability)
	}

	if err := b.SetPreferences(ctx, 5, nil); err != nil {
		t.Fatalf("SetPreferences(nil) error = %v", err)
	}
	if p, _ := b.DeclaredPreferences(ctx, 5); p != nil {
		t.Errorf("DeclaredPreferences() after clear = %+v, want nil", p)
	}
}

// testReplaceIsAtomicUnderReads alternates a 3-row and a 7-row set while
// readers run. Every read must see exactly one complete set or nothing.
func testReplaceIsAtomicUnderReads(t *testing.T, b Backend) {
	ctx := context.Background()
	const userID = 50
	short := recs(userID, 101, 102, 103)
	long := recs(userID, 201, 202, 203, 204, 205, 206, 207)

	var done atomic.Bool
	var reads atomic.Int64
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !done.Load() {
				got, err := b.GetRecommendations(ctx, userID, 0)
				if err != nil {
					t.Errorf("GetRecommendations() error = %v", err)
					return
				}
				reads.Add(1)
				if err := checkWholeSet(got, short, long); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}

	for i := 0; i < 60; i++ {
		set := short
		if i%2 == 1 {
			set = long
		}
		if err := b.ReplaceRecommendations(ctx, userID, set); err != nil {
			t.Errorf("ReplaceRecommendations() iteration %d error = %v", i, err)
			break
		}
	}
	done.Store(true)
	wg.Wait()

	if reads.Load() == 0 {
		t.Error("no reads completed")
	}
	final, err := b.GetRecommendations(ctx, userID, 0)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if len(final) != len(long) {
		t.Errorf("final set has %d rows, want %d", len(final), len(long))
	}
}

// checkWholeSet reports an error unless got is empty or equals one of sets
// row for row.
func checkWholeSet(got []recommend.Recommendation, sets ...[]recommend.Recommendation) error {
	if len(got) == 0 {
		return nil
	}
	for _, set := range sets {
		if len(set) != len(got) {
			continue
		}
		match := true
		for i := range set {
			if got[i].TrackID != set[i].TrackID || got[i].Rank != i+1 {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	ids := make([]int64, len(got))
	for i, r := range got {
		ids[i] = r.TrackID
	}
	return fmt.Errorf("read a partial replacement: %v", ids)
}

func testSignedIDsKeepNumericOrder(t *testing.T, b Backend) {
	ctx := context.Background()
	ids := []int64{12, -3, 0, -250, 7}
	for _, id := range ids {
		mustUpsert(t, b, recommend.Track{ID: id, Status: recommend.StatusApproved, Embedding: audio(0.5, 0.5)})
		if err := b.AddLike(ctx, id, 12); err != nil {
			t.Fatalf("AddLike(%d) error = %v", id, err)
		}
	}
	want := []int64{-250, -3, 0, 7, 12}

	tracks, err := b.ListTracks(ctx, recommend.TrackFilter{})
	if err != nil {
		t.Fatalf("ListTracks() error = %v", err)
	}
	got := make([]int64, len(tracks))
	for i := range tracks {
		got[i] = tracks[i].ID
	}
	if !equalIDs(got, want) {
		t.Errorf("ListTracks() ids = %v, want %v", got, want)
	}

	users, err := b.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs() error = %v", err)
	}
	if !equalIDs(users, want) {
		t.Errorf("ListUserIDs() = %v, want %v", users, want)
	}

	liked, err := b.LikedTrackIDs(ctx, -250)
	if err != nil {
		t.Fatalf("LikedTrackIDs() error = %v", err)
	}
	if len(liked) != 1 || liked[0] != 12 {
		t.Errorf("LikedTrackIDs(-250) = %v, want [12]", liked)
	}
}

func testReplaceRecommendations(t *testing.T, b Backend) {
	ctx := context.Background()

	if err := b.ReplaceRecommendations(ctx, 1, recs(1, 5, 6, 7)); err != nil {
		t.Fatalf("ReplaceRecommendations() error = %v", err)
	}
	if err := b.ReplaceRecommendations(ctx, 2, recs(2, 9)); err != nil {
		t.Fatalf("ReplaceRecommendations(user 2) error = %v", err)
	}

	got, err := b.GetRecommendations(ctx, 1, 0)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("GetRecommendations() returned %d rows, want 3", len(got))
	}
	for i, r := range got {
		if r.Rank != i+1 || r.UserID != 1 {
			t.Errorf("row %d = %+v", i, r)
		}
		if !r.ComputedAt.Equal(testComputedAt) {
			t.Errorf("row %d computed_at = %v, want %v", i, r.ComputedAt, testComputedAt)
		}
	}

	limited, err := b.GetRecommendations(ctx, 1, 2)
	if err != nil {
		t.Fatalf("GetRecommendations(limit) error = %v", err)
	}
	if len(limited) != 2 || limited[0].TrackID != 5 || limited[1].TrackID != 6 {
		t.Errorf("GetRecommendations(limit 2) = %+v", limited)
	}

	// A shorter set fully replaces the old one.
	if err := b.ReplaceRecommendations(ctx, 1, recs(1, 8)); err != nil {
		t.Fatalf("ReplaceRecommendations(shorter) error = %v", err)
	}
	got, _ = b.GetRecommendations(ctx, 1, 0)
	if len(got) != 1 || got[0].TrackID != 8 {
		t.Errorf("after replace = %+v, want only track 8", got)
	}

	// An empty set clears the user.
	if err := b.ReplaceRecommendations(ctx, 1, nil); err != nil {
		t.Fatalf("ReplaceRecommendations(empty) error = %v", err)
	}
	got, err = b.GetRecommendations(ctx, 1, 0)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("after clear = %+v, want none", got)
	}

	// Other users are untouched.
	other, _ := b.GetRecommendations(ctx, 2, 0)
	if len(other) != 1 || other[0].TrackID != 9 {
		t.Errorf("user 2 = %+v, want track 9", other)
	}
}

func testReplaceRejectsInvalidSet(t *testing.T, b Backend) {
	ctx := context.Background()
	if err := b.ReplaceRecommendations(ctx, 1, recs(1, 5, 6)); err != nil {
		t.Fatalf("ReplaceRecommendations() error = %v", err)
	}

	bad := recs(1, 7, 8)
	bad[1].Rank = 3
	if err := b.ReplaceRecommendations(ctx, 1, bad); err == nil {
		t.Fatal("ReplaceRecommendations() with a rank gap should fail")
	}

	got, _ := b.GetRecommendations(ctx, 1, 0)
	if len(got) != 2 || got[0].TrackID != 5 {
		t.Errorf("rejected replace changed stored set: %+v", got)
	}
}

func testListUserIDs(t *testing.T, b Backend) {
	ctx := context.Background()
	_ = b.AddLike(ctx, 3, 1)
	_ = b.SetPreferences(ctx, 1, &recommend.DeclaredPreferences{Genres: []string{"pop"}})
	_ = b.ReplaceRecommendations(ctx, 2, recs(2, 1))
	_ = b.AddLike(ctx, 1, 2)

	got, err := b.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs() error = %v", err)
	}
	if !equalIDs(got, []int64{1, 2, 3}) {
		t.Errorf("ListUserIDs() = %v, want [1 2 3]", got)
	}
}

// testEngineRoundTrip runs a full batch against the backend.
func testEngineRoundTrip(t *testing.T, b Backend) {
	ctx := context.Background()
	mustUpsert(t, b,
		recommend.Track{ID: 1, Status: recommend.StatusApproved, Embedding: audio(0.9, 0.9)},
		recommend.Track{ID: 2, Status: recommend.StatusApproved, Embedding: audio(0.85, 0.9)},
		recommend.Track{ID: 3, Status: recommend.StatusApproved, Embedding: audio(0.1, 0.1)},
		recommend.Track{ID: 4, Status: recommend.StatusPending, Embedding: audio(0.9, 0.9)},
	)
	if err := b.AddLike(ctx, 100, 1); err != nil {
		t.Fatalf("AddLike() error = %v", err)
	}

	engine, err := recommend.NewEngine(recommend.DefaultConfig(), recommend.StoresFrom(b), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	summary, err := engine.RecomputeAll(ctx)
	if err != nil {
		t.Fatalf("RecomputeAll() error = %v", err)
	}
	if summary.Recommended != 1 {
		t.Errorf("Recommended = %d, want 1", summary.Recommended)
	}

	got, err := b.GetRecommendations(ctx, 100, 0)
	if err != nil {
		t.Fatalf("GetRecommendations() error = %v", err)
	}
	ids := make([]int64, len(got))
	for i, r := range got {
		ids[i] = r.TrackID
	}
	if !equalIDs(ids, []int64{2, 3}) {
		t.Errorf("recommended tracks = %v, want [2 3]", ids)
	}
}

func trackIDs(tracks []recommend.Track) []int64 {
	ids := make([]int64, len(tracks))
	for i := range tracks {
		ids[i] = tracks[i].ID
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
