// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package recommend

import (
	"context"
	"fmt"
)

// ProfileKind tells which schema a profile was built in.
type ProfileKind int

const (
	// ProfileAbsent means neither liked embeddings nor declared preferences
	// were available. It is not an error.
	ProfileAbsent ProfileKind = iota

	// ProfileFromLikes is the mean of the user's liked embeddings.
	ProfileFromLikes

	// ProfileFromPreferences is the encoding of declared preferences.
	ProfileFromPreferences
)

// String implements fmt.Stringer.
func (k ProfileKind) String() string {
	switch k {
	case ProfileAbsent:
		return "absent"
	case ProfileFromLikes:
		return "likes"
	case ProfileFromPreferences:
		return "preferences"
	default:
		return "unknown"
	}
}

// Profile is a user's taste vector for one run. Only the field matching Kind
// is populated.
type Profile struct {
	Kind       ProfileKind
	Audio      AudioVector
	Preference PreferenceVector

	// Liked holds every liked track id, with or without an embedding.
	// Candidates in this set are never recommended.
	Liked map[int64]struct{}

	// UsedLikes is the number of liked embeddings averaged into Audio.
	UsedLikes int

	// SkippedLikes counts liked embeddings left out for a dimension mismatch.
	SkippedLikes int
}

// ProfileBuilder assembles user profiles from the interaction and preference
// stores.
type ProfileBuilder struct {
	interactions InteractionStore
	preferences  PreferenceStore
}

// NewProfileBuilder creates a ProfileBuilder. preferences may be nil, which
// disables the declared-preference fallback.
func NewProfileBuilder(interactions InteractionStore, preferences PreferenceStore) *ProfileBuilder {
	return &ProfileBuilder{
		interactions: interactions,
		preferences:  preferences,
	}
}

// Build computes the profile for userID. embeddings maps every track that has
// a vector to that vector; liked tracks missing from it are ignored.
func (b *ProfileBuilder) Build(ctx context.Context, userID int64, embeddings map[int64]AudioVector) (Profile, error) {
	liked, err := b.interactions.LikedTrackIDs(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("liked tracks for user %d: %w", userID, err)
	}

	profile := Profile{Liked: make(map[int64]struct{}, len(liked))}
	vectors := make([]AudioVector, 0, len(liked))
	for _, id := range liked {
		if _, dup := profile.Liked[id]; dup {
			continue
		}
		profile.Liked[id] = struct{}{}
		if v, ok := embeddings[id]; ok && !v.IsEmpty() {
			vectors = append(vectors, v)
		}
	}

	if mean, skipped, ok := Mean(vectors); ok {
		profile.Kind = ProfileFromLikes
		profile.Audio = mean
		profile.SkippedLikes = skipped
		profile.UsedLikes = len(vectors) - skipped
		return profile, nil
	}

	if b.preferences == nil {
		return profile, nil
	}

	prefs, err := b.preferences.DeclaredPreferences(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("declared preferences for user %d: %w", userID, err)
	}
	if prefs.IsEmpty() {
		return profile, nil
	}

	profile.Kind = ProfileFromPreferences
	profile.Preference = BuildPreferenceVector(*prefs)
	return profile, nil
}
