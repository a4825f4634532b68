// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package recommend

import (
	"fmt"
	"strings"
)

// PreferenceGenres are the genre slots of a PreferenceVector, in order.
var PreferenceGenres = [...]string{
	"Pop", "Rock", "Hip-Hop", "Electronic", "Jazz",
	"Classical", "Metal", "Country", "Reggae", "Blues",
}

// PreferenceMoods are the mood slots of a PreferenceVector, in order.
var PreferenceMoods = [...]string{
	"Happy", "Sad", "Energetic", "Calm", "Angry", "Romantic", "Melancholic", "Chill",
}

const preferenceNumerics = 4

// PreferenceDimension is the number of components of a PreferenceVector.
const PreferenceDimension = len(PreferenceGenres) + len(PreferenceMoods) + preferenceNumerics

// Offsets of the numeric tail of a PreferenceVector.
const (
	prefNumericBase     = len(PreferenceGenres) + len(PreferenceMoods)
	PrefAvgTempo        = prefNumericBase
	PrefAvgDanceability = prefNumericBase + 1
	PrefAvgEnergy       = prefNumericBase + 2
	PrefAvgValence      = prefNumericBase + 3
)

// DeclaredPreferences is a user's self-declared taste.
// Nil averages are encoded as zero.
type DeclaredPreferences struct {
	Genres          []string `json:"genres,omitempty" yaml:"genres,omitempty"`
	Moods           []string `json:"moods,omitempty" yaml:"moods,omitempty"`
	AvgTempo        *float64 `json:"avg_tempo,omitempty" yaml:"avg_tempo,omitempty"`
	AvgDanceability *float64 `json:"avg_danceability,omitempty" yaml:"avg_danceability,omitempty"`
	AvgEnergy       *float64 `json:"avg_energy,omitempty" yaml:"avg_energy,omitempty"`
	AvgValence      *float64 `json:"avg_valence,omitempty" yaml:"avg_valence,omitempty"`
}

// IsEmpty reports whether nothing was declared.
func (p *DeclaredPreferences) IsEmpty() bool {
	if p == nil {
		return true
	}
	return len(p.Genres) == 0 && len(p.Moods) == 0 &&
		p.AvgTempo == nil && p.AvgDanceability == nil &&
		p.AvgEnergy == nil && p.AvgValence == nil
}

func slotIndex(labels []string, label string) int {
	label = strings.TrimSpace(label)
	for i, l := range labels {
		if strings.EqualFold(l, label) {
			return i
		}
	}
	return -1
}

func genreSlot(genre string) int {
	return slotIndex(PreferenceGenres[:], genre)
}

func moodSlot(mood string) int {
	i := slotIndex(PreferenceMoods[:], mood)
	if i < 0 {
		return -1
	}
	return len(PreferenceGenres) + i
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// BuildPreferenceVector encodes declared preferences. Unknown genre and mood
// labels are ignored.
func BuildPreferenceVector(p DeclaredPreferences) PreferenceVector {
	values := make([]float64, PreferenceDimension)
	for _, g := range p.Genres {
		if i := genreSlot(g); i >= 0 {
			values[i] = 1
		}
	}
	for _, m := range p.Moods {
		if i := moodSlot(m); i >= 0 {
			values[i] = 1
		}
	}
	values[PrefAvgTempo] = deref(p.AvgTempo)
	values[PrefAvgDanceability] = deref(p.AvgDanceability)
	values[PrefAvgEnergy] = deref(p.AvgEnergy)
	values[PrefAvgValence] = deref(p.AvgValence)
	return PreferenceVector{values: values}
}

// BuildTrackPreferenceVector encodes a track in the preference schema so it
// can be compared with a declared-preference profile. The mood slot is
// recovered from the embedding's mood code and the numeric tail is copied from
// the embedding's tempo, danceability, energy and valence.
func BuildTrackPreferenceVector(genre string, embedding AudioVector) (PreferenceVector, error) {
	if err := embedding.Validate(); err != nil {
		return PreferenceVector{}, fmt.Errorf("track preference vector: %w", err)
	}

	values := make([]float64, PreferenceDimension)
	if i := genreSlot(genre); i >= 0 {
		values[i] = 1
	}
	if mood, ok := MoodFromCode(embedding.At(AudioMood)); ok {
		if i := moodSlot(mood); i >= 0 {
			values[i] = 1
		}
	}
	values[PrefAvgTempo] = embedding.At(AudioTempo)
	values[PrefAvgDanceability] = embedding.At(AudioDanceability)
	values[PrefAvgEnergy] = embedding.At(AudioEnergy)
	values[PrefAvgValence] = embedding.At(AudioValence)
	return PreferenceVector{values: values}, nil
}
