// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package recommend

import (
	"strings"
)

// AudioDimension is the number of components of an AudioVector.
const AudioDimension = 9

// Component positions within an AudioVector.
const (
	AudioDanceability = iota
	AudioEnergy
	AudioValence
	AudioTempo
	AudioSpeechiness
	AudioInstrumentalness
	AudioAcousticness
	AudioLiveness
	AudioMood
)

// Mood labels known to the audio schema.
const (
	MoodHappy     = "happy"
	MoodSad       = "sad"
	MoodEnergetic = "energetic"
	MoodCalm      = "calm"
	MoodRomantic  = "romantic"
	MoodAngry     = "angry"
	MoodChill     = "chill"
)

// UnknownMoodCode is the code assigned to any label outside the mood table.
const UnknownMoodCode = 0

var moodCodes = map[string]float64{
	MoodHappy:     1,
	MoodSad:       2,
	MoodEnergetic: 3,
	MoodCalm:      4,
	MoodRomantic:  5,
	MoodAngry:     6,
	MoodChill:     7,
}

// AudioFeatures are the engineered attributes reported by the feature
// extractor for a single track. No ranges are enforced.
type AudioFeatures struct {
	Danceability     float64 `json:"danceability" yaml:"danceability"`
	Energy           float64 `json:"energy" yaml:"energy"`
	Valence          float64 `json:"valence" yaml:"valence"`
	Tempo            float64 `json:"tempo" yaml:"tempo"`
	Speechiness      float64 `json:"speechiness" yaml:"speechiness"`
	Instrumentalness float64 `json:"instrumentalness" yaml:"instrumentalness"`
	Acousticness     float64 `json:"acousticness" yaml:"acousticness"`
	Liveness         float64 `json:"liveness" yaml:"liveness"`

	// Mood is a label from the mood table. Empty or unknown labels encode as
	// UnknownMoodCode.
	Mood string `json:"mood,omitempty" yaml:"mood,omitempty"`
}

// MoodCode maps a mood label to its numeric code. Matching ignores case and
// surrounding whitespace; unknown labels map to UnknownMoodCode.
func MoodCode(label string) float64 {
	if code, ok := moodCodes[strings.ToLower(strings.TrimSpace(label))]; ok {
		return code
	}
	return UnknownMoodCode
}

// MoodFromCode returns the label for a mood code.
func MoodFromCode(code float64) (string, bool) {
	for label, c := range moodCodes {
		if c == code {
			return label, true
		}
	}
	return "", false
}

// PredictMood derives a mood label from energy and valence when the extractor
// does not supply one. Rules are evaluated in order.
func PredictMood(energy, valence float64) string {
	switch {
	case energy > 0.6 && valence > 0.5:
		return MoodHappy
	case energy < 0.4 && valence < 0.4:
		return MoodSad
	case energy > 0.7:
		return MoodEnergetic
	case valence > 0.6:
		return MoodRomantic
	default:
		return MoodChill
	}
}

// BuildAudioVector encodes extracted attributes as an AudioVector.
// The result is a pure function of f.
func BuildAudioVector(f AudioFeatures) AudioVector {
	values := make([]float64, AudioDimension)
	values[AudioDanceability] = f.Danceability
	values[AudioEnergy] = f.Energy
	values[AudioValence] = f.Valence
	values[AudioTempo] = f.Tempo
	values[AudioSpeechiness] = f.Speechiness
	values[AudioInstrumentalness] = f.Instrumentalness
	values[AudioAcousticness] = f.Acousticness
	values[AudioLiveness] = f.Liveness
	values[AudioMood] = MoodCode(f.Mood)
	return AudioVector{values: values}
}

// FeaturesFromVector decodes an AudioVector back into attributes.
// The mood label is empty when the code is unknown.
func FeaturesFromVector(v AudioVector) (AudioFeatures, error) {
	if err := v.Validate(); err != nil {
		return AudioFeatures{}, err
	}
	mood, _ := MoodFromCode(v.At(AudioMood))
	return AudioFeatures{
		Danceability:     v.At(AudioDanceability),
		Energy:           v.At(AudioEnergy),
		Valence:          v.At(AudioValence),
		Tempo:            v.At(AudioTempo),
		Speechiness:      v.At(AudioSpeechiness),
		Instrumentalness: v.At(AudioInstrumentalness),
		Acousticness:     v.At(AudioAcousticness),
		Liveness:         v.At(AudioLiveness),
		Mood:             mood,
	}, nil
}
