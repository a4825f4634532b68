// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package extraction

import "errors"

var (
	// ErrAudioMissing means the audio for a track does not exist. The job is
	// skipped without error and the track stays without a vector.
	ErrAudioMissing = errors.New("audio file missing")

	// ErrPermanent marks a failure that retrying cannot fix, such as a 4xx
	// from the extractor. The job ends as failed.
	ErrPermanent = errors.New("permanent extraction failure")

	// ErrJobNotFound is returned by JobTracker.Get for unknown tracks.
	ErrJobNotFound = errors.New("extraction job not found")
)
