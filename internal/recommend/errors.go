// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package recommend

import "errors"

var (
	// ErrNotFound is returned by direct lookups (similar-track queries) when the
	// track is unknown or has no embedding.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch is returned when two vectors of different length are
	// compared, or when a vector does not match its schema dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidVector is returned for empty vectors or non-finite components.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrRunInProgress is returned when a batch recomputation is requested while
	// another one is still running.
	ErrRunInProgress = errors.New("recommendation run already in progress")
)
