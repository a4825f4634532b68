// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package api

import "errors"

// Common API errors
var (
	// ErrEventsDisabled indicates no event publisher is configured, so
	// approval signals and extraction requests cannot be accepted.
	ErrEventsDisabled = errors.New("event publishing is not enabled")

	// ErrExtractionDisabled indicates the extraction pipeline is not running.
	ErrExtractionDisabled = errors.New("feature extraction is not enabled")
)
