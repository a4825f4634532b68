// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package recommend implements content-based music recommendation.
//
// # Vectors
//
// Tracks are described by fixed-length feature vectors. Two schemas exist and
// are distinct Go types, so vectors of different schemas cannot be compared:
//
//   - AudioVector: danceability, energy, valence, tempo, speechiness,
//     instrumentalness, acousticness, liveness and a mood code (9 components)
//   - PreferenceVector: genre one-hot (10), mood one-hot (8), then average
//     tempo, danceability, energy and valence (22 components)
//
// # Modes
//
// User recommendation mode averages the embeddings of a user's liked tracks
// into a profile (falling back to declared preferences), ranks every approved
// track the user has not liked by cosine similarity and atomically replaces
// the user's stored top-N list. It runs as a batch over all users.
//
// Track similarity mode ranks every other track with an embedding against a
// query track, regardless of approval status.
//
// # Usage
//
//	engine, err := recommend.NewEngine(recommend.DefaultConfig(), recommend.StoresFrom(store), logger)
//	if err != nil {
//	    return err
//	}
//
//	summary, err := engine.RecomputeAll(ctx)
//	similar, err := engine.SimilarTracks(ctx, trackID, 5)
//
// # Thread Safety
//
// The engine is safe for concurrent use. Only one batch run executes at a
// time; a concurrent request fails fast with ErrRunInProgress. Per-user
// recomputation and similarity queries may run alongside a batch.
package recommend
