// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package recommend

import (
	"fmt"
	"sort"
)

// Epsilon is added to the cosine denominator so zero vectors score 0
// instead of dividing by zero.
const Epsilon = 1e-10

// Candidate is a track considered by the ranker.
type Candidate[S Schema] struct {
	TrackID int64
	Vector  Vector[S]
}

// RankResult is the output of Rank.
type RankResult struct {
	// Tracks is ordered by descending score, ties by ascending track id.
	Tracks []ScoredTrack

	// Skipped lists candidates whose dimension did not match the query.
	Skipped []int64

	// Scored is the number of candidates that produced a score before
	// truncation.
	Scored int
}

// Cosine returns dot(a,b) / (|a|*|b| + Epsilon).
func Cosine[S Schema](a, b Vector[S]) (float64, error) {
	if a.Len() != b.Len() {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, a.Len(), b.Len())
	}
	return cosineWithNorm(a, a.Norm(), b), nil
}

func cosineWithNorm[S Schema](query Vector[S], queryNorm float64, c Vector[S]) float64 {
	var dot float64
	for i, x := range query.values {
		dot += x * c.values[i]
	}
	return dot / (queryNorm*c.Norm() + Epsilon)
}

// Rank scores every candidate against query and returns the best k.
// k <= 0 keeps every scored candidate. Candidates with a mismatched dimension
// are skipped and reported rather than failing the whole ranking.
func Rank[S Schema](query Vector[S], candidates []Candidate[S], k int) RankResult {
	var result RankResult
	if len(candidates) == 0 {
		return result
	}

	type scored struct {
		track ScoredTrack
		pos   int
	}

	queryNorm := query.Norm()
	scoredItems := make([]scored, 0, len(candidates))
	for pos, c := range candidates {
		if c.Vector.Len() != query.Len() {
			result.Skipped = append(result.Skipped, c.TrackID)
			continue
		}
		scoredItems = append(scoredItems, scored{
			track: ScoredTrack{TrackID: c.TrackID, Score: cosineWithNorm(query, queryNorm, c.Vector)},
			pos:   pos,
		})
	}

	sort.SliceStable(scoredItems, func(i, j int) bool {
		a, b := scoredItems[i], scoredItems[j]
		if a.track.Score != b.track.Score {
			return a.track.Score > b.track.Score
		}
		if a.track.TrackID != b.track.TrackID {
			return a.track.TrackID < b.track.TrackID
		}
		return a.pos < b.pos
	})

	result.Scored = len(scoredItems)
	if k > 0 && len(scoredItems) > k {
		scoredItems = scoredItems[:k]
	}

	result.Tracks = make([]ScoredTrack, len(scoredItems))
	for i, s := range scoredItems {
		result.Tracks[i] = s.track
	}
	return result
}
