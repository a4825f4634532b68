// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/tomtom215/resonance/internal/recommend"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRecommendations(w io.Writer, asJSON bool, recs []recommend.Recommendation) error {
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	if asJSON {
		return writeJSON(w, recs)
	}
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "no recommendations")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTRACK\tSCORE\tCOMPUTED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%d\t%d\t%.4f\t%s\n", r.Rank, r.TrackID, r.Score, r.ComputedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func writeScored(w io.Writer, asJSON bool, tracks []recommend.ScoredTrack) error {
	if tracks == nil {
		tracks = []recommend.ScoredTrack{}
	}
	if asJSON {
		return writeJSON(w, tracks)
	}
	if len(tracks) == 0 {
		_, err := fmt.Fprintln(w, "no similar tracks")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRACK\tSIMILARITY")
	for _, t := range tracks {
		fmt.Fprintf(tw, "%d\t%.4f\n", t.TrackID, t.Score)
	}
	return tw.Flush()
}

func writeSummary(w io.Writer, asJSON bool, s *recommend.RunSummary) error {
	if asJSON {
		return writeJSON(w, s)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "users\t%d\n", s.Users)
	fmt.Fprintf(tw, "recommended\t%d\n", s.Recommended)
	fmt.Fprintf(tw, "preference based\t%d\n", s.PreferenceBased)
	fmt.Fprintf(tw, "no profile\t%d\n", s.NoProfile)
	fmt.Fprintf(tw, "failed\t%d\n", s.Failed)
	fmt.Fprintf(tw, "candidates\t%d\n", s.Candidates)
	fmt.Fprintf(tw, "duration\t%dms\n", s.DurationMS)
	return tw.Flush()
}
