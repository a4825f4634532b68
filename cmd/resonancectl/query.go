// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tomtom215/resonance/internal/recommend"
)

func NewRecomputeCmd(a *app) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute recommendations",
		Long:  `Recompute recommendations for every user, or for one user with --user.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd.Context(), func(engine *recommend.Engine) error {
				if userID > 0 {
					recs, err := engine.RecomputeUser(cmd.Context(), userID)
					if err != nil {
						return fmt.Errorf("recompute user %d: %w", userID, err)
					}
					return writeRecommendations(cmd.OutOrStdout(), a.asJSON, recs)
				}

				summary, err := engine.RecomputeAll(cmd.Context())
				if err != nil {
					return fmt.Errorf("recompute all: %w", err)
				}
				return writeSummary(cmd.OutOrStdout(), a.asJSON, &summary)
			})
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Recompute only this user")
	return cmd
}

func NewSimilarCmd(a *app) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "similar <track-id>",
		Short: "List the tracks whose audio is closest to a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := parseID("track id", args[0])
			if err != nil {
				return err
			}
			return a.withEngine(cmd.Context(), func(engine *recommend.Engine) error {
				similar, err := engine.SimilarTracks(cmd.Context(), trackID, k)
				if err != nil {
					return fmt.Errorf("similar tracks for %d: %w", trackID, err)
				}
				return writeScored(cmd.OutOrStdout(), a.asJSON, similar)
			})
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of tracks (default: recommend.similar_k)")
	return cmd
}

func NewRecommendationsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recommendations <user-id>",
		Short: "Show a user's stored recommendations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			return a.withEngine(cmd.Context(), func(engine *recommend.Engine) error {
				recs, err := engine.Recommendations(cmd.Context(), userID, limit)
				if err != nil {
					return err
				}
				return writeRecommendations(cmd.OutOrStdout(), a.asJSON, recs)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (0 for all)")
	return cmd
}

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", what, s)
	}
	return id, nil
}
