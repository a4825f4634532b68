// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tomtom215/resonance/internal/config"
	"github.com/tomtom215/resonance/internal/recommend"
	"github.com/tomtom215/resonance/internal/storage"
)

// fixture is the seed file layout:
//
//	tracks:
//	  - id: 1
//	    status: approved
//	    genre: pop
//	    features: {danceability: 0.5, energy: 0.9, valence: 0.9, tempo: 120, mood: happy}
//	likes:
//	  - user: 42
//	    tracks: [1]
//	preferences:
//	  - user: 7
//	    genres: [pop]
//	    avg_energy: 0.8
type fixture struct {
	Tracks      []fixtureTrack      `yaml:"tracks"`
	Likes       []fixtureLikes      `yaml:"likes"`
	Preferences []fixturePreference `yaml:"preferences"`
}

type fixtureTrack struct {
	ID     int64  `yaml:"id"`
	Status string `yaml:"status"`
	Genre  string `yaml:"genre"`

	// Features are optional; tracks without them have no embedding.
	Features *recommend.AudioFeatures `yaml:"features"`
}

type fixtureLikes struct {
	User   int64   `yaml:"user"`
	Tracks []int64 `yaml:"tracks"`
}

type fixturePreference struct {
	User int64 `yaml:"user"`

	recommend.DeclaredPreferences `yaml:",inline"`
}

type seedResult struct {
	Tracks      int `json:"tracks"`
	Embeddings  int `json:"embeddings"`
	Likes       int `json:"likes"`
	Preferences int `json:"preferences"`
}

func parseFixture(r io.Reader) (*fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f fixture
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *fixture) validate() error {
	var errs []error
	for i, t := range f.Tracks {
		if t.ID <= 0 {
			errs = append(errs, fmt.Errorf("tracks[%d]: id must be positive", i))
		}
		if t.Status != "" {
			if _, err := recommend.ParseApprovalStatus(t.Status); err != nil {
				errs = append(errs, fmt.Errorf("tracks[%d]: %w", i, err))
			}
		}
	}
	for i, l := range f.Likes {
		if l.User <= 0 {
			errs = append(errs, fmt.Errorf("likes[%d]: user must be positive", i))
		}
	}
	for i, p := range f.Preferences {
		if p.User <= 0 {
			errs = append(errs, fmt.Errorf("preferences[%d]: user must be positive", i))
		}
	}
	return errors.Join(errs...)
}

// apply writes the fixture. Tracks go first so likes can reference them.
func (f *fixture) apply(ctx context.Context, s storage.Seeder) (seedResult, error) {
	var res seedResult

	for _, ft := range f.Tracks {
		track := recommend.Track{ID: ft.ID, Status: recommend.StatusPending, Genre: ft.Genre}
		if ft.Status != "" {
			track.Status = recommend.ApprovalStatus(ft.Status)
		}
		if ft.Features != nil {
			v := recommend.BuildAudioVector(*ft.Features)
			track.Embedding = &v
			res.Embeddings++
		}
		if err := s.UpsertTrack(ctx, track); err != nil {
			return res, fmt.Errorf("track %d: %w", ft.ID, err)
		}
		res.Tracks++
	}

	for _, l := range f.Likes {
		for _, trackID := range l.Tracks {
			if err := s.AddLike(ctx, l.User, trackID); err != nil {
				return res, fmt.Errorf("like %d->%d: %w", l.User, trackID, err)
			}
			res.Likes++
		}
	}

	for _, p := range f.Preferences {
		prefs := p.DeclaredPreferences
		if err := s.SetPreferences(ctx, p.User, &prefs); err != nil {
			return res, fmt.Errorf("preferences for %d: %w", p.User, err)
		}
		res.Preferences++
	}

	return res, nil
}

func NewSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load tracks, likes and preferences from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open fixture: %w", err)
			}
			defer func() { _ = file.Close() }()

			f, err := parseFixture(file)
			if err != nil {
				return err
			}

			return a.withStore(cmd.Context(), func(_ *config.Config, store storage.Backend) error {
				res, err := f.apply(cmd.Context(), store)
				if err != nil {
					return err
				}
				if a.asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d tracks (%d with features), %d likes, %d preference sets\n",
					res.Tracks, res.Embeddings, res.Likes, res.Preferences)
				return err
			})
		},
	}
}
