// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamOptions sizes the RESONANCE stream.
type StreamOptions struct {
	MaxAge          time.Duration
	DuplicateWindow time.Duration
	Storage         jetstream.StorageType
}

// DefaultStreamOptions keeps a week of events on disk.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		MaxAge:          7 * 24 * time.Hour,
		DuplicateWindow: 2 * time.Minute,
		Storage:         jetstream.FileStorage,
	}
}

// EnsureStream creates or updates the RESONANCE stream covering resonance.>.
func EnsureStream(ctx context.Context, url string, opts StreamOptions) error {
	nc, err := natsgo.Connect(url, natsgo.Name("resonance-stream-init"))
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	cfg := jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{"resonance.>"},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     opts.MaxAge,
		Duplicates: opts.DuplicateWindow,
		Storage:    opts.Storage,
		Discard:    jetstream.DiscardOld,
	}

	_, err = js.Stream(ctx, StreamName)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("update stream %s: %w", StreamName, err)
		}
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", StreamName, err)
		}
	default:
		return fmt.Errorf("check stream %s: %w", StreamName, err)
	}
	return nil
}
