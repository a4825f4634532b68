// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestEmbeddedNATSRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}

	srv, err := StartEmbeddedServer(ServerOptions{Port: -1, StoreDir: t.TempDir()})
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	if !srv.Running() {
		t.Fatal("server should be running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := DefaultStreamOptions()
	if err := EnsureStream(ctx, srv.ClientURL(), opts); err != nil {
		t.Fatalf("ensure stream: %v", err)
	}
	// Second call updates the existing stream.
	if err := EnsureStream(ctx, srv.ClientURL(), opts); err != nil {
		t.Fatalf("ensure stream again: %v", err)
	}

	bus, err := NewBus(Options{Backend: BackendNATS, NATSURL: srv.ClientURL(), CloseTimeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })

	r := newTestRouter(t, bus, 1)
	got := make(chan TrackApproved, 1)
	r.AddConsumerHandler("approved", TopicTrackApproved, bus.Subscriber, func(msg *message.Message) error {
		e, err := DecodeTrackApproved(msg)
		if err != nil {
			return err
		}
		got <- e
		return nil
	})
	startRouter(t, r)

	if err := NewPublisher(bus.Publisher).TrackApproved(ctx, 99); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case e := <-got:
		if e.TrackID != 99 {
			t.Errorf("track = %d, want 99", e.TrackID)
		}
	case <-ctx.Done():
		t.Fatal("event not delivered over NATS")
	}
}
