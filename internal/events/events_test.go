// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestNewMessageSetsMetadata(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := NewMessage(42, "corr1234", &ExtractionRequested{TrackID: 42, AudioKey: "42.mp3", RequestedAt: at})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if msg.UUID == "" {
		t.Error("message UUID should be set")
	}
	if got := msg.Metadata.Get(MetadataTrackID); got != "42" {
		t.Errorf("track_id metadata = %q", got)
	}
	if got := msg.Metadata.Get(MetadataCorrelationID); got != "corr1234" {
		t.Errorf("correlation_id metadata = %q", got)
	}

	decoded, err := DecodeExtractionRequested(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.TrackID != 42 || decoded.AudioKey != "42.mp3" || !decoded.RequestedAt.Equal(at) {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestNewMessageRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    payload
	}{
		{"zero track", &TrackApproved{}},
		{"negative track", &ExtractionRequested{TrackID: -1, AudioKey: "x"}},
		{"missing audio key", &ExtractionRequested{TrackID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMessage(1, "", tt.v); !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("err = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	msg := message.NewMessage("m-1", []byte("{not json"))
	if _, err := DecodeTrackApproved(msg); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("err = %v, want ErrInvalidPayload", err)
	}

	msg = message.NewMessage("m-2", []byte(`{"track_id":0}`))
	if _, err := DecodeTrackApproved(msg); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("err = %v, want ErrInvalidPayload for zero id", err)
	}
}

func TestNewMessageOmitsEmptyCorrelation(t *testing.T) {
	t.Parallel()

	msg, err := NewMessage(3, "", &TrackApproved{TrackID: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := msg.Metadata[MetadataCorrelationID]; ok {
		t.Error("correlation_id should be absent")
	}
}

func TestDurableName(t *testing.T) {
	t.Parallel()

	if got := durableName("resonance", TopicExtractionRequested); got != "resonance_resonance_extraction_requested" {
		t.Errorf("durableName = %q", got)
	}
}
