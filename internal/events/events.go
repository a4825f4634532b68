// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package events carries asynchronous work between Resonance components
// over watermill. The transport is either an in-process gochannel or NATS
// JetStream, optionally served by an embedded nats-server.
//
// Two event types exist:
//
//	resonance.extraction.requested  ExtractionRequested
//	resonance.tracks.approved       TrackApproved
//
// Messages that exhaust their retries are moved to the poison topic with
// the failure reason in metadata.
package events

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
)

// Topics.
const (
	TopicExtractionRequested = "resonance.extraction.requested"
	TopicTrackApproved       = "resonance.tracks.approved"
	TopicExtractionPoison    = "resonance.extraction.poison"
)

// Metadata keys set on every message.
const (
	MetadataTrackID       = "track_id"
	MetadataCorrelationID = "correlation_id"
)

// ErrInvalidPayload is returned when a message body cannot be decoded or
// fails validation. Handlers treat it as permanent.
var ErrInvalidPayload = errors.New("invalid event payload")

// ExtractionRequested asks the extraction pipeline to compute the feature
// vector of a track.
type ExtractionRequested struct {
	TrackID     int64     `json:"track_id"`
	AudioKey    string    `json:"audio_key"`
	RequestedAt time.Time `json:"requested_at"`
}

// Validate checks required fields.
func (e *ExtractionRequested) Validate() error {
	if e.TrackID <= 0 {
		return fmt.Errorf("%w: track_id must be positive", ErrInvalidPayload)
	}
	if e.AudioKey == "" {
		return fmt.Errorf("%w: audio_key is required", ErrInvalidPayload)
	}
	return nil
}

// TrackApproved announces that a track entered the approved pool.
type TrackApproved struct {
	TrackID    int64     `json:"track_id"`
	ApprovedAt time.Time `json:"approved_at"`
}

// Validate checks required fields.
func (e *TrackApproved) Validate() error {
	if e.TrackID <= 0 {
		return fmt.Errorf("%w: track_id must be positive", ErrInvalidPayload)
	}
	return nil
}

type payload interface {
	Validate() error
}

// NewMessage encodes v into a watermill message with a fresh UUID.
func NewMessage(trackID int64, correlationID string, v payload) (*message.Message, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataTrackID, strconv.FormatInt(trackID, 10))
	if correlationID != "" {
		msg.Metadata.Set(MetadataCorrelationID, correlationID)
	}
	return msg, nil
}

// DecodeExtractionRequested decodes and validates a message body.
func DecodeExtractionRequested(msg *message.Message) (ExtractionRequested, error) {
	var e ExtractionRequested
	if err := decode(msg, &e); err != nil {
		return ExtractionRequested{}, err
	}
	return e, nil
}

// DecodeTrackApproved decodes and validates a message body.
func DecodeTrackApproved(msg *message.Message) (TrackApproved, error) {
	var e TrackApproved
	if err := decode(msg, &e); err != nil {
		return TrackApproved{}, err
	}
	return e, nil
}

func decode(msg *message.Message, v payload) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return v.Validate()
}
