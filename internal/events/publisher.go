// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
)

// Publisher sends typed Resonance events.
type Publisher struct {
	pub message.Publisher
	now func() time.Time
}

// NewPublisher wraps a watermill publisher.
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub, now: time.Now}
}

// RequestExtraction publishes ExtractionRequested for trackID.
func (p *Publisher) RequestExtraction(ctx context.Context, trackID int64, audioKey string) error {
	return p.publish(ctx, TopicExtractionRequested, trackID, &ExtractionRequested{
		TrackID:     trackID,
		AudioKey:    audioKey,
		RequestedAt: p.now().UTC(),
	})
}

// TrackApproved publishes TrackApproved for trackID.
func (p *Publisher) TrackApproved(ctx context.Context, trackID int64) error {
	return p.publish(ctx, TopicTrackApproved, trackID, &TrackApproved{
		TrackID:    trackID,
		ApprovedAt: p.now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, topic string, trackID int64, v payload) error {
	correlationID := logging.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = logging.RequestIDFromContext(ctx)
	}
	msg, err := NewMessage(trackID, correlationID, v)
	if err != nil {
		return err
	}
	if err := p.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.RecordEventPublished(topic)
	return nil
}
