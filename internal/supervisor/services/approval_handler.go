// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package services

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/events"
)

// Triggerer requests a batch recomputation. *RecommendService satisfies it.
type Triggerer interface {
	Trigger() bool
}

// NewApprovalHandler returns a consumer for TopicTrackApproved. Each valid
// event asks the recommend service for a batch run; bursts of approvals
// collapse into one pending run. Undecodable payloads are logged and acked,
// since redelivery cannot fix them.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewApprovalHandler(trigger Triggerer, logger zerolog.Logger) message.NoPublishHandlerFunc {
	log := logger.With().Str("handler", "track-approved").Logger()
	return func(msg *message.Message) error {
		evt, err := events.DecodeTrackApproved(msg)
		if err != nil {
			log.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping invalid track approval")
			return nil
		}

		queued := trigger.Trigger()
		log.Debug().
			Int64("track_id", evt.TrackID).
			Bool("queued", queued).
			Msg("track approved, batch run requested")
		return nil
	}
}
