// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package extraction computes track feature vectors asynchronously.
//
// An ExtractionRequested event names a track and its audio key. The
// pipeline locates the audio, asks the extractor for raw features, fills in
// a predicted mood when the extractor gives none, and stores the resulting
// audio vector. Missing audio ends the job as skipped. Transient failures
// are returned to the router, which retries with a fixed delay and finally
// moves the message to the poison topic, where the job is marked abandoned.
package extraction

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/events"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/recommend"
)

// Pipeline handles extraction events.
type Pipeline struct {
	source    AudioSource
	extractor Extractor
	writer    recommend.VectorWriter
	jobs      *JobTracker
	logger    zerolog.Logger
}

// NewPipeline wires the pipeline.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPipeline(source AudioSource, extractor Extractor, writer recommend.VectorWriter, jobs *JobTracker, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		source:    source,
		extractor: extractor,
		writer:    writer,
		jobs:      jobs,
		logger:    logger.With().Str("component", "extraction").Logger(),
	}
}

// Jobs returns the tracker.
func (p *Pipeline) Jobs() *JobTracker { return p.jobs }

// Register adds the request and poison handlers to the router.
func (p *Pipeline) Register(r *events.Router, sub message.Subscriber) {
	r.AddConsumerHandler("extraction", events.TopicExtractionRequested, sub, p.HandleRequested)
	r.AddConsumerHandler("extraction-poison", events.TopicExtractionPoison, sub, p.HandlePoisoned)
}

// HandleRequested runs one extraction attempt. It returns an error only for
// transient failures.
func (p *Pipeline) HandleRequested(msg *message.Message) error {
	req, err := events.DecodeExtractionRequested(msg)
	if err != nil {
		p.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable extraction request")
		return nil
	}

	ctx := p.messageContext(msg)
	job := p.jobs.Begin(req.TrackID, msg.UUID, req.AudioKey)
	logger := logging.CtxWith(ctx).
		Int64("track_id", req.TrackID).
		Str("job_id", job.ID).
		Int("attempt", job.Attempts).
		Logger()

	start := time.Now()
	err = p.extract(ctx, req)
	result := attemptResult(err)
	metrics.RecordExtractionAttempt(result, time.Since(start))

	switch result {
	case "success":
		p.jobs.Finish(req.TrackID, msg.UUID, JobSucceeded, nil)
		logger.Info().Dur("duration", time.Since(start)).Msg("feature vector stored")
		return nil
	case "missing":
		p.jobs.Finish(req.TrackID, msg.UUID, JobSkipped, err)
		logger.Debug().Str("audio_key", req.AudioKey).Msg("audio missing, skipping extraction")
		return nil
	case "permanent":
		p.jobs.Finish(req.TrackID, msg.UUID, JobFailed, err)
		logger.Error().Err(err).Msg("extraction failed permanently")
		return nil
	default:
		p.jobs.Retry(req.TrackID, msg.UUID, err)
		logger.Warn().Err(err).Msg("extraction attempt failed")
		return err
	}
}

// HandlePoisoned marks the job for a message that exhausted its retries as
// abandoned. It never fails, so poisoned messages are not poisoned again.
func (p *Pipeline) HandlePoisoned(msg *message.Message) error {
	req, err := events.DecodeExtractionRequested(msg)
	if err != nil {
		p.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("undecodable poisoned message")
		return nil
	}

	reason := msg.Metadata.Get(middleware.ReasonForPoisonedKey)
	if p.jobs.Abandon(req.TrackID, msg.UUID, reason) {
		logger := logging.CtxWith(p.messageContext(msg)).
			Int64("track_id", req.TrackID).
			Str("audio_key", req.AudioKey).
			Str("reason", reason).
			Logger()
		logger.Warn().Msg("extraction abandoned after retries")
	}
	return nil
}

func (p *Pipeline) extract(ctx context.Context, req events.ExtractionRequested) error {
	ref, err := p.source.Locate(ctx, req.AudioKey)
	if err != nil {
		return err
	}

	features, err := p.extractor.Extract(ctx, req.TrackID, ref)
	if err != nil {
		return err
	}
	if strings.TrimSpace(features.Mood) == "" {
		features.Mood = recommend.PredictMood(features.Energy, features.Valence)
	}

	if err := p.writer.SaveFeatureVector(ctx, req.TrackID, recommend.BuildAudioVector(features)); err != nil {
		if errors.Is(err, recommend.ErrInvalidVector) || errors.Is(err, recommend.ErrDimensionMismatch) {
			return errors.Join(ErrPermanent, err)
		}
		return err
	}
	return nil
}

func attemptResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAudioMissing):
		return "missing"
	case errors.Is(err, ErrPermanent):
		return "permanent"
	default:
		return "transient"
	}
}

// messageContext carries the pipeline logger and the event's correlation ID.
func (p *Pipeline) messageContext(msg *message.Message) context.Context {
	ctx := logging.ContextWithLogger(msg.Context(), p.logger)
	if id := msg.Metadata.Get(events.MetadataCorrelationID); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}
	return ctx
}
