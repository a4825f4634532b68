// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/recommend"
)

// RecommendEngine is the batch half of *recommend.Engine.
type RecommendEngine interface {
	RecomputeAll(ctx context.Context) (recommend.RunSummary, error)
}

// RecommendServiceConfig holds configuration for the recommendation service.
type RecommendServiceConfig struct {
	// RunOnStartup recomputes every user once when the service starts.
	RunOnStartup bool

	// Interval between scheduled batch runs. Zero disables the schedule;
	// runs then happen only through Trigger.
	Interval time.Duration
}

// RecommendService runs batch recomputations under supervision. Runs come
// from the schedule, from startup, and from Trigger. Triggers arriving while
// one is already pending collapse into a single run.
type RecommendService struct {
	engine  RecommendEngine
	config  RecommendServiceConfig
	logger  zerolog.Logger
	name    string
	trigger chan struct{}
}

// NewRecommendService creates a new recommendation service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRecommendService(engine RecommendEngine, cfg RecommendServiceConfig, logger zerolog.Logger) *RecommendService {
	return &RecommendService{
		engine:  engine,
		config:  cfg,
		logger:  logger.With().Str("supervised", "recommend-service").Logger(),
		name:    "recommend-service",
		trigger: make(chan struct{}, 1),
	}
}

// Trigger asks for a batch run. It never blocks and returns false when a
// run is already pending.
func (s *RecommendService) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Serve implements suture.Service.
func (s *RecommendService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("run_on_startup", s.config.RunOnStartup).
		Dur("interval", s.config.Interval).
		Msg("recommendation service starting")

	if s.config.RunOnStartup {
		s.run(ctx, "startup")
	}

	var tick <-chan time.Time
	if s.config.Interval > 0 {
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("recommendation service shutting down")
			return ctx.Err()
		case <-tick:
			s.run(ctx, "schedule")
		case <-s.trigger:
			s.run(ctx, "trigger")
		}
	}
}

// run performs one batch. Failures are logged and never stop the service;
// the next tick or trigger retries.
func (s *RecommendService) run(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}

	summary, err := s.engine.RecomputeAll(ctx)
	switch {
	case errors.Is(err, recommend.ErrRunInProgress):
		s.logger.Debug().Str("reason", reason).Msg("batch run skipped, another run is active")
	case err != nil:
		s.logger.Warn().Err(err).Str("reason", reason).Msg("batch run failed")
	default:
		s.logger.Info().
			Str("reason", reason).
			Int("users", summary.Users).
			Int("recommended", summary.Recommended).
			Int("failed", summary.Failed).
			Int64("duration_ms", summary.DurationMS).
			Msg("batch run complete")
	}
}

// String returns the service name for logging.
func (s *RecommendService) String() string {
	return s.name
}
