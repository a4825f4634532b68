// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/resonance/internal/events"
)

// errRouterStopped is returned when the router exits without being asked to.
var errRouterStopped = errors.New("event router stopped unexpectedly")

// RouterFactory builds a fully registered router. A closed watermill router
// cannot run again, so every Serve call needs a fresh one.
type RouterFactory func() (*events.Router, error)

// RouterService runs the event router under supervision.
//
// Serve builds a router from the factory, runs it, and closes it when the
// context is canceled. If the router stops on its own, Serve returns an
// error and suture restarts it with a new router.
type RouterService struct {
	factory         RouterFactory
	shutdownTimeout time.Duration
	name            string
}

// NewRouterService creates a router service. A non-positive timeout falls
// back to 30 seconds.
func NewRouterService(factory RouterFactory, shutdownTimeout time.Duration) *RouterService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &RouterService{
		factory:         factory,
		shutdownTimeout: shutdownTimeout,
		name:            "event-router",
	}
}

// Serve implements suture.Service.
func (s *RouterService) Serve(ctx context.Context) error {
	router, err := s.factory()
	if err != nil {
		return fmt.Errorf("build event router: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(ctx)
	}()

	select {
	case runErr := <-errCh:
		_ = router.Close() //nolint:errcheck // router already stopped
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if runErr == nil {
			runErr = errRouterStopped
		}
		return fmt.Errorf("event router: %w", runErr)

	case <-ctx.Done():
		closeErr := router.Close()
		select {
		case <-errCh:
		case <-time.After(s.shutdownTimeout):
			return fmt.Errorf("event router did not stop within %v", s.shutdownTimeout)
		}
		if closeErr != nil {
			return fmt.Errorf("close event router: %w", closeErr)
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture logging.
func (s *RouterService) String() string {
	return s.name
}
