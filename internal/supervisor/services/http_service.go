// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// ErrNoHTTPServer is returned by Serve when the service was built without a
// server. Suture does not restart it.
var ErrNoHTTPServer = errors.New("no http server configured")

// HTTPServer is the lifecycle half of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServiceConfig holds configuration for the API server service.
type HTTPServiceConfig struct {
	// Name shown in supervisor events. Defaults to "http-server".
	Name string

	// ShutdownTimeout bounds the graceful drain of in-flight requests
	// (recompute triggers, similarity queries). Defaults to 10s.
	ShutdownTimeout time.Duration
}

// HTTPServerService runs the recommendation API under supervision. A listen
// failure is returned so suture restarts the server; cancellation drains
// open requests before Serve returns.
type HTTPServerService struct {
	server HTTPServer
	config HTTPServiceConfig
	logger zerolog.Logger
}

// NewHTTPServerService wraps server for the API layer of the supervisor tree.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHTTPServerService(server HTTPServer, cfg HTTPServiceConfig, logger zerolog.Logger) *HTTPServerService {
	if cfg.Name == "" {
		cfg.Name = "http-server"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server: server,
		config: cfg,
		logger: logger.With().Str("supervised", cfg.Name).Logger(),
	}
}

// Serve implements suture.Service.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	if h.server == nil {
		return fmt.Errorf("%s: %w: %w", h.config.Name, ErrNoHTTPServer, suture.ErrDoNotRestart)
	}

	h.logger.Info().Str("addr", h.addr()).Msg("API server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			h.logger.Error().Err(err).Str("addr", h.addr()).Msg("API server failed")
			return fmt.Errorf("%s failed: %w", h.config.Name, err)
		}
		return nil

	case <-ctx.Done():
		h.logger.Info().Dur("timeout", h.config.ShutdownTimeout).Msg("API server draining")

		// ctx is already canceled; the drain gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.config.ShutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Warn().Err(err).Msg("API server shutdown incomplete")
			return fmt.Errorf("%s shutdown failed: %w", h.config.Name, err)
		}

		<-errCh
		h.logger.Info().Msg("API server stopped")
		return ctx.Err()
	}
}

func (h *HTTPServerService) addr() string {
	if s, ok := h.server.(*http.Server); ok {
		return s.Addr
	}
	return ""
}

// String implements fmt.Stringer for logging.
func (h *HTTPServerService) String() string {
	return h.config.Name
}
