// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/resonance/internal/api"
	"github.com/tomtom215/resonance/internal/config"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/recommend"
	"github.com/tomtom215/resonance/internal/storage"
	"github.com/tomtom215/resonance/internal/supervisor"
	"github.com/tomtom215/resonance/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Resonance stopped with error")
	}
}

//nolint:gocyclo // sequential startup
func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := applyLogging(cfg); err != nil {
		return err
	}

	logging.Info().
		Stringer("config", cfg).
		Msg("Starting Resonance")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Storage.Options(), logging.WithComponent("storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	}()
	logging.Info().Str("backend", store.Name()).Msg("Storage opened")

	engine, err := newEngine(cfg, store)
	if err != nil {
		return err
	}
	metrics.SetAppInfo(version, store.Name())

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), treeConfig(&cfg.Supervisor))
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// Data layer
	recommender := services.NewRecommendService(engine, services.RecommendServiceConfig{
		RunOnStartup: cfg.Recommend.RunOnStartup,
		Interval:     cfg.Recommend.Interval,
	}, logging.WithComponent("recommend"))
	tree.AddDataService(recommender)

	// Messaging layer
	msg, err := initMessaging(ctx, cfg, store, recommender)
	if err != nil {
		return err
	}
	defer msg.Close()
	tree.AddMessagingService(services.NewRouterService(msg.NewRouter, cfg.Events.CloseTimeout))

	// API layer
	server := newHTTPServer(cfg, api.Dependencies{
		Engine:         engine,
		Store:          store,
		Trigger:        recommender,
		Publisher:      msg.publisher,
		Jobs:           msg.Jobs(),
		RequestTimeout: cfg.Server.Timeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, services.HTTPServiceConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logging.WithComponent("http")))

	if path := config.ConfigFile(); path != "" {
		watchConfig(path)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport() //nolint:errcheck // report is best effort
	for _, svc := range unstopped {
		logging.Warn().Str("supervised", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Resonance stopped")
	return nil
}

func applyLogging(cfg *config.Config) error {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.Format = cfg.Logging.Format
	lc.Caller = cfg.Logging.Caller
	lc.Service = "resonance-server"
	lc.Version = version
	if err := logging.Init(lc); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	return nil
}

func newEngine(cfg *config.Config, store storage.Backend) (*recommend.Engine, error) {
	engine, err := recommend.NewEngine(cfg.Recommend.EngineConfig(), recommend.StoresFrom(store), logging.WithComponent("recommend"))
	if err != nil {
		return nil, fmt.Errorf("create recommendation engine: %w", err)
	}
	engine.SetObserver(metrics.NewEngineObserver())
	return engine, nil
}

func treeConfig(s *config.SupervisorConfig) supervisor.TreeConfig {
	return supervisor.TreeConfig{
		FailureThreshold: s.FailureThreshold,
		FailureDecay:     s.FailureDecay,
		FailureBackoff:   s.FailureBackoff,
		ShutdownTimeout:  s.ShutdownTimeout,
	}
}

//nolint:gocritic // deps passed by value; called once at startup
func newHTTPServer(cfg *config.Config, deps api.Dependencies) *http.Server {
	mw := api.NewChiMiddlewareFromServer(
		cfg.Server.CORSOrigins,
		cfg.Server.RateLimitReqs,
		cfg.Server.RateLimitWindow,
		cfg.Server.RateLimitDisabled,
	)
	router := api.NewRouter(api.NewHandler(deps), mw)

	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
}

// watchConfig reapplies logging settings when the config file changes.
func watchConfig(path string) {
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.LoadFile(path)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config change")
			return
		}
		if err := applyLogging(cfg); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Keeping previous logging configuration")
			return
		}
		logging.Info().Str("path", path).Str("level", cfg.Logging.Level).Msg("Logging configuration reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch disabled")
	}
}
