// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/resonance/internal/api"
	"github.com/tomtom215/resonance/internal/config"
	"github.com/tomtom215/resonance/internal/events"
	"github.com/tomtom215/resonance/internal/extraction"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/recommend"
	"github.com/tomtom215/resonance/internal/supervisor/services"
)

// messaging holds everything the event router needs. The bus and the
// embedded server outlive individual routers, so they are owned here and
// closed once at exit.
type messaging struct {
	server     *events.EmbeddedServer
	bus        *events.Bus
	publisher  *events.Publisher
	pipeline   *extraction.Pipeline
	approvals  message.NoPublishHandlerFunc
	routerOpts events.RouterOptions
	logger     watermill.LoggerAdapter
}

func initMessaging(ctx context.Context, cfg *config.Config, writer recommend.VectorWriter, trigger services.Triggerer) (*messaging, error) {
	m := &messaging{
		routerOpts: cfg.RouterOptions(),
		logger:     logging.NewWatermillAdapter(logging.WithComponent("events")),
		approvals:  services.NewApprovalHandler(trigger, logging.WithComponent("events")),
	}

	var embeddedURL string
	if cfg.Events.Backend == events.BackendNATS && cfg.Events.EmbeddedNATS {
		opts, err := embeddedServerOptions(&cfg.Events)
		if err != nil {
			return nil, err
		}
		server, err := events.StartEmbeddedServer(opts)
		if err != nil {
			return nil, fmt.Errorf("start embedded nats: %w", err)
		}
		m.server = server
		embeddedURL = server.ClientURL()
		logging.Info().Str("url", embeddedURL).Msg("Embedded NATS server started")
	}

	busOpts := cfg.Events.BusOptions(embeddedURL)
	if busOpts.Backend == events.BackendNATS {
		if err := events.EnsureStream(ctx, busOpts.NATSURL, events.DefaultStreamOptions()); err != nil {
			m.Close()
			return nil, fmt.Errorf("ensure stream: %w", err)
		}
	}

	bus, err := events.NewBus(busOpts, m.logger)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("create event bus: %w", err)
	}
	m.bus = bus
	m.publisher = events.NewPublisher(bus.Publisher)
	logging.Info().Str("backend", bus.Backend()).Msg("Event bus ready")

	if cfg.Extraction.Enabled {
		pipeline, err := newPipeline(&cfg.Extraction, writer)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.pipeline = pipeline
		logging.Info().
			Str("extractor", cfg.Extraction.ExtractorURL).
			Str("audio_source", cfg.Extraction.AudioSource).
			Int("max_retries", cfg.Extraction.MaxRetries).
			Msg("Extraction pipeline enabled")
	}

	return m, nil
}

func newPipeline(cfg *config.ExtractionConfig, writer recommend.VectorWriter) (*extraction.Pipeline, error) {
	var source extraction.AudioSource
	switch cfg.AudioSource {
	case "minio":
		src, err := extraction.NewMinIOSource(extraction.MinIOOptions{
			Endpoint:      cfg.MinIO.Endpoint,
			AccessKey:     cfg.MinIO.AccessKey,
			SecretKey:     cfg.MinIO.SecretKey,
			Bucket:        cfg.MinIO.Bucket,
			UseSSL:        cfg.MinIO.UseSSL,
			PresignExpiry: cfg.MinIO.PresignExpiry,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio audio source: %w", err)
		}
		source = src
	default:
		source = extraction.NewFileSource(cfg.AudioDir)
	}

	logger := logging.WithComponent("extraction")
	extractor := extraction.NewHTTPExtractor(extraction.HTTPExtractorOptions{
		URL:             cfg.ExtractorURL,
		Timeout:         cfg.Timeout,
		RateLimit:       cfg.RateLimit,
		RateBurst:       cfg.RateBurst,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}, logger)

	return extraction.NewPipeline(source, extractor, writer, extraction.NewJobTracker(cfg.MaxJobs), logger), nil
}

// embeddedServerOptions listens on the host and port of the configured
// NATS URL so clients configured with that URL reach the embedded server.
func embeddedServerOptions(cfg *config.EventsConfig) (events.ServerOptions, error) {
	u, err := url.Parse(cfg.NATSURL)
	if err != nil {
		return events.ServerOptions{}, fmt.Errorf("parse nats url: %w", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return events.ServerOptions{}, fmt.Errorf("nats url %q needs host:port: %w", cfg.NATSURL, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return events.ServerOptions{}, fmt.Errorf("nats url port %q: %w", portStr, err)
	}
	return events.ServerOptions{Host: host, Port: port, StoreDir: cfg.StoreDir}, nil
}

// NewRouter is the RouterService factory.
func (m *messaging) NewRouter() (*events.Router, error) {
	r, err := events.NewRouter(m.routerOpts, m.bus.Publisher, m.logger)
	if err != nil {
		return nil, err
	}
	r.AddConsumerHandler("track-approved", events.TopicTrackApproved, m.bus.Subscriber, m.approvals)
	if m.pipeline != nil {
		m.pipeline.Register(r, m.bus.Subscriber)
	}
	return r, nil
}

// Jobs returns the extraction job store, or nil when extraction is off.
func (m *messaging) Jobs() api.JobStore {
	if m.pipeline == nil {
		return nil
	}
	return m.pipeline.Jobs()
}

// Close closes the bus and stops the embedded server.
func (m *messaging) Close() {
	if m.bus != nil {
		if err := m.bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}
	if m.server != nil {
		m.server.Shutdown()
	}
}
