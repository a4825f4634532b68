// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/resonance/internal/metrics"
)

// RouterOptions configures the watermill router.
type RouterOptions struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration

	// PoisonTopic receives messages whose handler still fails after the
	// last retry. Empty disables the poison queue.
	PoisonTopic string
}

// DefaultRouterOptions mirrors the extraction defaults.
func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		CloseTimeout: 30 * time.Second,
		MaxRetries:   3,
		RetryDelay:   60 * time.Second,
		PoisonTopic:  TopicExtractionPoison,
	}
}

// Router wraps the watermill router with the Resonance middleware chain,
// outermost first: PoisonQueue, Retry with a fixed delay, Recoverer.
// Handlers signal transient failures by returning an error; permanent
// failures are handled inside the handler and acked.
type Router struct {
	router  *message.Router
	logger  watermill.LoggerAdapter
	running atomic.Bool
}

// NewRouter builds the router. poisonPublisher may be nil when
// opts.PoisonTopic is empty.
func NewRouter(opts RouterOptions, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: opts.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	if opts.PoisonTopic != "" {
		if poisonPublisher == nil {
			return nil, fmt.Errorf("poison topic %q needs a publisher", opts.PoisonTopic)
		}
		poisonQueue, err := middleware.PoisonQueue(poisonPublisher, opts.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poisonQueue)
	}

	if opts.MaxRetries > 0 {
		retry := middleware.Retry{
			MaxRetries:      opts.MaxRetries,
			InitialInterval: opts.RetryDelay,
			MaxInterval:     opts.RetryDelay,
			Multiplier:      1,
			Logger:          logger,
		}
		wmRouter.AddMiddleware(retry.Middleware)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	return &Router{router: wmRouter, logger: logger}, nil
}

// AddConsumerHandler registers a handler that produces no output messages.
// Every attempt is counted in resonance_events_handled_total.
func (r *Router) AddConsumerHandler(name, topic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) {
	r.router.AddConsumerHandler(name, topic, subscriber, func(msg *message.Message) error {
		err := handler(msg)
		metrics.RecordEventHandled(topic, err)
		return err
	})
}

// Run processes messages until ctx is cancelled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)
	return r.router.Run(ctx)
}

// Running returns a channel closed once all handlers are subscribed.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether Run is active.
func (r *Router) IsRunning() bool {
	return r.running.Load()
}

// Close stops the router, waiting up to CloseTimeout for in-flight messages.
func (r *Router) Close() error {
	return r.router.Close()
}
