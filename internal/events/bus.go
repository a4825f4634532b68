// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package events

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// StreamName is the JetStream stream that holds every resonance.> subject.
const StreamName = "RESONANCE"

// Options configures the message transport.
type Options struct {
	Backend      string
	NATSURL      string
	QueueGroup   string
	CloseTimeout time.Duration

	// SubscribersCount is the number of concurrent NATS consumers per topic.
	SubscribersCount int
	MaxReconnects    int
	ReconnectWait    time.Duration
	AckWait          time.Duration
}

func (o *Options) applyDefaults() {
	if o.Backend == "" {
		o.Backend = BackendMemory
	}
	if o.QueueGroup == "" {
		o.QueueGroup = "resonance"
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = 30 * time.Second
	}
	if o.SubscribersCount <= 0 {
		o.SubscribersCount = 1
	}
	if o.MaxReconnects == 0 {
		o.MaxReconnects = -1
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.AckWait <= 0 {
		// Covers a full retry cycle of the extraction handler.
		o.AckWait = 10 * time.Minute
	}
}

// Bus pairs a publisher and subscriber on the same transport.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	backend    string
}

// Backend returns the transport name.
func (b *Bus) Backend() string { return b.backend }

// Close closes both sides of the bus.
func (b *Bus) Close() error {
	if any(b.Publisher) == any(b.Subscriber) {
		return b.Publisher.Close()
	}
	return errors.Join(b.Publisher.Close(), b.Subscriber.Close())
}

// NewBus opens the transport selected by opts.Backend. For NATS the
// RESONANCE stream must already exist; see EnsureStream.
func NewBus(opts Options, logger watermill.LoggerAdapter) (*Bus, error) {
	opts.applyDefaults()
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	switch opts.Backend {
	case BackendMemory:
		return NewMemoryBus(logger), nil
	case BackendNATS:
		return newNATSBus(&opts, logger)
	default:
		return nil, fmt.Errorf("unknown events backend %q", opts.Backend)
	}
}

// NewMemoryBus returns an in-process bus. Messages published while no
// handler is subscribed are dropped.
func NewMemoryBus(logger watermill.LoggerAdapter) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return &Bus{Publisher: ch, Subscriber: ch, backend: BackendMemory}
}

func newNATSBus(opts *Options, logger watermill.LoggerAdapter) (*Bus, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("resonance"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(opts.MaxReconnects),
		natsgo.ReconnectWait(opts.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         opts.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              opts.NATSURL,
		QueueGroupPrefix: opts.QueueGroup,
		SubscribersCount: opts.SubscribersCount,
		AckWaitTimeout:   opts.AckWait,
		CloseTimeout:     opts.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(StreamName),
				natsgo.AckWait(opts.AckWait),
				natsgo.DeliverNew(),
			},
			DurablePrefix:     opts.QueueGroup,
			DurableCalculator: durableName,
		},
	}, logger)
	if err != nil {
		_ = pub.Close() //nolint:errcheck // subscriber error is reported
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &Bus{Publisher: &trackingPublisher{Publisher: pub}, Subscriber: sub, backend: BackendNATS}, nil
}

// durableName derives one JetStream consumer per topic. Consumer names may
// not contain dots.
func durableName(prefix, topic string) string {
	return prefix + "_" + strings.ReplaceAll(topic, ".", "_")
}

// trackingPublisher sets Nats-Msg-Id from the message UUID so JetStream
// drops duplicate publishes inside the stream's duplicate window.
type trackingPublisher struct {
	message.Publisher
}

func (p *trackingPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
			msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
		}
	}
	return p.Publisher.Publish(topic, msgs...)
}
