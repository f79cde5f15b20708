package transport

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
)

// NATSTransportName is the name used to register the NATS transport.
const NATSTransportName = "nats"

// NATSPublisherFactory allows overriding the publisher creation for testing.
var NATSPublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return wmnats.NewPublisher(cfg, logger)
}

// NATSSubscriberFactory allows overriding the subscriber creation for testing.
var NATSSubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return wmnats.NewSubscriber(cfg, logger)
}

func init() {
	DefaultRegistry.Register(NATSTransportName, buildNATS)
}

func buildNATS(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	url := cfg.GetNATSURL()
	marshaler := &wmnats.NATSMarshaler{}
	options := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.Timeout(10 * time.Second),
	}

	publisher, err := NATSPublisherFactory(
		wmnats.PublisherConfig{
			URL:         url,
			Marshaler:   marshaler,
			NatsOptions: options,
		},
		logger,
	)
	if err != nil {
		return Transport{}, err
	}

	subscriber, err := NATSSubscriberFactory(
		wmnats.SubscriberConfig{
			URL:         url,
			Unmarshaler: marshaler,
			NatsOptions: options,
		},
		logger,
	)
	if err != nil {
		return Transport{}, err
	}

	return Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}
