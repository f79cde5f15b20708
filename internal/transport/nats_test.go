package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNATSWithMockedFactories(t *testing.T) {
	origPub := NATSPublisherFactory
	origSub := NATSSubscriberFactory
	t.Cleanup(func() {
		NATSPublisherFactory = origPub
		NATSSubscriberFactory = origSub
	})

	NATSPublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		assert.Equal(t, "nats://localhost:4222", cfg.URL)
		return &mockPublisher{}, nil
	}
	NATSSubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		assert.Equal(t, "nats://localhost:4222", cfg.URL)
		return &mockSubscriber{}, nil
	}

	cfg := &mockConfig{pubSubSystem: NATSTransportName, natsURL: "nats://localhost:4222"}
	trans, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, trans.Publisher)
	assert.NotNil(t, trans.Subscriber)
}

func TestBuildNATSPublisherError(t *testing.T) {
	origPub := NATSPublisherFactory
	t.Cleanup(func() { NATSPublisherFactory = origPub })

	NATSPublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return nil, errors.New("nats pub fail")
	}

	cfg := &mockConfig{pubSubSystem: NATSTransportName, natsURL: "nats://localhost:4222"}
	_, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.Error(t, err)
}

func TestBuildNATSSubscriberError(t *testing.T) {
	origPub := NATSPublisherFactory
	origSub := NATSSubscriberFactory
	t.Cleanup(func() {
		NATSPublisherFactory = origPub
		NATSSubscriberFactory = origSub
	})

	NATSPublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return &mockPublisher{}, nil
	}
	NATSSubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return nil, errors.New("nats sub fail")
	}

	cfg := &mockConfig{pubSubSystem: NATSTransportName, natsURL: "nats://localhost:4222"}
	_, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.Error(t, err)
}
