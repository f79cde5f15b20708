package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// ChannelTransportName is the name used to register the in-process transport.
const ChannelTransportName = "channel"

// GoChannelFactory allows overriding the in-process pub/sub creation for
// testing.
var GoChannelFactory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	DefaultRegistry.Register(ChannelTransportName, buildChannel)
}

func buildChannel(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	pub, sub := GoChannelFactory(gochannel.Config{}, logger)

	return Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}
