package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
)

// RabbitMQTransportName is the name used to register the RabbitMQ transport.
const RabbitMQTransportName = "rabbitmq"

// AMQPConnectionFactory allows overriding the connection creation for testing.
var AMQPConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// AMQPPublisherFactory allows overriding the publisher creation for testing.
var AMQPPublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// AMQPSubscriberFactory allows overriding the subscriber creation for testing.
var AMQPSubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
	return amqp.NewSubscriberWithConnection(cfg, logger, conn)
}

func init() {
	DefaultRegistry.Register(RabbitMQTransportName, buildRabbitMQ)
}

func buildRabbitMQ(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	url := cfg.GetRabbitMQURL()

	amqpConfig := amqp.NewDurablePubSubConfig(
		url,
		amqp.GenerateQueueNameTopicName,
	)

	conn, err := AMQPConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   url,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return Transport{}, err
	}

	publisher, err := AMQPPublisherFactory(amqpConfig, logger, conn)
	if err != nil {
		return Transport{}, err
	}

	subscriber, err := AMQPSubscriberFactory(amqpConfig, logger, conn)
	if err != nil {
		return Transport{}, err
	}

	return Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}
