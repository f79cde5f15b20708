package transport

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

// KafkaTransportName is the name used to register the Kafka transport.
const KafkaTransportName = "kafka"

// KafkaPublisherFactory allows overriding the publisher creation for testing.
var KafkaPublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// KafkaSubscriberFactory allows overriding the subscriber creation for testing.
var KafkaSubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return kafka.NewSubscriber(cfg, logger)
}

func init() {
	DefaultRegistry.Register(KafkaTransportName, buildKafka)
}

func buildKafka(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	brokers := cfg.GetKafkaBrokers()

	publisher, err := KafkaPublisherFactory(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		logger,
	)
	if err != nil {
		return Transport{}, err
	}

	// Read from the latest offset: a (re)started consumer never replays
	// history, favouring freshness over completeness.
	saramaConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	if clientID := cfg.GetKafkaClientID(); clientID != "" {
		saramaConfig.ClientID = clientID
	}

	subscriber, err := KafkaSubscriberFactory(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			ConsumerGroup:         cfg.GetKafkaConsumerGroup(),
			OverwriteSaramaConfig: saramaConfig,
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
