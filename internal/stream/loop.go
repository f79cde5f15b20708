// Package stream implements the asynchronous ingress channel: a single
// long-lived loop that consumes prediction requests from the inbound topic,
// dispatches them, and publishes results to the egress topic.
package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/modelbus/modelbus/internal/ids"
	"github.com/modelbus/modelbus/internal/jsoncodec"
	"github.com/modelbus/modelbus/internal/logging"
	"github.com/modelbus/modelbus/internal/metrics"
	"github.com/modelbus/modelbus/internal/model"
	"github.com/modelbus/modelbus/internal/prediction"
)

// DecodeError reports an inbound payload that could not be parsed. It never
// escapes the per-message boundary.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode inbound message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// inboundMessage is the expected shape of inbound topic payloads. It exists
// only for the duration of one loop iteration.
type inboundMessage struct {
	ModelID  string           `json:"model_id"`
	Features model.FeatureMap `json:"features"`
	Metadata map[string]any   `json:"metadata"`
}

// Config carries the topic names the loop operates on.
type Config struct {
	InboundTopic  string
	OutboundTopic string
}

// Loop consumes the inbound topic and publishes results to the egress topic.
// Per-message failures are absorbed: a malformed or failing message is logged
// and counted, never fatal. Every received message is acked regardless of
// outcome, so delivery is at-most-once.
type Loop struct {
	conf       Config
	subscriber message.Subscriber
	publisher  message.Publisher
	dispatcher *prediction.Dispatcher
	collector  *metrics.Collector
	logger     logging.ServiceLogger
}

// NewLoop wires a Loop over an already-open transport. The publisher must be
// live before Run is called so results always have a publish target.
func NewLoop(conf Config, subscriber message.Subscriber, publisher message.Publisher, dispatcher *prediction.Dispatcher, collector *metrics.Collector, logger logging.ServiceLogger) *Loop {
	if subscriber == nil || publisher == nil {
		panic("modelbus: stream loop requires a subscriber and a publisher")
	}
	if dispatcher == nil {
		panic("modelbus: stream loop requires a dispatcher")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loop{
		conf:       conf,
		subscriber: subscriber,
		publisher:  publisher,
		dispatcher: dispatcher,
		collector:  collector,
		logger:     logger,
	}
}

// Run attaches to the inbound topic and processes messages until ctx is
// cancelled or the subscription closes. The blocking receive terminates as
// soon as ctx is done, so shutdown latency does not depend on the next
// message's arrival.
func (l *Loop) Run(ctx context.Context) error {
	messages, err := l.subscriber.Subscribe(ctx, l.conf.InboundTopic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", l.conf.InboundTopic, err)
	}

	l.logger.Info("Stream ingress loop started", logging.LogFields{
		"inbound_topic":  l.conf.InboundTopic,
		"outbound_topic": l.conf.OutboundTopic,
	})

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stream ingress loop stopping", nil)
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				l.logger.Info("Inbound subscription closed", nil)
				return nil
			}
			l.process(msg)
			msg.Ack()
		}
	}
}

// process handles one inbound message. It never returns an error: every
// failure mode is logged, counted, and absorbed so the next message is
// unaffected.
func (l *Loop) process(msg *message.Message) {
	if l.collector != nil {
		l.collector.RecordStreamMessage()
	}

	in, err := decodeInbound(msg.Payload)
	if err != nil {
		l.recordFailure(failureReason(err), msg, err)
		return
	}

	result, err := l.dispatcher.Dispatch(msg.Context(), in.ModelID, in.Features, in.Metadata)
	if err != nil {
		l.recordPrediction(in.ModelID, err)
		l.recordFailure(metrics.FailureDispatch, msg, err)
		return
	}
	l.recordPrediction(in.ModelID, nil)

	if err := l.publish(msg, result); err != nil {
		l.recordFailure(metrics.FailurePublish, msg, err)
		return
	}

	l.logger.Debug("Published prediction result", logging.LogFields{
		"model_id":      result.ModelID,
		"prediction_id": result.PredictionID,
		"topic":         l.conf.OutboundTopic,
	})
}

func (l *Loop) publish(in *message.Message, result *prediction.Result) error {
	payload, err := jsoncodec.Marshal(result)
	if err != nil {
		return err
	}

	out := message.NewMessage(ids.NewMessageID(), payload)
	if correlationID := in.Metadata.Get("correlation_id"); correlationID != "" {
		out.Metadata.Set("correlation_id", correlationID)
	} else {
		out.Metadata.Set("correlation_id", ids.NewMessageID())
	}

	return l.publisher.Publish(l.conf.OutboundTopic, out)
}

func decodeInbound(payload []byte) (*inboundMessage, error) {
	var in inboundMessage
	if err := jsoncodec.Unmarshal(payload, &in); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if in.ModelID == "" {
		return nil, &invalidMessageError{reason: "model_id is required"}
	}
	if len(in.Features) == 0 {
		return nil, &invalidMessageError{reason: "features are required"}
	}
	return &in, nil
}

type invalidMessageError struct {
	reason string
}

func (e *invalidMessageError) Error() string {
	return "invalid inbound message: " + e.reason
}

func failureReason(err error) string {
	var invalid *invalidMessageError
	if errors.As(err, &invalid) {
		return metrics.FailureInvalid
	}
	return metrics.FailureDecode
}

func (l *Loop) recordFailure(reason string, msg *message.Message, err error) {
	if l.collector != nil {
		l.collector.RecordStreamFailure(reason)
	}
	l.logger.Error("Failed to process inbound message", err, logging.LogFields{
		"reason":       reason,
		"message_uuid": msg.UUID,
	})
}

func (l *Loop) recordPrediction(modelID string, err error) {
	if l.collector == nil {
		return
	}

	outcome := metrics.OutcomeOK
	var notFound *prediction.ModelNotFoundError
	var execErr *prediction.ExecutionError
	switch {
	case err == nil:
	case errors.As(err, &notFound):
		outcome = metrics.OutcomeModelNotFound
	case errors.As(err, &execErr):
		outcome = metrics.OutcomeExecutionError
	default:
		outcome = metrics.OutcomeExecutionError
	}
	l.collector.RecordPrediction(modelID, metrics.ChannelStream, outcome)
}
