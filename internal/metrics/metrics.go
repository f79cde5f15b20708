// Package metrics exposes the Prometheus collectors for both ingress
// channels.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Channel labels for prediction outcomes.
const (
	ChannelAPI    = "api"
	ChannelStream = "stream"
)

// Outcome labels for prediction outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeModelNotFound  = "model_not_found"
	OutcomeExecutionError = "execution_error"
)

// Stream failure reasons.
const (
	FailureDecode   = "decode"
	FailureInvalid  = "invalid_message"
	FailureDispatch = "dispatch"
	FailurePublish  = "publish"
)

// Collector tracks prediction and stream statistics.
type Collector struct {
	mu sync.Mutex

	predictionsTotal    *prometheus.CounterVec
	streamConsumedTotal prometheus.Counter
	streamFailuresTotal *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelbus",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewCollector creates a collector bound to the given registerer. Passing nil
// uses the default registerer.
func NewCollector(registerer prometheus.Registerer) *Collector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Collector{
		registerer:       registerer,
		predictionsTotal: newCounterVec("predictions_total", "Total number of dispatched predictions by model, ingress channel, and outcome", []string{"model_id", "channel", "outcome"}),
		streamConsumedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modelbus",
			Name:      "stream_messages_consumed_total",
			Help:      "Total number of messages received from the inbound topic",
		}),
		streamFailuresTotal: newCounterVec("stream_failures_total", "Total number of per-message stream failures by reason", []string{"reason"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (c *Collector) Register() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		c.predictionsTotal,
		c.streamConsumedTotal,
		c.streamFailuresTotal,
	}

	for _, collector := range collectors {
		if err := c.registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	c.registered = true
	return nil
}

// RecordPrediction counts one dispatch attempt.
func (c *Collector) RecordPrediction(modelID, channel, outcome string) {
	c.predictionsTotal.WithLabelValues(modelID, channel, outcome).Inc()
}

// RecordStreamMessage counts one message received from the inbound topic.
func (c *Collector) RecordStreamMessage() {
	c.streamConsumedTotal.Inc()
}

// RecordStreamFailure counts one absorbed per-message failure.
func (c *Collector) RecordStreamFailure(reason string) {
	c.streamFailuresTotal.WithLabelValues(reason).Inc()
}
