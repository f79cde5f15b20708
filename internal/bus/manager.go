// Package bus owns the message-bus lifecycle: building the configured
// transport, running the stream ingress loop on top of it, and tearing both
// down in order on shutdown.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/modelbus/modelbus/internal/config"
	"github.com/modelbus/modelbus/internal/logging"
	"github.com/modelbus/modelbus/internal/metrics"
	"github.com/modelbus/modelbus/internal/prediction"
	"github.com/modelbus/modelbus/internal/stream"
	"github.com/modelbus/modelbus/internal/transport"
)

// State describes where the manager is in its lifecycle. Transitions only move
// forward: uninitialized, starting, connected, stopping, stopped.
type State int32

const (
	StateUninitialized State = iota
	StateStarting
	StateConnected
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateConnected:
		return "connected"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// ConnectionError wraps a transport construction or subscription failure. The
// HTTP surface keeps serving when Start returns one; only the stream channel
// is lost.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("bus connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportBuilder resolves the publisher/subscriber pair for the configured
// broker. Tests override it to inject fakes or failures.
type TransportBuilder func(ctx context.Context, cfg transport.Config, logger logging.ServiceLogger) (transport.Transport, error)

func defaultTransportBuilder(ctx context.Context, cfg transport.Config, logger logging.ServiceLogger) (transport.Transport, error) {
	return transport.Build(ctx, cfg, logging.NewWatermillAdapter(logger))
}

// Manager ties the configured transport and the stream ingress loop together
// under one lifecycle.
type Manager struct {
	conf       *config.Config
	dispatcher *prediction.Dispatcher
	collector  *metrics.Collector
	logger     logging.ServiceLogger

	buildTransport TransportBuilder

	state  atomic.Int32
	trans  transport.Transport
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager wires a Manager. The transport is not touched until Start.
func NewManager(conf *config.Config, dispatcher *prediction.Dispatcher, collector *metrics.Collector, logger logging.ServiceLogger) *Manager {
	if conf == nil {
		panic("modelbus: bus manager requires a config")
	}
	if dispatcher == nil {
		panic("modelbus: bus manager requires a dispatcher")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		conf:           conf,
		dispatcher:     dispatcher,
		collector:      collector,
		logger:         logger,
		buildTransport: defaultTransportBuilder,
	}
}

// SetTransportBuilder replaces the transport builder. Must be called before
// Start.
func (m *Manager) SetTransportBuilder(builder TransportBuilder) {
	if builder != nil {
		m.buildTransport = builder
	}
}

// Start builds the transport and launches the stream ingress loop. A
// construction failure leaves the manager stopped and returns a
// ConnectionError; the caller decides whether that is fatal.
func (m *Manager) Start(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateUninitialized), int32(StateStarting)) {
		return fmt.Errorf("bus: start called in state %s", m.State())
	}

	m.logger.Info("Connecting to message bus", logging.LogFields{
		"pubsub_system": m.conf.PubSubSystem,
		"inbound_topic": m.conf.InboundTopic,
	})

	trans, err := m.buildTransport(ctx, m.conf, m.logger)
	if err != nil {
		m.state.Store(int32(StateStopped))
		m.logger.Error("Message bus connection failed", err, logging.LogFields{
			"pubsub_system": m.conf.PubSubSystem,
		})
		return &ConnectionError{Err: err}
	}
	m.trans = trans

	loop := stream.NewLoop(
		stream.Config{
			InboundTopic:  m.conf.InboundTopic,
			OutboundTopic: m.conf.OutboundTopic,
		},
		trans.Subscriber,
		trans.Publisher,
		m.dispatcher,
		m.collector,
		m.logger,
	)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		if err := loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("Stream ingress loop exited", err, nil)
		}
	}()

	m.state.Store(int32(StateConnected))
	m.logger.Info("Message bus connected", logging.LogFields{
		"pubsub_system": m.conf.PubSubSystem,
	})
	return nil
}

// Stop cancels the stream loop, waits up to the configured grace period for it
// to drain, then closes the transport. Safe to call when Start failed or never
// ran.
func (m *Manager) Stop() error {
	if !m.state.CompareAndSwap(int32(StateConnected), int32(StateStopping)) {
		m.state.Store(int32(StateStopped))
		return nil
	}

	m.logger.Info("Stopping message bus", nil)
	m.cancel()

	select {
	case <-m.done:
	case <-time.After(m.conf.ShutdownGrace):
		m.logger.Error("Stream ingress loop did not drain in time", nil, logging.LogFields{
			"grace": m.conf.ShutdownGrace.String(),
		})
	}

	err := m.closeTransport()
	m.state.Store(int32(StateStopped))
	if err != nil {
		return err
	}

	m.logger.Info("Message bus stopped", nil)
	return nil
}

func (m *Manager) closeTransport() error {
	var errs []error
	if m.trans.Subscriber != nil {
		if err := m.trans.Subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	// The gochannel transport is one object serving both roles; closing it
	// twice is harmless but skipping the second close avoids noisy errors.
	if m.trans.Publisher != nil && !samePubSub(m.trans) {
		if err := m.trans.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}

func samePubSub(t transport.Transport) bool {
	pub, ok := t.Subscriber.(message.Publisher)
	return ok && pub == t.Publisher
}

// Publisher exposes the egress publisher, or nil when the bus never connected.
func (m *Manager) Publisher() message.Publisher {
	if m.State() != StateConnected {
		return nil
	}
	return m.trans.Publisher
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}
