package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelbus/modelbus/internal/config"
	"github.com/modelbus/modelbus/internal/logging"
	"github.com/modelbus/modelbus/internal/model"
	"github.com/modelbus/modelbus/internal/prediction"
	"github.com/modelbus/modelbus/internal/transport"
)

func newTestConfig() *config.Config {
	return &config.Config{
		PubSubSystem:  "channel",
		InboundTopic:  "ml.input.test",
		OutboundTopic: "ml.output.test",
		ShutdownGrace: time.Second,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	dispatcher := prediction.NewDispatcher(model.DefaultRegistry(), logging.Nop())
	return NewManager(newTestConfig(), dispatcher, nil, logging.Nop())
}

func TestManagerLifecycle(t *testing.T) {
	m := newTestManager(t)

	if m.State() != StateUninitialized {
		t.Fatalf("expected uninitialized, got %s", m.State())
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != StateConnected {
		t.Fatalf("expected connected, got %s", m.State())
	}
	if m.Publisher() == nil {
		t.Fatal("expected a publisher while connected")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", m.State())
	}
	if m.Publisher() != nil {
		t.Fatal("expected no publisher after stop")
	}
}

func TestManagerStartFailureReturnsConnectionError(t *testing.T) {
	m := newTestManager(t)
	m.SetTransportBuilder(func(ctx context.Context, cfg transport.Config, logger logging.ServiceLogger) (transport.Transport, error) {
		return transport.Transport{}, errors.New("broker unreachable")
	})

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("expected error when transport cannot be built")
	}

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %T", err)
	}
	if m.State() != StateStopped {
		t.Fatalf("expected stopped after failed start, got %s", m.State())
	}
	if m.Publisher() != nil {
		t.Fatal("expected no publisher after failed start")
	}
}

func TestManagerStartTwice(t *testing.T) {
	m := newTestManager(t)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop() })

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected error on second start")
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := newTestManager(t)

	if err := m.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", m.State())
	}
}

func TestManagerUnknownTransport(t *testing.T) {
	conf := newTestConfig()
	conf.PubSubSystem = "carrier-pigeon"

	dispatcher := prediction.NewDispatcher(model.DefaultRegistry(), logging.Nop())
	m := NewManager(conf, dispatcher, nil, logging.Nop())

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("expected error for unknown transport")
	}
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %T", err)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateUninitialized: "uninitialized",
		StateStarting:      "starting",
		StateConnected:     "connected",
		StateStopping:      "stopping",
		StateStopped:       "stopped",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}
