package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modelbus/modelbus/internal/api"
	"github.com/modelbus/modelbus/internal/bus"
	"github.com/modelbus/modelbus/internal/config"
	"github.com/modelbus/modelbus/internal/logging"
	"github.com/modelbus/modelbus/internal/metrics"
	"github.com/modelbus/modelbus/internal/model"
	"github.com/modelbus/modelbus/internal/prediction"
)

func main() {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger := logging.NewSlogServiceLogger(slogger)

	if err := run(logger); err != nil {
		logger.Error("Service exited with error", err, nil)
		os.Exit(1)
	}
}

func run(logger logging.ServiceLogger) error {
	conf, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("Configuration loaded", logging.LogFields{"config": conf.String()})

	registry := model.DefaultRegistry()

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	if conf.MetricsEnabled {
		if err := collector.Register(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	dispatcher := prediction.NewDispatcher(registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := bus.NewManager(conf, dispatcher, collector, logger)
	if err := manager.Start(ctx); err != nil {
		// The synchronous API keeps serving without the stream channel.
		logger.Error("Running without stream ingress", err, logging.LogFields{
			"pubsub_system": conf.PubSubSystem,
		})
	}

	server := api.NewServer(registry, dispatcher, manager, collector, logger)
	httpServer := &http.Server{
		Addr:              conf.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", logging.LogFields{"addr": conf.HTTPAddr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var metricsServer *http.Server
	if conf.MetricsEnabled {
		metricsServer = startMetricsServer(conf.MetricsPort, logger)
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", nil)
	case err := <-serverErr:
		stop()
		logger.Error("HTTP server failed", err, nil)
	}

	if err := manager.Stop(); err != nil {
		logger.Error("Message bus shutdown failed", err, nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", err, nil)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics shutdown failed", err, nil)
		}
	}

	logger.Info("Service stopped", nil)
	return nil
}

func startMetricsServer(port int, logger logging.ServiceLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Metrics endpoint listening", logging.LogFields{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", err, nil)
		}
	}()

	return server
}
