package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/snow-ghost/wban/pkg/observability"
	"github.com/snow-ghost/wban/worker"
)

func main() {
	config := worker.LoadConfig()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	obs, err := observability.NewManager(observability.Config{
		ServiceName:    "wban-worker",
		ServiceVersion: "1.0.0",
		Environment:    getEnv("ENVIRONMENT", "development"),
		JaegerEndpoint: config.JaegerEndpoint,
		LogLevel:       config.LogLevel,
		LogFormat:      config.LogFormat,
		LogFile:        config.LogFile,
	}, reg)
	if err != nil {
		log.Fatalf("failed to initialise observability: %v", err)
	}
	logger := obs.GetLogger()

	w, err := worker.New(config, obs, reg)
	if err != nil {
		logger.Fatal("failed to create worker", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("worker stopped", "error", err.Error())
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := w.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err.Error())
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		logger.Error("observability shutdown failed", "error", err.Error())
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
