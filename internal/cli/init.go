// Package cli provides common initialization shared by cmd/bilancio and
// cmd/bilancio-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"bilancio/internal/amqp"
	"bilancio/internal/config"
	applog "bilancio/internal/log"
)

// SetupLogger initializes structured logging with default settings and
// installs the logger as the process default.
func SetupLogger() *applog.Logger {
	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development. Errors are
// ignored; the file is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration or exits the process on
// validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OptionalAMQPClient connects to AMQP when configured. A connection
// failure degrades to nil (no event publishing) rather than aborting.
func OptionalAMQPClient(cfg *config.Config, logger *applog.Logger) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - finance events will not be published")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	logger.Info("AMQP client initialized",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client
}

// SignalContext returns a context canceled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
