package main

import (
	"context"
	"errors"
	"os"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	applog "bilancio/internal/log"
	"bilancio/internal/store/sqlite"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(applog.ComponentWorker)

	logger.Info("Starting bilancio-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the audit worker")
		os.Exit(1)
	}

	// The audit trail lives next to the engine's rows, so the worker
	// opens the same sqlite database.
	repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	auditWorker := worker.NewAuditWorker(repo)

	ctx, stop := cli.SignalContext()
	defer stop()

	err = amqpClient.ConsumeFinanceEvents(ctx, func(ev *amqp.FinanceEvent) error {
		return auditWorker.HandleEvent(ctx, ev)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped")
}
