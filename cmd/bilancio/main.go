package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/backend"
	"bilancio/internal/cli"
	apphttp "bilancio/internal/http"
	"bilancio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	result, err := backend.Open(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	amqpClient := cli.OptionalAMQPClient(cfg, logger)

	finance := services.NewFinanceService(result.Repository, amqpClient)
	defer finance.Close()

	srv := apphttp.NewServer(":"+cfg.Port, finance)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := cli.SignalContext()
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting bilancio server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
