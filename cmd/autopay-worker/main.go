package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentAutopay)
	logger.Info("Starting autopay-worker")

	rt, err := cli.OpenLedger(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	runner := services.NewAutopayRunner(rt.Ledger, cfg.AutopayConcurrency)
	stopped := make(chan struct{})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		select {
		case <-stopped:
		case <-ctx.Done():
		}
		if err := rt.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Autopay processor configured",
		"interval", cfg.AutopayInterval,
		"concurrency", cfg.AutopayConcurrency,
		"backend", cfg.DataBackend)

	go func() {
		defer close(stopped)
		runner.Run(ctx, cfg.AutopayInterval)
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Autopay-worker stopped")
}
