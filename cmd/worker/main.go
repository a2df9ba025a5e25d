package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"videochain/internal/bootstrap"
	"videochain/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := infra.SetupTelemetry(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: telemetry setup failed")
	}
	defer func() {
		if err := shutdownTelemetry(context.WithoutCancel(ctx)); err != nil {
			logger.Error().Err(err).Msg("worker: telemetry flush failed")
		}
	}()

	svc, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build services")
	}
	defer svc.Close()
	if svc.Jobs == nil {
		logger.Fatal().Msg("worker: the job queue needs a postgres DATABASE_URL")
	}

	worker := &jobWorker{
		ctx:          ctx,
		jobs:         svc.Jobs,
		chain:        svc.Orchestrator,
		logger:       logger,
		pollInterval: cfg.WorkerPollInterval,
	}
	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
		return
	}
	logger.Info().Msg("worker: stopped")
}
