package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ecoiq/internal/config"
	"ecoiq/internal/ingest"
	"ecoiq/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Init("ingestd", "info")
		logger.Logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init("ingestd", cfg.LogLevel)

	s := ingest.New(cfg)
	if err := s.Run(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("ingest service exited with error")
		os.Exit(1)
	}
}
