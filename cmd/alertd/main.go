package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ecoiq/internal/config"
	"ecoiq/internal/logger"
	"ecoiq/internal/processor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Init("alertd", "info")
		logger.Logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init("alertd", cfg.LogLevel)

	p := processor.New(cfg)
	if err := p.Run(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("processor exited with error")
		os.Exit(1)
	}
}
