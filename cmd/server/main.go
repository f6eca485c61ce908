package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"tenismatch/internal/app"
	"tenismatch/internal/config"
	"tenismatch/internal/logging"
)

// @title           tenismatch messaging API
// @version         1.0
// @description     Conversations, messages, read markers and presence between players.

// @host            localhost:8000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, "server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	if err := a.Serve(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		a.Close()
		os.Exit(1)
	}
}
