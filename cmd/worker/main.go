package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"tenismatch/internal/automation"
	"tenismatch/internal/config"
	"tenismatch/internal/logging"
	"tenismatch/internal/queue"
	"tenismatch/internal/service"
	"tenismatch/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatal().Err(err).Msg("invalid worker config")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	srv, err := queue.NewAsynqServer(cfg.RedisURL, cfg.WorkerConcurrency, cfg.WorkerQueues, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create worker")
	}
	sched, err := queue.NewAsynqScheduler(cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create scheduler")
	}

	archiver := service.NewArchiveService(st.Conversations, logger)
	if err := automation.Register(srv, sched, archiver, cfg.ArchiveAfter, cfg.ArchiveCron, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to register jobs")
	}

	if cfg.ArchiveOnStart {
		client, err := queue.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create queue client")
		}
		defer client.Close()
		// Catch up on sweeps missed while no worker was running.
		if err := automation.EnqueueArchive(ctx, client, 0, logger); err != nil {
			logger.Warn().Err(err).Msg("startup archive sweep not queued")
		}
	}

	var wg sync.WaitGroup
	for name, run := range map[string]func(context.Context) error{"worker": srv.Run, "scheduler": sched.Run} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				logger.Error().Err(err).Str("component", name).Msg("stopped with error")
				stop()
			}
		}()
	}
	logger.Info().Str("cron", cfg.ArchiveCron).Dur("archive_after", cfg.ArchiveAfter).Msg("worker started")
	wg.Wait()
	logger.Info().Msg("worker stopped")
}
