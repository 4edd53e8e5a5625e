package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-assistant/internal/app"
	"github.com/dvloznov/finance-assistant/internal/config"
	amqpjobs "github.com/dvloznov/finance-assistant/internal/jobs/amqp"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/notionsync"
	"github.com/dvloznov/finance-assistant/internal/receipts"
	"github.com/robfig/cron/v3"
)

func main() {
	config.LoadEnvFiles()
	cfg := config.Load()
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "worker"})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.AMQPURL == "" && cfg.NotionToken == "" {
		log.Fatal().Msg("Nothing to do: set AMQP_URL to consume receipt jobs or NOTION_TOKEN to sync goals")
	}

	ctx, cancel := context.WithCancel(logger.WithUser(logger.WithContext(context.Background(), log), cfg.UserID))
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	log.Info().Msg("Starting worker service")

	var consumer *amqpjobs.Client
	if cfg.AMQPURL != "" {
		objects, err := a.ObjectStore(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create receipt store")
		}
		jobStore, err := a.JobStore(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create job store")
		}

		consumer, err = amqpjobs.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, jobStore)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		analyzer, err := a.Analyzer(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create receipt analyzer")
		}
		handler := receipts.NewJobHandler(objects, analyzer)
		consumerCtx := logger.WithContext(ctx, logger.Component(log, "receipt-consumer"))
		if err := consumer.Start(consumerCtx, handler); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job consumer")
		}
		log.Info().Str("queue", cfg.AMQPQueue).Msg("Consuming receipt jobs")
	}

	var scheduler *cron.Cron
	if cfg.NotionToken != "" {
		if cfg.StoreBackend == config.BackendMemory {
			log.Warn().Msg("Notion sync with the memory backend exports only goals created by this process")
		}
		syncer := notionsync.NewSyncer(a.Store, notionsync.NewGoalDatabase(cfg.NotionToken, cfg.NotionGoalsDB), cfg.UserID)

		scheduler = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
		_, err := scheduler.AddFunc(cfg.NotionSyncSchedule, func() {
			runCtx, runCancel := context.WithTimeout(logger.WithContext(ctx, logger.Component(log, "notion-sync")), 10*time.Minute)
			defer runCancel()

			res, err := syncer.SyncGoals(runCtx, false)
			if err != nil {
				log.Error().Err(err).Msg("Scheduled Notion sync failed")
				return
			}
			log.Info().
				Int("created", res.Created).
				Int("updated", res.Updated).
				Int("archived", res.Archived).
				Int("failed", res.Failed).
				Msg("Scheduled Notion sync completed")
		})
		if err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.NotionSyncSchedule).Msg("Invalid Notion sync schedule")
		}
		scheduler.Start()
		log.Info().Str("schedule", cfg.NotionSyncSchedule).Msg("Scheduled Notion goal sync")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn().Msg("Notion sync still running at shutdown")
		}
	}

	cancel()

	if consumer != nil {
		if err := consumer.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error during graceful shutdown")
		}
		if err := consumer.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close AMQP client")
		}
	}

	log.Info().Msg("Worker service exited")
}
