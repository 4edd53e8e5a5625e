package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-assistant/internal/api"
	"github.com/dvloznov/finance-assistant/internal/app"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	amqpjobs "github.com/dvloznov/finance-assistant/internal/jobs/amqp"
	"github.com/dvloznov/finance-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/receipts"
	"github.com/dvloznov/finance-assistant/internal/seed"
)

func main() {
	config.LoadEnvFiles()
	cfg := config.Load()

	var (
		port    = flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
		backend = flag.String("backend", cfg.StoreBackend, "store backend: memory, postgres or bigquery (or set STORE_BACKEND env)")
		seedRun = flag.Bool("seed", cfg.SeedDemo, "populate the store with generated demo data on start")
	)
	flag.Parse()
	cfg.Port = *port
	cfg.StoreBackend = *backend

	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "api"})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithUser(logger.WithContext(context.Background(), log), cfg.UserID)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to initialize services")
	}
	defer a.Close()

	if *seedRun {
		res, err := a.Seed(ctx, time.Now().UnixNano(), seed.Options{Transactions: 60, Goals: 4})
		if err != nil {
			log.Error().Err(err).Msg("Failed to seed demo data")
		} else {
			log.Info().Int("transactions", res.Transactions).Int("goals", res.Goals).Msg("Seeded demo data")
		}
	}

	asst, err := a.Assistant(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create completer")
	}

	objects, err := a.ObjectStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create receipt store")
	}
	jobStore, err := a.JobStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create job store")
	}

	// Without a broker the API analyzes receipts itself.
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var (
		publisher jobs.Publisher
		queue     *inmemory.Queue
	)
	if cfg.AMQPURL != "" {
		client, err := amqpjobs.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, jobStore)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		if cfg.RedisAddr == "" {
			log.Warn().Msg("AMQP without REDIS_ADDR: job status written by the worker is not visible to the API")
		}
		publisher = client
	} else {
		queue = inmemory.NewQueue(100, jobStore)
		analyzer, err := a.Analyzer(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create receipt analyzer")
		}
		handler := receipts.NewJobHandler(objects, analyzer)
		if err := queue.Start(workerCtx, handler); err != nil {
			log.Fatal().Err(err).Msg("Failed to start receipt worker")
		}
		log.Info().Msg("Started embedded receipt worker")
		publisher = queue
	}

	handler := api.NewRouter(api.Deps{
		Log:       log,
		Registry:  a.Registry,
		Ledger:    a.Ledger,
		Tracker:   a.Tracker,
		Memory:    a.Memory,
		Assistant: asst,
		Receipts:  receipts.NewService(objects, publisher, jobStore, cfg.UserID),
		Metrics:   a.Metrics,
		Gatherer:  a.Prometheus,
		StartedAt: time.Now(),
		Backend:   cfg.StoreBackend,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("backend", cfg.StoreBackend).
			Str("user_id", cfg.UserID).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancelWorker()
	if queue != nil {
		if err := queue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
	}
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job publisher")
	}

	log.Info().Msg("Server exited")
}
