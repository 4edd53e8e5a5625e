// Package app builds the services shared by the commands from one Config.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/categories"
	"github.com/dvloznov/finance-assistant/internal/completion"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/goals"
	"github.com/dvloznov/finance-assistant/internal/infra/bigquery"
	"github.com/dvloznov/finance-assistant/internal/infra/postgres"
	"github.com/dvloznov/finance-assistant/internal/infra/rediscache"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/finance-assistant/internal/jobs/redisstore"
	"github.com/dvloznov/finance-assistant/internal/ledger"
	"github.com/dvloznov/finance-assistant/internal/memory"
	"github.com/dvloznov/finance-assistant/internal/metrics"
	"github.com/dvloznov/finance-assistant/internal/receipts"
	"github.com/dvloznov/finance-assistant/internal/seed"
	"github.com/dvloznov/finance-assistant/internal/store"
	storemem "github.com/dvloznov/finance-assistant/internal/store/inmemory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds the services of one user.
type App struct {
	Config     *config.Config
	Log        zerolog.Logger
	Registry   *categories.Registry
	Prometheus *prometheus.Registry
	Metrics    *metrics.Collectors
	Store      store.Store
	Ledger     *ledger.Ledger
	Tracker    *goals.Tracker
	Memory     *memory.Assembler

	redis   *redis.Client
	closers []func() error
}

// New opens the configured store and builds the ledger, goal tracker and
// memory service on it. Goals already in the store are loaded into the
// tracker.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{
		Config:     cfg,
		Log:        log,
		Registry:   categories.Default(),
		Prometheus: prometheus.NewRegistry(),
	}
	a.Prometheus.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Prometheus)

	s, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = s

	a.Ledger = ledger.New(a.Registry, ledger.WithSink(cfg.UserID, s))
	a.Tracker = goals.New(a.Registry, goals.WithSink(cfg.UserID, s), goals.WithMetrics(a.Metrics))
	a.Memory = memory.New(s, memory.Config{UserID: cfg.UserID}, memory.WithMetrics(a.Metrics))

	if err := a.loadGoals(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	cfg := a.Config

	var s store.Store
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s = pg
	case config.BackendBigQuery:
		bq, err := bigquery.NewStore(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			return nil, err
		}
		s = bq
	default:
		s = storemem.NewStore()
	}
	a.closers = append(a.closers, s.Close)

	if cfg.RedisAddr == "" {
		return s, nil
	}
	client, err := a.redisClient(ctx)
	if err != nil {
		return nil, err
	}
	a.Log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.RedisTTL).Msg("Caching preferences in Redis")
	return rediscache.New(s, client, cfg.RedisTTL), nil
}

func (a *App) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := rediscache.Connect(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *App) loadGoals(ctx context.Context) error {
	userID := a.Config.UserID

	list, err := a.Store.ListGoals(ctx, userID)
	if err != nil {
		return fmt.Errorf("loadGoals: list goals: %w", err)
	}

	var txs []domain.GoalTransaction
	for _, g := range list {
		goalTxs, err := a.Store.ListGoalTransactions(ctx, userID, g.ID)
		if err != nil {
			return fmt.Errorf("loadGoals: list transactions of %s: %w", g.ID, err)
		}
		// Stored newest first; the tracker expects insertion order.
		for i := len(goalTxs) - 1; i >= 0; i-- {
			txs = append(txs, goalTxs[i])
		}
	}

	a.Tracker.Load(list, txs)
	if len(list) > 0 {
		a.Log.Info().Int("goals", len(list)).Int("transactions", len(txs)).Msg("Loaded goals from store")
	}
	return nil
}

// Seed fills the ledger, tracker and financial context with generated data.
func (a *App) Seed(ctx context.Context, seedValue int64, opts seed.Options) (seed.Result, error) {
	gen := seed.NewGenerator(seedValue, a.Registry)
	return gen.Populate(ctx, a.Ledger, a.Tracker, a.Memory, opts)
}

// Completer returns the Gemini completer when an API key is configured and
// the deterministic mock otherwise.
func (a *App) Completer(ctx context.Context) (completion.Completer, error) {
	if a.Config.GeminiAPIKey == "" {
		a.Log.Warn().Msg("GEMINI_API_KEY not set, using mock completer")
		return &completion.MockCompleter{}, nil
	}
	return completion.NewGeminiCompleter(ctx, a.Config.GeminiAPIKey, a.Config.GeminiModel)
}

// Assistant builds the chat assistant on the configured completer.
func (a *App) Assistant(ctx context.Context) (*assistant.Assistant, error) {
	completer, err := a.Completer(ctx)
	if err != nil {
		return nil, err
	}
	return assistant.New(a.Memory, completer,
		assistant.WithContextLimit(a.Config.ContextLimit),
		assistant.WithMetrics(a.Metrics),
	), nil
}

// Analyzer returns the Gemini receipt analyzer when an API key is
// configured and the deterministic mock otherwise.
func (a *App) Analyzer(ctx context.Context) (receipts.Analyzer, error) {
	if a.Config.GeminiAPIKey == "" {
		a.Log.Warn().Msg("GEMINI_API_KEY not set, using mock receipt analyzer")
		return receipts.NewMockAnalyzer(a.Registry), nil
	}
	return receipts.NewGeminiAnalyzer(ctx, a.Config.GeminiAPIKey, a.Config.GeminiModel, a.Registry)
}

// ObjectStore returns the receipt store: a GCS bucket when configured, else
// process memory.
func (a *App) ObjectStore(ctx context.Context) (receipts.ObjectStore, error) {
	if a.Config.GCSBucket == "" {
		return receipts.NewMemoryStore(), nil
	}
	gcs, err := receipts.NewGCSStore(ctx, a.Config.GCSBucket)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, gcs.Close)
	return gcs, nil
}

// JobStore returns the job state store. Redis is used when configured so
// that the API and a separate worker see the same jobs.
func (a *App) JobStore(ctx context.Context) (jobs.JobStore, error) {
	if a.Config.RedisAddr == "" {
		return inmemory.NewStore(), nil
	}
	client, err := a.redisClient(ctx)
	if err != nil {
		return nil, err
	}
	return redisstore.New(client, redisstore.DefaultTTL), nil
}

// Close releases everything New and the other constructors opened, newest
// first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Error().Err(err).Msg("Failed to close resource")
		}
	}
	a.closers = nil
}
