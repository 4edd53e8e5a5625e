package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/infra/bigquery"
	"github.com/dvloznov/finance-assistant/internal/infra/postgres"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

type options struct {
	backend     string
	databaseURL string
	projectID   string
	datasetID   string
	appliedBy   string
	down        int
	status      bool
}

func main() {
	config.LoadEnvFiles()
	cfg := config.Load()
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "migrate"})

	var opts options
	flag.StringVar(&opts.backend, "backend", cfg.StoreBackend, "postgres or bigquery (or set STORE_BACKEND env)")
	flag.StringVar(&opts.databaseURL, "database-url", cfg.DatabaseURL, "Postgres URL (or set DATABASE_URL env)")
	flag.StringVar(&opts.projectID, "project", cfg.BigQueryProject, "GCP project ID (or set BIGQUERY_PROJECT env)")
	flag.StringVar(&opts.datasetID, "dataset", cfg.BigQueryDataset, "BigQuery dataset ID")
	flag.StringVar(&opts.appliedBy, "applied-by", "migrate-cli", "Name of the tool applying migrations")
	flag.IntVar(&opts.down, "down", 0, "Postgres only: roll back this many migrations instead of applying")
	flag.BoolVar(&opts.status, "status", false, "Postgres only: print the schema version and exit")
	flag.Parse()

	if err := opts.validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	switch opts.backend {
	case config.BackendPostgres:
		switch {
		case opts.status:
			version, dirty, err := postgres.MigrationVersion(opts.databaseURL)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to read schema version")
			}
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		case opts.down > 0:
			if err := postgres.RollbackMigrations(opts.databaseURL, opts.down); err != nil {
				log.Fatal().Err(err).Int("steps", opts.down).Msg("Rollback failed")
			}
			log.Info().Int("steps", opts.down).Msg("Rolled back Postgres migrations")
		default:
			if err := postgres.RunMigrations(opts.databaseURL); err != nil {
				log.Fatal().Err(err).Msg("Migration failed")
			}
			log.Info().Msg("Postgres schema is up to date")
		}

	case config.BackendBigQuery:
		store, err := bigquery.NewStore(ctx, opts.projectID, opts.datasetID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer store.Close()

		log.Info().Str("project", opts.projectID).Str("dataset", opts.datasetID).Msg("Connected to BigQuery")

		applied, err := store.Migrate(ctx, opts.appliedBy)
		if err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
		if applied == 0 {
			log.Info().Msg("No new migrations to apply. Dataset is up to date.")
		} else {
			log.Info().Int("applied", applied).Msg("Applied BigQuery migrations")
		}
	}
}

// validate checks that the flags name a migratable backend and carry what
// that backend needs.
func (o options) validate() error {
	switch o.backend {
	case config.BackendPostgres:
		if o.databaseURL == "" {
			return fmt.Errorf("-database-url is required for postgres")
		}
	case config.BackendBigQuery:
		if o.projectID == "" {
			return fmt.Errorf("-project is required for bigquery")
		}
		if o.datasetID == "" {
			return fmt.Errorf("-dataset is required for bigquery")
		}
		if o.down > 0 || o.status {
			return fmt.Errorf("-down and -status are only supported for postgres")
		}
	default:
		return fmt.Errorf("-backend must be %s or %s, got %q", config.BackendPostgres, config.BackendBigQuery, o.backend)
	}
	if o.down < 0 {
		return fmt.Errorf("-down must not be negative")
	}
	if o.down > 0 && o.status {
		return fmt.Errorf("-down and -status are mutually exclusive")
	}
	return nil
}
