package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/finance-assistant/internal/app"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/notionsync"
)

func main() {
	config.LoadEnvFiles()
	cfg := config.Load()
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "sync-notion"})

	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", cfg.NotionGoalsDB, "Notion goals database ID (or set NOTION_GOALS_DB env)")
	backend := flag.String("backend", cfg.StoreBackend, "store backend to read goals from")
	userID := flag.String("user", cfg.UserID, "user whose goals are exported")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}
	cfg.NotionToken = *notionToken
	cfg.NotionGoalsDB = *notionDBID
	cfg.StoreBackend = *backend
	cfg.UserID = *userID

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.StoreBackend == config.BackendMemory {
		log.Fatal().Msg("Error: the memory backend holds no goals between runs; use postgres or bigquery")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer a.Close()

	syncer := notionsync.NewSyncer(a.Store, notionsync.NewGoalDatabase(cfg.NotionToken, cfg.NotionGoalsDB), cfg.UserID)
	res, err := syncer.SyncGoals(ctx, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed\n",
		res.Created, res.Updated, res.Archived, res.Failed)
}
