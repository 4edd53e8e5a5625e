package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/finance-assistant/internal/app"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/receipts"
	"github.com/dvloznov/finance-assistant/internal/seed"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app.App, args []string) (any, error)
}

var commands = []command{
	{"seed", "Populate the store with generated transactions and goals", runSeed},
	{"summary", "Print the financial summary built from stored context", runSummary},
	{"goals", "List savings goals", runGoals},
	{"stats", "Print goal statistics", runStats},
	{"context", "Print the context bundle the assistant would see", runContext},
	{"chat", "Ask the assistant one question", runChat},
	{"analyze", "Analyze a local receipt image", runAnalyze},
}

func main() {
	config.LoadEnvFiles()
	cfg := config.Load()
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "cli"})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage()
		return
	}
	cmd, ok := findCommand(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn().Msg("Using the memory backend: nothing is kept after this command exits")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	out, err := cmd.run(ctx, a, os.Args[2:])
	if err != nil {
		log.Fatal().Err(err).Str("command", name).Msg("Command failed")
	}
	if err := printJSON(out); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage() {
	fmt.Println("Finance Assistant CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	for _, c := range commands {
		fmt.Printf("  %-9s %s\n", c.name, c.usage)
	}
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSeed(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	transactions := fs.Int("transactions", 60, "number of transactions to generate")
	goalCount := fs.Int("goals", 4, "number of goals to generate")
	seedValue := fs.Int64("seed", time.Now().UnixNano(), "random seed; reuse it to regenerate the same data")
	fs.Parse(args)

	if *transactions < 0 || *goalCount < 0 {
		return nil, fmt.Errorf("-transactions and -goals must not be negative")
	}

	return a.Seed(ctx, *seedValue, seed.Options{Transactions: *transactions, Goals: *goalCount})
}

func runSummary(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	fs.Parse(args)
	return a.Memory.FinancialSummary(ctx)
}

func runGoals(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := flag.NewFlagSet("goals", flag.ExitOnError)
	id := fs.String("id", "", "show one goal with its progress and transactions")
	fs.Parse(args)

	if *id == "" {
		return a.Tracker.ListGoals(), nil
	}
	goal, err := a.Tracker.Goal(*id)
	if err != nil {
		return nil, err
	}
	progress, err := a.Tracker.Progress(*id)
	if err != nil {
		return nil, err
	}
	txs, err := a.Tracker.GoalTransactions(*id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"goal": goal, "progress": progress, "transactions": txs}, nil
}

func runStats(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(args)
	return a.Tracker.Stats(), nil
}

func runContext(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	query := fs.String("query", "", "query the context is assembled for")
	limit := fs.Int("limit", a.Config.ContextLimit, "maximum entries per source")
	fs.Parse(args)

	return a.Memory.AssembleContext(ctx, *query, *limit), nil
}

func runChat(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	message := fs.String("message", "", "question for the assistant")
	fs.Parse(args)

	if *message == "" {
		return nil, fmt.Errorf("-message is required")
	}
	asst, err := a.Assistant(ctx)
	if err != nil {
		return nil, err
	}
	return asst.Ask(ctx, *message)
}

func runAnalyze(ctx context.Context, a *app.App, args []string) (any, error) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	filePath := fs.String("file", "", "path to a receipt image")
	confirm := fs.Bool("confirm", false, "add the suggested transaction to the ledger")
	fs.Parse(args)

	if *filePath == "" {
		return nil, fmt.Errorf("-file is required")
	}
	image, err := os.ReadFile(*filePath)
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	if len(image) > receipts.MaxImageSize {
		return nil, fmt.Errorf("receipt is larger than %d bytes", receipts.MaxImageSize)
	}

	analyzer, err := a.Analyzer(ctx)
	if err != nil {
		return nil, err
	}
	analysis, err := analyzer.Analyze(ctx, image, contentTypeOf(*filePath, image))
	if err != nil {
		return nil, err
	}
	if !*confirm {
		return analysis, nil
	}

	tx, err := a.Ledger.AddTransaction(ctx, receipts.TransactionInput(analysis, time.Now()))
	if err != nil {
		return nil, err
	}
	return map[string]any{"analysis": analysis, "transaction": tx}, nil
}

// contentTypeOf prefers the file extension and falls back to sniffing.
func contentTypeOf(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
