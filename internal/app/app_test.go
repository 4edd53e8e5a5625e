package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/completion"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/receipts"
	"github.com/dvloznov/finance-assistant/internal/seed"
	"github.com/shopspring/decimal"
)

func memoryConfig() *config.Config {
	return &config.Config{
		UserID:       "u1",
		StoreBackend: config.BackendMemory,
		ContextLimit: 10,
	}
}

func newApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), memoryConfig(), logger.NewWithWriter(io.Discard))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestNewMemoryBackend(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	objects, err := a.ObjectStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := objects.(*receipts.MemoryStore); !ok {
		t.Errorf("ObjectStore() = %T, want memory store without a bucket", objects)
	}

	js, err := a.JobStore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := js.(*inmemory.Store); !ok {
		t.Errorf("JobStore() = %T, want in-memory", js)
	}
	c, err := a.Completer(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*completion.MockCompleter); !ok {
		t.Errorf("Completer() = %T, want mock without an API key", c)
	}
}

func TestLoadGoals(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	goal := domain.Goal{
		ID:            "g1",
		Name:          "Trip",
		TargetAmount:  decimal.NewFromInt(1000),
		CurrentAmount: decimal.NewFromInt(300),
		TargetDate:    now.AddDate(1, 0, 0),
		CreatedDate:   now,
		Category:      "vacation",
		Priority:      domain.PriorityHigh,
	}
	if err := a.Store.SaveGoal(ctx, "u1", &goal); err != nil {
		t.Fatal(err)
	}
	for i, amount := range []int64{100, 200} {
		tx := domain.GoalTransaction{
			ID:     []string{"t1", "t2"}[i],
			GoalID: "g1",
			Amount: decimal.NewFromInt(amount),
			Date:   now.Add(time.Duration(i) * time.Hour),
			Type:   domain.GoalDeposit,
		}
		if err := a.Store.InsertGoalTransaction(ctx, "u1", &tx); err != nil {
			t.Fatal(err)
		}
	}

	if err := a.loadGoals(ctx); err != nil {
		t.Fatalf("loadGoals() error = %v", err)
	}
	got, err := a.Tracker.Goal("g1")
	if err != nil || !got.CurrentAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Goal() = %+v, %v", got, err)
	}
	txs, err := a.Tracker.GoalTransactions("g1")
	if err != nil || len(txs) != 2 || txs[0].ID != "t2" {
		t.Errorf("GoalTransactions() = %+v, %v", txs, err)
	}
}

func TestSeed(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	res, err := a.Seed(ctx, 7, seed.Options{Transactions: 12, Goals: 3})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if res.Transactions != 12 || res.Goals != 3 || res.Deposits != 3 {
		t.Errorf("Seed() = %+v", res)
	}
	if n := len(a.Ledger.Transactions()); n != 12 {
		t.Errorf("ledger has %d transactions", n)
	}

	summary, err := a.Memory.FinancialSummary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.ActiveGoals != 3 {
		t.Errorf("ActiveGoals = %d, want 3", summary.ActiveGoals)
	}
}

func TestAssistantUsesMockWithoutKey(t *testing.T) {
	a := newApp(t)
	asst, err := a.Assistant(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	reply, err := asst.Ask(context.Background(), "How am I doing?")
	if err != nil || reply.Message == "" || !reply.Recorded {
		t.Errorf("Ask() = %+v, %v", reply, err)
	}
}

func TestAnalyzerUsesMockWithoutKey(t *testing.T) {
	a := newApp(t)
	an, err := a.Analyzer(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := an.(*receipts.MockAnalyzer); !ok {
		t.Errorf("Analyzer() = %T, want mock without an API key", an)
	}
}
