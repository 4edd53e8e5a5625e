package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/categories"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/goals"
	"github.com/dvloznov/finance-assistant/internal/ledger"
	"github.com/dvloznov/finance-assistant/internal/memory"
	"github.com/dvloznov/finance-assistant/internal/store/inmemory"
	"github.com/shopspring/decimal"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestGeneratorDeterministic(t *testing.T) {
	reg := categories.Default()
	a := NewGenerator(42, reg).Transactions(20, now)
	b := NewGenerator(42, reg).Transactions(20, now)

	for i := range a {
		if !a[i].Amount.Equal(b[i].Amount) || a[i].Category != b[i].Category || !a[i].Date.Equal(b[i].Date) {
			t.Fatalf("transaction %d differs between runs with the same seed", i)
		}
	}
}

func TestTransactionsAreValid(t *testing.T) {
	reg := categories.Default()
	for _, in := range NewGenerator(7, reg).Transactions(200, now) {
		if !in.Amount.IsPositive() {
			t.Errorf("amount %s not positive", in.Amount)
		}
		cat, ok := reg.Category(in.Category)
		if !ok || !cat.AppliesTo(in.Type) {
			t.Errorf("category %q does not apply to %s", in.Category, in.Type)
		}
		if in.Date.After(now) || in.Date.Before(now.AddDate(0, 0, -31)) {
			t.Errorf("date %v outside the last 30 days", in.Date)
		}
	}
}

func TestPopulate(t *testing.T) {
	ctx := context.Background()
	reg := categories.Default()
	st := inmemory.NewStore()
	clock := func() time.Time { return now }

	l := ledger.New(reg, ledger.WithClock(clock), ledger.WithSink(memory.DefaultUserID, st))
	tr := goals.New(reg, goals.WithClock(clock), goals.WithSink(memory.DefaultUserID, st))
	asm := memory.New(st, memory.Config{}, memory.WithClock(clock))

	res, err := NewGenerator(1, reg).Populate(ctx, l, tr, asm, Options{Transactions: 30, Goals: 4, Now: now})
	if err != nil {
		t.Fatalf("Populate() error = %v", err)
	}
	if res.Transactions != 30 || res.Goals != 4 || res.Deposits != 4 {
		t.Errorf("Populate() = %+v", res)
	}
	if l.Len() != 30 {
		t.Errorf("ledger has %d transactions", l.Len())
	}

	for _, g := range tr.ListGoals() {
		if !g.CurrentAmount.IsPositive() || g.CurrentAmount.GreaterThan(g.TargetAmount) {
			t.Errorf("goal %s current = %s of %s", g.ID, g.CurrentAmount, g.TargetAmount)
		}
	}

	summary, err := asm.FinancialSummary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.ActiveGoals != 4 {
		t.Errorf("ActiveGoals = %d, want 4", summary.ActiveGoals)
	}
	if !summary.Balance.Equal(summary.TotalIncome.Sub(summary.TotalExpenses)) {
		t.Errorf("balance = %s", summary.Balance)
	}
}

type failingLedger struct{}

func (failingLedger) AddTransaction(ctx context.Context, input domain.TransactionInput) (domain.Transaction, error) {
	return domain.Transaction{}, errors.New("disk full")
}

func TestPopulateStopsOnFailure(t *testing.T) {
	reg := categories.Default()
	res, err := NewGenerator(1, reg).Populate(context.Background(), failingLedger{}, goals.New(reg), nil, Options{Transactions: 3, Goals: 1, Now: now})
	if err == nil {
		t.Fatal("Populate() succeeded")
	}
	if res.Transactions != 0 || res.Goals != 0 {
		t.Errorf("Populate() = %+v", res)
	}
}

func TestDepositFraction(t *testing.T) {
	g := NewGenerator(3, categories.Default())
	target := decimal.NewFromInt(1000)
	for i := 0; i < 50; i++ {
		got := g.DepositFraction(target)
		if got.LessThan(decimal.NewFromInt(50)) || got.GreaterThan(decimal.NewFromInt(600)) {
			t.Fatalf("DepositFraction() = %s", got)
		}
	}
}
