package ledger

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/stats"
	"github.com/shopspring/decimal"
)

func TestSummary_EmptyLedger(t *testing.T) {
	l := newTestLedger()
	s := l.SummaryForCurrentMonth()

	if !s.TotalIncome.IsZero() || !s.TotalExpenses.IsZero() || !s.Balance.IsZero() {
		t.Errorf("expected zero totals, got %+v", s)
	}
	if s.TopCategories == nil || len(s.TopCategories) != 0 {
		t.Errorf("expected empty non-nil TopCategories, got %#v", s.TopCategories)
	}
}

func TestSummary_MonthScenario(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	inputs := []domain.TransactionInput{
		{Amount: amount("1000"), Date: fixedNow.AddDate(0, 0, -3), Category: "salary", Type: domain.TransactionIncome},
		{Amount: amount("400"), Date: fixedNow.AddDate(0, 0, -1), Category: "food", Type: domain.TransactionExpense},
		// Previous month, excluded from the default period.
		{Amount: amount("999"), Date: fixedNow.AddDate(0, -1, 0), Category: "rent", Type: domain.TransactionExpense},
	}
	for _, in := range inputs {
		if _, err := l.AddTransaction(ctx, in); err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}

	s := l.SummaryForCurrentMonth()

	if !s.TotalIncome.Equal(amount("1000")) {
		t.Errorf("TotalIncome = %s, want 1000", s.TotalIncome)
	}
	if !s.TotalExpenses.Equal(amount("400")) {
		t.Errorf("TotalExpenses = %s, want 400", s.TotalExpenses)
	}
	if !s.Balance.Equal(amount("600")) {
		t.Errorf("Balance = %s, want 600", s.Balance)
	}

	shares := map[string]CategoryShare{}
	for _, c := range s.TopCategories {
		shares[c.Category] = c
	}
	food, ok := shares["food"]
	if !ok {
		t.Fatalf("expected food in top categories, got %+v", s.TopCategories)
	}
	if !food.Amount.Equal(amount("400")) || !food.Percentage.Equal(amount("28.57")) {
		t.Errorf("food = %s (%s%%), want 400 (28.57%%)", food.Amount, food.Percentage)
	}
	if salary := shares["salary"]; !salary.Percentage.Equal(amount("71.43")) {
		t.Errorf("salary percentage = %s, want 71.43", salary.Percentage)
	}
	if _, ok := shares["rent"]; ok {
		t.Error("previous month's rent must be outside the current month")
	}
}

func TestSummary_TopCategoriesOrderingAndLimit(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	spend := map[string]string{
		"food":          "50",
		"bills":         "50",
		"rent":          "900",
		"transport":     "30",
		"health":        "10",
		"entertainment": "5",
		"shopping":      "75",
	}
	for category, a := range spend {
		_, err := l.AddTransaction(ctx, domain.TransactionInput{
			Amount: amount(a), Date: fixedNow, Category: category, Type: domain.TransactionExpense,
		})
		if err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}

	s := l.Summary(AllTime())
	want := []string{"rent", "shopping", "bills", "food", "transport"}
	if len(s.TopCategories) != TopCategoryLimit {
		t.Fatalf("got %d categories, want %d", len(s.TopCategories), TopCategoryLimit)
	}
	for i, c := range want {
		if s.TopCategories[i].Category != c {
			t.Errorf("position %d = %s, want %s", i, s.TopCategories[i].Category, c)
		}
	}
}

func TestSummary_BalanceIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := newTestLedger()
	ctx := context.Background()
	cats := map[domain.TransactionType][]string{
		domain.TransactionIncome:  {"salary", "freelance", "bonus"},
		domain.TransactionExpense: {"food", "rent", "bills", "transport", "health", "shopping"},
	}

	for i := 0; i < 200; i++ {
		typ := domain.TransactionExpense
		if rng.Intn(3) == 0 {
			typ = domain.TransactionIncome
		}
		options := cats[typ]
		_, err := l.AddTransaction(ctx, domain.TransactionInput{
			Amount:   decimal.New(int64(rng.Intn(100000)+1), -2),
			Date:     fixedNow.Add(-time.Duration(rng.Intn(24*365)) * time.Hour),
			Category: options[rng.Intn(len(options))],
			Type:     typ,
		})
		if err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}

		s := l.Summary(AllTime())
		if !s.TotalIncome.Sub(s.TotalExpenses).Equal(s.Balance) {
			t.Fatalf("income - expenses != balance after %d transactions", i+1)
		}
		topSum := stats.SumBy(s.TopCategories, func(c CategoryShare) decimal.Decimal { return c.Amount })
		if topSum.GreaterThan(s.TotalIncome.Add(s.TotalExpenses)) {
			t.Fatalf("top categories exceed turnover after %d transactions", i+1)
		}
	}
}

func TestPeriod_Contains(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	now := time.Date(2026, 2, 14, 9, 0, 0, 0, loc)
	p := CurrentMonth(now)

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{name: "first instant", t: time.Date(2026, 2, 1, 0, 0, 0, 0, loc), want: true},
		{name: "last day", t: time.Date(2026, 2, 28, 23, 59, 0, 0, loc), want: true},
		{name: "next month start", t: time.Date(2026, 3, 1, 0, 0, 0, 0, loc), want: false},
		{name: "before start in UTC terms", t: time.Date(2026, 2, 1, 2, 0, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}

	if !AllTime().Contains(time.Time{}.Add(time.Hour)) {
		t.Error("AllTime must contain every instant")
	}
}
