package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/categories"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/dvloznov/finance-assistant/internal/store/inmemory"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2026, 5, 15, 10, 0, 0, 0, time.UTC)

func newTestLedger(opts ...Option) *Ledger {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(categories.Default(), opts...)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAddTransaction_Validation(t *testing.T) {
	badConfidence := 1.5

	tests := []struct {
		name      string
		input     domain.TransactionInput
		wantErr   bool
		wantField string
	}{
		{
			name:  "valid expense",
			input: domain.TransactionInput{Amount: amount("12.50"), Category: "food", Type: domain.TransactionExpense},
		},
		{
			name:      "zero amount",
			input:     domain.TransactionInput{Amount: decimal.Zero, Category: "food", Type: domain.TransactionExpense},
			wantErr:   true,
			wantField: "amount",
		},
		{
			name:      "negative amount",
			input:     domain.TransactionInput{Amount: amount("-3"), Category: "food", Type: domain.TransactionExpense},
			wantErr:   true,
			wantField: "amount",
		},
		{
			name:      "unknown category",
			input:     domain.TransactionInput{Amount: amount("3"), Category: "crypto", Type: domain.TransactionExpense},
			wantErr:   true,
			wantField: "category",
		},
		{
			name:      "unknown type",
			input:     domain.TransactionInput{Amount: amount("3"), Category: "food", Type: "transfer"},
			wantErr:   true,
			wantField: "type",
		},
		{
			name:      "confidence out of range",
			input:     domain.TransactionInput{Amount: amount("3"), Category: "food", Type: domain.TransactionExpense, Confidence: &badConfidence},
			wantErr:   true,
			wantField: "confidence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger()
			tx, err := l.AddTransaction(context.Background(), tt.input)

			if (err != nil) != tt.wantErr {
				t.Fatalf("AddTransaction() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var verr *domain.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected ValidationError, got %T", err)
				}
				if verr.Field != tt.wantField {
					t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
				}
				if l.Len() != 0 {
					t.Error("rejected input must not mutate the ledger")
				}
				return
			}
			if tx.ID == "" {
				t.Error("expected an assigned ID")
			}
			if !tx.Date.Equal(fixedNow) {
				t.Errorf("zero date should default to now, got %v", tx.Date)
			}
		})
	}
}

func TestTransactions_Ordering(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	add := func(desc string, date time.Time) {
		t.Helper()
		_, err := l.AddTransaction(ctx, domain.TransactionInput{
			Amount: amount("1"), Date: date, Description: desc, Category: "food", Type: domain.TransactionExpense,
		})
		if err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}

	add("old", day.AddDate(0, 0, -3))
	add("first same day", day)
	add("newest", day.AddDate(0, 0, 2))
	add("second same day", day)

	got := l.Transactions()
	want := []string{"newest", "second same day", "first same day", "old"}
	for i, desc := range want {
		if got[i].Description != desc {
			t.Errorf("position %d = %q, want %q", i, got[i].Description, desc)
		}
	}
}

func TestAddTransaction_Sink(t *testing.T) {
	ctx := context.Background()
	s := inmemory.NewStore()
	l := newTestLedger(WithSink("u1", s))

	tx, err := l.AddTransaction(ctx, domain.TransactionInput{
		Amount: amount("1000"), Category: "salary", Type: domain.TransactionIncome, Description: "May salary",
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	entries, err := s.ListFinancialContext(ctx, "u1", store.Filter{})
	if err != nil {
		t.Fatalf("ListFinancialContext: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID != tx.ID || entries[0].Kind != domain.ContextIncome || !entries[0].Amount.Equal(tx.Amount) {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

type failingSink struct{}

func (failingSink) InsertFinancialContext(ctx context.Context, entry *domain.FinancialContextEntry) error {
	return errors.New("connection refused")
}

func (failingSink) ListFinancialContext(ctx context.Context, userID string, filter store.Filter) ([]domain.FinancialContextEntry, error) {
	return nil, errors.New("connection refused")
}

func TestAddTransaction_SinkFailureKeepsLocalAppend(t *testing.T) {
	l := newTestLedger(WithSink("u1", failingSink{}))

	tx, err := l.AddTransaction(context.Background(), domain.TransactionInput{
		Amount: amount("20"), Category: "transport", Type: domain.TransactionExpense,
	})
	if !domain.IsStorage(err) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if tx.ID == "" {
		t.Error("expected the stored transaction to be returned")
	}
	if l.Len() != 1 {
		t.Errorf("expected local append to survive, got %d transactions", l.Len())
	}
}
