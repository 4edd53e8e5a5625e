// Package ledger owns the transaction list and computes period summaries.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/finance-assistant/internal/categories"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/dvloznov/finance-assistant/internal/validation"
	"github.com/google/uuid"
)

// Ledger holds transactions in memory. When a sink is configured every
// accepted transaction is also written to it as a financial-context entry.
type Ledger struct {
	registry *categories.Registry
	now      func() time.Time

	sink   store.FinancialContextStore
	userID string

	mu      sync.RWMutex
	entries []entry
	seq     int64
}

// entry pairs a transaction with its insertion sequence for tie-breaking.
type entry struct {
	tx  domain.Transaction
	seq int64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithSink forwards accepted transactions for userID to sink.
func WithSink(userID string, sink store.FinancialContextStore) Option {
	return func(l *Ledger) {
		l.userID = userID
		l.sink = sink
	}
}

// New creates an empty ledger validating categories against registry.
func New(registry *categories.Registry, opts ...Option) *Ledger {
	l := &Ledger{
		registry: registry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddTransaction validates input, assigns an id and appends it.
//
// If the sink write fails the transaction stays in the ledger and is
// returned together with a *domain.StorageError so the caller can retry.
func (l *Ledger) AddTransaction(ctx context.Context, input domain.TransactionInput) (domain.Transaction, error) {
	if err := l.validate(&input); err != nil {
		return domain.Transaction{}, err
	}

	tx := domain.Transaction{
		ID:            uuid.New().String(),
		Amount:        input.Amount,
		Date:          input.Date,
		Description:   input.Description,
		Establishment: input.Establishment,
		Category:      categories.Normalize(input.Category),
		Type:          input.Type,
		PaymentMethod: input.PaymentMethod,
		Recurring:     input.Recurring,
		Confidence:    input.Confidence,
	}
	if tx.Date.IsZero() {
		tx.Date = l.now()
	}

	l.mu.Lock()
	l.seq++
	l.entries = append(l.entries, entry{tx: tx, seq: l.seq})
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.Persist(ctx, tx); err != nil {
			return tx, err
		}
	}

	return tx, nil
}

// Persist writes tx to the sink. It is used by AddTransaction and by callers
// retrying after a StorageError.
func (l *Ledger) Persist(ctx context.Context, tx domain.Transaction) error {
	if l.sink == nil {
		return nil
	}

	e := domain.FinancialContextFromTransaction(l.userID, tx, l.now())
	if err := l.sink.InsertFinancialContext(ctx, &e); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to persist transaction")
		return domain.NewStorageError("insert financial context", err)
	}
	return nil
}

func (l *Ledger) validate(input *domain.TransactionInput) error {
	if !input.Amount.IsPositive() {
		return domain.NewValidationError("amount", "must be a positive number")
	}
	if !input.Type.Valid() {
		return domain.NewValidationError("type", "must be income or expense")
	}
	if _, ok := l.registry.Category(input.Category); !ok {
		return domain.NewValidationError("category", "unknown category "+input.Category)
	}
	if input.Confidence != nil && (*input.Confidence < 0 || *input.Confidence > 1) {
		return domain.NewValidationError("confidence", "must be between 0 and 1")
	}
	return validation.Struct(input)
}

// Transactions returns every transaction, newest date first. Equal dates
// are ordered by most recent insertion first.
func (l *Ledger) Transactions() []domain.Transaction {
	l.mu.RLock()
	sorted := make([]entry, len(l.entries))
	copy(sorted, l.entries)
	l.mu.RUnlock()

	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].tx.Date.Equal(sorted[j].tx.Date) {
			return sorted[i].tx.Date.After(sorted[j].tx.Date)
		}
		return sorted[i].seq > sorted[j].seq
	})

	out := make([]domain.Transaction, len(sorted))
	for i, e := range sorted {
		out[i] = e.tx
	}
	return out
}

// Transaction returns the transaction with id.
func (l *Ledger) Transaction(id string) (domain.Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if e.tx.ID == id {
			return e.tx, true
		}
	}
	return domain.Transaction{}, false
}

// Len returns the number of transactions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
