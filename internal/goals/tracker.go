// Package goals tracks savings goals, their deposits and withdrawals, and
// the monthly contribution each goal still needs.
package goals

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/finance-assistant/internal/categories"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/metrics"
	"github.com/dvloznov/finance-assistant/internal/stats"
	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/dvloznov/finance-assistant/internal/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultDepositDescription labels deposits made without a description.
const DefaultDepositDescription = "Deposit"

// DefaultWithdrawalDescription labels withdrawals made without a description.
const DefaultWithdrawalDescription = "Withdrawal"

// Tracker owns goals and goal transactions. All mutations are serialized,
// so concurrent deposits to one goal never lose an update. writeMu is held
// from a mutation through its sink write, so the store sees changes in the
// order they were applied; mu only guards the in-memory state and readers
// never wait on the sink.
type Tracker struct {
	registry *categories.Registry
	now      func() time.Time
	metrics  *metrics.Collectors

	sink   store.GoalStore
	userID string

	writeMu sync.Mutex

	mu    sync.RWMutex
	goals map[string]*goalEntry
	seq   int64
	txs   []txEntry
}

type goalEntry struct {
	goal domain.Goal
	seq  int64
}

type txEntry struct {
	tx  domain.GoalTransaction
	seq int64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source used for created dates and for the
// months-remaining calculation.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithSink writes every goal change for userID to sink.
func WithSink(userID string, sink store.GoalStore) Option {
	return func(t *Tracker) {
		t.userID = userID
		t.sink = sink
	}
}

// WithMetrics records goal contributions on m.
func WithMetrics(m *metrics.Collectors) Option {
	return func(t *Tracker) { t.metrics = m }
}

// New creates an empty tracker.
func New(registry *categories.Registry, opts ...Option) *Tracker {
	t := &Tracker{
		registry: registry,
		now:      time.Now,
		goals:    make(map[string]*goalEntry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load replaces the tracker state with previously persisted goals and
// transactions. Derived fields are taken as stored.
func (t *Tracker) Load(goals []domain.Goal, txs []domain.GoalTransaction) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.goals = make(map[string]*goalEntry, len(goals))
	t.txs = nil
	for _, g := range goals {
		t.seq++
		t.goals[g.ID] = &goalEntry{goal: g, seq: t.seq}
	}
	for _, tx := range txs {
		t.seq++
		t.txs = append(t.txs, txEntry{tx: tx, seq: t.seq})
	}
}

// CreateGoal validates input and stores a new goal with derived fields set.
func (t *Tracker) CreateGoal(ctx context.Context, input domain.GoalInput) (domain.Goal, error) {
	if err := t.validateInput(input); err != nil {
		return domain.Goal{}, err
	}

	now := t.now()
	g := domain.Goal{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		TargetAmount:  input.TargetAmount,
		CurrentAmount: input.CurrentAmount,
		TargetDate:    input.TargetDate,
		CreatedDate:   now,
		Category:      categories.Normalize(input.Category),
		Priority:      input.Priority,
	}
	recompute(&g, now)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	t.seq++
	t.goals[g.ID] = &goalEntry{goal: g, seq: t.seq}
	t.mu.Unlock()

	return g, t.persistGoal(ctx, g)
}

// Deposit adds amount to a goal and records a deposit transaction.
func (t *Tracker) Deposit(ctx context.Context, goalID string, amount decimal.Decimal, description string) (domain.GoalTransaction, error) {
	if description == "" {
		description = DefaultDepositDescription
	}
	return t.contribute(ctx, goalID, amount, description, domain.GoalDeposit)
}

// Withdraw removes amount from a goal and records a withdrawal. A goal can
// never be withdrawn below zero.
func (t *Tracker) Withdraw(ctx context.Context, goalID string, amount decimal.Decimal, description string) (domain.GoalTransaction, error) {
	if description == "" {
		description = DefaultWithdrawalDescription
	}
	return t.contribute(ctx, goalID, amount, description, domain.GoalWithdrawal)
}

func (t *Tracker) contribute(ctx context.Context, goalID string, amount decimal.Decimal, description string, kind domain.GoalTransactionType) (domain.GoalTransaction, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()

	e, ok := t.goals[goalID]
	if !ok {
		t.mu.Unlock()
		return domain.GoalTransaction{}, domain.NewNotFoundError("goal", goalID)
	}
	if !amount.IsPositive() {
		t.mu.Unlock()
		return domain.GoalTransaction{}, domain.NewValidationError("amount", "must be a positive number")
	}
	if kind == domain.GoalWithdrawal && amount.GreaterThan(e.goal.CurrentAmount) {
		t.mu.Unlock()
		return domain.GoalTransaction{}, domain.NewValidationError("amount", "exceeds the goal's current amount")
	}

	now := t.now()
	tx := domain.GoalTransaction{
		ID:          uuid.New().String(),
		GoalID:      goalID,
		Amount:      amount,
		Date:        now,
		Description: description,
		Type:        kind,
	}

	if kind == domain.GoalDeposit {
		e.goal.CurrentAmount = e.goal.CurrentAmount.Add(amount)
	} else {
		e.goal.CurrentAmount = e.goal.CurrentAmount.Sub(amount)
	}
	recompute(&e.goal, now)

	t.seq++
	t.txs = append(t.txs, txEntry{tx: tx, seq: t.seq})
	updated := e.goal
	t.mu.Unlock()

	t.metrics.GoalContribution(string(kind))

	if t.sink != nil {
		if err := t.sink.InsertGoalTransaction(ctx, t.userID, &tx); err != nil {
			t.logSinkFailure(ctx, err, goalID)
			return tx, domain.NewStorageError("insert goal transaction", err)
		}
	}
	return tx, t.persistGoal(ctx, updated)
}

// UpdateGoal applies a shallow overwrite of the non-nil fields in patch.
// Derived fields are recomputed only when the target amount, current amount
// or target date actually changed.
func (t *Tracker) UpdateGoal(ctx context.Context, goalID string, patch domain.GoalPatch) (domain.Goal, error) {
	if err := t.validatePatch(patch); err != nil {
		return domain.Goal{}, err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	e, ok := t.goals[goalID]
	if !ok {
		t.mu.Unlock()
		return domain.Goal{}, domain.NewNotFoundError("goal", goalID)
	}

	g := &e.goal
	changed := false

	if patch.Name != nil {
		g.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		g.Description = *patch.Description
	}
	if patch.Category != nil {
		g.Category = categories.Normalize(*patch.Category)
	}
	if patch.Priority != nil {
		g.Priority = *patch.Priority
	}
	if patch.TargetAmount != nil && !patch.TargetAmount.Equal(g.TargetAmount) {
		g.TargetAmount = *patch.TargetAmount
		changed = true
	}
	if patch.CurrentAmount != nil && !patch.CurrentAmount.Equal(g.CurrentAmount) {
		g.CurrentAmount = *patch.CurrentAmount
		changed = true
	}
	if patch.TargetDate != nil && !patch.TargetDate.Equal(g.TargetDate) {
		g.TargetDate = *patch.TargetDate
		changed = true
	}
	if changed {
		recompute(g, t.now())
	}

	updated := *g
	t.mu.Unlock()

	return updated, t.persistGoal(ctx, updated)
}

// Goal returns one goal by id.
func (t *Tracker) Goal(goalID string) (domain.Goal, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.goals[goalID]
	if !ok {
		return domain.Goal{}, domain.NewNotFoundError("goal", goalID)
	}
	return e.goal, nil
}

// Progress reports how far a goal has come, evaluated at the current time.
func (t *Tracker) Progress(goalID string) (Progress, error) {
	g, err := t.Goal(goalID)
	if err != nil {
		return Progress{}, err
	}
	return progressOf(g, t.now()), nil
}

// ListGoals returns incomplete goals first, then completed ones. Within each
// group the most recently created goal comes first.
func (t *Tracker) ListGoals() []domain.Goal {
	t.mu.RLock()
	entries := make([]goalEntry, 0, len(t.goals))
	for _, e := range t.goals {
		entries = append(entries, *e)
	}
	t.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].goal, entries[j].goal
		if a.Completed != b.Completed {
			return !a.Completed
		}
		if !a.CreatedDate.Equal(b.CreatedDate) {
			return a.CreatedDate.After(b.CreatedDate)
		}
		return entries[i].seq > entries[j].seq
	})

	out := make([]domain.Goal, len(entries))
	for i, e := range entries {
		out[i] = e.goal
	}
	return out
}

// GoalTransactions returns the transactions of one goal, newest first.
func (t *Tracker) GoalTransactions(goalID string) ([]domain.GoalTransaction, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.goals[goalID]; !ok {
		return nil, domain.NewNotFoundError("goal", goalID)
	}

	var matched []txEntry
	for _, e := range t.txs {
		if e.tx.GoalID == goalID {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].tx.Date.Equal(matched[j].tx.Date) {
			return matched[i].tx.Date.After(matched[j].tx.Date)
		}
		return matched[i].seq > matched[j].seq
	})

	out := make([]domain.GoalTransaction, len(matched))
	for i, e := range matched {
		out[i] = e.tx
	}
	return out, nil
}

// Stats summarizes every goal. MonthlyTargetSum only counts goals that are
// still open; AverageProgress may exceed 100.
func (t *Tracker) Stats() domain.GoalStats {
	goals := t.ListGoals()

	current := func(g domain.Goal) decimal.Decimal { return g.CurrentAmount }
	target := func(g domain.Goal) decimal.Decimal { return g.TargetAmount }

	var open []domain.Goal
	progress := make([]decimal.Decimal, 0, len(goals))
	completed := 0
	for _, g := range goals {
		if g.Completed {
			completed++
		} else {
			open = append(open, g)
		}
		progress = append(progress, stats.PercentageOf(g.CurrentAmount, g.TargetAmount))
	}

	return domain.GoalStats{
		TotalGoals:        len(goals),
		CompletedGoals:    completed,
		TotalSavedAmount:  stats.SumBy(goals, current),
		TotalTargetAmount: stats.SumBy(goals, target),
		MonthlyTargetSum:  stats.SumBy(open, func(g domain.Goal) decimal.Decimal { return g.MonthlyTarget }),
		AverageProgress:   stats.RoundPercent(stats.Mean(progress)),
	}
}

func (t *Tracker) validateInput(input domain.GoalInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return domain.NewValidationError("name", "is required")
	}
	if !input.TargetAmount.IsPositive() {
		return domain.NewValidationError("target_amount", "must be a positive number")
	}
	if input.CurrentAmount.IsNegative() {
		return domain.NewValidationError("current_amount", "must not be negative")
	}
	if input.TargetDate.IsZero() {
		return domain.NewValidationError("target_date", "is required")
	}
	if _, ok := t.registry.GoalCategory(input.Category); !ok {
		return domain.NewValidationError("category", "unknown goal category "+input.Category)
	}
	if !input.Priority.Valid() {
		return domain.NewValidationError("priority", "must be low, medium or high")
	}
	return validation.Struct(input)
}

func (t *Tracker) validatePatch(p domain.GoalPatch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return domain.NewValidationError("name", "must not be empty")
	}
	if p.TargetAmount != nil && !p.TargetAmount.IsPositive() {
		return domain.NewValidationError("target_amount", "must be a positive number")
	}
	if p.CurrentAmount != nil && p.CurrentAmount.IsNegative() {
		return domain.NewValidationError("current_amount", "must not be negative")
	}
	if p.TargetDate != nil && p.TargetDate.IsZero() {
		return domain.NewValidationError("target_date", "must be a valid date")
	}
	if p.Category != nil {
		if _, ok := t.registry.GoalCategory(*p.Category); !ok {
			return domain.NewValidationError("category", "unknown goal category "+*p.Category)
		}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return domain.NewValidationError("priority", "must be low, medium or high")
	}
	return nil
}

func (t *Tracker) persistGoal(ctx context.Context, g domain.Goal) error {
	if t.sink == nil {
		return nil
	}
	if err := t.sink.SaveGoal(ctx, t.userID, &g); err != nil {
		t.logSinkFailure(ctx, err, g.ID)
		return domain.NewStorageError("save goal", err)
	}
	return nil
}

func (t *Tracker) logSinkFailure(ctx context.Context, err error, goalID string) {
	log := logger.FromContext(ctx)
	log.Warn().Err(err).Str("goal_id", goalID).Msg("Failed to persist goal change")
}
