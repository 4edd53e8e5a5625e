// Package memory keeps conversation history, user preferences and
// financial context, and assembles them into the bundle handed to the
// completion service.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/metrics"
	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/dvloznov/finance-assistant/internal/validation"
	"github.com/google/uuid"
)

const (
	// DefaultUserID is used when no user id is configured.
	DefaultUserID = "default_user"

	// DefaultConversationLimit bounds ListConversations.
	DefaultConversationLimit = 50

	// DefaultFinancialContextLimit bounds FinancialContext.
	DefaultFinancialContextLimit = 100

	// DefaultContextLimit is the assemble limit; financial entries are fetched at twice this.
	DefaultContextLimit = 10

	// ContextConversations is how many conversations a bundle carries.
	ContextConversations = 5
)

// Sub-fetch names reported in ContextBundle.Degraded.
const (
	SourceConversations    = "conversations"
	SourceFinancialContext = "financial_context"
	SourcePreferences      = "preferences"
)

// Config carries the process-wide identifiers of one assembler.
type Config struct {
	UserID string

	// SessionID is generated when empty.
	SessionID string
}

// Assembler is the memory service for a single user. Construct one per
// user session; nothing is shared between instances.
type Assembler struct {
	store   store.Store
	userID  string
	now     func() time.Time
	metrics *metrics.Collectors

	mu        sync.RWMutex
	sessionID string
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithMetrics records fetch failures and assembly latency on m.
func WithMetrics(m *metrics.Collectors) Option {
	return func(a *Assembler) { a.metrics = m }
}

// New creates an assembler reading and writing through s.
func New(s store.Store, cfg Config, opts ...Option) *Assembler {
	a := &Assembler{
		store:     s,
		userID:    cfg.UserID,
		now:       time.Now,
		sessionID: cfg.SessionID,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.userID == "" {
		a.userID = DefaultUserID
	}
	if a.sessionID == "" {
		a.sessionID = generateSessionID(a.now())
	}
	return a
}

// UserID returns the user this assembler serves.
func (a *Assembler) UserID() string {
	return a.userID
}

// SessionID returns the session used to tag new conversations.
func (a *Assembler) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

// NewSession starts a new session for subsequent conversations and returns
// its id. Existing records keep their session.
func (a *Assembler) NewSession() string {
	id := generateSessionID(a.now())

	a.mu.Lock()
	a.sessionID = id
	a.mu.Unlock()

	return id
}

func generateSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), suffix)
}

// RecordConversation stamps entry with the user, session, id and creation
// time, and stores it. A store failure is returned as *domain.StorageError.
func (a *Assembler) RecordConversation(ctx context.Context, entry domain.NewConversation) (domain.ConversationRecord, error) {
	if err := validation.Struct(entry); err != nil {
		return domain.ConversationRecord{}, err
	}

	rec := domain.ConversationRecord{
		ID:        uuid.New().String(),
		UserID:    a.userID,
		SessionID: a.SessionID(),
		Kind:      entry.Kind,
		Title:     entry.Title,
		Content:   entry.Content,
		Metadata:  entry.Metadata,
		CreatedAt: a.now(),
	}
	if rec.Content == nil {
		rec.Content = map[string]any{}
	}

	if err := a.store.InsertConversation(ctx, &rec); err != nil {
		return rec, domain.NewStorageError("insert conversation", err)
	}
	return rec, nil
}

// ListConversations returns up to limit conversations of the user, newest
// first, optionally restricted to kind.
func (a *Assembler) ListConversations(ctx context.Context, kind domain.ConversationKind, limit int) ([]domain.ConversationRecord, error) {
	if limit <= 0 {
		limit = DefaultConversationLimit
	}
	recs, err := a.store.ListConversations(ctx, a.userID, store.Filter{Kind: string(kind), Limit: limit})
	if err != nil {
		return nil, domain.NewStorageError("list conversations", err)
	}
	return nonNil(recs), nil
}

// SessionConversations returns the user's conversations of one session in
// the order they happened.
func (a *Assembler) SessionConversations(ctx context.Context, sessionID string) ([]domain.ConversationRecord, error) {
	recs, err := a.store.ListConversations(ctx, a.userID, store.Filter{SessionID: sessionID, Ascending: true})
	if err != nil {
		return nil, domain.NewStorageError("list session conversations", err)
	}
	return nonNil(recs), nil
}

// UpsertPreferences replaces the user's preferences with input. No merge
// happens here: fields absent from input are cleared.
func (a *Assembler) UpsertPreferences(ctx context.Context, input domain.PreferencesInput) (domain.UserPreferences, error) {
	if input.MonthlyBudget != nil && input.MonthlyBudget.IsNegative() {
		return domain.UserPreferences{}, domain.NewValidationError("monthly_budget", "must not be negative")
	}

	now := a.now()
	prefs := domain.UserPreferences{
		ID:                  uuid.New().String(),
		UserID:              a.userID,
		MonthlyBudget:       input.MonthlyBudget,
		FinancialGoals:      input.FinancialGoals,
		PreferredCategories: input.PreferredCategories,
		Notifications:       input.Notifications,
		AIPersonality:       input.AIPersonality,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	existing, err := a.store.GetPreferences(ctx, a.userID)
	switch {
	case err == nil:
		prefs.ID = existing.ID
		prefs.CreatedAt = existing.CreatedAt
	case !errors.Is(err, store.ErrNotFound):
		return domain.UserPreferences{}, domain.NewStorageError("get preferences", err)
	}

	if err := a.store.UpsertPreferences(ctx, &prefs); err != nil {
		return domain.UserPreferences{}, domain.NewStorageError("upsert preferences", err)
	}
	return prefs, nil
}

// Preferences returns the user's preferences. ok is false when the user has
// never saved any; that is not an error.
func (a *Assembler) Preferences(ctx context.Context) (prefs domain.UserPreferences, ok bool, err error) {
	p, err := a.store.GetPreferences(ctx, a.userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.UserPreferences{}, false, nil
	}
	if err != nil {
		return domain.UserPreferences{}, false, domain.NewStorageError("get preferences", err)
	}
	return *p, true, nil
}

// RecordFinancialContext stores a financial fact for the user.
func (a *Assembler) RecordFinancialContext(ctx context.Context, input domain.NewFinancialContext) (domain.FinancialContextEntry, error) {
	if err := validation.Struct(input); err != nil {
		return domain.FinancialContextEntry{}, err
	}

	now := a.now()
	entry := domain.FinancialContextEntry{
		ID:          uuid.New().String(),
		UserID:      a.userID,
		Kind:        input.Kind,
		Category:    input.Category,
		Amount:      input.Amount,
		Description: input.Description,
		RecordedAt:  input.RecordedAt,
		Metadata:    input.Metadata,
		CreatedAt:   now,
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = now
	}

	if err := a.store.InsertFinancialContext(ctx, &entry); err != nil {
		return entry, domain.NewStorageError("insert financial context", err)
	}
	return entry, nil
}

// FinancialContext returns up to limit entries, most recently recorded first.
func (a *Assembler) FinancialContext(ctx context.Context, kind domain.FinancialContextKind, limit int) ([]domain.FinancialContextEntry, error) {
	if limit <= 0 {
		limit = DefaultFinancialContextLimit
	}
	entries, err := a.store.ListFinancialContext(ctx, a.userID, store.Filter{Kind: string(kind), Limit: limit})
	if err != nil {
		return nil, domain.NewStorageError("list financial context", err)
	}
	return nonNil(entries), nil
}

// Assemble is the function form of AssembleContext, matching the signature
// the assistant depends on.
func (a *Assembler) Assemble(ctx context.Context, query string) domain.ContextBundle {
	return a.AssembleContext(ctx, query, DefaultContextLimit)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
