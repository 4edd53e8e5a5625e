// Package store defines the persistence port used by the ledger, the goal
// tracker and the memory assembler. Implementations live in store/inmemory
// and under internal/infra.
package store

import (
	"context"
	"errors"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// Filter narrows a select by an optional secondary key and bounds it.
type Filter struct {
	// Kind filters by record kind (conversation kind or financial-context kind).
	Kind string

	// SessionID filters conversations by session.
	SessionID string

	// Ascending flips the default newest-first ordering.
	Ascending bool

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// FinancialContextStore persists financial-context entries.
type FinancialContextStore interface {
	InsertFinancialContext(ctx context.Context, entry *domain.FinancialContextEntry) error

	// ListFinancialContext returns entries for userID ordered by RecordedAt.
	ListFinancialContext(ctx context.Context, userID string, filter Filter) ([]domain.FinancialContextEntry, error)
}

// ConversationStore persists conversation records.
type ConversationStore interface {
	InsertConversation(ctx context.Context, rec *domain.ConversationRecord) error

	// ListConversations returns records for userID ordered by CreatedAt.
	ListConversations(ctx context.Context, userID string, filter Filter) ([]domain.ConversationRecord, error)
}

// PreferenceStore keeps at most one preferences record per user.
type PreferenceStore interface {
	// UpsertPreferences inserts or fully replaces the record for prefs.UserID.
	UpsertPreferences(ctx context.Context, prefs *domain.UserPreferences) error

	// GetPreferences returns ErrNotFound when the user has no record.
	GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error)
}

// GoalStore persists goals and their transactions.
type GoalStore interface {
	// SaveGoal inserts or replaces a goal by id.
	SaveGoal(ctx context.Context, userID string, goal *domain.Goal) error

	ListGoals(ctx context.Context, userID string) ([]domain.Goal, error)

	InsertGoalTransaction(ctx context.Context, userID string, tx *domain.GoalTransaction) error

	// ListGoalTransactions returns the transactions of one goal, newest first.
	ListGoalTransactions(ctx context.Context, userID, goalID string) ([]domain.GoalTransaction, error)
}

// Store is the full persistence port.
type Store interface {
	FinancialContextStore
	ConversationStore
	PreferenceStore
	GoalStore

	Close() error
}
