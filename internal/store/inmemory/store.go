package inmemory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/store"
)

// Store is an in-memory implementation of store.Store.
// It is safe for concurrent use. Data is lost on restart; use the Postgres
// or BigQuery adapters for persistence.
type Store struct {
	mu               sync.RWMutex
	financialContext []domain.FinancialContextEntry
	conversations    []domain.ConversationRecord
	preferences      map[string]domain.UserPreferences
	goals            map[string]goalRow
	goalOrder        []string
	goalTxs          []goalTxRow
}

type goalRow struct {
	userID string
	goal   domain.Goal
}

type goalTxRow struct {
	userID string
	tx     domain.GoalTransaction
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		preferences: make(map[string]domain.UserPreferences),
		goals:       make(map[string]goalRow),
	}
}

// InsertFinancialContext implements store.FinancialContextStore.
func (s *Store) InsertFinancialContext(ctx context.Context, entry *domain.FinancialContextEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("financial context ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := *entry
	e.Metadata = maps.Clone(entry.Metadata)
	s.financialContext = append(s.financialContext, e)
	return nil
}

// ListFinancialContext implements store.FinancialContextStore.
func (s *Store) ListFinancialContext(ctx context.Context, userID string, filter store.Filter) ([]domain.FinancialContextEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.FinancialContextEntry
	// Walk newest insertion first so equal timestamps keep that order after the stable sort.
	for i := len(s.financialContext) - 1; i >= 0; i-- {
		e := s.financialContext[i]
		if e.UserID != userID {
			continue
		}
		if filter.Kind != "" && string(e.Kind) != filter.Kind {
			continue
		}
		e.Metadata = maps.Clone(e.Metadata)
		result = append(result, e)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if filter.Ascending {
			return result[i].RecordedAt.Before(result[j].RecordedAt)
		}
		return result[i].RecordedAt.After(result[j].RecordedAt)
	})

	return limit(result, filter.Limit), nil
}

// InsertConversation implements store.ConversationStore.
func (s *Store) InsertConversation(ctx context.Context, rec *domain.ConversationRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("conversation ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = append(s.conversations, copyConversation(*rec))
	return nil
}

// ListConversations implements store.ConversationStore.
func (s *Store) ListConversations(ctx context.Context, userID string, filter store.Filter) ([]domain.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.ConversationRecord
	for i := len(s.conversations) - 1; i >= 0; i-- {
		c := s.conversations[i]
		if c.UserID != userID {
			continue
		}
		if filter.Kind != "" && string(c.Kind) != filter.Kind {
			continue
		}
		if filter.SessionID != "" && c.SessionID != filter.SessionID {
			continue
		}
		result = append(result, copyConversation(c))
	}

	if filter.Ascending {
		slices.Reverse(result)
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		})
	} else {
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
	}

	return limit(result, filter.Limit), nil
}

// UpsertPreferences implements store.PreferenceStore.
func (s *Store) UpsertPreferences(ctx context.Context, prefs *domain.UserPreferences) error {
	if prefs.UserID == "" {
		return fmt.Errorf("preferences user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.preferences[prefs.UserID] = copyPreferences(*prefs)
	return nil
}

// GetPreferences implements store.PreferenceStore.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preferences[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	p = copyPreferences(p)
	return &p, nil
}

// SaveGoal implements store.GoalStore.
func (s *Store) SaveGoal(ctx context.Context, userID string, goal *domain.Goal) error {
	if goal.ID == "" {
		return fmt.Errorf("goal ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.goals[goal.ID]; !exists {
		s.goalOrder = append(s.goalOrder, goal.ID)
	}
	s.goals[goal.ID] = goalRow{userID: userID, goal: *goal}
	return nil
}

// ListGoals implements store.GoalStore.
func (s *Store) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Goal
	for _, id := range s.goalOrder {
		row := s.goals[id]
		if row.userID == userID {
			result = append(result, row.goal)
		}
	}
	return result, nil
}

// InsertGoalTransaction implements store.GoalStore.
func (s *Store) InsertGoalTransaction(ctx context.Context, userID string, tx *domain.GoalTransaction) error {
	if tx.ID == "" {
		return fmt.Errorf("goal transaction ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.goalTxs = append(s.goalTxs, goalTxRow{userID: userID, tx: *tx})
	return nil
}

// ListGoalTransactions implements store.GoalStore.
func (s *Store) ListGoalTransactions(ctx context.Context, userID, goalID string) ([]domain.GoalTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.GoalTransaction
	for i := len(s.goalTxs) - 1; i >= 0; i-- {
		row := s.goalTxs[i]
		if row.userID == userID && row.tx.GoalID == goalID {
			result = append(result, row.tx)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

// Close implements store.Store. It is a no-op.
func (s *Store) Close() error {
	return nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && n < len(items) {
		return items[:n]
	}
	return items
}

func copyConversation(c domain.ConversationRecord) domain.ConversationRecord {
	c.Content = maps.Clone(c.Content)
	c.Metadata = maps.Clone(c.Metadata)
	return c
}

func copyPreferences(p domain.UserPreferences) domain.UserPreferences {
	if p.MonthlyBudget != nil {
		b := *p.MonthlyBudget
		p.MonthlyBudget = &b
	}
	p.FinancialGoals = slices.Clone(p.FinancialGoals)
	p.PreferredCategories = slices.Clone(p.PreferredCategories)
	p.Notifications = maps.Clone(p.Notifications)
	p.AIPersonality = maps.Clone(p.AIPersonality)
	return p
}

// Ensure Store implements the store port.
var _ store.Store = (*Store)(nil)
