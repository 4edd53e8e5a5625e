package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/shopspring/decimal"
)

func TestStore_Conversations(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []domain.ConversationRecord{
		{ID: "c1", UserID: "u1", SessionID: "s1", Kind: domain.ConversationChat, CreatedAt: base},
		{ID: "c2", UserID: "u1", SessionID: "s1", Kind: domain.ConversationGoalPlanning, CreatedAt: base.Add(time.Minute)},
		{ID: "c3", UserID: "u1", SessionID: "s2", Kind: domain.ConversationChat, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "c4", UserID: "u2", SessionID: "s9", Kind: domain.ConversationChat, CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range records {
		if err := s.InsertConversation(ctx, &records[i]); err != nil {
			t.Fatalf("InsertConversation: %v", err)
		}
	}

	tests := []struct {
		name    string
		filter  store.Filter
		wantIDs []string
	}{
		{name: "newest first", filter: store.Filter{}, wantIDs: []string{"c3", "c2", "c1"}},
		{name: "by kind", filter: store.Filter{Kind: "chat"}, wantIDs: []string{"c3", "c1"}},
		{name: "limited", filter: store.Filter{Limit: 2}, wantIDs: []string{"c3", "c2"}},
		{name: "session ascending", filter: store.Filter{SessionID: "s1", Ascending: true}, wantIDs: []string{"c1", "c2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListConversations(ctx, "u1", tt.filter)
			if err != nil {
				t.Fatalf("ListConversations: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("record %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestStore_FinancialContextOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	entries := []domain.FinancialContextEntry{
		{ID: "a", UserID: "u1", Kind: domain.ContextExpense, Amount: decimal.NewFromInt(5), RecordedAt: day},
		{ID: "b", UserID: "u1", Kind: domain.ContextIncome, Amount: decimal.NewFromInt(50), RecordedAt: day},
		{ID: "c", UserID: "u1", Kind: domain.ContextExpense, Amount: decimal.NewFromInt(7), RecordedAt: day.AddDate(0, 0, -1)},
	}
	for i := range entries {
		if err := s.InsertFinancialContext(ctx, &entries[i]); err != nil {
			t.Fatalf("InsertFinancialContext: %v", err)
		}
	}

	got, err := s.ListFinancialContext(ctx, "u1", store.Filter{})
	if err != nil {
		t.Fatalf("ListFinancialContext: %v", err)
	}
	want := []string{"b", "a", "c"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("entry %d = %s, want %s", i, got[i].ID, id)
		}
	}

	expenses, _ := s.ListFinancialContext(ctx, "u1", store.Filter{Kind: "expense", Limit: 1})
	if len(expenses) != 1 || expenses[0].ID != "a" {
		t.Errorf("expected newest expense 'a', got %+v", expenses)
	}
}

func TestStore_Preferences(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if _, err := s.GetPreferences(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	budget := decimal.NewFromInt(2000)
	prefs := &domain.UserPreferences{ID: "p1", UserID: "u1", MonthlyBudget: &budget, FinancialGoals: []string{"house"}}
	if err := s.UpsertPreferences(ctx, prefs); err != nil {
		t.Fatalf("UpsertPreferences: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	prefs.FinancialGoals[0] = "car"

	got, err := s.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if got.FinancialGoals[0] != "house" {
		t.Errorf("stored goals mutated: %v", got.FinancialGoals)
	}

	replacement := &domain.UserPreferences{ID: "p1", UserID: "u1"}
	if err := s.UpsertPreferences(ctx, replacement); err != nil {
		t.Fatalf("UpsertPreferences: %v", err)
	}
	got, _ = s.GetPreferences(ctx, "u1")
	if got.MonthlyBudget != nil || len(got.FinancialGoals) != 0 {
		t.Errorf("expected wholesale replacement, got %+v", got)
	}
}

func TestStore_Goals(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	g := &domain.Goal{ID: "g1", Name: "Trip", TargetAmount: decimal.NewFromInt(100)}
	if err := s.SaveGoal(ctx, "u1", g); err != nil {
		t.Fatalf("SaveGoal: %v", err)
	}
	g.CurrentAmount = decimal.NewFromInt(40)
	if err := s.SaveGoal(ctx, "u1", g); err != nil {
		t.Fatalf("SaveGoal: %v", err)
	}

	goals, _ := s.ListGoals(ctx, "u1")
	if len(goals) != 1 || !goals[0].CurrentAmount.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected one updated goal, got %+v", goals)
	}

	now := time.Now()
	_ = s.InsertGoalTransaction(ctx, "u1", &domain.GoalTransaction{ID: "t1", GoalID: "g1", Date: now.Add(-time.Hour)})
	_ = s.InsertGoalTransaction(ctx, "u1", &domain.GoalTransaction{ID: "t2", GoalID: "g1", Date: now})
	_ = s.InsertGoalTransaction(ctx, "u1", &domain.GoalTransaction{ID: "t3", GoalID: "other", Date: now})

	txs, _ := s.ListGoalTransactions(ctx, "u1", "g1")
	if len(txs) != 2 || txs[0].ID != "t2" {
		t.Errorf("expected [t2 t1], got %+v", txs)
	}
}

func TestStore_RequiresIDs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.InsertConversation(ctx, &domain.ConversationRecord{}); err == nil {
		t.Error("expected error for missing conversation ID")
	}
	if err := s.InsertFinancialContext(ctx, &domain.FinancialContextEntry{}); err == nil {
		t.Error("expected error for missing entry ID")
	}
	if err := s.UpsertPreferences(ctx, &domain.UserPreferences{}); err == nil {
		t.Error("expected error for missing user ID")
	}
}
