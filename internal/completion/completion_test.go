package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

func sampleBundle() domain.ContextBundle {
	budget := decimal.NewFromInt(1500)
	day := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	return domain.ContextBundle{
		Query: "how much did I spend?",
		FinancialContext: []domain.FinancialContextEntry{
			{Kind: domain.ContextExpense, Category: "food", Amount: decimal.NewFromInt(40), Description: "groceries", RecordedAt: day},
			{Kind: domain.ContextIncome, Category: "salary", Amount: decimal.NewFromInt(1000), RecordedAt: day},
		},
		Conversations: []domain.ConversationRecord{
			{Kind: domain.ConversationChat, Content: map[string]any{"message": "hello", "reply": "hi there"}},
		},
		Preferences: &domain.UserPreferences{
			MonthlyBudget:  &budget,
			FinancialGoals: []string{"emergency fund"},
			AIPersonality:  map[string]any{"tone": "friendly", "detail": "low"},
		},
	}
}

func TestSystemPrompt(t *testing.T) {
	got := SystemPrompt(sampleBundle())

	for _, want := range []string{
		"financial assistant",
		"Monthly budget: 1500.00",
		"Financial goals: emergency fund",
		"Assistant personality: detail=low, tone=friendly",
		"2025-03-05 expense [food] 40.00: groceries",
		"2025-03-05 income [salary] 1000.00",
		"User: hello",
		"Assistant: hi there",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("SystemPrompt() missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "unavailable") {
		t.Error("SystemPrompt() mentions unavailable context for a complete bundle")
	}
}

func TestSystemPromptEmptyAndDegraded(t *testing.T) {
	got := SystemPrompt(domain.ContextBundle{Degraded: []string{"financial_context"}})

	if strings.Contains(got, "User preferences") || strings.Contains(got, "Recent financial activity") {
		t.Errorf("empty bundle rendered sections:\n%s", got)
	}
	if !strings.Contains(got, "unavailable (financial_context)") {
		t.Errorf("degraded source not mentioned:\n%s", got)
	}
}

func TestMockCompleter(t *testing.T) {
	m := &MockCompleter{}

	reply, err := m.Complete(context.Background(), Prompt{Message: "status?", Bundle: sampleBundle()})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	for _, want := range []string{"earned 1000.00", "spent 40.00", "budget is 1500.00"} {
		if !strings.Contains(reply, want) {
			t.Errorf("reply %q missing %q", reply, want)
		}
	}

	again, _ := m.Complete(context.Background(), Prompt{Message: "status?", Bundle: sampleBundle()})
	if again != reply {
		t.Error("MockCompleter is not deterministic")
	}

	empty, err := m.Complete(context.Background(), Prompt{Message: "hi"})
	if err != nil || !strings.Contains(empty, "no recent transactions") {
		t.Errorf("empty bundle reply = %q, %v", empty, err)
	}
}

func TestMockCompleterErrors(t *testing.T) {
	m := &MockCompleter{Err: errors.New("quota exceeded")}
	_, err := m.Complete(context.Background(), Prompt{Message: "x"})
	if !domain.IsCompletion(err) {
		t.Errorf("error = %v, want completion error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&MockCompleter{}).Complete(ctx, Prompt{Message: "x"})
	var ce *domain.CompletionError
	if !errors.As(err, &ce) || !ce.Transient {
		t.Errorf("cancelled error = %v, want transient completion error", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"rate limited", genai.APIError{Code: 429}, true},
		{"server error", genai.APIError{Code: 503}, true},
		{"bad request", genai.APIError{Code: 400}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
