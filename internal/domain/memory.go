package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConversationKind classifies a stored conversation.
type ConversationKind string

const (
	ConversationChat            ConversationKind = "chat"
	ConversationFinancialAdvice ConversationKind = "financial_advice"
	ConversationGoalPlanning    ConversationKind = "goal_planning"
)

// Valid reports whether k is a known conversation kind.
func (k ConversationKind) Valid() bool {
	switch k {
	case ConversationChat, ConversationFinancialAdvice, ConversationGoalPlanning:
		return true
	}
	return false
}

// ConversationRecord is an append-only conversation entry for a user session.
type ConversationRecord struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	SessionID string           `json:"session_id"`
	Kind      ConversationKind `json:"kind"`
	Title     string           `json:"title,omitempty"`
	Content   map[string]any   `json:"content"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewConversation is the caller-supplied part of a conversation record.
type NewConversation struct {
	Kind     ConversationKind `json:"kind" validate:"required,oneof=chat financial_advice goal_planning"`
	Title    string           `json:"title,omitempty"`
	Content  map[string]any   `json:"content"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// UserPreferences is the single preferences record kept per user.
type UserPreferences struct {
	ID                  string           `json:"id"`
	UserID              string           `json:"user_id"`
	MonthlyBudget       *decimal.Decimal `json:"monthly_budget,omitempty"`
	FinancialGoals      []string         `json:"financial_goals,omitempty"`
	PreferredCategories []string         `json:"preferred_categories,omitempty"`
	Notifications       map[string]any   `json:"notifications,omitempty"`
	AIPersonality       map[string]any   `json:"ai_personality,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// PreferencesInput replaces a user's preferences wholesale.
type PreferencesInput struct {
	MonthlyBudget       *decimal.Decimal `json:"monthly_budget,omitempty"`
	FinancialGoals      []string         `json:"financial_goals,omitempty"`
	PreferredCategories []string         `json:"preferred_categories,omitempty"`
	Notifications       map[string]any   `json:"notifications,omitempty"`
	AIPersonality       map[string]any   `json:"ai_personality,omitempty"`
}

// FinancialContextKind classifies a financial-context entry.
type FinancialContextKind string

const (
	ContextIncome  FinancialContextKind = "income"
	ContextExpense FinancialContextKind = "expense"
	ContextGoal    FinancialContextKind = "goal"
	ContextInsight FinancialContextKind = "insight"
)

// Valid reports whether k is a known financial-context kind.
func (k FinancialContextKind) Valid() bool {
	switch k {
	case ContextIncome, ContextExpense, ContextGoal, ContextInsight:
		return true
	}
	return false
}

// FinancialContextEntry is a compact financial fact kept for the assistant.
type FinancialContextEntry struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id"`
	Kind        FinancialContextKind `json:"kind"`
	Category    string               `json:"category,omitempty"`
	Amount      decimal.Decimal      `json:"amount"`
	Description string               `json:"description,omitempty"`
	RecordedAt  time.Time            `json:"recorded_at"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// NewFinancialContext is the caller-supplied part of a financial-context entry.
type NewFinancialContext struct {
	Kind        FinancialContextKind `json:"kind" validate:"required,oneof=income expense goal insight"`
	Category    string               `json:"category,omitempty"`
	Amount      decimal.Decimal      `json:"amount"`
	Description string               `json:"description,omitempty"`
	RecordedAt  time.Time            `json:"recorded_at"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
}

// FinancialContextFromTransaction maps a ledger transaction to the entry
// the assistant reads back as context.
func FinancialContextFromTransaction(userID string, tx Transaction, now time.Time) FinancialContextEntry {
	kind := ContextExpense
	if tx.Type == TransactionIncome {
		kind = ContextIncome
	}

	metadata := map[string]any{"transaction_id": tx.ID}
	if tx.Establishment != "" {
		metadata["establishment"] = tx.Establishment
	}
	if tx.PaymentMethod != "" {
		metadata["payment_method"] = tx.PaymentMethod
	}
	if tx.Confidence != nil {
		metadata["confidence"] = *tx.Confidence
	}

	return FinancialContextEntry{
		ID:          tx.ID,
		UserID:      userID,
		Kind:        kind,
		Category:    tx.Category,
		Amount:      tx.Amount,
		Description: tx.Description,
		RecordedAt:  tx.Date,
		Metadata:    metadata,
		CreatedAt:   now,
	}
}

// ContextBundle is the bounded context handed to a completion service.
// It is derived on every request and never persisted.
type ContextBundle struct {
	Query            string                  `json:"query"`
	AssembledAt      time.Time               `json:"assembled_at"`
	Conversations    []ConversationRecord    `json:"conversations"`
	FinancialContext []FinancialContextEntry `json:"financial_context"`
	Preferences      *UserPreferences        `json:"preferences,omitempty"`

	// Degraded names the sub-fetches that failed and were left empty.
	Degraded []string `json:"degraded,omitempty"`
}

// CategoryTotal is an amount summed for one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// FinancialSummary is a quick overview built from recent financial-context entries.
type FinancialSummary struct {
	TotalIncome        decimal.Decimal         `json:"total_income"`
	TotalExpenses      decimal.Decimal         `json:"total_expenses"`
	Balance            decimal.Decimal         `json:"balance"`
	ExpensesByCategory []CategoryTotal         `json:"expenses_by_category"`
	IncomeByCategory   []CategoryTotal         `json:"income_by_category"`
	ActiveGoals        int                     `json:"active_goals"`
	RecentTransactions []FinancialContextEntry `json:"recent_transactions"`
}

// ReceiptAnalysis is the suggested transaction extracted from a receipt image.
type ReceiptAnalysis struct {
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Establishment string          `json:"establishment,omitempty"`
	Category      string          `json:"category"`
	Type          TransactionType `json:"type"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Confidence    float64         `json:"confidence"`
	Suggestions   []string        `json:"suggestions,omitempty"`
}
