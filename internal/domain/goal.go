package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Priority ranks a savings goal.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Goal is a savings goal. Completed and MonthlyTarget are derived from
// TargetAmount, CurrentAmount and TargetDate and are never set directly.
type Goal struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    time.Time       `json:"target_date"`
	CreatedDate   time.Time       `json:"created_date"`
	Category      string          `json:"category"`
	Priority      Priority        `json:"priority"`

	Completed     bool            `json:"completed"`
	MonthlyTarget decimal.Decimal `json:"monthly_target"`
}

// GoalInput holds the fields required to create a goal.
type GoalInput struct {
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description,omitempty"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    time.Time       `json:"target_date"`
	Category      string          `json:"category" validate:"required"`
	Priority      Priority        `json:"priority" validate:"required,oneof=low medium high"`
}

// GoalPatch is a shallow overwrite of a goal. Nil fields are left untouched.
type GoalPatch struct {
	Name          *string          `json:"name,omitempty"`
	Description   *string          `json:"description,omitempty"`
	TargetAmount  *decimal.Decimal `json:"target_amount,omitempty"`
	CurrentAmount *decimal.Decimal `json:"current_amount,omitempty"`
	TargetDate    *time.Time       `json:"target_date,omitempty"`
	Category      *string          `json:"category,omitempty"`
	Priority      *Priority        `json:"priority,omitempty"`
}

// GoalTransactionType distinguishes money moved into or out of a goal.
type GoalTransactionType string

const (
	GoalDeposit    GoalTransactionType = "deposit"
	GoalWithdrawal GoalTransactionType = "withdrawal"
)

// GoalTransaction is an append-only movement of money for one goal.
type GoalTransaction struct {
	ID          string              `json:"id"`
	GoalID      string              `json:"goal_id"`
	Amount      decimal.Decimal     `json:"amount"`
	Date        time.Time           `json:"date"`
	Description string              `json:"description"`
	Type        GoalTransactionType `json:"type"`
}

// GoalStats summarizes all goals owned by a tracker.
type GoalStats struct {
	TotalGoals        int             `json:"total_goals"`
	CompletedGoals    int             `json:"completed_goals"`
	TotalSavedAmount  decimal.Decimal `json:"total_saved_amount"`
	TotalTargetAmount decimal.Decimal `json:"total_target_amount"`
	MonthlyTargetSum  decimal.Decimal `json:"monthly_target_sum"`
	AverageProgress   decimal.Decimal `json:"average_progress"`
}
