package bigquery

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/shopspring/decimal"
)

// moneyScale matches NUMERIC(14, 2) in the table definitions.
const moneyScale = 2

type FinancialContextRow struct {
	ID          string              `bigquery:"id"`          // REQUIRED
	UserID      string              `bigquery:"user_id"`     // REQUIRED
	Kind        string              `bigquery:"kind"`        // REQUIRED
	Category    bigquery.NullString `bigquery:"category"`    // NULLABLE
	Amount      *big.Rat            `bigquery:"amount"`      // REQUIRED NUMERIC
	Description bigquery.NullString `bigquery:"description"` // NULLABLE
	RecordedAt  time.Time           `bigquery:"recorded_at"` // REQUIRED
	Metadata    bigquery.NullJSON   `bigquery:"metadata"`    // NULLABLE
	CreatedAt   time.Time           `bigquery:"created_at"`  // REQUIRED
}

type ConversationRow struct {
	ID        string              `bigquery:"id"`         // REQUIRED
	UserID    string              `bigquery:"user_id"`    // REQUIRED
	SessionID string              `bigquery:"session_id"` // REQUIRED
	Kind      string              `bigquery:"kind"`       // REQUIRED
	Title     bigquery.NullString `bigquery:"title"`      // NULLABLE
	Content   bigquery.NullJSON   `bigquery:"content"`    // REQUIRED JSON
	Metadata  bigquery.NullJSON   `bigquery:"metadata"`   // NULLABLE
	CreatedAt time.Time           `bigquery:"created_at"` // REQUIRED
}

type PreferencesRow struct {
	ID                  string            `bigquery:"id"`                   // REQUIRED
	UserID              string            `bigquery:"user_id"`              // REQUIRED
	MonthlyBudget       *big.Rat          `bigquery:"monthly_budget"`       // NULLABLE NUMERIC
	FinancialGoals      []string          `bigquery:"financial_goals"`      // REPEATED
	PreferredCategories []string          `bigquery:"preferred_categories"` // REPEATED
	Notifications       bigquery.NullJSON `bigquery:"notifications"`        // NULLABLE
	AIPersonality       bigquery.NullJSON `bigquery:"ai_personality"`       // NULLABLE
	CreatedAt           time.Time         `bigquery:"created_at"`           // REQUIRED
	UpdatedAt           time.Time         `bigquery:"updated_at"`           // REQUIRED
}

type GoalRow struct {
	ID            string              `bigquery:"id"`             // REQUIRED
	UserID        string              `bigquery:"user_id"`        // REQUIRED
	Name          string              `bigquery:"name"`           // REQUIRED
	Description   bigquery.NullString `bigquery:"description"`    // NULLABLE
	TargetAmount  *big.Rat            `bigquery:"target_amount"`  // REQUIRED NUMERIC
	CurrentAmount *big.Rat            `bigquery:"current_amount"` // REQUIRED NUMERIC
	TargetDate    time.Time           `bigquery:"target_date"`    // REQUIRED
	CreatedDate   time.Time           `bigquery:"created_date"`   // REQUIRED
	Category      string              `bigquery:"category"`       // REQUIRED
	Priority      string              `bigquery:"priority"`       // REQUIRED
	Completed     bool                `bigquery:"completed"`      // REQUIRED
	MonthlyTarget *big.Rat            `bigquery:"monthly_target"` // REQUIRED NUMERIC
}

type GoalTransactionRow struct {
	ID          string              `bigquery:"id"`          // REQUIRED
	UserID      string              `bigquery:"user_id"`     // REQUIRED
	GoalID      string              `bigquery:"goal_id"`     // REQUIRED
	Amount      *big.Rat            `bigquery:"amount"`      // REQUIRED NUMERIC
	Date        time.Time           `bigquery:"date"`        // REQUIRED
	Description bigquery.NullString `bigquery:"description"` // NULLABLE
	Type        string              `bigquery:"type"`        // REQUIRED
}

func toRat(d decimal.Decimal) *big.Rat {
	return d.Round(moneyScale).Rat()
}

func fromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, moneyScale)
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func encodeJSON(m map[string]any) (bigquery.NullJSON, error) {
	if m == nil {
		return bigquery.NullJSON{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return bigquery.NullJSON{}, fmt.Errorf("encode json column: %w", err)
	}
	return bigquery.NullJSON{JSONVal: string(b), Valid: true}, nil
}

func decodeJSON(v bigquery.NullJSON) (map[string]any, error) {
	if !v.Valid || v.JSONVal == "" || v.JSONVal == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(v.JSONVal), &m); err != nil {
		return nil, fmt.Errorf("decode json column: %w", err)
	}
	return m, nil
}

func financialContextToRow(e *domain.FinancialContextEntry) (*FinancialContextRow, error) {
	metadata, err := encodeJSON(e.Metadata)
	if err != nil {
		return nil, err
	}
	return &FinancialContextRow{
		ID:          e.ID,
		UserID:      e.UserID,
		Kind:        string(e.Kind),
		Category:    nullString(e.Category),
		Amount:      toRat(e.Amount),
		Description: nullString(e.Description),
		RecordedAt:  e.RecordedAt,
		Metadata:    metadata,
		CreatedAt:   e.CreatedAt,
	}, nil
}

func (r *FinancialContextRow) toDomain() (domain.FinancialContextEntry, error) {
	metadata, err := decodeJSON(r.Metadata)
	if err != nil {
		return domain.FinancialContextEntry{}, err
	}
	return domain.FinancialContextEntry{
		ID:          r.ID,
		UserID:      r.UserID,
		Kind:        domain.FinancialContextKind(r.Kind),
		Category:    r.Category.StringVal,
		Amount:      fromRat(r.Amount),
		Description: r.Description.StringVal,
		RecordedAt:  r.RecordedAt,
		Metadata:    metadata,
		CreatedAt:   r.CreatedAt,
	}, nil
}

func conversationToRow(c *domain.ConversationRecord) (*ConversationRow, error) {
	content := c.Content
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := encodeJSON(content)
	if err != nil {
		return nil, err
	}
	metadata, err := encodeJSON(c.Metadata)
	if err != nil {
		return nil, err
	}
	return &ConversationRow{
		ID:        c.ID,
		UserID:    c.UserID,
		SessionID: c.SessionID,
		Kind:      string(c.Kind),
		Title:     nullString(c.Title),
		Content:   contentJSON,
		Metadata:  metadata,
		CreatedAt: c.CreatedAt,
	}, nil
}

func (r *ConversationRow) toDomain() (domain.ConversationRecord, error) {
	content, err := decodeJSON(r.Content)
	if err != nil {
		return domain.ConversationRecord{}, err
	}
	metadata, err := decodeJSON(r.Metadata)
	if err != nil {
		return domain.ConversationRecord{}, err
	}
	return domain.ConversationRecord{
		ID:        r.ID,
		UserID:    r.UserID,
		SessionID: r.SessionID,
		Kind:      domain.ConversationKind(r.Kind),
		Title:     r.Title.StringVal,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: r.CreatedAt,
	}, nil
}

func preferencesToRow(p *domain.UserPreferences) (*PreferencesRow, error) {
	notifications, err := encodeJSON(p.Notifications)
	if err != nil {
		return nil, err
	}
	personality, err := encodeJSON(p.AIPersonality)
	if err != nil {
		return nil, err
	}
	row := &PreferencesRow{
		ID:                  p.ID,
		UserID:              p.UserID,
		FinancialGoals:      p.FinancialGoals,
		PreferredCategories: p.PreferredCategories,
		Notifications:       notifications,
		AIPersonality:       personality,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	if p.MonthlyBudget != nil {
		row.MonthlyBudget = toRat(*p.MonthlyBudget)
	}
	return row, nil
}

func (r *PreferencesRow) toDomain() (*domain.UserPreferences, error) {
	notifications, err := decodeJSON(r.Notifications)
	if err != nil {
		return nil, err
	}
	personality, err := decodeJSON(r.AIPersonality)
	if err != nil {
		return nil, err
	}
	p := &domain.UserPreferences{
		ID:                  r.ID,
		UserID:              r.UserID,
		FinancialGoals:      r.FinancialGoals,
		PreferredCategories: r.PreferredCategories,
		Notifications:       notifications,
		AIPersonality:       personality,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.MonthlyBudget != nil {
		b := fromRat(r.MonthlyBudget)
		p.MonthlyBudget = &b
	}
	return p, nil
}

func goalToRow(userID string, g *domain.Goal) *GoalRow {
	return &GoalRow{
		ID:            g.ID,
		UserID:        userID,
		Name:          g.Name,
		Description:   nullString(g.Description),
		TargetAmount:  toRat(g.TargetAmount),
		CurrentAmount: toRat(g.CurrentAmount),
		TargetDate:    g.TargetDate,
		CreatedDate:   g.CreatedDate,
		Category:      g.Category,
		Priority:      string(g.Priority),
		Completed:     g.Completed,
		MonthlyTarget: toRat(g.MonthlyTarget),
	}
}

func (r *GoalRow) toDomain() domain.Goal {
	return domain.Goal{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description.StringVal,
		TargetAmount:  fromRat(r.TargetAmount),
		CurrentAmount: fromRat(r.CurrentAmount),
		TargetDate:    r.TargetDate,
		CreatedDate:   r.CreatedDate,
		Category:      r.Category,
		Priority:      domain.Priority(r.Priority),
		Completed:     r.Completed,
		MonthlyTarget: fromRat(r.MonthlyTarget),
	}
}

func goalTransactionToRow(userID string, tx *domain.GoalTransaction) *GoalTransactionRow {
	return &GoalTransactionRow{
		ID:          tx.ID,
		UserID:      userID,
		GoalID:      tx.GoalID,
		Amount:      toRat(tx.Amount),
		Date:        tx.Date,
		Description: nullString(tx.Description),
		Type:        string(tx.Type),
	}
}

func (r *GoalTransactionRow) toDomain() domain.GoalTransaction {
	return domain.GoalTransaction{
		ID:          r.ID,
		GoalID:      r.GoalID,
		Amount:      fromRat(r.Amount),
		Date:        r.Date,
		Description: r.Description.StringVal,
		Type:        domain.GoalTransactionType(r.Type),
	}
}
