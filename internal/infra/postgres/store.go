// Package postgres implements store.Store on PostgreSQL through a pgx
// connection pool. The schema lives in migrations/ and is applied with
// RunMigrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db    DB
	close func()
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("Connect: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}
	return &Store{db: pool, close: pool.Close}, nil
}

// New wraps an existing connection. Close on the returned store is a no-op.
func New(db DB) *Store {
	return &Store{db: db, close: func() {}}
}

const financialContextColumns = `id, user_id, kind, category, amount, description, recorded_at, metadata, created_at`

// InsertFinancialContext implements store.FinancialContextStore.
func (s *Store) InsertFinancialContext(ctx context.Context, entry *domain.FinancialContextEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("financial context ID is required")
	}

	query := `INSERT INTO financial_context (` + financialContextColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		string(entry.Kind),
		entry.Category,
		entry.Amount,
		entry.Description,
		entry.RecordedAt,
		entry.Metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert financial context: %w", err)
	}
	return nil
}

// ListFinancialContext implements store.FinancialContextStore.
func (s *Store) ListFinancialContext(ctx context.Context, userID string, filter store.Filter) ([]domain.FinancialContextEntry, error) {
	query, args := listQuery(financialContextColumns, "financial_context", "recorded_at", userID, store.Filter{
		Kind:      filter.Kind,
		Ascending: filter.Ascending,
		Limit:     filter.Limit,
	})

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list financial context: %w", err)
	}
	defer rows.Close()

	var result []domain.FinancialContextEntry
	for rows.Next() {
		var (
			e    domain.FinancialContextEntry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &kind, &e.Category, &e.Amount, &e.Description, &e.RecordedAt, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan financial context: %w", err)
		}
		e.Kind = domain.FinancialContextKind(kind)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list financial context: %w", err)
	}
	return result, nil
}

const conversationColumns = `id, user_id, session_id, kind, title, content, metadata, created_at`

// InsertConversation implements store.ConversationStore.
func (s *Store) InsertConversation(ctx context.Context, rec *domain.ConversationRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("conversation ID is required")
	}

	content := rec.Content
	if content == nil {
		content = map[string]any{}
	}

	query := `INSERT INTO conversations (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.SessionID,
		string(rec.Kind),
		rec.Title,
		content,
		rec.Metadata,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// ListConversations implements store.ConversationStore.
func (s *Store) ListConversations(ctx context.Context, userID string, filter store.Filter) ([]domain.ConversationRecord, error) {
	query, args := listQuery(conversationColumns, "conversations", "created_at", userID, filter)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var result []domain.ConversationRecord
	for rows.Next() {
		var (
			c    domain.ConversationRecord
			kind string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.SessionID, &kind, &c.Title, &c.Content, &c.Metadata, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Kind = domain.ConversationKind(kind)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return result, nil
}

// UpsertPreferences implements store.PreferenceStore.
func (s *Store) UpsertPreferences(ctx context.Context, prefs *domain.UserPreferences) error {
	if prefs.UserID == "" {
		return fmt.Errorf("preferences user ID is required")
	}

	var budget decimal.NullDecimal
	if prefs.MonthlyBudget != nil {
		budget = decimal.NewNullDecimal(*prefs.MonthlyBudget)
	}

	query := `
		INSERT INTO user_preferences (id, user_id, monthly_budget, financial_goals, preferred_categories,
			notifications, ai_personality, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			monthly_budget = EXCLUDED.monthly_budget,
			financial_goals = EXCLUDED.financial_goals,
			preferred_categories = EXCLUDED.preferred_categories,
			notifications = EXCLUDED.notifications,
			ai_personality = EXCLUDED.ai_personality,
			updated_at = EXCLUDED.updated_at`
	_, err := s.db.Exec(ctx, query,
		prefs.ID,
		prefs.UserID,
		budget,
		prefs.FinancialGoals,
		prefs.PreferredCategories,
		prefs.Notifications,
		prefs.AIPersonality,
		prefs.CreatedAt,
		prefs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// GetPreferences implements store.PreferenceStore.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	query := `
		SELECT id, user_id, monthly_budget, financial_goals, preferred_categories,
			notifications, ai_personality, created_at, updated_at
		FROM user_preferences
		WHERE user_id = $1`

	var (
		p      domain.UserPreferences
		budget decimal.NullDecimal
	)
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.ID,
		&p.UserID,
		&budget,
		&p.FinancialGoals,
		&p.PreferredCategories,
		&p.Notifications,
		&p.AIPersonality,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	if budget.Valid {
		p.MonthlyBudget = &budget.Decimal
	}
	return &p, nil
}

const goalColumns = `id, name, description, target_amount, current_amount, target_date, created_date,
	category, priority, completed, monthly_target`

// SaveGoal implements store.GoalStore.
func (s *Store) SaveGoal(ctx context.Context, userID string, goal *domain.Goal) error {
	if goal.ID == "" {
		return fmt.Errorf("goal ID is required")
	}

	query := `
		INSERT INTO goals (user_id, ` + goalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			target_amount = EXCLUDED.target_amount,
			current_amount = EXCLUDED.current_amount,
			target_date = EXCLUDED.target_date,
			category = EXCLUDED.category,
			priority = EXCLUDED.priority,
			completed = EXCLUDED.completed,
			monthly_target = EXCLUDED.monthly_target`
	_, err := s.db.Exec(ctx, query,
		userID,
		goal.ID,
		goal.Name,
		goal.Description,
		goal.TargetAmount,
		goal.CurrentAmount,
		goal.TargetDate,
		goal.CreatedDate,
		goal.Category,
		string(goal.Priority),
		goal.Completed,
		goal.MonthlyTarget,
	)
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

// ListGoals implements store.GoalStore. Goals come back in insertion order.
func (s *Store) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = $1 ORDER BY inserted_at, id`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var result []domain.Goal
	for rows.Next() {
		var (
			g        domain.Goal
			priority string
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.TargetAmount, &g.CurrentAmount, &g.TargetDate,
			&g.CreatedDate, &g.Category, &priority, &g.Completed, &g.MonthlyTarget); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.Priority = domain.Priority(priority)
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return result, nil
}

// InsertGoalTransaction implements store.GoalStore.
func (s *Store) InsertGoalTransaction(ctx context.Context, userID string, tx *domain.GoalTransaction) error {
	if tx.ID == "" {
		return fmt.Errorf("goal transaction ID is required")
	}

	query := `
		INSERT INTO goal_transactions (id, user_id, goal_id, amount, date, description, type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.Exec(ctx, query, tx.ID, userID, tx.GoalID, tx.Amount, tx.Date, tx.Description, string(tx.Type))
	if err != nil {
		return fmt.Errorf("insert goal transaction: %w", err)
	}
	return nil
}

// ListGoalTransactions implements store.GoalStore.
func (s *Store) ListGoalTransactions(ctx context.Context, userID, goalID string) ([]domain.GoalTransaction, error) {
	query := `
		SELECT id, goal_id, amount, date, description, type
		FROM goal_transactions
		WHERE user_id = $1 AND goal_id = $2
		ORDER BY date DESC`

	rows, err := s.db.Query(ctx, query, userID, goalID)
	if err != nil {
		return nil, fmt.Errorf("list goal transactions: %w", err)
	}
	defer rows.Close()

	var result []domain.GoalTransaction
	for rows.Next() {
		var (
			tx     domain.GoalTransaction
			txType string
		)
		if err := rows.Scan(&tx.ID, &tx.GoalID, &tx.Amount, &tx.Date, &tx.Description, &txType); err != nil {
			return nil, fmt.Errorf("scan goal transaction: %w", err)
		}
		tx.Type = domain.GoalTransactionType(txType)
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list goal transactions: %w", err)
	}
	return result, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.close()
	return nil
}

// listQuery builds a per-user select over table. Kind matches a "kind"
// column and SessionID a "session_id" column.
func listQuery(columns, table, orderBy, userID string, filter store.Filter) (string, []any) {
	var b strings.Builder
	args := []any{userID}

	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE user_id = $1", columns, table)
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		fmt.Fprintf(&b, " AND kind = $%d", len(args))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		fmt.Fprintf(&b, " AND session_id = $%d", len(args))
	}

	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}
	fmt.Fprintf(&b, " ORDER BY %s %s", orderBy, direction)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

var _ store.Store = (*Store)(nil)
