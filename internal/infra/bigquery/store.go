// Package bigquery implements store.Store on BigQuery. Append-only tables
// are written through the streaming inserter; preferences and goals are
// upserted with MERGE statements.
package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/store"
	"google.golang.org/api/iterator"
)

const (
	financialContextTable = "financial_context"
	conversationsTable    = "conversations"
	preferencesTable      = "user_preferences"
	goalsTable            = "goals"
	goalTransactionsTable = "goal_transactions"
)

// Store is a BigQuery-backed store.Store. It holds one shared client.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewStore creates a client for projectID. Tables are expected in datasetID.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return &Store{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) table(name string) string {
	return tableRef(s.projectID, s.datasetID, name)
}

func tableRef(projectID, datasetID, name string) string {
	return fmt.Sprintf("`%s.%s.%s`", projectID, datasetID, name)
}

func (s *Store) put(ctx context.Context, table string, row any) error {
	inserter := s.client.DatasetInProject(s.projectID, s.datasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

// exec runs a DML statement and waits for it to finish.
func (s *Store) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := s.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// readAll runs a query and decodes every row into T.
func readAll[T any](ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) ([]T, error) {
	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var rows []T
	for {
		var r T
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// InsertFinancialContext implements store.FinancialContextStore.
func (s *Store) InsertFinancialContext(ctx context.Context, entry *domain.FinancialContextEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("InsertFinancialContext: ID is required")
	}
	row, err := financialContextToRow(entry)
	if err != nil {
		return fmt.Errorf("InsertFinancialContext: %w", err)
	}
	if err := s.put(ctx, financialContextTable, row); err != nil {
		return fmt.Errorf("InsertFinancialContext: %w", err)
	}
	return nil
}

// ListFinancialContext implements store.FinancialContextStore.
func (s *Store) ListFinancialContext(ctx context.Context, userID string, filter store.Filter) ([]domain.FinancialContextEntry, error) {
	sql, params := listQuery(
		"id, user_id, kind, category, amount, description, recorded_at, metadata, created_at",
		s.table(financialContextTable), "recorded_at", userID,
		store.Filter{Kind: filter.Kind, Ascending: filter.Ascending, Limit: filter.Limit},
	)

	rows, err := readAll[FinancialContextRow](ctx, s.client, sql, params)
	if err != nil {
		return nil, fmt.Errorf("ListFinancialContext: %w", err)
	}

	result := make([]domain.FinancialContextEntry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListFinancialContext: row %s: %w", rows[i].ID, err)
		}
		result = append(result, e)
	}
	return result, nil
}

// InsertConversation implements store.ConversationStore.
func (s *Store) InsertConversation(ctx context.Context, rec *domain.ConversationRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("InsertConversation: ID is required")
	}
	row, err := conversationToRow(rec)
	if err != nil {
		return fmt.Errorf("InsertConversation: %w", err)
	}
	if err := s.put(ctx, conversationsTable, row); err != nil {
		return fmt.Errorf("InsertConversation: %w", err)
	}
	return nil
}

// ListConversations implements store.ConversationStore.
func (s *Store) ListConversations(ctx context.Context, userID string, filter store.Filter) ([]domain.ConversationRecord, error) {
	sql, params := listQuery(
		"id, user_id, session_id, kind, title, content, metadata, created_at",
		s.table(conversationsTable), "created_at", userID, filter,
	)

	rows, err := readAll[ConversationRow](ctx, s.client, sql, params)
	if err != nil {
		return nil, fmt.Errorf("ListConversations: %w", err)
	}

	result := make([]domain.ConversationRecord, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListConversations: row %s: %w", rows[i].ID, err)
		}
		result = append(result, c)
	}
	return result, nil
}

// UpsertPreferences implements store.PreferenceStore.
func (s *Store) UpsertPreferences(ctx context.Context, prefs *domain.UserPreferences) error {
	if prefs.UserID == "" {
		return fmt.Errorf("UpsertPreferences: user ID is required")
	}
	row, err := preferencesToRow(prefs)
	if err != nil {
		return fmt.Errorf("UpsertPreferences: %w", err)
	}

	sql := fmt.Sprintf(`
		MERGE %s T
		USING (
			SELECT
				@id AS id,
				@user_id AS user_id,
				CAST(@monthly_budget AS NUMERIC) AS monthly_budget,
				@financial_goals AS financial_goals,
				@preferred_categories AS preferred_categories,
				SAFE.PARSE_JSON(@notifications) AS notifications,
				SAFE.PARSE_JSON(@ai_personality) AS ai_personality,
				@created_at AS created_at,
				@updated_at AS updated_at
		) S
		ON T.user_id = S.user_id
		WHEN MATCHED THEN UPDATE SET
			monthly_budget = S.monthly_budget,
			financial_goals = S.financial_goals,
			preferred_categories = S.preferred_categories,
			notifications = S.notifications,
			ai_personality = S.ai_personality,
			updated_at = S.updated_at
		WHEN NOT MATCHED THEN INSERT ROW
	`, s.table(preferencesTable))

	params := []bigquery.QueryParameter{
		{Name: "id", Value: row.ID},
		{Name: "user_id", Value: row.UserID},
		{Name: "monthly_budget", Value: ratParam(row.MonthlyBudget)},
		{Name: "financial_goals", Value: nonNilStrings(row.FinancialGoals)},
		{Name: "preferred_categories", Value: nonNilStrings(row.PreferredCategories)},
		{Name: "notifications", Value: jsonParam(row.Notifications)},
		{Name: "ai_personality", Value: jsonParam(row.AIPersonality)},
		{Name: "created_at", Value: row.CreatedAt},
		{Name: "updated_at", Value: row.UpdatedAt},
	}
	if err := s.exec(ctx, sql, params); err != nil {
		return fmt.Errorf("UpsertPreferences: %w", err)
	}
	return nil
}

// GetPreferences implements store.PreferenceStore.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	sql := fmt.Sprintf(`
		SELECT id, user_id, monthly_budget, financial_goals, preferred_categories,
			notifications, ai_personality, created_at, updated_at
		FROM %s
		WHERE user_id = @user_id
		LIMIT 1
	`, s.table(preferencesTable))

	rows, err := readAll[PreferencesRow](ctx, s.client, sql, []bigquery.QueryParameter{{Name: "user_id", Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("GetPreferences: %w", err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}

	p, err := rows[0].toDomain()
	if err != nil {
		return nil, fmt.Errorf("GetPreferences: %w", err)
	}
	return p, nil
}

// SaveGoal implements store.GoalStore.
func (s *Store) SaveGoal(ctx context.Context, userID string, goal *domain.Goal) error {
	if goal.ID == "" {
		return fmt.Errorf("SaveGoal: ID is required")
	}
	row := goalToRow(userID, goal)

	sql := fmt.Sprintf(`
		MERGE %s T
		USING (
			SELECT
				@id AS id,
				@user_id AS user_id,
				@name AS name,
				@description AS description,
				CAST(@target_amount AS NUMERIC) AS target_amount,
				CAST(@current_amount AS NUMERIC) AS current_amount,
				@target_date AS target_date,
				@created_date AS created_date,
				@category AS category,
				@priority AS priority,
				@completed AS completed,
				CAST(@monthly_target AS NUMERIC) AS monthly_target
		) S
		ON T.id = S.id
		WHEN MATCHED THEN UPDATE SET
			name = S.name,
			description = S.description,
			target_amount = S.target_amount,
			current_amount = S.current_amount,
			target_date = S.target_date,
			category = S.category,
			priority = S.priority,
			completed = S.completed,
			monthly_target = S.monthly_target
		WHEN NOT MATCHED THEN INSERT ROW
	`, s.table(goalsTable))

	params := []bigquery.QueryParameter{
		{Name: "id", Value: row.ID},
		{Name: "user_id", Value: row.UserID},
		{Name: "name", Value: row.Name},
		{Name: "description", Value: row.Description},
		{Name: "target_amount", Value: ratParam(row.TargetAmount)},
		{Name: "current_amount", Value: ratParam(row.CurrentAmount)},
		{Name: "target_date", Value: row.TargetDate},
		{Name: "created_date", Value: row.CreatedDate},
		{Name: "category", Value: row.Category},
		{Name: "priority", Value: row.Priority},
		{Name: "completed", Value: row.Completed},
		{Name: "monthly_target", Value: ratParam(row.MonthlyTarget)},
	}
	if err := s.exec(ctx, sql, params); err != nil {
		return fmt.Errorf("SaveGoal: %w", err)
	}
	return nil
}

// ListGoals implements store.GoalStore.
func (s *Store) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	sql := fmt.Sprintf(`
		SELECT id, user_id, name, description, target_amount, current_amount, target_date,
			created_date, category, priority, completed, monthly_target
		FROM %s
		WHERE user_id = @user_id
		ORDER BY created_date, id
	`, s.table(goalsTable))

	rows, err := readAll[GoalRow](ctx, s.client, sql, []bigquery.QueryParameter{{Name: "user_id", Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("ListGoals: %w", err)
	}

	result := make([]domain.Goal, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

// InsertGoalTransaction implements store.GoalStore.
func (s *Store) InsertGoalTransaction(ctx context.Context, userID string, tx *domain.GoalTransaction) error {
	if tx.ID == "" {
		return fmt.Errorf("InsertGoalTransaction: ID is required")
	}
	if err := s.put(ctx, goalTransactionsTable, goalTransactionToRow(userID, tx)); err != nil {
		return fmt.Errorf("InsertGoalTransaction: %w", err)
	}
	return nil
}

// ListGoalTransactions implements store.GoalStore.
func (s *Store) ListGoalTransactions(ctx context.Context, userID, goalID string) ([]domain.GoalTransaction, error) {
	sql := fmt.Sprintf(`
		SELECT id, user_id, goal_id, amount, date, description, type
		FROM %s
		WHERE user_id = @user_id AND goal_id = @goal_id
		ORDER BY date DESC
	`, s.table(goalTransactionsTable))

	rows, err := readAll[GoalTransactionRow](ctx, s.client, sql, []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "goal_id", Value: goalID},
	})
	if err != nil {
		return nil, fmt.Errorf("ListGoalTransactions: %w", err)
	}

	result := make([]domain.GoalTransaction, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toDomain())
	}
	return result, nil
}

// listQuery builds a parameterized per-user select over table.
func listQuery(columns, table, orderBy, userID string, filter store.Filter) (string, []bigquery.QueryParameter) {
	var b strings.Builder
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE user_id = @user_id", columns, table)
	if filter.Kind != "" {
		b.WriteString(" AND kind = @kind")
		params = append(params, bigquery.QueryParameter{Name: "kind", Value: filter.Kind})
	}
	if filter.SessionID != "" {
		b.WriteString(" AND session_id = @session_id")
		params = append(params, bigquery.QueryParameter{Name: "session_id", Value: filter.SessionID})
	}

	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}
	fmt.Fprintf(&b, " ORDER BY %s %s", orderBy, direction)

	if filter.Limit > 0 {
		b.WriteString(" LIMIT @limit")
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: filter.Limit})
	}
	return b.String(), params
}

// ratParam renders a NUMERIC value as a string parameter so NULL and
// decimal values share one parameter type.
func ratParam(r *big.Rat) bigquery.NullString {
	if r == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: r.FloatString(moneyScale), Valid: true}
}

func jsonParam(v bigquery.NullJSON) bigquery.NullString {
	return bigquery.NullString{StringVal: v.JSONVal, Valid: v.Valid}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ store.Store = (*Store)(nil)
