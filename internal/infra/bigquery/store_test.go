package bigquery

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/shopspring/decimal"
)

func TestListQuery(t *testing.T) {
	tests := []struct {
		name       string
		filter     store.Filter
		wantSQL    string
		wantParams []string
	}{
		{
			name:       "defaults",
			wantSQL:    "SELECT a FROM `p.d.t` WHERE user_id = @user_id ORDER BY created_at DESC",
			wantParams: []string{"user_id"},
		},
		{
			name:       "kind session limit",
			filter:     store.Filter{Kind: "chat", SessionID: "s1", Limit: 5},
			wantSQL:    "SELECT a FROM `p.d.t` WHERE user_id = @user_id AND kind = @kind AND session_id = @session_id ORDER BY created_at DESC LIMIT @limit",
			wantParams: []string{"user_id", "kind", "session_id", "limit"},
		},
		{
			name:       "ascending",
			filter:     store.Filter{Ascending: true},
			wantSQL:    "SELECT a FROM `p.d.t` WHERE user_id = @user_id ORDER BY created_at ASC",
			wantParams: []string{"user_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params := listQuery("a", tableRef("p", "d", "t"), "created_at", "u1", tt.filter)
			if sql != tt.wantSQL {
				t.Errorf("sql = %q\nwant %q", sql, tt.wantSQL)
			}
			if len(params) != len(tt.wantParams) {
				t.Fatalf("params = %v, want %v", params, tt.wantParams)
			}
			for i, p := range params {
				if p.Name != tt.wantParams[i] {
					t.Errorf("params[%d] = %s, want %s", i, p.Name, tt.wantParams[i])
				}
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_goals.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.goals` (id STRING)")},
		"0001_init.sql":  {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id STRING)")},
		"001_bad.sql":    {Data: []byte("x")},
		"README.md":      {Data: []byte("x")},
		"0003_no_ext":    {Data: []byte("x")},
		"0004_later.sql": {Data: []byte("SELECT 1")},
	}

	got, err := ReadMigrations(fsys, "proj", "ds")
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadMigrations() = %d migrations, want 3", len(got))
	}
	if got[0].Version != 1 || got[1].Version != 2 || got[2].Version != 4 {
		t.Errorf("versions = %d, %d, %d", got[0].Version, got[1].Version, got[2].Version)
	}
	if got[1].Name != "goals" || !strings.Contains(got[1].SQL, "`proj.ds.goals`") {
		t.Errorf("migration = %+v", got[1])
	}

	again, _ := ReadMigrations(fsys, "other", "dataset")
	if again[0].Checksum != got[0].Checksum {
		t.Error("checksum depends on placeholder substitution")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadMigrations(sub, "proj", "ds")
	if err != nil {
		t.Fatal(err)
	}

	var all strings.Builder
	for _, m := range got {
		all.WriteString(m.SQL)
	}
	for _, table := range []string{financialContextTable, conversationsTable, preferencesTable, goalsTable, goalTransactionsTable} {
		if !strings.Contains(all.String(), "`proj.ds."+table+"`") {
			t.Errorf("no migration creates %s", table)
		}
	}
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	pending := PendingMigrations(all, []AppliedMigration{{Version: 1}, {Version: 3}})
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("PendingMigrations() = %+v", pending)
	}
}

func TestPreferencesRowMapping(t *testing.T) {
	budget := decimal.RequireFromString("1234.5")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	prefs := &domain.UserPreferences{
		ID:            "p1",
		UserID:        "u1",
		MonthlyBudget: &budget,
		AIPersonality: map[string]any{"tone": "direct"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	row, err := preferencesToRow(prefs)
	if err != nil {
		t.Fatal(err)
	}
	if row.Notifications.Valid {
		t.Error("nil notifications encoded as JSON")
	}
	if got := ratParam(row.MonthlyBudget); got.StringVal != "1234.50" {
		t.Errorf("budget param = %q", got.StringVal)
	}

	back, err := row.toDomain()
	if err != nil {
		t.Fatal(err)
	}
	if back.MonthlyBudget == nil || !back.MonthlyBudget.Equal(budget) || back.AIPersonality["tone"] != "direct" {
		t.Errorf("toDomain() = %+v", back)
	}

	row.MonthlyBudget = nil
	back, _ = row.toDomain()
	if back.MonthlyBudget != nil {
		t.Error("missing budget decoded as a value")
	}
	if ratParam(nil).Valid {
		t.Error("ratParam(nil) is valid")
	}
}

func TestFinancialContextRowRounds(t *testing.T) {
	entry := &domain.FinancialContextEntry{
		ID:     "f1",
		Kind:   domain.ContextExpense,
		Amount: decimal.RequireFromString("10.005"),
	}
	row, err := financialContextToRow(entry)
	if err != nil {
		t.Fatal(err)
	}
	if row.Category.Valid {
		t.Error("empty category stored as a value")
	}
	back, err := row.toDomain()
	if err != nil {
		t.Fatal(err)
	}
	if !back.Amount.Equal(decimal.RequireFromString("10.01")) {
		t.Errorf("Amount = %s, want 10.01", back.Amount)
	}
	if back.Metadata != nil {
		t.Errorf("Metadata = %v, want nil", back.Metadata)
	}
}

func TestConversationRowMapping(t *testing.T) {
	row, err := conversationToRow(&domain.ConversationRecord{ID: "c1", Kind: domain.ConversationChat})
	if err != nil {
		t.Fatal(err)
	}
	if !row.Content.Valid || row.Content.JSONVal != "{}" {
		t.Errorf("Content = %+v, want empty object", row.Content)
	}

	row.Content = bigquery.NullJSON{JSONVal: "not json", Valid: true}
	if _, err := row.toDomain(); err == nil {
		t.Error("toDomain() accepted invalid JSON")
	}
}
