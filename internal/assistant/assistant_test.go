package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/completion"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/memory"
	"github.com/dvloznov/finance-assistant/internal/metrics"
	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/dvloznov/finance-assistant/internal/store/inmemory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

// recordingCompleter captures the prompt it was given.
type recordingCompleter struct {
	got   completion.Prompt
	reply string
	err   error
}

func (c *recordingCompleter) Complete(ctx context.Context, p completion.Prompt) (string, error) {
	c.got = p
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

// readOnlyStore rejects conversation writes.
type readOnlyStore struct {
	*inmemory.Store
}

func (s *readOnlyStore) InsertConversation(ctx context.Context, rec *domain.ConversationRecord) error {
	return errors.New("read-only replica")
}

func newMemory(s store.Store) *memory.Assembler {
	return memory.New(s, memory.Config{UserID: "u1"}, memory.WithClock(func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}))
}

func TestAsk(t *testing.T) {
	ctx := context.Background()
	mem := newMemory(inmemory.NewStore())
	if _, err := mem.RecordFinancialContext(ctx, domain.NewFinancialContext{
		Kind: domain.ContextExpense, Category: "food", Amount: decimal.NewFromInt(25),
	}); err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := &recordingCompleter{reply: "You spent 25.00 on food."}
	a := New(mem, c, WithMetrics(m))

	reply, err := a.Ask(ctx, "  How much did I spend?  ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if c.got.Message != "How much did I spend?" {
		t.Errorf("prompt message = %q", c.got.Message)
	}
	if len(c.got.Bundle.FinancialContext) != 1 {
		t.Errorf("bundle financial context = %d, want 1", len(c.got.Bundle.FinancialContext))
	}
	if reply.Message != c.reply || !reply.Recorded || reply.ConversationID == "" {
		t.Errorf("reply = %+v", reply)
	}
	if reply.Suggestions[0] != spendingSuggestions[0] {
		t.Errorf("Suggestions = %v, want spending suggestions", reply.Suggestions)
	}

	recs, err := mem.ListConversations(ctx, domain.ConversationChat, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Content["reply"] != c.reply {
		t.Errorf("recorded conversations = %+v", recs)
	}
	if got := testutil.ToFloat64(m.CompletionRequests.WithLabelValues("success")); got != 1 {
		t.Errorf("success counter = %v, want 1", got)
	}
}

func TestAskCompletionFailure(t *testing.T) {
	ctx := context.Background()
	mem := newMemory(inmemory.NewStore())
	c := &recordingCompleter{err: &domain.CompletionError{Transient: true, Err: errors.New("503")}}
	a := New(mem, c)

	_, err := a.Ask(ctx, "hello")
	if !domain.IsCompletion(err) {
		t.Fatalf("Ask() error = %v, want completion error", err)
	}

	recs, _ := mem.ListConversations(ctx, "", 0)
	if len(recs) != 0 {
		t.Errorf("failed exchange was recorded: %+v", recs)
	}
}

func TestAskRecordFailureStillReplies(t *testing.T) {
	mem := newMemory(&readOnlyStore{Store: inmemory.NewStore()})
	a := New(mem, &completion.MockCompleter{})

	reply, err := a.Ask(context.Background(), "any goal ideas?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.Recorded {
		t.Error("Recorded = true for a failed write")
	}
	if reply.Message == "" {
		t.Error("empty reply")
	}
}

func TestAskEmptyMessage(t *testing.T) {
	a := New(newMemory(inmemory.NewStore()), &completion.MockCompleter{})
	if _, err := a.Ask(context.Background(), "   "); !domain.IsValidation(err) {
		t.Errorf("Ask() error = %v, want validation error", err)
	}
}

func TestSuggestions(t *testing.T) {
	tests := []struct {
		message string
		want    []string
	}{
		{"Where did my expenses go?", spendingSuggestions},
		{"I SPEND too much", spendingSuggestions},
		{"new goal for a car", goalSuggestions},
		{"what is my target", goalSuggestions},
		{"how can I save more", savingSuggestions},
		{"hello", defaultSuggestions},
		{"spending towards my goal", spendingSuggestions},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := Suggestions(tt.message)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Suggestions(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	long := strings.Repeat("a", 80)
	if got := title(long); len([]rune(got)) != 63 {
		t.Errorf("title length = %d, want 63", len([]rune(got)))
	}
	if got := title("short"); got != "short" {
		t.Errorf("title(short) = %q", got)
	}
}
