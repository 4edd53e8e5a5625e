package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/categories"
	"github.com/dvloznov/finance-assistant/internal/completion"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/goals"
	"github.com/dvloznov/finance-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/finance-assistant/internal/ledger"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/memory"
	"github.com/dvloznov/finance-assistant/internal/metrics"
	"github.com/dvloznov/finance-assistant/internal/receipts"
	"github.com/dvloznov/finance-assistant/internal/store"
	storemem "github.com/dvloznov/finance-assistant/internal/store/inmemory"
	"github.com/prometheus/client_golang/prometheus"
)

const testUser = "u1"

type testServer struct {
	handler   http.Handler
	completer *completion.MockCompleter
}

func newTestServer(t *testing.T, s store.Store) *testServer {
	t.Helper()

	reg := categories.Default()
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	mem := memory.New(s, memory.Config{UserID: testUser}, memory.WithMetrics(m))
	completer := &completion.MockCompleter{}

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(4, jobStore)
	objects := receipts.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		queue.Close()
	})
	if err := queue.Start(ctx, receipts.NewJobHandler(objects, receipts.NewMockAnalyzer(reg))); err != nil {
		t.Fatal(err)
	}

	h := NewRouter(Deps{
		Log:       logger.NewWithWriter(io.Discard),
		Registry:  reg,
		Ledger:    ledger.New(reg, ledger.WithSink(testUser, s)),
		Tracker:   goals.New(reg, goals.WithSink(testUser, s), goals.WithMetrics(m)),
		Memory:    mem,
		Assistant: assistant.New(mem, completer, assistant.WithMetrics(m)),
		Receipts:  receipts.NewService(objects, queue, jobStore, testUser),
		Metrics:   m,
		Gatherer:  promReg,
		StartedAt: time.Now(),
		Backend:   "memory",
	})
	return &testServer{handler: h, completer: completer}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return rec, out
}

func TestHealthAndCategories(t *testing.T) {
	s := newTestServer(t, storemem.NewStore())

	rec, body := s.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || body["status"] != "healthy" || body["backend"] != "memory" {
		t.Errorf("health = %d %v", rec.Code, body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	rec, body = s.do(t, http.MethodGet, "/api/categories", "")
	if rec.Code != http.StatusOK || body["count"].(float64) == 0 {
		t.Errorf("categories = %d %v", rec.Code, body)
	}

	rec, _ = s.do(t, http.MethodDelete, "/api/categories", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE categories = %d, want 405", rec.Code)
	}
}

func TestTransactions(t *testing.T) {
	s := newTestServer(t, storemem.NewStore())

	rec, body := s.do(t, http.MethodPost, "/api/transactions",
		`{"amount":"42.50","date":"2025-03-01","description":"Lunch","category":"food","type":"expense"}`)
	if rec.Code != http.StatusCreated || body["id"] == "" || body["amount"] != "42.5" {
		t.Fatalf("add = %d %v", rec.Code, body)
	}

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unknown field", `{"amount":"1","bogus":true}`, "body"},
		{"bad date", `{"amount":"1","date":"March","category":"food","type":"expense"}`, "date"},
		{"zero amount", `{"amount":"0","category":"food","type":"expense"}`, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, "/api/transactions", tt.body)
			if rec.Code != http.StatusBadRequest || body["field"] != tt.field {
				t.Errorf("got %d %v, want 400 on %s", rec.Code, body, tt.field)
			}
		})
	}

	rec, body = s.do(t, http.MethodGet, "/api/transactions", "")
	if rec.Code != http.StatusOK || body["count"].(float64) != 1 {
		t.Errorf("list = %d %v", rec.Code, body)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/summary?start=2025-03-10&end=2025-03-01", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted summary range = %d, want 400", rec.Code)
	}
	rec, _ = s.do(t, http.MethodGet, "/api/summary?start=2025-03-01&end=2025-04-01", "")
	if rec.Code != http.StatusOK {
		t.Errorf("summary = %d", rec.Code)
	}

	rec, body = s.do(t, http.MethodGet, "/api/financial-context?kind=expense", "")
	if rec.Code != http.StatusOK || body["count"].(float64) != 1 {
		t.Errorf("financial context = %d %v", rec.Code, body)
	}
}

func TestGoalLifecycle(t *testing.T) {
	s := newTestServer(t, storemem.NewStore())
	target := time.Now().AddDate(1, 0, 0).Format("2006-01-02")

	rec, body := s.do(t, http.MethodPost, "/api/goals",
		`{"name":"Trip","target_amount":"1000","target_date":"`+target+`","category":"vacation","priority":"high"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %v", rec.Code, body)
	}
	id := body["id"].(string)

	rec, body = s.do(t, http.MethodPost, "/api/goals/"+id+"/deposits", `{"amount":"250"}`)
	if rec.Code != http.StatusCreated || body["type"] != "deposit" {
		t.Fatalf("deposit = %d %v", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodPost, "/api/goals/"+id+"/withdrawals", `{"amount":"500"}`)
	if rec.Code != http.StatusBadRequest || body["field"] != "amount" {
		t.Errorf("overdraw = %d %v, want 400", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodGet, "/api/goals/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d %v", rec.Code, body)
	}
	progress := body["progress"].(map[string]any)
	if progress["percentage"] != "25" || progress["remaining"] != "750" {
		t.Errorf("progress = %v", progress)
	}

	rec, body = s.do(t, http.MethodPatch, "/api/goals/"+id, `{"name":"Big trip","target_amount":"2000"}`)
	if rec.Code != http.StatusOK || body["name"] != "Big trip" || body["target_amount"] != "2000" {
		t.Errorf("patch = %d %v", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodGet, "/api/goals/"+id+"/transactions", "")
	if rec.Code != http.StatusOK || body["count"].(float64) != 1 {
		t.Errorf("transactions = %d %v", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodGet, "/api/goals/stats", "")
	if rec.Code != http.StatusOK || body["total_goals"].(float64) != 1 {
		t.Errorf("stats = %d %v", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodGet, "/api/financial-summary", "")
	if rec.Code != http.StatusOK || body["active_goals"].(float64) != 1 {
		t.Errorf("summary = %d %v", rec.Code, body)
	}

	for _, path := range []string{"/api/goals/missing", "/api/goals/missing/transactions"} {
		if rec, _ := s.do(t, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}

func TestChatAndConversations(t *testing.T) {
	s := newTestServer(t, storemem.NewStore())

	rec, body := s.do(t, http.MethodPost, "/api/chat", `{"message":"How much did I spend?"}`)
	if rec.Code != http.StatusOK || body["recorded"] != true || body["message"] == "" {
		t.Fatalf("chat = %d %v", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodGet, "/api/conversations?kind=chat", "")
	if rec.Code != http.StatusOK || body["count"].(float64) != 1 {
		t.Errorf("conversations = %d %v", rec.Code, body)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/conversations?kind=gossip", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind = %d, want 400", rec.Code)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/chat", `{"message":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank message = %d, want 400", rec.Code)
	}

	s.completer.Err = errors.New("quota exceeded")
	rec, body = s.do(t, http.MethodPost, "/api/chat", `{"message":"hello"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("completion failure = %d %v, want 502", rec.Code, body)
	}
	if strings.Contains(rec.Body.String(), "quota") {
		t.Errorf("upstream detail leaked: %s", rec.Body.String())
	}
}

func TestSessionsAndPreferences(t *testing.T) {
	s := newTestServer(t, storemem.NewStore())

	rec, body := s.do(t, http.MethodGet, "/api/preferences", "")
	if rec.Code != http.StatusOK || body["exists"] != false {
		t.Errorf("empty preferences = %d %v", rec.Code, body)
	}

	rec, _ = s.do(t, http.MethodPut, "/api/preferences", `{"monthly_budget":"-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative budget = %d, want 400", rec.Code)
	}

	rec, _ = s.do(t, http.MethodPut, "/api/preferences", `{"monthly_budget":"1500","preferred_categories":["food"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put preferences = %d", rec.Code)
	}
	rec, body = s.do(t, http.MethodGet, "/api/preferences", "")
	prefs, _ := body["preferences"].(map[string]any)
	if rec.Code != http.StatusOK || body["exists"] != true || prefs["monthly_budget"] != "1500" {
		t.Errorf("preferences = %d %v", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodPost, "/api/sessions", "")
	if rec.Code != http.StatusCreated || body["session_id"] == "" {
		t.Errorf("new session = %d %v", rec.Code, body)
	}

	rec, body = s.do(t, http.MethodPost, "/api/context", `{"query":"budget","limit":5}`)
	if rec.Code != http.StatusOK || body["query"] != "budget" || body["preferences"] == nil {
		t.Errorf("context = %d %v", rec.Code, body)
	}
}

func TestReceiptFlow(t *testing.T) {
	s := newTestServer(t, storemem.NewStore())

	req := httptest.NewRequest(http.MethodPost, "/api/receipts", strings.NewReader("receipt bytes"))
	req.Header.Set("Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload = %d %s", rec.Code, rec.Body.String())
	}
	var job map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	id := job["job_id"].(string)

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, body := s.do(t, http.MethodGet, "/api/jobs/"+id, "")
		if body["status"] == "completed" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job not completed: %v", body)
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec, body := s.do(t, http.MethodPost, "/api/jobs/"+id+"/confirm", `{"category":"shopping"}`)
	if rec.Code != http.StatusCreated || body["category"] != "shopping" || body["confidence"] == nil {
		t.Errorf("confirm = %d %v", rec.Code, body)
	}
	txID := body["id"]

	rec, body = s.do(t, http.MethodPost, "/api/jobs/"+id+"/confirm", `{"category":"food"}`)
	if rec.Code != http.StatusOK || body["id"] != txID || body["category"] != "shopping" {
		t.Errorf("repeated confirm = %d %v, want 200 with transaction %v", rec.Code, body, txID)
	}
	_, body = s.do(t, http.MethodGet, "/api/transactions", "")
	if body["count"].(float64) != 1 {
		t.Errorf("transactions after two confirms = %v, want 1", body["count"])
	}
	_, body = s.do(t, http.MethodGet, "/api/jobs/"+id, "")
	if body["transaction_id"] != txID || body["confirmed_at"] == nil {
		t.Errorf("confirmed job = %v", body)
	}

	rec, body = s.do(t, http.MethodGet, "/api/jobs?status=completed", "")
	if rec.Code != http.StatusOK || body["count"].(float64) != 1 {
		t.Errorf("jobs = %d %v", rec.Code, body)
	}
	rec, _ = s.do(t, http.MethodGet, "/api/jobs?status=weird", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", rec.Code)
	}
	rec, _ = s.do(t, http.MethodGet, "/api/jobs/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job = %d, want 404", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/receipts", strings.NewReader("%PDF"))
	req.Header.Set("Content-Type", "application/pdf")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("pdf upload = %d, want 400", rec.Code)
	}
}

type failingStore struct {
	*storemem.Store
}

func (failingStore) InsertFinancialContext(ctx context.Context, entry *domain.FinancialContextEntry) error {
	return errors.New("connection refused")
}

func TestStorageFailureKeepsTransaction(t *testing.T) {
	s := newTestServer(t, failingStore{storemem.NewStore()})

	rec, body := s.do(t, http.MethodPost, "/api/transactions",
		`{"amount":"10","description":"Bus","category":"transport","type":"expense"}`)
	if rec.Code != http.StatusServiceUnavailable || body["transaction"] == nil {
		t.Fatalf("add = %d %v, want 503 with transaction", rec.Code, body)
	}

	_, body = s.do(t, http.MethodGet, "/api/transactions", "")
	if body["count"].(float64) != 1 {
		t.Errorf("transaction not kept locally: %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, storemem.NewStore())
	s.do(t, http.MethodGet, "/api/categories", "")

	rec, _ := s.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Errorf("metrics = %d %s", rec.Code, rec.Body.String())
	}
}
