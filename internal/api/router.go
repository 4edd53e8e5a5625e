// Package api wires the HTTP handlers and middleware into one handler.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/finance-assistant/internal/api/handlers"
	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/categories"
	"github.com/dvloznov/finance-assistant/internal/goals"
	"github.com/dvloznov/finance-assistant/internal/ledger"
	"github.com/dvloznov/finance-assistant/internal/memory"
	"github.com/dvloznov/finance-assistant/internal/metrics"
	"github.com/dvloznov/finance-assistant/internal/receipts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the services behind the API. Receipts and Gatherer are
// optional; their routes are not registered when nil.
type Deps struct {
	Log       zerolog.Logger
	Registry  *categories.Registry
	Ledger    *ledger.Ledger
	Tracker   *goals.Tracker
	Memory    *memory.Assembler
	Assistant *assistant.Assistant
	Receipts  *receipts.Service
	Metrics   *metrics.Collectors
	Gatherer  prometheus.Gatherer
	StartedAt time.Time
	Backend   string
}

// NewRouter returns the API handler with middleware applied.
func NewRouter(d Deps) http.Handler {
	categoriesHandler := handlers.NewCategoriesHandler(d.Registry)
	transactionsHandler := handlers.NewTransactionsHandler(d.Ledger)
	goalsHandler := handlers.NewGoalsHandler(d.Tracker, d.Memory)
	memoryHandler := handlers.NewMemoryHandler(d.Memory)
	chatHandler := handlers.NewChatHandler(d.Assistant)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/categories", categoriesHandler.ListCategories)

	mux.HandleFunc("POST /api/transactions", transactionsHandler.AddTransaction)
	mux.HandleFunc("GET /api/transactions", transactionsHandler.ListTransactions)
	mux.HandleFunc("GET /api/summary", transactionsHandler.Summary)

	mux.HandleFunc("POST /api/goals", goalsHandler.CreateGoal)
	mux.HandleFunc("GET /api/goals", goalsHandler.ListGoals)
	mux.HandleFunc("GET /api/goals/stats", goalsHandler.Stats)
	mux.HandleFunc("GET /api/goals/{id}", goalsHandler.GetGoal)
	mux.HandleFunc("PATCH /api/goals/{id}", goalsHandler.UpdateGoal)
	mux.HandleFunc("POST /api/goals/{id}/deposits", goalsHandler.Deposit)
	mux.HandleFunc("POST /api/goals/{id}/withdrawals", goalsHandler.Withdraw)
	mux.HandleFunc("GET /api/goals/{id}/transactions", goalsHandler.GoalTransactions)

	mux.HandleFunc("POST /api/conversations", memoryHandler.RecordConversation)
	mux.HandleFunc("GET /api/conversations", memoryHandler.ListConversations)
	mux.HandleFunc("POST /api/sessions", memoryHandler.NewSession)
	mux.HandleFunc("GET /api/preferences", memoryHandler.GetPreferences)
	mux.HandleFunc("PUT /api/preferences", memoryHandler.PutPreferences)
	mux.HandleFunc("POST /api/financial-context", memoryHandler.RecordFinancialContext)
	mux.HandleFunc("GET /api/financial-context", memoryHandler.ListFinancialContext)
	mux.HandleFunc("GET /api/financial-summary", memoryHandler.FinancialSummary)
	mux.HandleFunc("POST /api/context", memoryHandler.AssembleContext)

	mux.HandleFunc("POST /api/chat", chatHandler.Chat)

	if d.Receipts != nil {
		receiptsHandler := handlers.NewReceiptsHandler(d.Receipts, d.Ledger)
		mux.HandleFunc("POST /api/receipts", receiptsHandler.UploadReceipt)
		mux.HandleFunc("GET /api/jobs", receiptsHandler.ListJobs)
		mux.HandleFunc("GET /api/jobs/{id}", receiptsHandler.GetJob)
		mux.HandleFunc("POST /api/jobs/{id}/confirm", receiptsHandler.ConfirmJob)
	}

	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"time":    time.Now().Format(time.RFC3339),
			"backend": d.Backend,
			"uptime":  time.Since(d.StartedAt).Round(time.Second).String(),
		})
	})

	return middleware.Recovery(d.Log)(
		middleware.RequestID(
			middleware.Logger(d.Log)(
				middleware.Metrics(d.Metrics)(
					middleware.CORS(mux),
				),
			),
		),
	)
}
