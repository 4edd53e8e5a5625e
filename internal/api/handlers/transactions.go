package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/ledger"
	"github.com/shopspring/decimal"
)

// TransactionsHandler handles ledger endpoints.
type TransactionsHandler struct {
	ledger *ledger.Ledger
}

func NewTransactionsHandler(l *ledger.Ledger) *TransactionsHandler {
	return &TransactionsHandler{ledger: l}
}

type transactionRequest struct {
	Amount        decimal.Decimal        `json:"amount"`
	Date          string                 `json:"date"`
	Description   string                 `json:"description"`
	Establishment string                 `json:"establishment"`
	Category      string                 `json:"category"`
	Type          domain.TransactionType `json:"type"`
	PaymentMethod string                 `json:"payment_method"`
	Recurring     bool                   `json:"recurring"`
	Confidence    *float64               `json:"confidence"`
}

// AddTransaction handles POST /api/transactions
func (h *TransactionsHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	tx, err := h.ledger.AddTransaction(r.Context(), domain.TransactionInput{
		Amount:        req.Amount,
		Date:          date,
		Description:   req.Description,
		Establishment: req.Establishment,
		Category:      req.Category,
		Type:          req.Type,
		PaymentMethod: req.PaymentMethod,
		Recurring:     req.Recurring,
		Confidence:    req.Confidence,
	})
	respond(w, r, http.StatusCreated, "transaction", tx, tx.ID != "", err)
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := h.ledger.Transactions()
	if txs == nil {
		txs = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// Summary handles GET /api/summary?start=&end=
//
// With no bounds it summarizes the current month. start is inclusive and
// end exclusive.
func (h *TransactionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start") == "" && q.Get("end") == "" {
		middleware.WriteJSON(w, http.StatusOK, summaryResponse(h.ledger.SummaryForCurrentMonth()))
		return
	}

	start, err := parseDate("start", q.Get("start"))
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	end, err := parseDate("end", q.Get("end"))
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		middleware.WriteDomainError(r.Context(), w, domain.NewValidationError("end", "must be after start"))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summaryResponse(h.ledger.Summary(ledger.Period{Start: start, End: end})))
}

func summaryResponse(s ledger.Summary) map[string]interface{} {
	resp := map[string]interface{}{
		"total_income":   s.TotalIncome,
		"total_expenses": s.TotalExpenses,
		"balance":        s.Balance,
		"top_categories": s.TopCategories,
	}
	if !s.Period.Start.IsZero() {
		resp["start"] = s.Period.Start
	}
	if !s.Period.End.IsZero() {
		resp["end"] = s.Period.End
	}
	return resp
}
