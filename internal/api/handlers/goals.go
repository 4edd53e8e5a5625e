package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/goals"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/shopspring/decimal"
)

// ContextRecorder stores financial-context facts for the assistant.
type ContextRecorder interface {
	RecordFinancialContext(ctx context.Context, input domain.NewFinancialContext) (domain.FinancialContextEntry, error)
}

// GoalsHandler handles savings-goal endpoints.
type GoalsHandler struct {
	tracker  *goals.Tracker
	recorder ContextRecorder
}

func NewGoalsHandler(tracker *goals.Tracker, recorder ContextRecorder) *GoalsHandler {
	return &GoalsHandler{tracker: tracker, recorder: recorder}
}

type goalRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    string          `json:"target_date"`
	Category      string          `json:"category"`
	Priority      domain.Priority `json:"priority"`
}

type goalPatchRequest struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	TargetAmount  *decimal.Decimal `json:"target_amount"`
	CurrentAmount *decimal.Decimal `json:"current_amount"`
	TargetDate    *string          `json:"target_date"`
	Category      *string          `json:"category"`
	Priority      *domain.Priority `json:"priority"`
}

type contributionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// CreateGoal handles POST /api/goals
func (h *GoalsHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	target, err := parseDate("target_date", req.TargetDate)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	goal, err := h.tracker.CreateGoal(r.Context(), domain.GoalInput{
		Name:          req.Name,
		Description:   req.Description,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		TargetDate:    target,
		Category:      req.Category,
		Priority:      req.Priority,
	})
	if goal.ID != "" && h.recorder != nil {
		h.recordGoal(r.Context(), goal)
	}
	respond(w, r, http.StatusCreated, "goal", goal, goal.ID != "", err)
}

func (h *GoalsHandler) recordGoal(ctx context.Context, goal domain.Goal) {
	_, err := h.recorder.RecordFinancialContext(ctx, domain.NewFinancialContext{
		Kind:        domain.ContextGoal,
		Category:    goal.Category,
		Amount:      goal.TargetAmount,
		Description: goal.Name,
		RecordedAt:  goal.CreatedDate,
		Metadata:    map[string]any{"goal_id": goal.ID},
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("goal_id", goal.ID).Msg("Failed to record goal context")
	}
}

// ListGoals handles GET /api/goals
func (h *GoalsHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	list := h.tracker.ListGoals()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"goals": list,
		"count": len(list),
	})
}

// GetGoal handles GET /api/goals/{id}
func (h *GoalsHandler) GetGoal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	goal, err := h.tracker.Goal(id)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	progress, err := h.tracker.Progress(id)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"goal":     goal,
		"progress": progress,
	})
}

// UpdateGoal handles PATCH /api/goals/{id}
func (h *GoalsHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	patch := domain.GoalPatch{
		Name:          req.Name,
		Description:   req.Description,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		Category:      req.Category,
		Priority:      req.Priority,
	}
	if req.TargetDate != nil {
		target, err := parseDate("target_date", *req.TargetDate)
		if err != nil {
			middleware.WriteDomainError(r.Context(), w, err)
			return
		}
		patch.TargetDate = &target
	}

	goal, err := h.tracker.UpdateGoal(r.Context(), r.PathValue("id"), patch)
	respond(w, r, http.StatusOK, "goal", goal, goal.ID != "", err)
}

// Deposit handles POST /api/goals/{id}/deposits
func (h *GoalsHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.contribute(w, r, h.tracker.Deposit)
}

// Withdraw handles POST /api/goals/{id}/withdrawals
func (h *GoalsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.contribute(w, r, h.tracker.Withdraw)
}

type contributeFunc func(ctx context.Context, goalID string, amount decimal.Decimal, description string) (domain.GoalTransaction, error)

func (h *GoalsHandler) contribute(w http.ResponseWriter, r *http.Request, fn contributeFunc) {
	var req contributionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	tx, err := fn(r.Context(), r.PathValue("id"), req.Amount, req.Description)
	respond(w, r, http.StatusCreated, "transaction", tx, tx.ID != "", err)
}

// GoalTransactions handles GET /api/goals/{id}/transactions
func (h *GoalsHandler) GoalTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.tracker.GoalTransactions(r.PathValue("id"))
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	if txs == nil {
		txs = []domain.GoalTransaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// Stats handles GET /api/goals/stats
func (h *GoalsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.tracker.Stats())
}
