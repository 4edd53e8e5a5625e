package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/memory"
)

// MemoryHandler exposes conversation history, preferences and the
// financial context the assistant reads.
type MemoryHandler struct {
	memory *memory.Assembler
}

func NewMemoryHandler(m *memory.Assembler) *MemoryHandler {
	return &MemoryHandler{memory: m}
}

type contextRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type financialContextRequest struct {
	domain.NewFinancialContext
	RecordedAt string `json:"recorded_at"`
}

// RecordConversation handles POST /api/conversations
func (h *MemoryHandler) RecordConversation(w http.ResponseWriter, r *http.Request) {
	var req domain.NewConversation
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	rec, err := h.memory.RecordConversation(r.Context(), req)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, rec)
}

// ListConversations handles GET /api/conversations
//
// With session_id the whole session is returned oldest first; otherwise the
// newest conversations, optionally filtered by kind.
func (h *MemoryHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		recs []domain.ConversationRecord
		err  error
	)
	if sessionID := q.Get("session_id"); sessionID != "" {
		recs, err = h.memory.SessionConversations(r.Context(), sessionID)
	} else {
		kind := domain.ConversationKind(q.Get("kind"))
		if kind != "" && !kind.Valid() {
			middleware.WriteDomainError(r.Context(), w, domain.NewValidationError("kind", "unknown conversation kind"))
			return
		}
		var limit int
		if limit, err = queryInt(r, "limit"); err != nil {
			middleware.WriteDomainError(r.Context(), w, err)
			return
		}
		recs, err = h.memory.ListConversations(r.Context(), kind, limit)
	}
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": recs,
		"count":         len(recs),
	})
}

// NewSession handles POST /api/sessions
func (h *MemoryHandler) NewSession(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{
		"session_id": h.memory.NewSession(),
	})
}

// GetPreferences handles GET /api/preferences
func (h *MemoryHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, ok, err := h.memory.Preferences(r.Context())
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	if !ok {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"exists": false})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"exists":      true,
		"preferences": prefs,
	})
}

// PutPreferences handles PUT /api/preferences
func (h *MemoryHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var req domain.PreferencesInput
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	prefs, err := h.memory.UpsertPreferences(r.Context(), req)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, prefs)
}

// RecordFinancialContext handles POST /api/financial-context
func (h *MemoryHandler) RecordFinancialContext(w http.ResponseWriter, r *http.Request) {
	var req financialContextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	recordedAt, err := parseDate("recorded_at", req.RecordedAt)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	input := req.NewFinancialContext
	input.RecordedAt = recordedAt
	entry, err := h.memory.RecordFinancialContext(r.Context(), input)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, entry)
}

// ListFinancialContext handles GET /api/financial-context
func (h *MemoryHandler) ListFinancialContext(w http.ResponseWriter, r *http.Request) {
	kind := domain.FinancialContextKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		middleware.WriteDomainError(r.Context(), w, domain.NewValidationError("kind", "unknown financial context kind"))
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	entries, err := h.memory.FinancialContext(r.Context(), kind, limit)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// AssembleContext handles POST /api/context
func (h *MemoryHandler) AssembleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	if req.Limit < 0 {
		middleware.WriteDomainError(r.Context(), w, domain.NewValidationError("limit", "must not be negative"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.memory.AssembleContext(r.Context(), req.Query, req.Limit))
}

// FinancialSummary handles GET /api/financial-summary
func (h *MemoryHandler) FinancialSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.memory.FinancialSummary(r.Context())
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}
