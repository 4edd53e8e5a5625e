package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/assistant"
)

// ChatHandler forwards chat messages to the assistant.
type ChatHandler struct {
	assistant *assistant.Assistant
}

func NewChatHandler(a *assistant.Assistant) *ChatHandler {
	return &ChatHandler{assistant: a}
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}

	reply, err := h.assistant.Ask(r.Context(), req.Message)
	if err != nil {
		middleware.WriteDomainError(r.Context(), w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reply)
}
