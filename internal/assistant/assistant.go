// Package assistant runs the chat flow: assemble context, ask the
// completion service, remember the exchange.
package assistant

import (
	"context"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/completion"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/metrics"
)

// Memory is the part of the memory assembler the chat flow uses.
type Memory interface {
	AssembleContext(ctx context.Context, query string, limit int) domain.ContextBundle
	RecordConversation(ctx context.Context, entry domain.NewConversation) (domain.ConversationRecord, error)
}

// Reply is the answer to one chat message.
type Reply struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`

	// Recorded is false when the exchange could not be stored.
	Recorded       bool   `json:"recorded"`
	ConversationID string `json:"conversation_id,omitempty"`

	// Degraded lists context sources that were unavailable for this reply.
	Degraded []string `json:"degraded,omitempty"`
}

// Assistant answers chat messages with the user's context.
type Assistant struct {
	memory       Memory
	completer    completion.Completer
	contextLimit int
	metrics      *metrics.Collectors
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithContextLimit sets the limit passed to AssembleContext.
func WithContextLimit(n int) Option {
	return func(a *Assistant) { a.contextLimit = n }
}

// WithMetrics counts completion outcomes on m.
func WithMetrics(m *metrics.Collectors) Option {
	return func(a *Assistant) { a.metrics = m }
}

func New(memory Memory, completer completion.Completer, opts ...Option) *Assistant {
	a := &Assistant{
		memory:       memory,
		completer:    completer,
		contextLimit: 10,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask answers message. A completion failure is returned as
// *domain.CompletionError and nothing is recorded; a failure to record the
// exchange is only logged.
func (a *Assistant) Ask(ctx context.Context, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, domain.NewValidationError("message", "is required")
	}

	log := logger.FromContext(ctx)

	bundle := a.memory.AssembleContext(ctx, message, a.contextLimit)

	text, err := a.completer.Complete(ctx, completion.Prompt{Message: message, Bundle: bundle})
	if err != nil {
		a.metrics.CompletionFinished("error")
		log.Error().Err(err).Msg("Completion failed")
		return Reply{}, err
	}
	a.metrics.CompletionFinished("success")

	reply := Reply{
		Message:     text,
		Suggestions: Suggestions(message),
		Degraded:    bundle.Degraded,
	}

	rec, err := a.memory.RecordConversation(ctx, domain.NewConversation{
		Kind:    domain.ConversationChat,
		Title:   title(message),
		Content: map[string]any{"message": message, "reply": text},
		Metadata: map[string]any{
			"context_entries": len(bundle.FinancialContext),
			"degraded":        len(bundle.Degraded) > 0,
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to record conversation")
		return reply, nil
	}

	reply.Recorded = true
	reply.ConversationID = rec.ID
	return reply, nil
}

func title(message string) string {
	const max = 60
	r := []rune(message)
	if len(r) <= max {
		return message
	}
	return string(r[:max]) + "..."
}
