// Package completion adapts natural-language completion services. The
// assistant depends only on Completer; GeminiCompleter talks to Gemini and
// MockCompleter answers deterministically for tests and offline use.
package completion

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Prompt is one completion request.
type Prompt struct {
	Message string
	Bundle  domain.ContextBundle
}

// Completer produces a reply for a prompt. Implementations wrap every
// failure in *domain.CompletionError.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

const basePrompt = "You are a financial assistant specialised in managing expenses and income.\n" +
	"Help the user with:\n" +
	"- Spending analysis\n" +
	"- Saving suggestions\n" +
	"- Financial planning\n" +
	"- Expense categorisation\n" +
	"- Setting financial goals\n\n" +
	"Be concise and practical, and always stay focused on personal finance.\n"

// SystemPrompt renders the instructions and the context bundle sent
// alongside the user's message.
func SystemPrompt(b domain.ContextBundle) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)

	if p := b.Preferences; p != nil {
		sb.WriteString("\nUser preferences:\n")
		if p.MonthlyBudget != nil {
			fmt.Fprintf(&sb, "- Monthly budget: %s\n", p.MonthlyBudget.StringFixed(2))
		}
		if len(p.FinancialGoals) > 0 {
			fmt.Fprintf(&sb, "- Financial goals: %s\n", strings.Join(p.FinancialGoals, ", "))
		}
		if len(p.PreferredCategories) > 0 {
			fmt.Fprintf(&sb, "- Preferred categories: %s\n", strings.Join(p.PreferredCategories, ", "))
		}
		if len(p.AIPersonality) > 0 {
			fmt.Fprintf(&sb, "- Assistant personality: %s\n", formatMap(p.AIPersonality))
		}
	}

	if len(b.FinancialContext) > 0 {
		sb.WriteString("\nRecent financial activity (newest first):\n")
		for _, e := range b.FinancialContext {
			fmt.Fprintf(&sb, "- %s %s", e.RecordedAt.Format("2006-01-02"), e.Kind)
			if e.Category != "" {
				fmt.Fprintf(&sb, " [%s]", e.Category)
			}
			fmt.Fprintf(&sb, " %s", e.Amount.StringFixed(2))
			if e.Description != "" {
				fmt.Fprintf(&sb, ": %s", e.Description)
			}
			sb.WriteString("\n")
		}
	}

	if len(b.Conversations) > 0 {
		sb.WriteString("\nRecent conversations (newest first):\n")
		for _, c := range b.Conversations {
			if msg, ok := c.Content["message"].(string); ok {
				fmt.Fprintf(&sb, "- User: %s\n", msg)
			}
			if reply, ok := c.Content["reply"].(string); ok {
				fmt.Fprintf(&sb, "  Assistant: %s\n", reply)
			}
		}
	}

	if len(b.Degraded) > 0 {
		fmt.Fprintf(&sb, "\nSome context was unavailable (%s); do not assume it is empty.\n", strings.Join(b.Degraded, ", "))
	}

	return sb.String()
}

func formatMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, ", ")
}
