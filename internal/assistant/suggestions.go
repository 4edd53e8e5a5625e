package assistant

import "strings"

var (
	spendingSuggestions = []string{"View spending report", "Set a spending limit", "Categorise expenses"}
	goalSuggestions     = []string{"Create a new goal", "View goal progress", "Adjust existing goals"}
	savingSuggestions   = []string{"Saving tips", "Review unnecessary spending", "Build a savings plan"}
	defaultSuggestions  = []string{"View dashboard", "Add an expense", "Create a financial goal"}
)

// Suggestions returns follow-up actions for message, matched by keyword in
// the order spending, goals, saving.
func Suggestions(message string) []string {
	m := strings.ToLower(message)

	var s []string
	switch {
	case strings.Contains(m, "spend") || strings.Contains(m, "expense"):
		s = spendingSuggestions
	case strings.Contains(m, "goal") || strings.Contains(m, "target"):
		s = goalSuggestions
	case strings.Contains(m, "save") || strings.Contains(m, "saving"):
		s = savingSuggestions
	default:
		s = defaultSuggestions
	}
	return append([]string(nil), s...)
}
