// Package categories holds the static transaction and goal category taxonomies.
package categories

import (
	"strings"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// OtherCategoryID is used when an entry carries no category.
const OtherCategoryID = "other"

var transactionCategories = []domain.Category{
	{ID: "food", Name: "Food", Color: "#FF6B6B", Icon: "🍽️", Applicability: domain.AppliesToExpense},
	{ID: "transport", Name: "Transport", Color: "#4ECDC4", Icon: "🚗", Applicability: domain.AppliesToExpense},
	{ID: "health", Name: "Health", Color: "#45B7D1", Icon: "🏥", Applicability: domain.AppliesToExpense},
	{ID: "entertainment", Name: "Entertainment", Color: "#96CEB4", Icon: "🎮", Applicability: domain.AppliesToExpense},
	{ID: "shopping", Name: "Shopping", Color: "#FECA57", Icon: "🛍️", Applicability: domain.AppliesToExpense},
	{ID: "bills", Name: "Bills", Color: "#FF9FF3", Icon: "📋", Applicability: domain.AppliesToExpense},
	{ID: "education", Name: "Education", Color: "#A8E6CF", Icon: "📚", Applicability: domain.AppliesToExpense},
	{ID: "rent", Name: "Rent", Color: "#FFB347", Icon: "🏠", Applicability: domain.AppliesToExpense},

	{ID: "salary", Name: "Salary", Color: "#68D391", Icon: "💰", Applicability: domain.AppliesToIncome},
	{ID: "freelance", Name: "Freelance", Color: "#81E6D9", Icon: "💻", Applicability: domain.AppliesToIncome},
	{ID: "investment", Name: "Investments", Color: "#90CDF4", Icon: "📈", Applicability: domain.AppliesToIncome},
	{ID: "bonus", Name: "Bonus", Color: "#F6AD55", Icon: "🎁", Applicability: domain.AppliesToIncome},
	{ID: "refund", Name: "Refund", Color: "#B794F6", Icon: "💸", Applicability: domain.AppliesToIncome},

	{ID: OtherCategoryID, Name: "Other", Color: "#A9A9A9", Icon: "🏷️", Applicability: domain.AppliesToBoth},
}

var goalCategories = []domain.GoalCategory{
	{ID: "personal", Name: "Personal", Color: "#00FF88", Icon: "👤"},
	{ID: "business", Name: "Business", Color: "#1E90FF", Icon: "💼"},
	{ID: "emergency", Name: "Emergency", Color: "#FF4D6D", Icon: "🚨"},
	{ID: "vacation", Name: "Vacation", Color: "#FFD700", Icon: "✈️"},
	{ID: "education", Name: "Education", Color: "#9370DB", Icon: "📚"},
	{ID: "home", Name: "Home", Color: "#32CD32", Icon: "🏠"},
	{ID: "car", Name: "Car", Color: "#FF6347", Icon: "🚗"},
	{ID: OtherCategoryID, Name: "Other", Color: "#A9A9A9", Icon: "🎯"},
}

// Registry is an immutable lookup over both taxonomies.
// It is safe for concurrent use.
type Registry struct {
	categories []domain.Category
	byID       map[string]domain.Category
	goals      []domain.GoalCategory
	goalByID   map[string]domain.GoalCategory
}

// New builds a registry from the given taxonomies.
func New(categories []domain.Category, goals []domain.GoalCategory) *Registry {
	r := &Registry{
		categories: append([]domain.Category(nil), categories...),
		byID:       make(map[string]domain.Category, len(categories)),
		goals:      append([]domain.GoalCategory(nil), goals...),
		goalByID:   make(map[string]domain.GoalCategory, len(goals)),
	}
	for _, c := range r.categories {
		r.byID[c.ID] = c
	}
	for _, g := range r.goals {
		r.goalByID[g.ID] = g
	}
	return r
}

var defaultRegistry = New(transactionCategories, goalCategories)

// Default returns the built-in registry.
func Default() *Registry {
	return defaultRegistry
}

// Normalize trims and lowercases a category id so lookups are forgiving of
// user input.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Category looks up a transaction category.
func (r *Registry) Category(id string) (domain.Category, bool) {
	c, ok := r.byID[Normalize(id)]
	return c, ok
}

// Categories returns every transaction category in registry order.
func (r *Registry) Categories() []domain.Category {
	return append([]domain.Category(nil), r.categories...)
}

// ForType returns the categories usable with transaction type t.
func (r *Registry) ForType(t domain.TransactionType) []domain.Category {
	var out []domain.Category
	for _, c := range r.categories {
		if c.AppliesTo(t) {
			out = append(out, c)
		}
	}
	return out
}

// GoalCategory looks up a goal category.
func (r *Registry) GoalCategory(id string) (domain.GoalCategory, bool) {
	g, ok := r.goalByID[Normalize(id)]
	return g, ok
}

// GoalCategories returns every goal category in registry order.
func (r *Registry) GoalCategories() []domain.GoalCategory {
	return append([]domain.GoalCategory(nil), r.goals...)
}
