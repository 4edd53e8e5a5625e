package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/categories"
)

// CategoriesHandler serves the category registry.
type CategoriesHandler struct {
	registry *categories.Registry
}

func NewCategoriesHandler(registry *categories.Registry) *CategoriesHandler {
	return &CategoriesHandler{registry: registry}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats := h.registry.Categories()
	goalCats := h.registry.GoalCategories()

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories":      cats,
		"goal_categories": goalCats,
		"count":           len(cats),
	})
}
