package domain

// Applicability says which transaction types a category may be used with.
type Applicability string

const (
	AppliesToIncome  Applicability = "income"
	AppliesToExpense Applicability = "expense"
	AppliesToBoth    Applicability = "both"
)

// Category is a transaction category from the static registry.
type Category struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Color         string        `json:"color"`
	Icon          string        `json:"icon"`
	Applicability Applicability `json:"applicability"`
}

// AppliesTo reports whether the category can tag a transaction of type t.
func (c Category) AppliesTo(t TransactionType) bool {
	switch c.Applicability {
	case AppliesToBoth:
		return true
	case AppliesToIncome:
		return t == TransactionIncome
	case AppliesToExpense:
		return t == TransactionExpense
	}
	return false
}

// GoalCategory belongs to the goal taxonomy, which is separate from
// transaction categories.
type GoalCategory struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}
