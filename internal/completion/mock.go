package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/stats"
	"github.com/shopspring/decimal"
)

// MockCompleter answers from the bundle without calling any service. Err,
// when set, is returned wrapped in *domain.CompletionError.
type MockCompleter struct {
	Err error
}

// Complete implements Completer.
func (m *MockCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	if m.Err != nil {
		return "", &domain.CompletionError{Err: m.Err}
	}
	if err := ctx.Err(); err != nil {
		return "", &domain.CompletionError{Transient: true, Err: err}
	}

	var income, expenses []decimal.Decimal
	for _, e := range p.Bundle.FinancialContext {
		switch e.Kind {
		case domain.ContextIncome:
			income = append(income, e.Amount)
		case domain.ContextExpense:
			expenses = append(expenses, e.Amount)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You asked: %q. ", strings.TrimSpace(p.Message))
	if len(income)+len(expenses) == 0 {
		sb.WriteString("I have no recent transactions for you yet; add a few and ask again.")
		return sb.String(), nil
	}

	fmt.Fprintf(&sb, "Across your last %d transactions you earned %s and spent %s.",
		len(income)+len(expenses),
		stats.Sum(income...).StringFixed(2),
		stats.Sum(expenses...).StringFixed(2),
	)
	if p.Bundle.Preferences != nil && p.Bundle.Preferences.MonthlyBudget != nil {
		fmt.Fprintf(&sb, " Your monthly budget is %s.", p.Bundle.Preferences.MonthlyBudget.StringFixed(2))
	}
	return sb.String(), nil
}
