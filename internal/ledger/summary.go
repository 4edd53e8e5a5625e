package ledger

import (
	"sort"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/stats"
	"github.com/shopspring/decimal"
)

// TopCategoryLimit caps Summary.TopCategories.
const TopCategoryLimit = 5

// Period is the half-open range [Start, End). A zero bound is open.
type Period struct {
	Start time.Time
	End   time.Time
}

// AllTime is a period with no bounds.
func AllTime() Period {
	return Period{}
}

// CurrentMonth is the calendar month containing now, in now's location.
func CurrentMonth(now time.Time) Period {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Contains reports whether t falls within p.
func (p Period) Contains(t time.Time) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && !t.Before(p.End) {
		return false
	}
	return true
}

// CategoryShare is one entry of the top-category breakdown.
type CategoryShare struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Summary aggregates the transactions of a period.
type Summary struct {
	Period        Period          `json:"-"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Balance       decimal.Decimal `json:"balance"`
	TopCategories []CategoryShare `json:"top_categories"`
}

// SummaryForCurrentMonth summarizes the calendar month of the ledger clock.
func (l *Ledger) SummaryForCurrentMonth() Summary {
	return l.Summary(CurrentMonth(l.now()))
}

// Summary computes income, expenses, balance and the top categories for
// transactions dated within period.
func (l *Ledger) Summary(period Period) Summary {
	l.mu.RLock()
	var txs []domain.Transaction
	for _, e := range l.entries {
		if period.Contains(e.tx.Date) {
			txs = append(txs, e.tx)
		}
	}
	l.mu.RUnlock()

	amount := func(tx domain.Transaction) decimal.Decimal { return tx.Amount }
	var income, expenses []domain.Transaction
	for _, tx := range txs {
		if tx.Type == domain.TransactionIncome {
			income = append(income, tx)
		} else {
			expenses = append(expenses, tx)
		}
	}

	totalIncome := stats.SumBy(income, amount)
	totalExpenses := stats.SumBy(expenses, amount)
	turnover := totalIncome.Add(totalExpenses)

	groups := stats.GroupSumBy(txs, func(tx domain.Transaction) string { return tx.Category }, amount)
	sort.SliceStable(groups, func(i, j int) bool {
		if c := groups[i].Amount.Cmp(groups[j].Amount); c != 0 {
			return c > 0
		}
		return groups[i].Key < groups[j].Key
	})
	if len(groups) > TopCategoryLimit {
		groups = groups[:TopCategoryLimit]
	}

	top := make([]CategoryShare, 0, len(groups))
	for _, g := range groups {
		top = append(top, CategoryShare{
			Category:   g.Key,
			Amount:     g.Amount,
			Percentage: stats.RoundPercent(stats.PercentageOf(g.Amount, turnover)),
		})
	}

	return Summary{
		Period:        period,
		TotalIncome:   totalIncome,
		TotalExpenses: totalExpenses,
		Balance:       totalIncome.Sub(totalExpenses),
		TopCategories: top,
	}
}
