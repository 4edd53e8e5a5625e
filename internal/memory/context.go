package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dvloznov/finance-assistant/internal/categories"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/stats"
	"github.com/dvloznov/finance-assistant/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	summaryEntryLimit  = 30
	summaryGoalLimit   = 10
	summaryRecentLimit = 10
)

// AssembleContext gathers recent conversations, financial context and
// preferences for query. The three fetches run concurrently and each one
// that fails is logged, counted and left empty; the bundle is always
// returned. Financial context is fetched at twice limit.
func (a *Assembler) AssembleContext(ctx context.Context, query string, limit int) domain.ContextBundle {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	start := a.now()

	bundle := domain.ContextBundle{
		Query:            query,
		AssembledAt:      start,
		Conversations:    []domain.ConversationRecord{},
		FinancialContext: []domain.FinancialContextEntry{},
	}

	var (
		mu       sync.Mutex
		degraded []string
	)
	fail := func(source string, err error) {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("source", source).Str("user_id", a.userID).Msg("Context fetch failed")
		a.metrics.ContextFetchFailed(source)

		mu.Lock()
		degraded = append(degraded, source)
		mu.Unlock()
	}

	// A plain Group: one failed fetch must not cancel the others.
	var g errgroup.Group

	g.Go(func() error {
		recs, err := a.store.ListConversations(ctx, a.userID, store.Filter{Limit: ContextConversations})
		if err != nil {
			fail(SourceConversations, err)
			return nil
		}
		bundle.Conversations = nonNil(recs)
		return nil
	})

	g.Go(func() error {
		entries, err := a.store.ListFinancialContext(ctx, a.userID, store.Filter{Limit: limit * 2})
		if err != nil {
			fail(SourceFinancialContext, err)
			return nil
		}
		bundle.FinancialContext = nonNil(entries)
		return nil
	})

	g.Go(func() error {
		prefs, err := a.store.GetPreferences(ctx, a.userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			fail(SourcePreferences, err)
		default:
			bundle.Preferences = prefs
		}
		return nil
	})

	_ = g.Wait()

	sort.Strings(degraded)
	bundle.Degraded = degraded
	a.metrics.ObserveContextAssembly(a.now().Sub(start))

	return bundle
}

// FinancialSummary builds a quick overview from the 30 most recent expense
// and income entries and the 10 most recent goal entries. Unlike
// AssembleContext, any failed fetch fails the summary.
func (a *Assembler) FinancialSummary(ctx context.Context) (domain.FinancialSummary, error) {
	var expenses, income, goals []domain.FinancialContextEntry

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(kind domain.FinancialContextKind, limit int, dst *[]domain.FinancialContextEntry) {
		g.Go(func() error {
			entries, err := a.store.ListFinancialContext(gctx, a.userID, store.Filter{Kind: string(kind), Limit: limit})
			if err != nil {
				return domain.NewStorageError("list financial context "+string(kind), err)
			}
			*dst = entries
			return nil
		})
	}
	fetch(domain.ContextExpense, summaryEntryLimit, &expenses)
	fetch(domain.ContextIncome, summaryEntryLimit, &income)
	fetch(domain.ContextGoal, summaryGoalLimit, &goals)

	if err := g.Wait(); err != nil {
		return domain.FinancialSummary{}, err
	}

	amount := func(e domain.FinancialContextEntry) decimal.Decimal { return e.Amount }
	totalIncome := stats.SumBy(income, amount)
	totalExpenses := stats.SumBy(expenses, amount)

	recent := make([]domain.FinancialContextEntry, 0, len(expenses)+len(income))
	recent = append(recent, expenses...)
	recent = append(recent, income...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].RecordedAt.After(recent[j].RecordedAt)
	})
	if len(recent) > summaryRecentLimit {
		recent = recent[:summaryRecentLimit]
	}

	return domain.FinancialSummary{
		TotalIncome:        totalIncome,
		TotalExpenses:      totalExpenses,
		Balance:            totalIncome.Sub(totalExpenses),
		ExpensesByCategory: byCategory(expenses),
		IncomeByCategory:   byCategory(income),
		ActiveGoals:        len(goals),
		RecentTransactions: recent,
	}, nil
}

func byCategory(entries []domain.FinancialContextEntry) []domain.CategoryTotal {
	groups := stats.GroupSumBy(entries,
		func(e domain.FinancialContextEntry) string {
			if e.Category == "" {
				return categories.OtherCategoryID
			}
			return e.Category
		},
		func(e domain.FinancialContextEntry) decimal.Decimal { return e.Amount },
	)

	totals := make([]domain.CategoryTotal, 0, len(groups))
	for _, g := range groups {
		totals = append(totals, domain.CategoryTotal{Category: g.Key, Amount: g.Amount})
	}
	return totals
}
