// Package seed fills a ledger and a goal tracker with plausible demo data.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/dvloznov/finance-assistant/internal/categories"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/shopspring/decimal"
)

var paymentMethods = []string{"card", "cash", "transfer", "pix"}

var goalNames = []string{
	"Emergency fund",
	"Summer trip",
	"New laptop",
	"Car down payment",
	"Wedding",
	"Course fees",
}

var priorities = []domain.Priority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh}

// Generator produces demo inputs. The same seed yields the same data.
type Generator struct {
	faker    *gofakeit.Faker
	registry *categories.Registry
}

func NewGenerator(seed int64, registry *categories.Registry) *Generator {
	return &Generator{faker: gofakeit.New(seed), registry: registry}
}

// Transactions returns n inputs dated within the 30 days before now. About
// one in six is income.
func (g *Generator) Transactions(n int, now time.Time) []domain.TransactionInput {
	expenseCats := g.registry.ForType(domain.TransactionExpense)
	incomeCats := g.registry.ForType(domain.TransactionIncome)

	inputs := make([]domain.TransactionInput, 0, n)
	for i := 0; i < n; i++ {
		txType := domain.TransactionExpense
		cats := expenseCats
		amount := g.faker.Price(5, 300)
		if g.faker.Number(1, 6) == 1 && len(incomeCats) > 0 {
			txType = domain.TransactionIncome
			cats = incomeCats
			amount = g.faker.Price(800, 5000)
		}

		category := categories.OtherCategoryID
		if len(cats) > 0 {
			category = cats[g.faker.Number(0, len(cats)-1)].ID
		}

		company := g.faker.Company()
		inputs = append(inputs, domain.TransactionInput{
			Amount:        decimal.NewFromFloat(amount).Round(2),
			Date:          now.AddDate(0, 0, -g.faker.Number(0, 29)).Add(-time.Duration(g.faker.Number(0, 23)) * time.Hour),
			Description:   fmt.Sprintf("%s %s", g.faker.BuzzWord(), g.faker.Noun()),
			Establishment: company,
			Category:      category,
			Type:          txType,
			PaymentMethod: g.faker.RandomString(paymentMethods),
			Recurring:     g.faker.Number(1, 10) == 1,
		})
	}
	return inputs
}

// Goals returns n goal inputs with target dates between 3 and 24 months
// after now.
func (g *Generator) Goals(n int, now time.Time) []domain.GoalInput {
	goalCats := g.registry.GoalCategories()

	inputs := make([]domain.GoalInput, 0, n)
	for i := 0; i < n; i++ {
		category := categories.OtherCategoryID
		if len(goalCats) > 0 {
			category = goalCats[g.faker.Number(0, len(goalCats)-1)].ID
		}

		target := decimal.NewFromInt(int64(g.faker.Number(10, 200) * 100))
		inputs = append(inputs, domain.GoalInput{
			Name:         goalNames[g.faker.Number(0, len(goalNames)-1)],
			Description:  g.faker.Sentence(6),
			TargetAmount: target,
			TargetDate:   now.AddDate(0, g.faker.Number(3, 24), 0),
			Category:     category,
			Priority:     priorities[g.faker.Number(0, len(priorities)-1)],
		})
	}
	return inputs
}

// DepositFraction picks a share of target to deposit, between 5% and 60%,
// in whole currency units.
func (g *Generator) DepositFraction(target decimal.Decimal) decimal.Decimal {
	pct := decimal.NewFromInt(int64(g.faker.Number(5, 60)))
	return target.Mul(pct).Div(decimal.NewFromInt(100)).Floor()
}

// Ledger receives generated transactions.
type Ledger interface {
	AddTransaction(ctx context.Context, input domain.TransactionInput) (domain.Transaction, error)
}

// Tracker receives generated goals and deposits.
type Tracker interface {
	CreateGoal(ctx context.Context, input domain.GoalInput) (domain.Goal, error)
	Deposit(ctx context.Context, goalID string, amount decimal.Decimal, description string) (domain.GoalTransaction, error)
}

// ContextRecorder records goals as financial context for the assistant.
type ContextRecorder interface {
	RecordFinancialContext(ctx context.Context, input domain.NewFinancialContext) (domain.FinancialContextEntry, error)
}

// Options sizes a Populate run.
type Options struct {
	Transactions int
	Goals        int
	Now          time.Time
}

// Result counts what Populate added.
type Result struct {
	Transactions int `json:"transactions"`
	Goals        int `json:"goals"`
	Deposits     int `json:"deposits"`
}

// Populate adds generated transactions and goals, plus one deposit per goal.
// recorder may be nil. The first failure stops the run; counts up to that
// point are returned with the error.
func (g *Generator) Populate(ctx context.Context, ledger Ledger, tracker Tracker, recorder ContextRecorder, opts Options) (Result, error) {
	log := logger.FromContext(ctx)
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var result Result
	for _, input := range g.Transactions(opts.Transactions, now) {
		if _, err := ledger.AddTransaction(ctx, input); err != nil {
			return result, fmt.Errorf("Populate: add transaction: %w", err)
		}
		result.Transactions++
	}

	for _, input := range g.Goals(opts.Goals, now) {
		goal, err := tracker.CreateGoal(ctx, input)
		if err != nil {
			return result, fmt.Errorf("Populate: create goal: %w", err)
		}
		result.Goals++

		if recorder != nil {
			_, err := recorder.RecordFinancialContext(ctx, domain.NewFinancialContext{
				Kind:        domain.ContextGoal,
				Category:    goal.Category,
				Amount:      goal.TargetAmount,
				Description: goal.Name,
				RecordedAt:  now,
				Metadata:    map[string]any{"goal_id": goal.ID},
			})
			if err != nil {
				return result, fmt.Errorf("Populate: record goal context: %w", err)
			}
		}

		amount := g.DepositFraction(goal.TargetAmount)
		if !amount.IsPositive() {
			continue
		}
		if _, err := tracker.Deposit(ctx, goal.ID, amount, "Initial savings"); err != nil {
			return result, fmt.Errorf("Populate: deposit: %w", err)
		}
		result.Deposits++
	}

	log.Info().
		Int("transactions", result.Transactions).
		Int("goals", result.Goals).
		Int("deposits", result.Deposits).
		Msg("Seeded demo data")
	return result, nil
}
