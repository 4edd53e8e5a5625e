package goals

import (
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/stats"
	"github.com/shopspring/decimal"
)

// monthLength approximates a month as 30 days when spreading the remaining
// amount over the time left.
const monthLength = 30 * 24 * time.Hour

// MonthsRemaining is ceil((target-now) / 30 days), floored at 1. A target
// date in the past still gets a one-month catch-up window.
func MonthsRemaining(target, now time.Time) int64 {
	left := target.Sub(now)
	if left <= 0 {
		return 1
	}
	months := int64(left / monthLength)
	if left%monthLength != 0 {
		months++
	}
	if months < 1 {
		return 1
	}
	return months
}

// MonthlyTarget is ceil(remaining / months) in whole currency units and is
// never negative.
func MonthlyTarget(targetAmount, currentAmount decimal.Decimal, months int64) decimal.Decimal {
	remaining := targetAmount.Sub(currentAmount)
	if !remaining.IsPositive() {
		return decimal.Zero
	}
	return remaining.Div(decimal.NewFromInt(months)).Ceil()
}

// recompute refreshes every derived field of g. Create, update, deposit and
// withdraw all go through here.
func recompute(g *domain.Goal, now time.Time) {
	g.MonthlyTarget = MonthlyTarget(g.TargetAmount, g.CurrentAmount, MonthsRemaining(g.TargetDate, now))
	g.Completed = g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}

// Progress is a read-only view of how far a goal has come.
type Progress struct {
	GoalID          string          `json:"goal_id"`
	Percentage      decimal.Decimal `json:"percentage"`
	Remaining       decimal.Decimal `json:"remaining"`
	MonthsRemaining int64           `json:"months_remaining"`
	MonthlyTarget   decimal.Decimal `json:"monthly_target"`
	Completed       bool            `json:"completed"`
}

func progressOf(g domain.Goal, now time.Time) Progress {
	remaining := g.TargetAmount.Sub(g.CurrentAmount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return Progress{
		GoalID:          g.ID,
		Percentage:      stats.RoundPercent(stats.PercentageOf(g.CurrentAmount, g.TargetAmount)),
		Remaining:       remaining,
		MonthsRemaining: MonthsRemaining(g.TargetDate, now),
		MonthlyTarget:   g.MonthlyTarget,
		Completed:       g.Completed,
	}
}
