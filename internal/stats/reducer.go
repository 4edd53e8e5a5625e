// Package stats implements the aggregation rules shared by the ledger, the
// goal tracker and the memory assembler. Every total, percentage and mean
// shown to a user goes through these functions.
//
// Percentages are computed at full decimal precision and rounded to two
// places, half away from zero, only by RoundPercent at the reporting edge.
package stats

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Group is the summed amount for one key.
type Group struct {
	Key    string
	Amount decimal.Decimal
}

// Sum adds amounts. The sum of nothing is zero.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// SumBy adds amount(item) over items.
func SumBy[T any](items []T, amount func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(amount(item))
	}
	return total
}

// PercentageOf returns part/whole*100, or zero when whole is zero.
func PercentageOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole)
}

// GroupSumBy sums amount(item) per key(item). Groups come back in the order
// their key was first seen.
func GroupSumBy[T any](items []T, key func(T) string, amount func(T) decimal.Decimal) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, item := range items {
		k := key(item)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k, Amount: decimal.Zero})
		}
		groups[i].Amount = groups[i].Amount.Add(amount(item))
	}
	return groups
}

// Mean returns the arithmetic mean of values, or zero for no values.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return Sum(values...).Div(decimal.NewFromInt(int64(len(values))))
}

// RoundPercent rounds a percentage for reporting.
func RoundPercent(p decimal.Decimal) decimal.Decimal {
	return p.Round(2)
}
