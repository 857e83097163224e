package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategorySum is the total spent in one category.
type CategorySum struct {
	Category string  `json:"category"`
	Sum      float64 `json:"sum"`
}

// Stats summarizes every stored expense.
type Stats struct {
	Total      float64       `json:"total"`
	ByCategory []CategorySum `json:"byCategory"`
}

// Summarize totals the amounts overall and per category. Categories are ordered
// by descending sum; equal sums keep the order in which the category was first
// seen. Expenses stored without a category count towards DefaultCategory.
func Summarize(items []Expense) Stats {
	total := decimal.Zero
	sums := make(map[string]decimal.Decimal)
	var order []string

	for _, e := range items {
		amt := decimal.NewFromFloat(e.Amount)
		total = total.Add(amt)

		cat := e.Category
		if cat == "" {
			cat = DefaultCategory
		}
		if _, seen := sums[cat]; !seen {
			order = append(order, cat)
			sums[cat] = decimal.Zero
		}
		sums[cat] = sums[cat].Add(amt)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return sums[order[i]].GreaterThan(sums[order[j]])
	})

	stats := Stats{
		Total:      total.InexactFloat64(),
		ByCategory: make([]CategorySum, 0, len(order)),
	}
	for _, cat := range order {
		stats.ByCategory = append(stats.ByCategory, CategorySum{
			Category: cat,
			Sum:      sums[cat].InexactFloat64(),
		})
	}
	return stats
}
