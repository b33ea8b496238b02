// internal/core/domain/totals.go
package domain

import "github.com/shopspring/decimal"

// Totals aggregates quantity and sum across included items.
type Totals struct {
	TotalQuantity int             `json:"total_quantity"`
	TotalSum      decimal.Decimal `json:"total_sum"`
}

// CalculateTotals sums quantity and price over items that resolve as
// included. A per-item Included override takes precedence over the inclusion
// map; ids absent from the map default to included. Items with an unknown
// price contribute zero to the sum. Pure function, no side effects.
func CalculateTotals(items []LineItem, inclusion map[string]bool) Totals {
	totals := Totals{TotalSum: decimal.Zero}
	for i := range items {
		item := &items[i]
		included := true
		if v, ok := inclusion[item.ID]; ok {
			included = v
		}
		if item.Included != nil {
			included = *item.Included
		}
		if !included {
			continue
		}
		totals.TotalQuantity += item.Quantity
		totals.TotalSum = totals.TotalSum.Add(
			item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return totals
}
