// internal/core/domain/item.go
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StockState reports whether an item's stock figure is authoritative.
// Optimistic inserts carry StockUnknown until enrichment resolves; a genuine
// zero from the catalog is StockKnown with Stock == 0.
type StockState string

const (
	StockUnknown StockState = "unknown"
	StockKnown   StockState = "known"
)

// LineItem represents a single row in the cart.
type LineItem struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	Quantity    int               `json:"quantity"`
	Stock       int               `json:"stock"`
	StockState  StockState        `json:"stock_state"`
	ImageRef    string            `json:"image_ref,omitempty"`
	Specs       map[string]string `json:"specs,omitempty"`

	// Included overrides the inclusion tracker for this item when non-nil.
	Included *bool `json:"included,omitempty"`
}

// Product is the authoritative catalog record a line item is enriched from.
type Product struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Price       decimal.Decimal   `json:"price"`
	Stock       int               `json:"stock"`
	ImageRef    string            `json:"image_ref,omitempty"`
	Specs       map[string]string `json:"specs,omitempty"`
}

// Validate performs domain validation on the line item
func (li *LineItem) Validate() error {
	if li.ID == "" {
		return fmt.Errorf("id is required")
	}
	if li.Quantity < 1 {
		return fmt.Errorf("quantity must be positive")
	}
	if li.UnitPrice.IsNegative() {
		return fmt.Errorf("unit_price cannot be negative")
	}
	if li.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	if li.StockState == "" {
		li.StockState = StockUnknown
	}
	return nil
}

// StockIsKnown reports whether the stock figure can be used for clamping.
func (li *LineItem) StockIsKnown() bool {
	return li.StockState == StockKnown && li.Stock > 0
}

// KnownSoldOut reports that the catalog has confirmed zero stock. Such items
// stay in the cart at their current quantity but accept no further growth.
func (li *LineItem) KnownSoldOut() bool {
	return li.StockState == StockKnown && li.Stock == 0
}

// ClampQuantity pulls quantity into [1, stock] when stock is known.
// It returns true when the quantity actually changed.
func (li *LineItem) ClampQuantity() bool {
	if !li.StockIsKnown() {
		return false
	}
	if li.Quantity > li.Stock {
		li.Quantity = li.Stock
		return true
	}
	if li.Quantity < 1 {
		li.Quantity = 1
		return true
	}
	return false
}

// ApplyProduct merges authoritative catalog data into the item. Quantity is
// never overwritten, except for a downward clamp when the learned stock is
// smaller than the current quantity. The return value reports that clamp.
func (li *LineItem) ApplyProduct(p *Product) bool {
	if p == nil {
		return false
	}
	li.DisplayName = p.DisplayName
	li.UnitPrice = p.Price
	li.Stock = p.Stock
	li.StockState = StockKnown
	if p.ImageRef != "" {
		li.ImageRef = p.ImageRef
	}
	if len(p.Specs) > 0 {
		if li.Specs == nil {
			li.Specs = make(map[string]string, len(p.Specs))
		}
		for k, v := range p.Specs {
			li.Specs[k] = v
		}
	}
	return li.ClampQuantity()
}

// Clone returns a deep copy suitable for snapshots.
func (li *LineItem) Clone() LineItem {
	cp := *li
	if li.Specs != nil {
		cp.Specs = make(map[string]string, len(li.Specs))
		for k, v := range li.Specs {
			cp.Specs[k] = v
		}
	}
	if li.Included != nil {
		inc := *li.Included
		cp.Included = &inc
	}
	return cp
}
