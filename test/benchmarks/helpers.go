// test/benchmarks/helpers.go
package benchmarks

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/merchkit/cartd/internal/core/domain"
)

// benchLogger discards output so logging cost stays out of the numbers.
func benchLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// benchItems builds n resolved cart lines with stable ids.
func benchItems(n int) []domain.LineItem {
	items := make([]domain.LineItem, n)
	for i := 0; i < n; i++ {
		items[i] = domain.LineItem{
			ID:          fmt.Sprintf("prod-%04d", i),
			DisplayName: fmt.Sprintf("Product %d", i),
			UnitPrice:   decimal.NewFromFloat(10 + float64(i%50)),
			Quantity:    1 + i%3,
			Stock:       5 + i%10,
			StockState:  domain.StockKnown,
			Specs:       map[string]string{"sku": fmt.Sprintf("SKU-%04d", i)},
		}
	}
	return items
}

// benchProducts builds catalog records matching benchItems ids.
func benchProducts(n int) []domain.Product {
	products := make([]domain.Product, n)
	for i := 0; i < n; i++ {
		products[i] = domain.Product{
			ID:          fmt.Sprintf("prod-%04d", i),
			DisplayName: fmt.Sprintf("Product %d", i),
			Price:       decimal.NewFromFloat(10 + float64(i%50)),
			Stock:       5 + i%10,
		}
	}
	return products
}
