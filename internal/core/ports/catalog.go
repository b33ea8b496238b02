// internal/core/ports/catalog.go
package ports

import (
	"context"

	"github.com/merchkit/cartd/internal/core/domain"
)

// ProductCatalog defines the product lookup port the cart core consumes.
// Peek serves the synchronous validation path and must never block; the
// remaining calls may hit the authoritative backend.
type ProductCatalog interface {
	// Peek returns the product from the local cache, or nil when the record
	// has not been resolved yet.
	Peek(id string) *domain.Product

	// FindByID resolves the authoritative product record.
	FindByID(ctx context.Context, id string) (*domain.Product, error)

	// FindByIDs resolves several ids at once. Missing ids are simply absent
	// from the result map, not errors.
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)

	// WarmUp pre-loads the local cache for ids, best effort.
	WarmUp(ctx context.Context, ids []string) error
}
