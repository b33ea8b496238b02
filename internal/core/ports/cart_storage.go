// internal/core/ports/cart_storage.go
package ports

import (
	"context"

	"github.com/merchkit/cartd/internal/core/domain"
)

// CartStorage is the durable storage port for the canonical line-item list.
// The stored format is an ordered array of plain records; unknown extra
// fields are ignored on load.
type CartStorage interface {
	LoadCart(ctx context.Context, cartID string) ([]domain.LineItem, error)
	SaveCart(ctx context.Context, cartID string, items []domain.LineItem) error
	DeleteCart(ctx context.Context, cartID string) error
}

// InclusionStorage persists the id -> included map independently of the
// line-item lifecycle, under its own storage key.
type InclusionStorage interface {
	LoadInclusion(ctx context.Context, cartID string) (map[string]bool, error)
	SaveInclusion(ctx context.Context, cartID string, inclusion map[string]bool) error
}

// Favorites is the external favorites collaborator. Toggling favorites never
// touches cart domain state.
type Favorites interface {
	Toggle(ctx context.Context, cartID, itemID string) (bool, error)
	Contains(ctx context.Context, cartID, itemID string) (bool, error)
}
