// internal/core/ports/product_repository.go
package ports

import (
	"context"

	"github.com/merchkit/cartd/internal/core/domain"
)

// ProductRepository defines the persistence port for the product catalog.
// This interface is implemented by the database adapter.
type ProductRepository interface {
	Save(ctx context.Context, product *domain.Product) error
	SaveBatch(ctx context.Context, products []domain.Product) error
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	Count(ctx context.Context) (int64, error)
}
