// internal/adapters/db/product_repository.go
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/ports"
)

// productRepository implements ports.ProductRepository
type productRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *Database, logger *slog.Logger) ports.ProductRepository {
	return &productRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "product")),
	}
}

// Save upserts a single product record
func (r *productRepository) Save(ctx context.Context, product *domain.Product) error {
	specs, err := json.Marshal(product.Specs)
	if err != nil {
		return fmt.Errorf("failed to marshal specs: %w", err)
	}

	query := `
		INSERT INTO products (
			id, display_name, price, stock, image_ref, specs, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $7
		)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			image_ref = EXCLUDED.image_ref,
			specs = EXCLUDED.specs,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		product.ID, product.DisplayName, product.Price, product.Stock,
		product.ImageRef, specs, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	r.logger.DebugContext(ctx, "product saved",
		slog.String("product_id", product.ID))

	return nil
}

// SaveBatch upserts multiple products in a single transaction
func (r *productRepository) SaveBatch(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}

		query := `
			INSERT INTO products (
				id, display_name, price, stock, image_ref, specs, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $7
			)
			ON CONFLICT (id) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				price = EXCLUDED.price,
				stock = EXCLUDED.stock,
				image_ref = EXCLUDED.image_ref,
				specs = EXCLUDED.specs,
				updated_at = EXCLUDED.updated_at`

		now := time.Now().UTC()
		for i := range products {
			specs, err := json.Marshal(products[i].Specs)
			if err != nil {
				return fmt.Errorf("failed to marshal specs for %s: %w", products[i].ID, err)
			}

			batch.Queue(query,
				products[i].ID, products[i].DisplayName, products[i].Price,
				products[i].Stock, products[i].ImageRef, specs, now,
			)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for i := range products {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("failed to save product %d: %w", i, err)
			}
		}

		return nil
	})
}

// FindByID retrieves a single product
func (r *productRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	query, args, err := productSelect().
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	product, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	return product, nil
}

// FindByIDs retrieves several products at once. Ids without a matching row
// are absent from the result map.
func (r *productRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	result := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := productSelect().
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		result[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	r.logger.DebugContext(ctx, "products resolved",
		slog.Int("requested", len(ids)),
		slog.Int("found", len(result)))

	return result, nil
}

// Count returns the total number of catalog products
func (r *productRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

func productSelect() squirrel.SelectBuilder {
	return squirrel.Select(
		"id", "display_name", "price", "stock", "image_ref", "specs",
	).From("products").
		PlaceholderFormat(squirrel.Dollar)
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		product domain.Product
		specs   []byte
	)

	err := row.Scan(
		&product.ID,
		&product.DisplayName,
		&product.Price,
		&product.Stock,
		&product.ImageRef,
		&specs,
	)
	if err != nil {
		return nil, err
	}

	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &product.Specs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal specs: %w", err)
		}
	}

	return &product, nil
}
