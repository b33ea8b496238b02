// internal/adapters/catalog/catalog.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	redis_a "github.com/merchkit/cartd/internal/adapters/redis_adapter"
	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/ports"
	"github.com/merchkit/cartd/internal/workers"
)

// DefaultCacheTTL bounds how long a product record is served without
// re-reading the database.
const DefaultCacheTTL = 15 * time.Minute

// Catalog implements ports.ProductCatalog by layering an in-process map
// over the shared Redis cache over the authoritative database repository.
// Peek only ever touches the in-process layer, which is what lets the cart
// validation path stay synchronous.
type Catalog struct {
	repo     ports.ProductRepository
	cache    ports.CacheRepository
	enqueuer *asynq.Client
	cacheTTL time.Duration

	mu    sync.RWMutex
	local map[string]*domain.Product

	logger *slog.Logger
}

var _ ports.ProductCatalog = (*Catalog)(nil)

// Options configures optional catalog collaborators.
type Options struct {
	// Enqueuer offloads WarmUp to the background worker. When nil, warm-up
	// resolves inline.
	Enqueuer *asynq.Client

	// CacheTTL overrides DefaultCacheTTL when positive.
	CacheTTL time.Duration
}

// New creates a catalog over the given repository and cache.
func New(repo ports.ProductRepository, cache ports.CacheRepository, opts Options, logger *slog.Logger) *Catalog {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Catalog{
		repo:     repo,
		cache:    cache,
		enqueuer: opts.Enqueuer,
		cacheTTL: ttl,
		local:    make(map[string]*domain.Product),
		logger:   logger.With(slog.String("component", "catalog")),
	}
}

// Peek returns the locally cached product, or nil when the record has not
// been resolved in this process yet. It never blocks on I/O.
func (c *Catalog) Peek(id string) *domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.local[id]
	if !ok {
		return nil
	}
	clone := *p
	return &clone
}

// FindByID resolves a product through the cache layers. A missing product
// is (nil, nil), not an error.
func (c *Catalog) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	if p := c.Peek(id); p != nil {
		return p, nil
	}

	var product domain.Product
	key := redis_a.BuildKey(redis_a.PrefixProduct, id)

	err := c.cache.Get(ctx, key, &product)
	if err == nil {
		c.remember(&product)
		return &product, nil
	}
	if err != redis_a.ErrCacheMiss {
		c.logger.WarnContext(ctx, "product cache read failed, falling through",
			slog.String("product_id", id),
			slog.String("error", err.Error()))
	}

	found, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup failed for %s: %w", id, err)
	}
	if found == nil {
		return nil, nil
	}

	c.remember(found)
	if err := c.cache.SetWithTTL(ctx, key, found, c.cacheTTL); err != nil {
		c.logger.WarnContext(ctx, "failed to cache product",
			slog.String("product_id", id),
			slog.String("error", err.Error()))
	}

	return found, nil
}

// FindByIDs resolves several products at once. Ids that cannot be resolved
// are simply absent from the result.
func (c *Catalog) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	result := make(map[string]*domain.Product, len(ids))
	var misses []string

	c.mu.RLock()
	for _, id := range ids {
		if p, ok := c.local[id]; ok {
			clone := *p
			result[id] = &clone
		} else {
			misses = append(misses, id)
		}
	}
	c.mu.RUnlock()

	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := c.repo.FindByIDs(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("catalog batch lookup failed: %w", err)
	}

	for id, p := range fetched {
		result[id] = p
		c.remember(p)

		key := redis_a.BuildKey(redis_a.PrefixProduct, id)
		if err := c.cache.SetWithTTL(ctx, key, p, c.cacheTTL); err != nil {
			c.logger.WarnContext(ctx, "failed to cache product",
				slog.String("product_id", id),
				slog.String("error", err.Error()))
		}
	}

	return result, nil
}

// WarmUp pre-loads product records for ids. With an enqueuer configured the
// work is handed to the background worker; otherwise it resolves inline.
// Either way failures are logged, never returned to the cart flow.
func (c *Catalog) WarmUp(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if c.enqueuer != nil {
		payload, err := json.Marshal(workers.CatalogWarmupPayload{ProductIDs: ids})
		if err != nil {
			return fmt.Errorf("failed to marshal warmup payload: %w", err)
		}

		task := asynq.NewTask(workers.TypeCatalogWarmup, payload)
		if _, err := c.enqueuer.Enqueue(task,
			asynq.Queue("low"),
			asynq.MaxRetry(2),
			asynq.Retention(time.Hour)); err != nil {
			c.logger.WarnContext(ctx, "failed to enqueue catalog warmup",
				slog.Int("ids", len(ids)),
				slog.String("error", err.Error()))
		}
		return nil
	}

	if _, err := c.FindByIDs(ctx, ids); err != nil {
		c.logger.WarnContext(ctx, "inline catalog warmup failed",
			slog.Int("ids", len(ids)),
			slog.String("error", err.Error()))
	}
	return nil
}

func (c *Catalog) remember(p *domain.Product) {
	clone := *p
	c.mu.Lock()
	c.local[p.ID] = &clone
	c.mu.Unlock()
}
