// internal/workers/warmup_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	redis_a "github.com/merchkit/cartd/internal/adapters/redis_adapter"
	"github.com/merchkit/cartd/internal/core/ports"
)

// TypeCatalogWarmup is the task type for background product cache warm-up.
const TypeCatalogWarmup = "catalog:warmup"

// CatalogWarmupPayload carries the product ids to resolve.
type CatalogWarmupPayload struct {
	ProductIDs []string `json:"product_ids"`
}

// WarmupProcessor resolves product records from the database and pushes
// them into the shared cache so cart sessions hit warm data.
type WarmupProcessor struct {
	repo     ports.ProductRepository
	cache    ports.CacheRepository
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewWarmupProcessor creates a new warmup processor
func NewWarmupProcessor(repo ports.ProductRepository, cache ports.CacheRepository, cacheTTL time.Duration, logger *slog.Logger) *WarmupProcessor {
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	return &WarmupProcessor{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With(slog.String("processor", "catalog_warmup")),
	}
}

// ProcessWarmup handles a catalog:warmup task. Ids that resolve are cached;
// ids without a catalog record are skipped, not retried.
func (p *WarmupProcessor) ProcessWarmup(ctx context.Context, t *asynq.Task) error {
	var payload CatalogWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal warmup payload: %w", err)
	}

	if len(payload.ProductIDs) == 0 {
		return nil
	}

	products, err := p.repo.FindByIDs(ctx, payload.ProductIDs)
	if err != nil {
		return fmt.Errorf("failed to resolve products: %w", err)
	}

	var cached int
	for id, product := range products {
		key := redis_a.BuildKey(redis_a.PrefixProduct, id)
		if err := p.cache.SetWithTTL(ctx, key, product, p.cacheTTL); err != nil {
			p.logger.WarnContext(ctx, "failed to cache product",
				slog.String("product_id", id),
				slog.String("error", err.Error()))
			continue
		}
		cached++
	}

	p.logger.InfoContext(ctx, "catalog warmup complete",
		slog.Int("requested", len(payload.ProductIDs)),
		slog.Int("resolved", len(products)),
		slog.Int("cached", cached))

	return nil
}
