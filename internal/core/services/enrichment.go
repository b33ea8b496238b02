// internal/core/services/enrichment.go
package services

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/ports"
)

// DefaultEnrichmentConcurrency bounds parallel catalog lookups.
const DefaultEnrichmentConcurrency = 4

// EnrichmentResolver resolves authoritative product data for line items.
// It never runs on the mutation path; the presenter invokes it as a
// follow-up step after the optimistic state has been rendered.
type EnrichmentResolver struct {
	catalog     ports.ProductCatalog
	concurrency int
	logger      *slog.Logger
}

// NewEnrichmentResolver creates a resolver with bounded lookup concurrency.
func NewEnrichmentResolver(catalog ports.ProductCatalog, concurrency int, logger *slog.Logger) *EnrichmentResolver {
	if concurrency < 1 {
		concurrency = DefaultEnrichmentConcurrency
	}
	return &EnrichmentResolver{
		catalog:     catalog,
		concurrency: concurrency,
		logger:      logger.With(slog.String("service", "enrichment")),
	}
}

// Peek returns the synchronously available product record for id, if any.
func (r *EnrichmentResolver) Peek(id string) *domain.Product {
	if r.catalog == nil {
		return nil
	}
	return r.catalog.Peek(id)
}

// Resolve fetches product records for ids with settle-all semantics: one
// failing lookup does not abort the others. Failures are logged and the id is
// simply absent from the result, leaving optimistic values in place.
func (r *EnrichmentResolver) Resolve(ctx context.Context, ids []string) map[string]*domain.Product {
	results := make(map[string]*domain.Product, len(ids))
	if r.catalog == nil || len(ids) == 0 {
		return results
	}

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(r.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			product, err := r.catalog.FindByID(ctx, id)
			if err != nil {
				r.logger.WarnContext(ctx, "product lookup failed, keeping optimistic values",
					slog.String("id", id),
					slog.String("error", err.Error()))
				return nil
			}
			if product == nil {
				return nil
			}
			mu.Lock()
			results[id] = product
			mu.Unlock()
			return nil
		})
	}

	// Tasks swallow their own errors; Wait only joins them.
	_ = g.Wait()
	return results
}

// WarmUp asks the catalog to pre-load records for ids, best effort.
func (r *EnrichmentResolver) WarmUp(ctx context.Context, ids []string) {
	if r.catalog == nil || len(ids) == 0 {
		return
	}
	if err := r.catalog.WarmUp(ctx, ids); err != nil {
		r.logger.WarnContext(ctx, "catalog warm-up failed",
			slog.Int("ids", len(ids)),
			slog.String("error", err.Error()))
	}
}
