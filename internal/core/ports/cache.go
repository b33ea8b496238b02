// internal/core/ports/cache.go
package ports

import (
	"context"
	"time"
)

// CacheRepository is the port behind the product catalog cache and the
// export snapshot cache. Values are JSON-encoded by the adapter.
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)

	// GetOrSet fills dest from the cache, falling back to fetch on a miss
	// and storing the fetched value with the given TTL.
	GetOrSet(ctx context.Context, key string, dest interface{},
		fetch func() (interface{}, error), ttl time.Duration) error

	Ping(ctx context.Context) error
}
