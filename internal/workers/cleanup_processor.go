// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// TypeCartCleanup is the task type for periodic cart storage cleanup.
const TypeCartCleanup = "cart:cleanup"

// CleanupProcessor removes cart keys that outlived their parent cart. The
// inclusion map and favorites set live under their own keys, so a cart that
// expired by TTL can leave both behind.
type CleanupProcessor struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCleanupProcessor creates a new cleanup processor
func NewCleanupProcessor(client *redis.Client, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		client: client,
		logger: logger.With(slog.String("processor", "cleanup")),
	}
}

// CleanupOrphanedKeys scans for inclusion and favorites keys whose cart
// items key no longer exists and deletes them.
func (p *CleanupProcessor) CleanupOrphanedKeys(ctx context.Context, t *asynq.Task) error {
	p.logger.InfoContext(ctx, "cleaning up orphaned cart keys")

	var deleted int
	for _, suffix := range []string{":included", ":favorites"} {
		n, err := p.sweep(ctx, suffix)
		if err != nil {
			return err
		}
		deleted += n
	}

	p.logger.InfoContext(ctx, "orphaned cart keys cleaned up",
		slog.Int("keys_deleted", deleted))

	return nil
}

func (p *CleanupProcessor) sweep(ctx context.Context, suffix string) (int, error) {
	iter := p.client.Scan(ctx, 0, "cart:*"+suffix, 0).Iterator()

	var deleted int
	for iter.Next(ctx) {
		key := iter.Val()

		itemsKey := strings.TrimSuffix(key, suffix) + ":items"
		exists, err := p.client.Exists(ctx, itemsKey).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to check cart key %s: %w", itemsKey, err)
		}
		if exists > 0 {
			continue
		}

		if err := p.client.Del(ctx, key).Err(); err != nil {
			p.logger.WarnContext(ctx, "failed to delete orphaned key",
				slog.String("key", key),
				slog.String("error", err.Error()))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan cart keys: %w", err)
	}

	return deleted, nil
}
