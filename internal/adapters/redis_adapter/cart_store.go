// internal/adapters/redis/cart_store.go
package redis_a

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

// Storage key layout for a single cart. The inclusion map lives under its
// own key so it survives item removal until explicitly pruned.
const (
	keyCartItems     = "cart:%s:items"
	keyCartInclusion = "cart:%s:included"
	keyCartFavorites = "cart:%s:favorites"
)

// DefaultCartTTL bounds how long an abandoned cart is retained.
const DefaultCartTTL = 30 * 24 * time.Hour

// CartStore persists cart line items, the inclusion map and the favorites
// set in Redis.
type CartStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var (
	_ ports.CartStorage      = (*CartStore)(nil)
	_ ports.InclusionStorage = (*CartStore)(nil)
	_ ports.Favorites        = (*CartStore)(nil)
)

// NewCartStore creates a new Redis-backed cart store. A non-positive ttl
// falls back to DefaultCartTTL.
func NewCartStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *CartStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &CartStore{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "cart_store")),
	}
}

// LoadCart returns the stored line items for a cart. A missing key is an
// empty cart, not an error. Records that fail to decode are skipped so one
// corrupt row cannot take the whole cart down.
func (s *CartStore) LoadCart(ctx context.Context, cartID string) ([]domain.LineItem, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(keyCartItems, cartID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get cart error: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal cart error: %w", err)
	}

	items := make([]domain.LineItem, 0, len(raw))
	for i, rec := range raw {
		var item domain.LineItem
		if err := json.Unmarshal(rec, &item); err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable cart record",
				slog.String("cart_id", cartID),
				slog.Int("position", i),
				slog.String("error", err.Error()))
			continue
		}
		items = append(items, item)
	}

	s.logger.DebugContext(ctx, "cart loaded",
		slog.String("cart_id", cartID),
		slog.Int("items", len(items)))

	return items, nil
}

// SaveCart overwrites the stored line-item list for a cart.
func (s *CartStore) SaveCart(ctx context.Context, cartID string, items []domain.LineItem) error {
	if items == nil {
		items = []domain.LineItem{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal cart error: %w", err)
	}

	key := fmt.Sprintf(keyCartItems, cartID)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.ErrorContext(ctx, "failed to save cart",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()))
		return fmt.Errorf("redis set cart error: %w", err)
	}

	s.logger.DebugContext(ctx, "cart saved",
		slog.String("cart_id", cartID),
		slog.Int("items", len(items)))

	return nil
}

// DeleteCart removes every key belonging to a cart.
func (s *CartStore) DeleteCart(ctx context.Context, cartID string) error {
	keys := []string{
		fmt.Sprintf(keyCartItems, cartID),
		fmt.Sprintf(keyCartInclusion, cartID),
		fmt.Sprintf(keyCartFavorites, cartID),
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del cart error: %w", err)
	}

	s.logger.InfoContext(ctx, "cart deleted", slog.String("cart_id", cartID))
	return nil
}

// LoadInclusion returns the stored id -> included map. A missing key means
// no overrides were ever recorded.
func (s *CartStore) LoadInclusion(ctx context.Context, cartID string) (map[string]bool, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(keyCartInclusion, cartID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("redis get inclusion error: %w", err)
	}

	inclusion := make(map[string]bool)
	if err := json.Unmarshal(data, &inclusion); err != nil {
		return nil, fmt.Errorf("unmarshal inclusion error: %w", err)
	}

	return inclusion, nil
}

// SaveInclusion overwrites the stored inclusion map.
func (s *CartStore) SaveInclusion(ctx context.Context, cartID string, inclusion map[string]bool) error {
	if inclusion == nil {
		inclusion = map[string]bool{}
	}

	data, err := json.Marshal(inclusion)
	if err != nil {
		return fmt.Errorf("marshal inclusion error: %w", err)
	}

	key := fmt.Sprintf(keyCartInclusion, cartID)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.ErrorContext(ctx, "failed to save inclusion map",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()))
		return fmt.Errorf("redis set inclusion error: %w", err)
	}

	return nil
}

// Toggle flips an item's membership in the favorites set and reports the
// resulting state.
func (s *CartStore) Toggle(ctx context.Context, cartID, itemID string) (bool, error) {
	key := fmt.Sprintf(keyCartFavorites, cartID)

	added, err := s.client.SAdd(ctx, key, itemID).Result()
	if err != nil {
		return false, fmt.Errorf("redis sadd favorite error: %w", err)
	}

	if added == 0 {
		// Already present, so this toggle removes it.
		if err := s.client.SRem(ctx, key, itemID).Err(); err != nil {
			return true, fmt.Errorf("redis srem favorite error: %w", err)
		}
		s.logger.DebugContext(ctx, "favorite removed",
			slog.String("cart_id", cartID),
			slog.String("item_id", itemID))
		return false, nil
	}

	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh favorites ttl",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()))
	}

	s.logger.DebugContext(ctx, "favorite added",
		slog.String("cart_id", cartID),
		slog.String("item_id", itemID))

	return true, nil
}

// Contains reports whether an item is in the favorites set.
func (s *CartStore) Contains(ctx context.Context, cartID, itemID string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, fmt.Sprintf(keyCartFavorites, cartID), itemID).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember favorite error: %w", err)
	}
	return ok, nil
}
