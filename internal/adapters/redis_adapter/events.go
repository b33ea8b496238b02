// internal/adapters/redis/events.go
package redis_a

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/merchkit/cartd/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

// EventPublisher broadcasts cart change events over a Redis pub/sub channel.
// Subscribers (badge renderers, mini-cart, checkout summary) receive the
// full snapshot, so they never need to re-read storage.
type EventPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

var _ ports.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher creates a publisher. An empty channel falls back to the
// stable event name.
func NewEventPublisher(client *redis.Client, channel string, logger *slog.Logger) *EventPublisher {
	if channel == "" {
		channel = ports.EventCartChanged
	}
	return &EventPublisher{
		client:  client,
		channel: channel,
		logger:  logger.With(slog.String("component", "event_publisher")),
	}
}

// PublishCartChanged serializes the event and publishes it. Delivery is
// fire-and-forget; a cart mutation never fails because nobody is listening.
func (p *EventPublisher) PublishCartChanged(ctx context.Context, event ports.CartChangedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event error: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish cart event",
			slog.String("cart_id", event.CartID),
			slog.String("error", err.Error()))
		return fmt.Errorf("redis publish error: %w", err)
	}

	p.logger.DebugContext(ctx, "cart event published",
		slog.String("channel", p.channel),
		slog.String("cart_id", event.CartID),
		slog.String("reason", event.Snapshot.Reason))

	return nil
}
