// internal/core/ports/events.go
package ports

import (
	"context"

	"github.com/merchkit/cartd/internal/core/domain"
)

// EventCartChanged is the stable event name downstream UI modules (badges,
// mini-cart, checkout summary) subscribe to. Renaming it breaks every
// consumer at once, so don't.
const EventCartChanged = "cart.changed"

// EventSourceCart identifies this engine as the event origin.
const EventSourceCart = "cart"

// CartChangedEvent is emitted once per completed orchestration pass.
type CartChangedEvent struct {
	Source   string          `json:"source"`
	CartID   string          `json:"cart_id"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

// EventPublisher delivers cart change events to the rest of the application.
type EventPublisher interface {
	PublishCartChanged(ctx context.Context, event CartChangedEvent) error
}
