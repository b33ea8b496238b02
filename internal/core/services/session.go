// internal/core/services/session.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/merchkit/cartd/internal/core/ports"
)

// SessionManager hands out one presenter per cart id, loading cart state
// from durable storage on first touch and flushing it on destroy.
type SessionManager struct {
	catalog          ports.ProductCatalog
	cartStorage      ports.CartStorage
	inclusionStorage ports.InclusionStorage
	favorites        ports.Favorites
	events           ports.EventPublisher
	opts             Options
	logger           *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Presenter
}

// NewSessionManager creates a manager sharing one set of collaborators
// across all carts.
func NewSessionManager(
	catalog ports.ProductCatalog,
	cartStorage ports.CartStorage,
	inclusionStorage ports.InclusionStorage,
	favorites ports.Favorites,
	events ports.EventPublisher,
	opts Options,
	logger *slog.Logger,
) *SessionManager {
	return &SessionManager{
		catalog:          catalog,
		cartStorage:      cartStorage,
		inclusionStorage: inclusionStorage,
		favorites:        favorites,
		events:           events,
		opts:             opts,
		logger:           logger.With(slog.String("service", "sessions")),
	}
}

// Get returns the presenter for cartID, creating and loading it on first
// touch.
func (m *SessionManager) Get(ctx context.Context, cartID string) (*Presenter, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return nil, fmt.Errorf("cart id is required")
	}

	m.mu.Lock()
	if m.sessions == nil {
		m.sessions = make(map[string]*Presenter)
	}
	if p, ok := m.sessions[cartID]; ok {
		m.mu.Unlock()
		return p, nil
	}
	p := NewPresenter(cartID, m.catalog, m.cartStorage, m.inclusionStorage,
		m.favorites, m.events, m.opts, m.logger)
	m.sessions[cartID] = p
	m.mu.Unlock()

	if err := p.Load(ctx); err != nil {
		m.mu.Lock()
		delete(m.sessions, cartID)
		m.mu.Unlock()
		return nil, err
	}

	m.logger.InfoContext(ctx, "cart session opened",
		slog.String("cart_id", cartID))
	return p, nil
}

// Destroy flushes and drops the session for cartID. Unknown ids are a no-op.
func (m *SessionManager) Destroy(ctx context.Context, cartID string) error {
	m.mu.Lock()
	p, ok := m.sessions[cartID]
	delete(m.sessions, cartID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if err := p.Destroy(ctx); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "cart session closed",
		slog.String("cart_id", cartID))
	return nil
}

// Delete destroys the session and removes the cart from durable storage.
func (m *SessionManager) Delete(ctx context.Context, cartID string) error {
	if err := m.Destroy(ctx, cartID); err != nil {
		return err
	}
	if err := m.cartStorage.DeleteCart(ctx, cartID); err != nil {
		return fmt.Errorf("failed to delete cart %s: %w", cartID, err)
	}
	return nil
}

// Shutdown flushes every open session. Used on process teardown.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	open := make([]*Presenter, 0, len(m.sessions))
	for _, p := range m.sessions {
		open = append(open, p)
	}
	m.sessions = make(map[string]*Presenter)
	m.mu.Unlock()

	var firstErr error
	for _, p := range open {
		if err := p.Destroy(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
