// internal/core/services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/ports"
)

// DefaultPersistDebounce is the write-back delay for the line-item list. A
// burst of mutations collapses into the last scheduled write.
const DefaultPersistDebounce = 200 * time.Millisecond

// PersistenceScheduler debounces write-back of the canonical line-item list
// to durable storage. Flush forces a synchronous write so no pending mutation
// is lost on shutdown.
type PersistenceScheduler struct {
	cartID   string
	storage  ports.CartStorage
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending []domain.LineItem
	dirty   bool
	closed  bool
}

// NewPersistenceScheduler creates a scheduler for one cart.
func NewPersistenceScheduler(cartID string, storage ports.CartStorage, debounce time.Duration, logger *slog.Logger) *PersistenceScheduler {
	if debounce <= 0 {
		debounce = DefaultPersistDebounce
	}
	return &PersistenceScheduler{
		cartID:   cartID,
		storage:  storage,
		debounce: debounce,
		logger:   logger.With(slog.String("service", "persistence"), slog.String("cart_id", cartID)),
	}
}

// Schedule records the latest item list and arms the debounce timer. Earlier
// unsaved lists are superseded.
func (s *PersistenceScheduler) Schedule(items []domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = items
	s.dirty = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.write(context.Background()); err != nil {
			// Logged only; the next debounce cycle retries naturally.
			s.logger.Warn("debounced cart write failed",
				slog.String("error", err.Error()))
		}
	})
}

// Flush cancels any pending timer and writes synchronously when dirty.
func (s *PersistenceScheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.write(ctx)
}

// Close flushes and rejects further scheduling.
func (s *PersistenceScheduler) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

func (s *PersistenceScheduler) write(ctx context.Context) error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	items := s.pending
	s.dirty = false
	s.mu.Unlock()

	if err := s.storage.SaveCart(ctx, s.cartID, items); err != nil {
		s.mu.Lock()
		// Keep the payload so a later flush retries it.
		s.dirty = true
		s.mu.Unlock()
		return fmt.Errorf("save cart %s: %w", s.cartID, err)
	}
	return nil
}
