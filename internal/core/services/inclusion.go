// internal/core/services/inclusion.go
package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/merchkit/cartd/internal/core/ports"
)

// DefaultInclusionDebounce is the write-back delay for per-item toggles.
// Rapid clicking collapses into a single storage write.
const DefaultInclusionDebounce = 150 * time.Millisecond

// MasterState is the tri-state value driving the "select all" control.
type MasterState string

const (
	MasterNone  MasterState = "none"
	MasterFull  MasterState = "full"
	MasterMixed MasterState = "mixed"
)

// InclusionTracker maintains the persisted "included in checkout total" flag
// per item. Entries are created lazily, default true, and survive item
// removal until explicitly pruned.
type InclusionTracker struct {
	cartID   string
	storage  ports.InclusionStorage
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	loaded   bool
	included map[string]bool
	timer    *time.Timer
}

// NewInclusionTracker creates a tracker for one cart.
func NewInclusionTracker(cartID string, storage ports.InclusionStorage, debounce time.Duration, logger *slog.Logger) *InclusionTracker {
	if debounce <= 0 {
		debounce = DefaultInclusionDebounce
	}
	return &InclusionTracker{
		cartID:   cartID,
		storage:  storage,
		debounce: debounce,
		logger:   logger.With(slog.String("service", "inclusion"), slog.String("cart_id", cartID)),
		included: make(map[string]bool),
	}
}

// IsIncluded reports whether id counts toward the total. Ids never toggled
// and never persisted default to true.
func (t *InclusionTracker) IsIncluded(ctx context.Context, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded(ctx)
	if v, ok := t.included[id]; ok {
		return v
	}
	return true
}

// SetIncluded updates the flag for one id. Persistence is debounced unless
// immediate is set.
func (t *InclusionTracker) SetIncluded(ctx context.Context, id string, included, immediate bool) {
	t.mu.Lock()
	t.ensureLoaded(ctx)
	t.included[id] = included
	t.mu.Unlock()

	if immediate {
		t.persist(ctx)
		return
	}
	t.schedulePersist()
}

// SetAllIncluded is the bulk variant. It always persists immediately: the
// user expects instant feedback on "select all".
func (t *InclusionTracker) SetAllIncluded(ctx context.Context, ids []string, included bool) {
	t.mu.Lock()
	t.ensureLoaded(ctx)
	for _, id := range ids {
		t.included[id] = included
	}
	t.mu.Unlock()

	t.persist(ctx)
}

// MasterState derives the tri-state toggle value for the given item ids.
func (t *InclusionTracker) MasterState(ctx context.Context, ids []string) MasterState {
	if len(ids) == 0 {
		return MasterNone
	}
	includedCount := 0
	for _, id := range ids {
		if t.IsIncluded(ctx, id) {
			includedCount++
		}
	}
	switch includedCount {
	case 0:
		return MasterNone
	case len(ids):
		return MasterFull
	default:
		return MasterMixed
	}
}

// Map returns a copy of the inclusion map for snapshot building.
func (t *InclusionTracker) Map(ctx context.Context) map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded(ctx)
	out := make(map[string]bool, len(t.included))
	for k, v := range t.included {
		out[k] = v
	}
	return out
}

// Prune drops entries for ids no longer present in keep. Callers decide when
// orphaned entries have outlived their usefulness.
func (t *InclusionTracker) Prune(ctx context.Context, keep []string) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	t.mu.Lock()
	t.ensureLoaded(ctx)
	for id := range t.included {
		if _, ok := keepSet[id]; !ok {
			delete(t.included, id)
		}
	}
	t.mu.Unlock()

	t.persist(ctx)
}

// Flush cancels any pending debounce and writes synchronously.
func (t *InclusionTracker) Flush(ctx context.Context) {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	loaded := t.loaded
	t.mu.Unlock()

	if loaded {
		t.persist(ctx)
	}
}

// ensureLoaded lazily initializes the map from storage. Caller holds t.mu.
func (t *InclusionTracker) ensureLoaded(ctx context.Context) {
	if t.loaded {
		return
	}
	t.loaded = true
	if t.storage == nil {
		return
	}
	persisted, err := t.storage.LoadInclusion(ctx, t.cartID)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to load inclusion map, starting empty",
			slog.String("error", err.Error()))
		return
	}
	for k, v := range persisted {
		t.included[k] = v
	}
}

func (t *InclusionTracker) schedulePersist() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.debounce, func() {
		t.persist(context.Background())
	})
}

func (t *InclusionTracker) persist(ctx context.Context) {
	if t.storage == nil {
		return
	}
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	snapshot := make(map[string]bool, len(t.included))
	for k, v := range t.included {
		snapshot[k] = v
	}
	t.mu.Unlock()

	if err := t.storage.SaveInclusion(ctx, t.cartID, snapshot); err != nil {
		t.logger.WarnContext(ctx, "failed to persist inclusion map",
			slog.String("error", err.Error()))
	}
}
