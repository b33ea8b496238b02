// internal/core/services/presenter.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/ports"
	"github.com/merchkit/cartd/internal/render"
)

// Options tunes one presenter instance.
type Options struct {
	PersistDebounce       time.Duration
	InclusionDebounce     time.Duration
	EnrichmentConcurrency int

	// EnrichAsync resolves pending products on a background goroutine after
	// the optimistic pass. Synchronous mode resolves before Dispatch returns,
	// which tests and batch callers rely on.
	EnrichAsync bool
}

// DispatchResult is what a dispatch hands back to the caller: the snapshot of
// the completed pass plus the validation signal, if any. Validation outcomes
// are data, never errors.
type DispatchResult struct {
	Snapshot  *domain.Snapshot `json:"snapshot"`
	Signal    domain.AddStatus `json:"signal,omitempty"`
	Available int              `json:"available,omitempty"`
}

// Presenter is the single orchestrator in front of the cart domain. External
// callers dispatch actions; the presenter applies exactly one domain mutation
// per action and then runs the render/totals/persist pipeline exactly once,
// producing an immutable snapshot and a change event. Overlapping dispatches
// are coalesced into the running pipeline rather than interleaved.
type Presenter struct {
	cartID     string
	store      *domain.Store
	changes    *domain.ChangeSet
	inclusion  *InclusionTracker
	enricher   *EnrichmentResolver
	scheduler  *PersistenceScheduler
	reconciler *render.Reconciler
	storage    ports.CartStorage
	favorites  ports.Favorites
	events     ports.EventPublisher
	logger     *slog.Logger
	opts       Options

	// stateMu guards the store and change set; renderGate serializes
	// pipeline passes. pendingWork marks coalesced work for the pass loop.
	stateMu     sync.Mutex
	renderGate  sync.Mutex
	pendingWork atomic.Bool

	lastReason string
	lastTarget string

	snapMu   sync.Mutex
	lastSnap *domain.Snapshot
}

// NewPresenter wires a presenter for one cart.
func NewPresenter(
	cartID string,
	catalog ports.ProductCatalog,
	cartStorage ports.CartStorage,
	inclusionStorage ports.InclusionStorage,
	favorites ports.Favorites,
	events ports.EventPublisher,
	opts Options,
	logger *slog.Logger,
) *Presenter {
	log := logger.With(slog.String("service", "presenter"), slog.String("cart_id", cartID))
	return &Presenter{
		cartID:     cartID,
		store:      domain.NewStore(log),
		changes:    domain.NewChangeSet(),
		inclusion:  NewInclusionTracker(cartID, inclusionStorage, opts.InclusionDebounce, log),
		enricher:   NewEnrichmentResolver(catalog, opts.EnrichmentConcurrency, log),
		scheduler:  NewPersistenceScheduler(cartID, cartStorage, opts.PersistDebounce, log),
		reconciler: render.NewReconciler(log),
		storage:    cartStorage,
		favorites:  favorites,
		events:     events,
		logger:     log,
		opts:       opts,
	}
}

// CartID returns the cart this presenter orchestrates.
func (p *Presenter) CartID() string {
	return p.cartID
}

// Tree returns the current rendered row tree.
func (p *Presenter) Tree() *render.Node {
	p.renderGate.Lock()
	defer p.renderGate.Unlock()
	return p.reconciler.Tree()
}

// MasterState derives the tri-state "select all" value for the current items.
func (p *Presenter) MasterState(ctx context.Context) MasterState {
	p.stateMu.Lock()
	ids := p.store.IDs()
	p.stateMu.Unlock()
	return p.inclusion.MasterState(ctx, ids)
}

// Snapshot returns the snapshot of the last completed pass, or nil before
// the first one.
func (p *Presenter) Snapshot() *domain.Snapshot {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	return p.lastSnap
}

// Load replaces the cart contents from durable storage, dedupes, resolves
// product data and renders the initial tree.
func (p *Presenter) Load(ctx context.Context) error {
	items, err := p.storage.LoadCart(ctx, p.cartID)
	if err != nil {
		return fmt.Errorf("load cart %s: %w", p.cartID, err)
	}

	p.stateMu.Lock()
	p.store.Load(items)
	p.changes.MarkAll(p.store.IDs())
	ids := p.store.IDs()
	p.stateMu.Unlock()

	p.enrichPending(ctx)
	if _, err := p.run(ctx, "load", ""); err != nil {
		return err
	}

	// Best-effort cache warm-up for the whole cart.
	p.enricher.WarmUp(ctx, ids)
	return nil
}

// Dispatch is the single entry point for external action requests. Unknown
// or malformed actions return nil with no side effects.
func (p *Presenter) Dispatch(ctx context.Context, action Action) (*DispatchResult, error) {
	if !action.Valid() {
		return nil, nil
	}

	target := domain.NormalizeID(action.ID)
	result := &DispatchResult{}
	mutated := true

	p.stateMu.Lock()
	switch action.Type {
	case ActionAdd:
		res := p.store.Add(target, action.Qty, p.enricher.Peek(target))
		result.Signal = res.Status
		result.Available = res.Available
		if res.Status == domain.AddOutOfStock {
			mutated = false
		} else {
			p.changes.Mark(target)
		}

	case ActionRemove:
		if !p.store.Remove(target) {
			mutated = false
		} else {
			p.changes.Mark(target)
		}

	case ActionQtySet:
		if p.store.Get(target) == nil {
			mutated = false
		} else {
			p.store.ChangeQty(target, action.Qty)
			p.changes.Mark(target)
		}

	case ActionQtyInc:
		// Plus is stock-gated through the clamp inside ChangeQty.
		if item := p.store.Get(target); item == nil {
			mutated = false
		} else {
			p.store.ChangeQty(target, item.Quantity+1)
			p.changes.Mark(target)
		}

	case ActionQtyDec:
		// Minus is never gated; reaching zero removes the item.
		if item := p.store.Get(target); item == nil {
			mutated = false
		} else {
			p.store.ChangeQty(target, item.Quantity-1)
			p.changes.Mark(target)
		}

	case ActionIncludeSet:
		p.inclusion.SetIncluded(ctx, target, action.Included, false)
		p.changes.Mark(target)

	case ActionIncludeAll:
		ids := p.store.IDs()
		p.inclusion.SetAllIncluded(ctx, ids, action.Included)
		p.changes.MarkAll(ids)

	case ActionFavToggle:
		// External collaborator, domain state untouched. The row still
		// re-renders so the control reflects the new state.
		p.changes.Mark(target)
	}
	p.stateMu.Unlock()

	if action.Type == ActionFavToggle && p.favorites != nil {
		if _, err := p.favorites.Toggle(ctx, p.cartID, target); err != nil {
			p.logger.WarnContext(ctx, "favorites toggle failed",
				slog.String("id", target),
				slog.String("error", err.Error()))
		}
	}

	if !mutated {
		result.Snapshot = p.Snapshot()
		return result, nil
	}

	snap, err := p.run(ctx, action.Reason(), target)
	if err != nil {
		return nil, err
	}
	result.Snapshot = snap

	if p.hasPendingEnrichment() {
		if p.opts.EnrichAsync {
			go p.enrichAndRender(context.WithoutCancel(ctx))
		} else {
			p.enrichAndRender(ctx)
			result.Snapshot = p.Snapshot()
		}
	}

	return result, nil
}

// Destroy flushes both write-back paths synchronously. No pending mutation
// may be lost on shutdown.
func (p *Presenter) Destroy(ctx context.Context) error {
	p.stateMu.Lock()
	items := p.store.Items()
	p.stateMu.Unlock()

	p.scheduler.Schedule(items)
	p.inclusion.Flush(ctx)
	if err := p.scheduler.Close(ctx); err != nil {
		return fmt.Errorf("destroy cart %s: %w", p.cartID, err)
	}
	return nil
}

// hasPendingEnrichment reports whether any item is still optimistic.
func (p *Presenter) hasPendingEnrichment() bool {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	for _, item := range p.store.Items() {
		if item.StockState == domain.StockUnknown {
			return true
		}
	}
	return false
}

// enrichAndRender resolves pending products and, when anything merged, runs
// another pipeline pass.
func (p *Presenter) enrichAndRender(ctx context.Context) {
	if p.enrichPending(ctx) {
		if _, err := p.run(ctx, "enrichment", ""); err != nil {
			p.logger.WarnContext(ctx, "enrichment render failed",
				slog.String("error", err.Error()))
		}
	}
}

// enrichPending merges authoritative data for still-unknown items. Merges
// only ever refine state created by an earlier mutation. A quantity clamp
// caused by newly learned stock counts as a tracked mutation.
func (p *Presenter) enrichPending(ctx context.Context) bool {
	p.stateMu.Lock()
	var pending []string
	for _, item := range p.store.Items() {
		if item.StockState == domain.StockUnknown {
			pending = append(pending, item.ID)
		}
	}
	p.stateMu.Unlock()

	if len(pending) == 0 {
		return false
	}

	products := p.enricher.Resolve(ctx, pending)
	if len(products) == 0 {
		return false
	}

	p.stateMu.Lock()
	for id, product := range products {
		item := p.store.Get(id)
		if item == nil {
			continue
		}
		clamped := item.ApplyProduct(product)
		p.changes.Mark(id)
		if clamped {
			p.logger.DebugContext(ctx, "quantity clamped by enrichment",
				slog.String("id", id),
				slog.Int("stock", item.Stock))
		}
	}
	p.stateMu.Unlock()
	return true
}

// run executes pipeline passes until no coalesced work remains. Only one
// pass is ever in flight; a dispatch arriving mid-pass marks pendingWork and
// the running loop picks it up before releasing the gate.
func (p *Presenter) run(ctx context.Context, reason, target string) (*domain.Snapshot, error) {
	p.stateMu.Lock()
	p.lastReason = reason
	p.lastTarget = target
	p.stateMu.Unlock()
	p.pendingWork.Store(true)

	var snap *domain.Snapshot
	var err error
	for {
		if !p.renderGate.TryLock() {
			// A pass is in flight; it drains pendingWork before finishing,
			// so this dispatch's work rides along with it.
			return p.Snapshot(), nil
		}
		for p.pendingWork.Swap(false) {
			snap, err = p.pass(ctx)
			if err != nil {
				p.renderGate.Unlock()
				return nil, err
			}
		}
		p.renderGate.Unlock()
		if !p.pendingWork.Load() {
			return snap, err
		}
	}
}

// pass performs one render/totals/persist cycle and publishes the snapshot.
// Caller holds the render gate.
func (p *Presenter) pass(ctx context.Context) (*domain.Snapshot, error) {
	p.stateMu.Lock()
	items := p.store.Items()
	changed := p.changes.IDs()
	reason := p.lastReason
	target := p.lastTarget
	p.stateMu.Unlock()

	inclusion := p.inclusion.Map(ctx)
	totals := domain.CalculateTotals(items, inclusion)

	if err := p.reconciler.Reconcile(items, changed); err != nil {
		// The change set is kept so the next pass retries the same rows;
		// domain state is already consistent regardless.
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	p.stateMu.Lock()
	p.changes.Drop(changed)
	p.stateMu.Unlock()

	p.scheduler.Schedule(items)

	snap := domain.BuildSnapshot(items, totals, inclusion, changed, target, reason, time.Now().UTC())
	p.snapMu.Lock()
	p.lastSnap = &snap
	p.snapMu.Unlock()

	if p.events != nil {
		event := ports.CartChangedEvent{
			Source:   ports.EventSourceCart,
			CartID:   p.cartID,
			Snapshot: snap,
		}
		if err := p.events.PublishCartChanged(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "failed to publish cart change event",
				slog.String("error", err.Error()))
		}
	}

	return &snap, nil
}
