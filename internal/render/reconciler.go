// internal/render/reconciler.go
package render

import (
	"fmt"
	"log/slog"

	"github.com/merchkit/cartd/internal/core/domain"
)

// RowBuilder produces the view node for one line item.
type RowBuilder func(domain.LineItem) (*Node, error)

// Strategy names the reconciliation path taken by the last pass.
type Strategy string

const (
	StrategyFull    Strategy = "full"
	StrategyPartial Strategy = "partial"
	StrategySingle  Strategy = "single"
)

// Reconciler maps domain state to the rendered row tree with minimal
// mutation. Partial and single-row passes escalate to a full rebuild on any
// error rather than leaving a half-patched tree behind.
type Reconciler struct {
	logger       *slog.Logger
	registry     *Registry
	root         *Node
	buildRow     RowBuilder
	lastStrategy Strategy
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRowBuilder overrides the default row builder.
func WithRowBuilder(b RowBuilder) Option {
	return func(r *Reconciler) { r.buildRow = b }
}

// NewReconciler creates a reconciler with an empty tree.
func NewReconciler(logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		logger:   logger.With(slog.String("component", "reconciler")),
		registry: NewRegistry(),
		buildRow: BuildRow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tree returns the current root node, nil before the first pass.
func (r *Reconciler) Tree() *Node {
	return r.root
}

// Registry exposes the id -> node-handle registry for row lookups.
func (r *Reconciler) Registry() *Registry {
	return r.registry
}

// LastStrategy reports which path the previous Reconcile pass took.
func (r *Reconciler) LastStrategy() Strategy {
	return r.lastStrategy
}

// Reconcile brings the view tree in line with items. The changed set selects
// the strategy: first render and empty lists rebuild fully, a single changed
// id takes the one-row fast path, anything else patches per id. Reconciling
// the same changed set twice with no intervening mutation yields an
// identical tree.
func (r *Reconciler) Reconcile(items []domain.LineItem, changed []string) error {
	switch {
	case r.root == nil || len(items) == 0:
		r.lastStrategy = StrategyFull
		return r.fullRebuild(items)
	case len(changed) == 0:
		return nil
	case len(changed) == 1:
		r.lastStrategy = StrategySingle
		if err := r.patch(items, changed); err != nil {
			r.logger.Warn("single-row patch failed, escalating to full rebuild",
				slog.String("id", changed[0]),
				slog.String("error", err.Error()))
			r.lastStrategy = StrategyFull
			return r.fullRebuild(items)
		}
		return nil
	default:
		r.lastStrategy = StrategyPartial
		if err := r.patch(items, changed); err != nil {
			r.logger.Warn("partial patch failed, escalating to full rebuild",
				slog.Int("changed", len(changed)),
				slog.String("error", err.Error()))
			r.lastStrategy = StrategyFull
			return r.fullRebuild(items)
		}
		return nil
	}
}

// fullRebuild discards the tree and regenerates every row.
func (r *Reconciler) fullRebuild(items []domain.LineItem) error {
	if r.root != nil {
		r.root.Detach()
	}
	r.registry.Reset()

	root := NewNode("ul")
	root.SetAttr("class", "cart-grid")

	for _, item := range items {
		row, err := r.buildRow(item)
		if err != nil {
			// Rendering failure never corrupts domain state; the caller
			// surfaces this and the previous tree stays detached.
			r.root = nil
			return fmt.Errorf("full rebuild: %w", err)
		}
		root.Append(row)
		r.registry.Register(item.ID, row)
	}

	r.root = root
	return nil
}

// patch regenerates only the changed rows, reusing live nodes by identity.
func (r *Reconciler) patch(items []domain.LineItem, changed []string) error {
	byID := make(map[string]domain.LineItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	for _, id := range changed {
		item, exists := byID[id]
		if !exists {
			r.removeRow(id)
			continue
		}

		fresh, err := r.buildRow(item)
		if err != nil {
			return fmt.Errorf("patch row %s: %w", id, err)
		}

		node := r.registry.Lookup(id)
		if node == nil {
			r.insertRow(items, id, fresh)
			continue
		}
		if node.Attr(AttrItemID) != id {
			return fmt.Errorf("row identity mismatch for %s", id)
		}
		// Patch in place so external handles stay valid. The identity
		// attribute is carried over untouched.
		node.Attrs = fresh.Attrs
		node.Text = fresh.Text
		node.Children = fresh.Children
	}

	return r.syncOrder(items)
}

// insertRow places a freshly created row at the item's list position.
func (r *Reconciler) insertRow(items []domain.LineItem, id string, row *Node) {
	pos := len(r.root.Children)
	for i, item := range items {
		if item.ID == id {
			if i < pos {
				pos = i
			}
			break
		}
	}
	children := append(r.root.Children[:pos:pos], row)
	r.root.Children = append(children, r.root.Children[pos:]...)
	r.registry.Register(id, row)
}

// removeRow drops the node whose id no longer has a backing line item.
func (r *Reconciler) removeRow(id string) {
	node := r.registry.Lookup(id)
	if node != nil {
		for i, child := range r.root.Children {
			if child == node {
				r.root.Children = append(r.root.Children[:i], r.root.Children[i+1:]...)
				break
			}
		}
		node.Detach()
	}
	r.registry.Drop(id)
}

// syncOrder rebuilds the child order from the item list. A missing live row
// for a present item means the tree drifted; report it so the caller
// escalates.
func (r *Reconciler) syncOrder(items []domain.LineItem) error {
	ordered := make([]*Node, 0, len(items))
	for _, item := range items {
		node := r.registry.Lookup(item.ID)
		if node == nil {
			return fmt.Errorf("no live row for item %s", item.ID)
		}
		ordered = append(ordered, node)
	}
	r.root.Children = ordered
	return nil
}
