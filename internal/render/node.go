// internal/render/node.go
package render

import "sort"

// AttrItemID is the canonical row-identity attribute. It is written onto a
// row node at creation time and never mutated afterward; reconciliation,
// totals-badge updates, and external row lookups all key off it.
const AttrItemID = "data-cart-item-id"

// Node is one element in the rendered view tree.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Children []*Node

	detached bool
}

// NewNode creates a node with the given tag.
func NewNode(tag string) *Node {
	return &Node{Tag: tag, Attrs: make(map[string]string)}
}

// Attr returns the attribute value for key, or "".
func (n *Node) Attr(key string) string {
	if n == nil || n.Attrs == nil {
		return ""
	}
	return n.Attrs[key]
}

// SetAttr sets an attribute value.
func (n *Node) SetAttr(key, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
}

// Append adds children in order.
func (n *Node) Append(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// Live reports whether the node is still attached to a rendered tree.
func (n *Node) Live() bool {
	return n != nil && !n.detached
}

// Detach marks the node and its subtree as dead so registry lookups skip it.
func (n *Node) Detach() {
	if n == nil {
		return
	}
	n.detached = true
	for _, c := range n.Children {
		c.Detach()
	}
}

// Equal reports deep structural equality, ignoring liveness.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Tag != other.Tag || n.Text != other.Text {
		return false
	}
	if len(n.Attrs) != len(other.Attrs) {
		return false
	}
	for k, v := range n.Attrs {
		if other.Attrs[k] != v {
			return false
		}
	}
	if len(n.Children) != len(other.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

// Registry maps item ids to their row node handles. Ambient global lookups
// are replaced by this explicit structure, pruned lazily: dead handles are
// dropped when encountered, not eagerly.
type Registry struct {
	handles map[string][]*Node
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string][]*Node)}
}

// Register records a handle for id.
func (r *Registry) Register(id string, node *Node) {
	if id == "" || node == nil {
		return
	}
	r.handles[id] = append(r.handles[id], node)
}

// Lookup returns the first live handle for id, pruning dead ones on the way.
func (r *Registry) Lookup(id string) *Node {
	nodes, ok := r.handles[id]
	if !ok {
		return nil
	}
	live := nodes[:0]
	for _, n := range nodes {
		if n.Live() {
			live = append(live, n)
		}
	}
	if len(live) == 0 {
		delete(r.handles, id)
		return nil
	}
	r.handles[id] = live
	return live[0]
}

// Drop removes every handle for id.
func (r *Registry) Drop(id string) {
	delete(r.handles, id)
}

// Reset empties the registry.
func (r *Registry) Reset() {
	r.handles = make(map[string][]*Node)
}

// IDs returns registered ids in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.handles))
	for id := range r.handles {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
