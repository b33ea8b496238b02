// internal/core/domain/changeset.go
package domain

import "sort"

// ChangeSet accumulates the item ids touched since the last successful render
// pass. It is cleared only after a pass completes without error, so a failed
// pass retries the same set.
type ChangeSet struct {
	ids map[string]struct{}
}

// NewChangeSet creates an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{ids: make(map[string]struct{})}
}

// Mark records id as changed.
func (c *ChangeSet) Mark(id string) {
	if id == "" {
		return
	}
	c.ids[id] = struct{}{}
}

// MarkAll records every id in the slice.
func (c *ChangeSet) MarkAll(ids []string) {
	for _, id := range ids {
		c.Mark(id)
	}
}

// Has reports whether id is in the set.
func (c *ChangeSet) Has(id string) bool {
	_, ok := c.ids[id]
	return ok
}

// Len returns the number of tracked ids.
func (c *ChangeSet) Len() int {
	return len(c.ids)
}

// IDs returns the tracked ids in sorted order for deterministic processing.
func (c *ChangeSet) IDs() []string {
	out := make([]string, 0, len(c.ids))
	for id := range c.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Drop removes only the given ids, leaving ids marked since untouched.
func (c *ChangeSet) Drop(ids []string) {
	for _, id := range ids {
		delete(c.ids, id)
	}
}

// Clear empties the set.
func (c *ChangeSet) Clear() {
	c.ids = make(map[string]struct{})
}
