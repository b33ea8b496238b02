// internal/core/domain/store.go
package domain

import (
	"log/slog"
)

// AddStatus classifies the outcome of a Store.Add call.
type AddStatus string

const (
	AddOK         AddStatus = "ok"
	AddPartial    AddStatus = "partial_add"
	AddOutOfStock AddStatus = "out_of_stock"
)

// AddResult carries the outcome of an add, including how much stock was
// actually available when the requested quantity had to be clamped.
type AddResult struct {
	Status    AddStatus
	Available int
	Item      *LineItem
}

// Store owns the canonical line-item list and its id index. It has no
// knowledge of rendering or persistence; only the presenter mutates it.
type Store struct {
	items  []*LineItem
	index  map[string]int
	logger *slog.Logger
}

// NewStore creates an empty cart store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		items:  []*LineItem{},
		index:  make(map[string]int),
		logger: logger.With(slog.String("component", "cart_store")),
	}
}

// Len returns the number of line items.
func (s *Store) Len() int {
	return len(s.items)
}

// Get returns the line item for id, or nil when absent.
func (s *Store) Get(id any) *LineItem {
	key := NormalizeID(id)
	pos, ok := s.index[key]
	if !ok {
		return nil
	}
	if pos < 0 || pos >= len(s.items) || s.items[pos].ID != key {
		// Index corruption; rebuild and retry once.
		s.rebuildIndex()
		pos, ok = s.index[key]
		if !ok {
			return nil
		}
	}
	return s.items[pos]
}

// Add inserts or merges a line item. When an authoritative product record is
// available it validates the request against stock: zero stock rejects the
// add, an over-ask clamps and reports AddPartial. Without a product record
// the insert is optimistic at the requested quantity and marked StockUnknown
// for later enrichment.
func (s *Store) Add(id any, qty int, prod *Product) AddResult {
	key := NormalizeID(id)
	if key == "" {
		return AddResult{Status: AddOutOfStock}
	}
	if qty < 1 {
		qty = 1
	}

	if existing := s.Get(key); existing != nil {
		if prod != nil {
			existing.ApplyProduct(prod)
		}
		if existing.KnownSoldOut() {
			return AddResult{Status: AddOutOfStock, Available: 0, Item: existing}
		}
		existing.Quantity += qty
		if existing.ClampQuantity() {
			return AddResult{Status: AddPartial, Available: existing.Stock, Item: existing}
		}
		return AddResult{Status: AddOK, Item: existing}
	}

	if prod != nil && prod.Stock <= 0 {
		return AddResult{Status: AddOutOfStock, Available: 0}
	}

	item := &LineItem{
		ID:         key,
		Quantity:   qty,
		StockState: StockUnknown,
	}
	status := AddOK
	available := 0
	if prod != nil {
		item.ApplyProduct(prod)
		if item.Quantity < qty {
			status = AddPartial
			available = item.Stock
		}
	}

	s.items = append(s.items, item)
	s.index[item.ID] = len(s.items) - 1
	return AddResult{Status: status, Available: available, Item: item}
}

// Remove deletes the item for id. Absent ids are a no-op and return false;
// callers must not treat that as an error.
func (s *Store) Remove(id any) bool {
	key := NormalizeID(id)
	pos, ok := s.index[key]
	if !ok {
		return false
	}
	if pos < 0 || pos >= len(s.items) || s.items[pos].ID != key {
		s.rebuildIndex()
		pos, ok = s.index[key]
		if !ok {
			return false
		}
	}

	s.items = append(s.items[:pos], s.items[pos+1:]...)
	delete(s.index, key)

	if err := s.shiftIndexAfter(pos); err != nil {
		s.logger.Warn("index shift failed, rebuilding",
			slog.String("id", key),
			slog.String("error", err.Error()))
		s.rebuildIndex()
	}
	return true
}

// ChangeQty sets the quantity for id, clamping to known stock. A quantity of
// zero or less removes the item, and an item the catalog has confirmed sold
// out can shrink but never grow. It returns the affected item (nil when the
// operation resolved to a removal or the id is unknown).
func (s *Store) ChangeQty(id any, qty int) *LineItem {
	key := NormalizeID(id)
	if qty <= 0 {
		s.Remove(key)
		return nil
	}
	item := s.Get(key)
	if item == nil {
		return nil
	}
	if item.KnownSoldOut() && qty > item.Quantity {
		return item
	}
	item.Quantity = qty
	item.ClampQuantity()
	return item
}

// Dedupe merges duplicate ids in place: quantities are summed, scalar fields
// take the last writer, and specs are shallow-merged. The id index is rebuilt
// afterwards. It returns the ids that were merged away.
func (s *Store) Dedupe() []string {
	seen := make(map[string]*LineItem, len(s.items))
	out := s.items[:0]
	var merged []string

	for _, item := range s.items {
		key := NormalizeID(item.ID)
		if key == "" {
			continue
		}
		item.ID = key
		if prev, ok := seen[key]; ok {
			prev.Quantity += item.Quantity
			prev.DisplayName = item.DisplayName
			prev.UnitPrice = item.UnitPrice
			if item.StockState == StockKnown {
				prev.Stock = item.Stock
				prev.StockState = StockKnown
			}
			if item.ImageRef != "" {
				prev.ImageRef = item.ImageRef
			}
			for k, v := range item.Specs {
				if prev.Specs == nil {
					prev.Specs = make(map[string]string)
				}
				prev.Specs[k] = v
			}
			if item.Included != nil {
				prev.Included = item.Included
			}
			prev.ClampQuantity()
			merged = append(merged, key)
			continue
		}
		seen[key] = item
		out = append(out, item)
	}

	s.items = out
	s.rebuildIndex()
	return merged
}

// Load replaces the store contents with rawItems. Ids are normalized,
// duplicates merged, and the index rebuilt.
func (s *Store) Load(rawItems []LineItem) {
	s.items = make([]*LineItem, 0, len(rawItems))
	for i := range rawItems {
		item := rawItems[i].Clone()
		item.ID = NormalizeID(item.ID)
		if item.ID == "" || item.Quantity < 1 {
			continue
		}
		if item.StockState == "" {
			item.StockState = StockUnknown
		}
		s.items = append(s.items, &item)
	}
	s.Dedupe()
}

// Items returns deep copies of the line items in list order.
func (s *Store) Items() []LineItem {
	out := make([]LineItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	return out
}

// IDs returns the item ids in list order.
func (s *Store) IDs() []string {
	out := make([]string, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.ID)
	}
	return out
}

// CheckIndex verifies that every indexed id points at its own item.
func (s *Store) CheckIndex() bool {
	if len(s.index) != len(s.items) {
		return false
	}
	for id, pos := range s.index {
		if pos < 0 || pos >= len(s.items) || s.items[pos].ID != id {
			return false
		}
	}
	return true
}

// shiftIndexAfter decrements index entries for items at or beyond pos after a
// removal. Any inconsistency is reported so the caller can fall back to a
// full rebuild.
func (s *Store) shiftIndexAfter(pos int) error {
	for i := pos; i < len(s.items); i++ {
		id := s.items[i].ID
		old, ok := s.index[id]
		if !ok || old != i+1 {
			return &indexError{id: id, want: i + 1, got: old, present: ok}
		}
		s.index[id] = i
	}
	return nil
}

func (s *Store) rebuildIndex() {
	s.index = make(map[string]int, len(s.items))
	for i, item := range s.items {
		s.index[item.ID] = i
	}
}

type indexError struct {
	id      string
	want    int
	got     int
	present bool
}

func (e *indexError) Error() string {
	if !e.present {
		return "cart index missing entry for " + e.id
	}
	return "cart index entry out of place for " + e.id
}
