// internal/core/domain/store_internal_test.go
package domain

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(slog.New(slog.DiscardHandler))
	s.Add("prod-001", 1, nil)
	s.Add("prod-002", 2, nil)
	s.Add("prod-003", 3, nil)
	return s
}

func TestStore_Get_RecoversFromCorruptIndex(t *testing.T) {
	s := seededStore(t)

	// Point an entry at the wrong slot, as a missed shift after removal would.
	s.index["prod-003"] = 0

	item := s.Get("prod-003")
	require.NotNil(t, item, "lookup falls back to a full rebuild")
	assert.Equal(t, 3, item.Quantity)
	assert.True(t, s.CheckIndex(), "rebuild leaves the whole index consistent")
}

func TestStore_Get_RecoversFromOutOfRangeIndex(t *testing.T) {
	s := seededStore(t)

	s.index["prod-002"] = 99

	item := s.Get("prod-002")
	require.NotNil(t, item)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, s.CheckIndex())
}

func TestStore_Remove_RecoversFromCorruptIndex(t *testing.T) {
	s := seededStore(t)

	s.index["prod-002"] = 2
	s.index["prod-003"] = 1

	assert.True(t, s.Remove("prod-002"))
	assert.Nil(t, s.Get("prod-002"))
	assert.Equal(t, []string{"prod-001", "prod-003"}, s.IDs())
	assert.True(t, s.CheckIndex())
}

func TestStore_Get_RebuildStillMissesDroppedEntry(t *testing.T) {
	s := seededStore(t)

	// An id that maps into the index but is not in the list at all.
	s.items = s.items[:2]
	s.index["prod-003"] = 2

	assert.Nil(t, s.Get("prod-003"), "rebuild drops entries with no backing item")
	assert.True(t, s.CheckIndex())
}
