// internal/core/services/inclusion_test.go
package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/merchkit/cartd/internal/core/services"
	"github.com/merchkit/cartd/test/helpers"
	"github.com/merchkit/cartd/test/mocks"
)

type inclusionRecorder struct {
	mu    sync.Mutex
	saves []map[string]bool
}

func (r *inclusionRecorder) record(m map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, m)
}

func (r *inclusionRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *inclusionRecorder) last() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saves) == 0 {
		return nil
	}
	return r.saves[len(r.saves)-1]
}

func newTrackerWithRecorder(t *testing.T, debounce time.Duration, persisted map[string]bool) (*services.InclusionTracker, *inclusionRecorder) {
	t.Helper()

	ctrl := gomock.NewController(t)
	storage := mocks.NewMockInclusionStorage(ctrl)
	rec := &inclusionRecorder{}

	storage.EXPECT().LoadInclusion(gomock.Any(), "cart-1").Return(persisted, nil).AnyTimes()
	storage.EXPECT().SaveInclusion(gomock.Any(), "cart-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, m map[string]bool) error {
			rec.record(m)
			return nil
		}).AnyTimes()

	tracker := services.NewInclusionTracker("cart-1", storage, debounce, helpers.TestLogger())
	t.Cleanup(func() { tracker.Flush(context.Background()) })
	return tracker, rec
}

func TestInclusionTracker_DefaultsToIncluded(t *testing.T) {
	tracker, _ := newTrackerWithRecorder(t, time.Minute, nil)

	assert.True(t, tracker.IsIncluded(context.Background(), "never-seen"))
}

func TestInclusionTracker_LoadsPersistedState(t *testing.T) {
	tracker, _ := newTrackerWithRecorder(t, time.Minute, map[string]bool{"prod-001": false})

	assert.False(t, tracker.IsIncluded(context.Background(), "prod-001"))
	assert.True(t, tracker.IsIncluded(context.Background(), "prod-002"))
}

func TestInclusionTracker_LoadFailureStartsEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := mocks.NewMockInclusionStorage(ctrl)
	storage.EXPECT().LoadInclusion(gomock.Any(), "cart-1").Return(nil, assertableErr("redis gone"))

	tracker := services.NewInclusionTracker("cart-1", storage, time.Minute, helpers.TestLogger())
	assert.True(t, tracker.IsIncluded(context.Background(), "prod-001"),
		"a failed load degrades to the default, not an error")
}

func TestInclusionTracker_DebounceCollapsesToggles(t *testing.T) {
	tracker, rec := newTrackerWithRecorder(t, 20*time.Millisecond, nil)
	ctx := context.Background()

	// Rapid clicking flips the flag back and forth.
	tracker.SetIncluded(ctx, "prod-001", false, false)
	tracker.SetIncluded(ctx, "prod-001", true, false)
	tracker.SetIncluded(ctx, "prod-001", false, false)

	require.Zero(t, rec.count(), "nothing persists before the debounce elapses")

	helpers.AssertEventuallyWithTimeout(t, func() bool {
		return rec.count() >= 1
	}, time.Second, "debounced inclusion write never fired")

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "the burst collapses into one write")
	assert.False(t, rec.last()["prod-001"], "the final toggle state wins")
}

func TestInclusionTracker_ImmediateWriteSkipsDebounce(t *testing.T) {
	tracker, rec := newTrackerWithRecorder(t, time.Minute, nil)

	tracker.SetIncluded(context.Background(), "prod-001", false, true)

	assert.Equal(t, 1, rec.count())
	assert.False(t, rec.last()["prod-001"])
}

func TestInclusionTracker_SetAllPersistsImmediately(t *testing.T) {
	tracker, rec := newTrackerWithRecorder(t, time.Minute, nil)
	ids := []string{"prod-001", "prod-002", "prod-003"}

	tracker.SetAllIncluded(context.Background(), ids, false)

	require.Equal(t, 1, rec.count())
	for _, id := range ids {
		assert.False(t, rec.last()[id])
		assert.False(t, tracker.IsIncluded(context.Background(), id))
	}
}

func TestInclusionTracker_MasterState(t *testing.T) {
	tests := []struct {
		name     string
		excluded []string
		ids      []string
		want     services.MasterState
	}{
		{name: "empty_cart", ids: nil, want: services.MasterNone},
		{name: "all_included", ids: []string{"a", "b"}, want: services.MasterFull},
		{name: "all_excluded", ids: []string{"a", "b"}, excluded: []string{"a", "b"}, want: services.MasterNone},
		{name: "mixed", ids: []string{"a", "b", "c"}, excluded: []string{"b"}, want: services.MasterMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, _ := newTrackerWithRecorder(t, time.Minute, nil)
			for _, id := range tt.excluded {
				tracker.SetIncluded(context.Background(), id, false, true)
			}
			assert.Equal(t, tt.want, tracker.MasterState(context.Background(), tt.ids))
		})
	}
}

func TestInclusionTracker_EntriesSurviveItemRemoval(t *testing.T) {
	tracker, _ := newTrackerWithRecorder(t, time.Minute, nil)
	ctx := context.Background()

	tracker.SetIncluded(ctx, "prod-001", false, true)

	// The item leaves the cart and comes back later; the stored preference
	// still applies because nothing pruned it.
	assert.False(t, tracker.IsIncluded(ctx, "prod-001"))

	m := tracker.Map(ctx)
	assert.Contains(t, m, "prod-001")
}

func TestInclusionTracker_Prune(t *testing.T) {
	tracker, rec := newTrackerWithRecorder(t, time.Minute, nil)
	ctx := context.Background()

	tracker.SetIncluded(ctx, "prod-001", false, true)
	tracker.SetIncluded(ctx, "prod-002", false, true)

	tracker.Prune(ctx, []string{"prod-002"})

	assert.True(t, tracker.IsIncluded(ctx, "prod-001"), "pruned ids fall back to the default")
	assert.False(t, tracker.IsIncluded(ctx, "prod-002"))
	assert.NotContains(t, rec.last(), "prod-001")
}

func TestInclusionTracker_MapReturnsCopy(t *testing.T) {
	tracker, _ := newTrackerWithRecorder(t, time.Minute, nil)
	ctx := context.Background()

	tracker.SetIncluded(ctx, "prod-001", false, true)

	m := tracker.Map(ctx)
	m["prod-001"] = true

	assert.False(t, tracker.IsIncluded(ctx, "prod-001"), "snapshot maps never leak tracker state")
}
