// internal/core/services/session_test.go
package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/services"
	"github.com/merchkit/cartd/test/helpers"
	"github.com/merchkit/cartd/test/mocks"
)

type sessionDeps struct {
	catalog *mocks.MockProductCatalog
	storage *mocks.MockCartStorage
	incl    *mocks.MockInclusionStorage
	events  *mocks.MockEventPublisher
}

func newTestSessionManager(t *testing.T) (*services.SessionManager, *sessionDeps) {
	t.Helper()

	ctrl := gomock.NewController(t)
	d := &sessionDeps{
		catalog: mocks.NewMockProductCatalog(ctrl),
		storage: mocks.NewMockCartStorage(ctrl),
		incl:    mocks.NewMockInclusionStorage(ctrl),
		events:  mocks.NewMockEventPublisher(ctrl),
	}

	d.storage.EXPECT().SaveCart(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	d.incl.EXPECT().LoadInclusion(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	d.incl.EXPECT().SaveInclusion(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	d.events.EXPECT().PublishCartChanged(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	d.catalog.EXPECT().WarmUp(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	opts := services.Options{
		PersistDebounce:       20 * time.Millisecond,
		InclusionDebounce:     15 * time.Millisecond,
		EnrichmentConcurrency: 2,
	}
	m := services.NewSessionManager(d.catalog, d.storage, d.incl, nil, d.events, opts, helpers.TestLogger())

	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m, d
}

func TestSessionManager_Get(t *testing.T) {
	m, d := newTestSessionManager(t)
	stored := []domain.LineItem{
		{ID: "prod-001", UnitPrice: decimal.NewFromInt(10), Quantity: 1, Stock: 5, StockState: domain.StockKnown},
	}
	d.storage.EXPECT().LoadCart(gomock.Any(), "cart-a").Return(stored, nil).Times(1)

	first, err := m.Get(context.Background(), "cart-a")
	require.NoError(t, err)
	require.NotNil(t, first.Snapshot())
	assert.Equal(t, "cart-a", first.CartID())

	// The second touch reuses the loaded session; storage is not hit again.
	second, err := m.Get(context.Background(), "cart-a")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestSessionManager_Get_TrimsAndRejectsBlankID(t *testing.T) {
	m, d := newTestSessionManager(t)
	d.storage.EXPECT().LoadCart(gomock.Any(), "cart-a").Return(nil, nil).Times(1)

	_, err := m.Get(context.Background(), "   ")
	require.Error(t, err)

	p, err := m.Get(context.Background(), "  cart-a  ")
	require.NoError(t, err)
	assert.Equal(t, "cart-a", p.CartID())
}

func TestSessionManager_Get_LoadFailureEvictsSession(t *testing.T) {
	m, d := newTestSessionManager(t)

	gomock.InOrder(
		d.storage.EXPECT().LoadCart(gomock.Any(), "cart-a").Return(nil, assertableErr("redis gone")),
		d.storage.EXPECT().LoadCart(gomock.Any(), "cart-a").Return(nil, nil),
	)

	_, err := m.Get(context.Background(), "cart-a")
	require.Error(t, err)

	// The failed session was evicted, so the retry loads fresh.
	_, err = m.Get(context.Background(), "cart-a")
	require.NoError(t, err)
}

func TestSessionManager_Destroy(t *testing.T) {
	m, d := newTestSessionManager(t)
	d.storage.EXPECT().LoadCart(gomock.Any(), "cart-a").Return(nil, nil).Times(2)

	_, err := m.Get(context.Background(), "cart-a")
	require.NoError(t, err)

	require.NoError(t, m.Destroy(context.Background(), "cart-a"))

	// Destroyed means gone; the next Get loads from storage again.
	_, err = m.Get(context.Background(), "cart-a")
	require.NoError(t, err)
}

func TestSessionManager_Destroy_UnknownIDIsNoop(t *testing.T) {
	m, _ := newTestSessionManager(t)
	require.NoError(t, m.Destroy(context.Background(), "never-opened"))
}

func TestSessionManager_Delete_RemovesDurableState(t *testing.T) {
	m, d := newTestSessionManager(t)
	d.storage.EXPECT().LoadCart(gomock.Any(), "cart-a").Return(nil, nil)
	d.storage.EXPECT().DeleteCart(gomock.Any(), "cart-a").Return(nil)

	_, err := m.Get(context.Background(), "cart-a")
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), "cart-a"))
}

func TestSessionManager_Delete_WorksWithoutOpenSession(t *testing.T) {
	m, d := newTestSessionManager(t)
	d.storage.EXPECT().DeleteCart(gomock.Any(), "cart-b").Return(nil)

	require.NoError(t, m.Delete(context.Background(), "cart-b"))
}

func TestSessionManager_Shutdown_FlushesEverySession(t *testing.T) {
	m, d := newTestSessionManager(t)
	d.storage.EXPECT().LoadCart(gomock.Any(), gomock.Any()).Return(nil, nil).Times(3)

	for _, id := range []string{"cart-a", "cart-b", "cart-c"} {
		_, err := m.Get(context.Background(), id)
		require.NoError(t, err)
	}

	require.NoError(t, m.Shutdown(context.Background()))

	// All sessions dropped; a new Get loads fresh.
	d.storage.EXPECT().LoadCart(gomock.Any(), "cart-a").Return(nil, nil)
	_, err := m.Get(context.Background(), "cart-a")
	require.NoError(t, err)
}
