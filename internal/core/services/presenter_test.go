// internal/core/services/presenter_test.go
package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/services"
	"github.com/merchkit/cartd/internal/render"
	"github.com/merchkit/cartd/test/helpers"
	"github.com/merchkit/cartd/test/mocks"
)

const testCartID = "cart-test-1"

type presenterDeps struct {
	catalog *mocks.MockProductCatalog
	storage *mocks.MockCartStorage
	incl    *mocks.MockInclusionStorage
	fav     *mocks.MockFavorites
	events  *mocks.MockEventPublisher
}

// newTestPresenter wires a presenter over mocks with the write-back paths
// stubbed permissively; tests assert on snapshots, not storage traffic,
// unless they install their own expectations first.
func newTestPresenter(t *testing.T, stored []domain.LineItem) (*services.Presenter, *presenterDeps) {
	t.Helper()

	ctrl := gomock.NewController(t)
	d := &presenterDeps{
		catalog: mocks.NewMockProductCatalog(ctrl),
		storage: mocks.NewMockCartStorage(ctrl),
		incl:    mocks.NewMockInclusionStorage(ctrl),
		fav:     mocks.NewMockFavorites(ctrl),
		events:  mocks.NewMockEventPublisher(ctrl),
	}

	d.storage.EXPECT().LoadCart(gomock.Any(), testCartID).Return(stored, nil).AnyTimes()
	d.storage.EXPECT().SaveCart(gomock.Any(), testCartID, gomock.Any()).Return(nil).AnyTimes()
	d.incl.EXPECT().LoadInclusion(gomock.Any(), testCartID).Return(nil, nil).AnyTimes()
	d.incl.EXPECT().SaveInclusion(gomock.Any(), testCartID, gomock.Any()).Return(nil).AnyTimes()
	d.events.EXPECT().PublishCartChanged(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	d.catalog.EXPECT().WarmUp(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	opts := services.Options{
		PersistDebounce:       20 * time.Millisecond,
		InclusionDebounce:     15 * time.Millisecond,
		EnrichmentConcurrency: 2,
		EnrichAsync:           false,
	}
	p := services.NewPresenter(testCartID, d.catalog, d.storage, d.incl, d.fav, d.events, opts, helpers.TestLogger())

	t.Cleanup(func() {
		_ = p.Destroy(context.Background())
	})
	return p, d
}

func knownProduct(id string, price float64, stock int) *domain.Product {
	return &domain.Product{
		ID:          id,
		DisplayName: "Product " + id,
		Price:       decimal.NewFromFloat(price),
		Stock:       stock,
	}
}

func TestPresenter_Load_DedupesAndRenders(t *testing.T) {
	stored := []domain.LineItem{
		{ID: "prod-001", DisplayName: "Keyboard", UnitPrice: decimal.NewFromInt(80), Quantity: 1, Stock: 5, StockState: domain.StockKnown},
		{ID: " prod-001 ", DisplayName: "Keyboard", UnitPrice: decimal.NewFromInt(80), Quantity: 2, Stock: 5, StockState: domain.StockKnown},
		{ID: "prod-002", DisplayName: "Mouse", UnitPrice: decimal.NewFromInt(30), Quantity: 1, Stock: 3, StockState: domain.StockKnown},
	}
	p, _ := newTestPresenter(t, stored)

	require.NoError(t, p.Load(context.Background()))

	snap := p.Snapshot()
	require.NotNil(t, snap)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, 3, snap.Items[0].Quantity, "duplicate rows merge their quantities")
	assert.Equal(t, "load", snap.Reason)
	assert.Equal(t, 4, snap.TotalQuantity)
	assert.Equal(t, "270", snap.TotalSum.String())

	tree := p.Tree()
	require.NotNil(t, tree)
	assert.Len(t, tree.Children, 2)
	assert.Equal(t, "prod-001", tree.Children[0].Attr(render.AttrItemID))
}

func TestPresenter_Dispatch_AddValidated(t *testing.T) {
	p, d := newTestPresenter(t, nil)
	require.NoError(t, p.Load(context.Background()))

	d.catalog.EXPECT().Peek("prod-001").Return(knownProduct("prod-001", 80, 5))

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionAdd, ID: "prod-001", Qty: 2})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, domain.AddOK, res.Signal)
	require.Len(t, res.Snapshot.Items, 1)
	assert.Equal(t, 2, res.Snapshot.Items[0].Quantity)
	assert.Equal(t, domain.StockKnown, res.Snapshot.Items[0].StockState)
	assert.Equal(t, "160", res.Snapshot.TotalSum.String())
	assert.Equal(t, "add", res.Snapshot.Reason)
	assert.Equal(t, "prod-001", res.Snapshot.TargetID)
	assert.Equal(t, []string{"prod-001"}, res.Snapshot.ChangedIDs)
}

func TestPresenter_Dispatch_AddPartial(t *testing.T) {
	p, d := newTestPresenter(t, nil)
	require.NoError(t, p.Load(context.Background()))

	d.catalog.EXPECT().Peek("prod-001").Return(knownProduct("prod-001", 10, 3))

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionAdd, ID: "prod-001", Qty: 9})
	require.NoError(t, err)

	assert.Equal(t, domain.AddPartial, res.Signal)
	assert.Equal(t, 3, res.Available)
	require.Len(t, res.Snapshot.Items, 1)
	assert.Equal(t, 3, res.Snapshot.Items[0].Quantity)
}

func TestPresenter_Dispatch_AddOutOfStock(t *testing.T) {
	p, d := newTestPresenter(t, nil)
	require.NoError(t, p.Load(context.Background()))
	before := p.Snapshot()

	d.catalog.EXPECT().Peek("prod-001").Return(knownProduct("prod-001", 10, 0))

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionAdd, ID: "prod-001", Qty: 1})
	require.NoError(t, err)

	assert.Equal(t, domain.AddOutOfStock, res.Signal)
	assert.Equal(t, 0, res.Available)
	assert.Same(t, before, res.Snapshot, "a rejected add produces no new pass")
	assert.Empty(t, res.Snapshot.Items)
}

func TestPresenter_Dispatch_OptimisticAddThenEnrichmentClamp(t *testing.T) {
	p, d := newTestPresenter(t, nil)
	require.NoError(t, p.Load(context.Background()))

	// Nothing resolved locally; the add goes through optimistically and the
	// synchronous enrichment pass learns price and a smaller stock.
	d.catalog.EXPECT().Peek("prod-001").Return(nil)
	d.catalog.EXPECT().FindByID(gomock.Any(), "prod-001").Return(knownProduct("prod-001", 25, 3), nil)

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionAdd, ID: "prod-001", Qty: 8})
	require.NoError(t, err)

	assert.Equal(t, domain.AddOK, res.Signal, "optimistic adds never signal stock problems")
	require.Len(t, res.Snapshot.Items, 1)
	item := res.Snapshot.Items[0]
	assert.Equal(t, 3, item.Quantity, "enrichment clamps to learned stock")
	assert.Equal(t, domain.StockKnown, item.StockState)
	assert.Equal(t, "75", res.Snapshot.TotalSum.String())
	assert.Equal(t, "enrichment", res.Snapshot.Reason)
}

func TestPresenter_Dispatch_EnrichmentFailureKeepsOptimisticValues(t *testing.T) {
	p, d := newTestPresenter(t, nil)
	require.NoError(t, p.Load(context.Background()))

	d.catalog.EXPECT().Peek("prod-001").Return(nil)
	d.catalog.EXPECT().FindByID(gomock.Any(), "prod-001").Return(nil, assertableErr("catalog down"))

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionAdd, ID: "prod-001", Qty: 2})
	require.NoError(t, err, "catalog failures never fail the dispatch")

	require.Len(t, res.Snapshot.Items, 1)
	assert.Equal(t, domain.StockUnknown, res.Snapshot.Items[0].StockState)
	assert.Equal(t, 2, res.Snapshot.Items[0].Quantity)
}

func TestPresenter_Dispatch_QtyDecRemovesAtZero(t *testing.T) {
	p, d := newTestPresenter(t, nil)
	require.NoError(t, p.Load(context.Background()))

	d.catalog.EXPECT().Peek("prod-001").Return(knownProduct("prod-001", 10, 5))
	_, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionAdd, ID: "prod-001", Qty: 1})
	require.NoError(t, err)

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionQtyDec, ID: "prod-001"})
	require.NoError(t, err)

	assert.Empty(t, res.Snapshot.Items, "minus below one removes the item")
	assert.Zero(t, res.Snapshot.TotalQuantity)
}

func TestPresenter_Dispatch_QtyDecWorksAtStockCeiling(t *testing.T) {
	p, d := newTestPresenter(t, nil)
	require.NoError(t, p.Load(context.Background()))

	d.catalog.EXPECT().Peek("prod-001").Return(knownProduct("prod-001", 10, 2))
	_, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionAdd, ID: "prod-001", Qty: 2})
	require.NoError(t, err)

	// Plus is gated at the ceiling, minus is not.
	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionQtyDec, ID: "prod-001"})
	require.NoError(t, err)

	require.Len(t, res.Snapshot.Items, 1)
	assert.Equal(t, 1, res.Snapshot.Items[0].Quantity)
}

func TestPresenter_Dispatch_QtyIncIsStockGated(t *testing.T) {
	p, d := newTestPresenter(t, nil)
	require.NoError(t, p.Load(context.Background()))

	d.catalog.EXPECT().Peek("prod-001").Return(knownProduct("prod-001", 10, 2))
	_, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionAdd, ID: "prod-001", Qty: 2})
	require.NoError(t, err)

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionQtyInc, ID: "prod-001"})
	require.NoError(t, err)

	require.Len(t, res.Snapshot.Items, 1)
	assert.Equal(t, 2, res.Snapshot.Items[0].Quantity, "plus clamps at known stock")
}

func TestPresenter_Dispatch_ConcurrentDispatchesCoalesce(t *testing.T) {
	p, d := newTestPresenter(t, nil)
	require.NoError(t, p.Load(context.Background()))

	d.catalog.EXPECT().Peek(gomock.Any()).DoAndReturn(func(id string) *domain.Product {
		return knownProduct(id, 10, 50)
	}).AnyTimes()

	ids := []string{"prod-001", "prod-002", "prod-003", "prod-004"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionAdd, ID: id, Qty: 2})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	// Whatever interleaving happened, the final state is the union of all
	// four mutations.
	snap := p.Snapshot()
	require.NotNil(t, snap)
	require.Len(t, snap.Items, 4)
	assert.Equal(t, 8, snap.TotalQuantity)
	assert.Len(t, p.Tree().Children, 4)
}

func TestPresenter_Dispatch_IncludeSet(t *testing.T) {
	stored := []domain.LineItem{
		{ID: "prod-001", UnitPrice: decimal.NewFromInt(10), Quantity: 1, Stock: 5, StockState: domain.StockKnown},
		{ID: "prod-002", UnitPrice: decimal.NewFromInt(20), Quantity: 1, Stock: 5, StockState: domain.StockKnown},
	}
	p, _ := newTestPresenter(t, stored)
	require.NoError(t, p.Load(context.Background()))
	require.Equal(t, services.MasterFull, p.MasterState(context.Background()))

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionIncludeSet, ID: "prod-002", Included: false})
	require.NoError(t, err)

	assert.Equal(t, "10", res.Snapshot.TotalSum.String(), "excluded items leave the total")
	assert.Equal(t, 1, res.Snapshot.TotalQuantity)
	assert.Len(t, res.Snapshot.Items, 2, "exclusion never removes the row")
	assert.False(t, res.Snapshot.Inclusion["prod-002"])
	assert.Equal(t, services.MasterMixed, p.MasterState(context.Background()))
}

func TestPresenter_Dispatch_IncludeAll(t *testing.T) {
	stored := []domain.LineItem{
		{ID: "prod-001", UnitPrice: decimal.NewFromInt(10), Quantity: 1, Stock: 5, StockState: domain.StockKnown},
		{ID: "prod-002", UnitPrice: decimal.NewFromInt(20), Quantity: 2, Stock: 5, StockState: domain.StockKnown},
	}
	p, _ := newTestPresenter(t, stored)
	require.NoError(t, p.Load(context.Background()))

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionIncludeAll, Included: false})
	require.NoError(t, err)
	assert.Equal(t, "0", res.Snapshot.TotalSum.String())
	assert.Equal(t, services.MasterNone, p.MasterState(context.Background()))

	res, err = p.Dispatch(context.Background(), services.Action{Type: services.ActionIncludeAll, Included: true})
	require.NoError(t, err)
	assert.Equal(t, "50", res.Snapshot.TotalSum.String())
	assert.Equal(t, services.MasterFull, p.MasterState(context.Background()))
}

func TestPresenter_Dispatch_FavToggleLeavesDomainUntouched(t *testing.T) {
	stored := []domain.LineItem{
		{ID: "prod-001", UnitPrice: decimal.NewFromInt(10), Quantity: 2, Stock: 5, StockState: domain.StockKnown},
	}
	p, d := newTestPresenter(t, stored)
	require.NoError(t, p.Load(context.Background()))

	d.fav.EXPECT().Toggle(gomock.Any(), testCartID, "prod-001").Return(true, nil)

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionFavToggle, ID: "prod-001"})
	require.NoError(t, err)

	require.Len(t, res.Snapshot.Items, 1)
	assert.Equal(t, 2, res.Snapshot.Items[0].Quantity)
	assert.Equal(t, "20", res.Snapshot.TotalSum.String())
	assert.Equal(t, []string{"prod-001"}, res.Snapshot.ChangedIDs, "the row still re-renders")
}

func TestPresenter_Dispatch_FavToggleErrorIsSwallowed(t *testing.T) {
	stored := []domain.LineItem{
		{ID: "prod-001", UnitPrice: decimal.NewFromInt(10), Quantity: 1, Stock: 5, StockState: domain.StockKnown},
	}
	p, d := newTestPresenter(t, stored)
	require.NoError(t, p.Load(context.Background()))

	d.fav.EXPECT().Toggle(gomock.Any(), testCartID, "prod-001").Return(false, assertableErr("favorites down"))

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionFavToggle, ID: "prod-001"})
	require.NoError(t, err)
	require.NotNil(t, res.Snapshot)
}

func TestPresenter_Dispatch_InvalidActions(t *testing.T) {
	p, _ := newTestPresenter(t, nil)
	require.NoError(t, p.Load(context.Background()))

	tests := []struct {
		name   string
		action services.Action
	}{
		{name: "unknown_type", action: services.Action{Type: "EXPLODE", ID: "x"}},
		{name: "missing_id", action: services.Action{Type: services.ActionAdd}},
		{name: "blank_id", action: services.Action{Type: services.ActionRemove, ID: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Dispatch(context.Background(), tt.action)
			require.NoError(t, err)
			assert.Nil(t, res, "malformed actions have no side effects")
		})
	}
}

func TestPresenter_Dispatch_RemoveUnknownIDIsNoop(t *testing.T) {
	p, _ := newTestPresenter(t, nil)
	require.NoError(t, p.Load(context.Background()))
	before := p.Snapshot()

	res, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionRemove, ID: "ghost"})
	require.NoError(t, err)
	assert.Same(t, before, res.Snapshot)
}

func TestPresenter_Destroy_FlushesPendingWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockProductCatalog(ctrl)
	storage := mocks.NewMockCartStorage(ctrl)
	incl := mocks.NewMockInclusionStorage(ctrl)
	events := mocks.NewMockEventPublisher(ctrl)

	storage.EXPECT().LoadCart(gomock.Any(), testCartID).Return(nil, nil)
	incl.EXPECT().LoadInclusion(gomock.Any(), testCartID).Return(nil, nil).AnyTimes()
	incl.EXPECT().SaveInclusion(gomock.Any(), testCartID, gomock.Any()).Return(nil).AnyTimes()
	events.EXPECT().PublishCartChanged(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	catalog.EXPECT().WarmUp(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	catalog.EXPECT().Peek("prod-001").Return(knownProduct("prod-001", 10, 5))

	var saved [][]domain.LineItem
	storage.EXPECT().SaveCart(gomock.Any(), testCartID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, items []domain.LineItem) error {
			saved = append(saved, items)
			return nil
		}).AnyTimes()

	// Debounce far beyond the test runtime so only Destroy can write.
	opts := services.Options{
		PersistDebounce:       time.Minute,
		InclusionDebounce:     time.Minute,
		EnrichmentConcurrency: 1,
	}
	p := services.NewPresenter(testCartID, catalog, storage, incl, nil, events, opts, helpers.TestLogger())
	require.NoError(t, p.Load(context.Background()))

	_, err := p.Dispatch(context.Background(), services.Action{Type: services.ActionAdd, ID: "prod-001", Qty: 2})
	require.NoError(t, err)
	require.Empty(t, saved, "nothing may be written before the debounce elapses")

	require.NoError(t, p.Destroy(context.Background()))

	require.NotEmpty(t, saved, "destroy must flush the pending write")
	last := saved[len(saved)-1]
	require.Len(t, last, 1)
	assert.Equal(t, "prod-001", last[0].ID)
	assert.Equal(t, 2, last[0].Quantity)
}

// assertableErr builds a plain error without pulling in another package.
type assertableErr string

func (e assertableErr) Error() string { return string(e) }
