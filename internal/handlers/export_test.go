// internal/handlers/export_test.go
package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/mock/gomock"

	redis_a "github.com/merchkit/cartd/internal/adapters/redis_adapter"
	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/ports"
	"github.com/merchkit/cartd/internal/core/services"
	"github.com/merchkit/cartd/internal/handlers"
	"github.com/merchkit/cartd/test/helpers"
	"github.com/merchkit/cartd/test/mocks"
)

type exportHarness struct {
	mux   *http.ServeMux
	store *redis_a.CartStore
	cache ports.CacheRepository
	redis *miniredis.Miniredis
}

func newExportHarness(t *testing.T) *exportHarness {
	t.Helper()

	ctrl := gomock.NewController(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := redis_a.NewCartStore(client, time.Hour, helpers.TestLogger())
	cache := redis_a.NewCache(client, time.Hour, helpers.TestLogger())
	events := redis_a.NewEventPublisher(client, "cart.changed.test", helpers.TestLogger())

	catalog := mocks.NewMockProductCatalog(ctrl)
	catalog.EXPECT().WarmUp(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	catalog.EXPECT().Peek(gomock.Any()).Return(nil).AnyTimes()
	catalog.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	sessions := services.NewSessionManager(catalog, store, store, store, events, services.Options{
		PersistDebounce:       20 * time.Millisecond,
		InclusionDebounce:     15 * time.Millisecond,
		EnrichmentConcurrency: 2,
		EnrichAsync:           false,
	}, helpers.TestLogger())
	t.Cleanup(func() { _ = sessions.Shutdown(context.Background()) })

	h := handlers.NewExportHandler(sessions, cache, helpers.TestLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/carts/{id}/export/excel", h.ExportExcel)
	mux.HandleFunc("GET /api/v1/carts/{id}/export/json", h.ExportJSON)

	return &exportHarness{mux: mux, store: store, cache: cache, redis: mr}
}

// seedCart persists a two-line cart, one line excluded, so exports have
// both inclusion states to project.
func (h *exportHarness) seedCart(t *testing.T, cartID string) {
	t.Helper()
	ctx := context.Background()

	items := []domain.LineItem{
		{ID: "prod-001", DisplayName: "Keyboard", UnitPrice: decimal.NewFromFloat(89.99),
			Quantity: 2, Stock: 5, StockState: domain.StockKnown},
		{ID: "prod-002", DisplayName: "Mouse", UnitPrice: decimal.NewFromInt(30),
			Quantity: 1, StockState: domain.StockUnknown},
	}
	require.NoError(t, h.store.SaveCart(ctx, cartID, items))
	require.NoError(t, h.store.SaveInclusion(ctx, cartID, map[string]bool{"prod-002": false}))
}

func (h *exportHarness) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func TestExportHandler_ExportJSON(t *testing.T) {
	h := newExportHarness(t)
	h.seedCart(t, "cart-1")

	rec := h.get(t, "/api/v1/carts/cart-1/export/json")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var resp handlers.JSONExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)

	kb := resp.Items[0]
	assert.Equal(t, "prod-001", kb.ItemID)
	assert.Equal(t, "Keyboard", kb.Name)
	assert.Equal(t, 2, kb.Quantity)
	assert.True(t, kb.Included)
	assert.Equal(t, "179.98", kb.LineTotal.StringFixed(2))
	assert.Equal(t, "5", kb.Stock)

	mouse := resp.Items[1]
	assert.False(t, mouse.Included)
	assert.True(t, mouse.LineTotal.IsZero(), "excluded lines carry no total")
	assert.Equal(t, "unknown", mouse.Stock)

	assert.Equal(t, "cart-1", resp.Metadata.CartID)
	assert.Equal(t, 2, resp.Metadata.TotalItems)
	assert.Equal(t, "179.98", resp.Metadata.TotalSum.StringFixed(2))
	assert.WithinDuration(t, time.Now(), resp.Metadata.ExportDate, time.Minute)
}

func TestExportHandler_ExportJSON_ServedFromCacheOnRepeat(t *testing.T) {
	h := newExportHarness(t)
	h.seedCart(t, "cart-1")

	first := h.get(t, "/api/v1/carts/cart-1/export/json")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "MISS", first.Header().Get("X-Cache"))

	// The cache write happens on a background goroutine after responding.
	cacheKey := redis_a.BuildKey(redis_a.PrefixSnapshot, "export", "cart-1")
	helpers.AssertEventuallyWithTimeout(t, func() bool {
		return h.redis.Exists(cacheKey)
	}, 2*time.Second, "export snapshot was never cached")

	second := h.get(t, "/api/v1/carts/cart-1/export/json")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestExportHandler_ExportJSON_EmptyCart(t *testing.T) {
	h := newExportHarness(t)

	rec := h.get(t, "/api/v1/carts/cart-empty/export/json")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handlers.JSONExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Items)
	assert.Equal(t, 0, resp.Metadata.TotalQuantity)
}

func TestExportHandler_ExportExcel(t *testing.T) {
	h := newExportHarness(t)
	h.seedCart(t, "cart-1")

	rec := h.get(t, "/api/v1/carts/cart-1/export/excel")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cart_cart-1_")
	assert.Equal(t, fmt.Sprintf("%d", rec.Body.Len()), rec.Header().Get("Content-Length"))

	file, err := xlsx.OpenBinary(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	sheet := file.Sheets[0]
	assert.Equal(t, "Cart", sheet.Name)
	// Header, two data rows, totals row.
	require.Equal(t, 4, sheet.MaxRow)

	header, err := sheet.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "Item ID", header.GetCell(0).Value)
	assert.Equal(t, "Line Total", header.GetCell(5).Value)

	kb, err := sheet.Row(1)
	require.NoError(t, err)
	assert.Equal(t, "prod-001", kb.GetCell(0).Value)
	assert.Equal(t, "89.99", kb.GetCell(2).Value)
	assert.Equal(t, "true", kb.GetCell(4).Value)
	assert.Equal(t, "179.98", kb.GetCell(5).Value)

	mouse, err := sheet.Row(2)
	require.NoError(t, err)
	assert.Equal(t, "false", mouse.GetCell(4).Value)
	assert.Equal(t, "0.00", mouse.GetCell(5).Value)
	assert.Equal(t, "unknown", mouse.GetCell(6).Value)

	totals, err := sheet.Row(3)
	require.NoError(t, err)
	assert.Equal(t, "TOTAL", totals.GetCell(0).Value)
	assert.Equal(t, "179.98", totals.GetCell(5).Value)
}
