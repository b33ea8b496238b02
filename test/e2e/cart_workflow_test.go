//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	redis_a "github.com/merchkit/cartd/internal/adapters/redis_adapter"
	"github.com/merchkit/cartd/internal/adapters/catalog"
	"github.com/merchkit/cartd/internal/adapters/db"
	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/services"
	"github.com/merchkit/cartd/internal/handlers"
	"github.com/merchkit/cartd/test/helpers"
)

// CartE2ESuite drives the full stack over HTTP: a real Postgres catalog,
// a miniredis-backed cart store and cache, and the production handlers.
type CartE2ESuite struct {
	suite.Suite
	server    *httptest.Server
	client    *http.Client
	baseURL   string
	testDB    *helpers.TestDB
	testRedis *helpers.TestRedis
	sessions  *services.SessionManager
}

func (s *CartE2ESuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.testRedis = helpers.SetupTestRedis(s.T())

	helpers.SeedTestProducts(s.T(), s.testDB.PgxPool, helpers.CreateTestProducts(5))

	s.server = s.startTestServer()
	s.client = &http.Client{Timeout: 10 * time.Second}
	s.baseURL = s.server.URL + "/api/v1"
}

func (s *CartE2ESuite) TearDownSuite() {
	s.server.Close()
	if s.sessions != nil {
		_ = s.sessions.Shutdown(context.Background())
	}
}

func (s *CartE2ESuite) startTestServer() *httptest.Server {
	logger := helpers.TestLogger()

	repo := db.NewProductRepository(s.testDB.Database, logger)
	cache := redis_a.NewCache(s.testRedis.Client, time.Hour, logger)
	cartStore := redis_a.NewCartStore(s.testRedis.Client, time.Hour, logger)
	events := redis_a.NewEventPublisher(s.testRedis.Client, "cart.changed.e2e", logger)
	cat := catalog.New(repo, cache, catalog.Options{}, logger)

	s.sessions = services.NewSessionManager(cat, cartStore, cartStore, cartStore, events, services.Options{
		PersistDebounce:       20 * time.Millisecond,
		InclusionDebounce:     15 * time.Millisecond,
		EnrichmentConcurrency: 4,
		EnrichAsync:           false,
	}, logger)

	cartHandler := handlers.NewCartHandler(s.sessions, logger)
	exportHandler := handlers.NewExportHandler(s.sessions, cache, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/carts/{id}", cartHandler.GetCart)
	mux.HandleFunc("GET /api/v1/carts/{id}/html", cartHandler.GetCartHTML)
	mux.HandleFunc("POST /api/v1/carts/{id}/actions", cartHandler.DispatchAction)
	mux.HandleFunc("DELETE /api/v1/carts/{id}", cartHandler.DeleteCart)
	mux.HandleFunc("GET /api/v1/carts/{id}/export/excel", exportHandler.ExportExcel)
	mux.HandleFunc("GET /api/v1/carts/{id}/export/json", exportHandler.ExportJSON)

	return httptest.NewServer(mux)
}

func (s *CartE2ESuite) TestCompleteCartWorkflow() {
	const cartID = "e2e-cart"

	// 1. A fresh cart starts empty.
	var cart handlers.CartResponse
	resp := s.makeRequest("GET", "/carts/"+cartID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &cart)
	s.Empty(cart.Snapshot.Items)
	s.Equal(services.MasterNone, cart.MasterState)

	// 2. Add a product. The catalog resolves it from Postgres before the
	// response, so stock and price are already authoritative.
	var dispatch handlers.DispatchResponse
	resp = s.makeRequest("POST", "/carts/"+cartID+"/actions",
		handlers.DispatchRequest{Type: "add", ID: "prod-001", Qty: 2})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &dispatch)
	s.Require().Len(dispatch.Snapshot.Items, 1)
	s.Equal(2, dispatch.Snapshot.Items[0].Quantity)
	s.Equal(domain.StockKnown, dispatch.Snapshot.Items[0].StockState)
	s.Equal(5, dispatch.Snapshot.Items[0].Stock)
	s.Equal("20", dispatch.Snapshot.TotalSum.String())

	// 3. An over-ask is clamped to the learned stock level.
	resp = s.makeRequest("POST", "/carts/"+cartID+"/actions",
		handlers.DispatchRequest{Type: "add", ID: "prod-002", Qty: 50})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &dispatch)
	s.Require().Len(dispatch.Snapshot.Items, 2)
	s.Equal(6, dispatch.Snapshot.Items[1].Quantity)
	s.Equal("110", dispatch.Snapshot.TotalSum.String())
	s.Equal(services.MasterFull, dispatch.MasterState)

	// 4. Excluding a line drops it from the totals but not the cart.
	excluded := false
	resp = s.makeRequest("POST", "/carts/"+cartID+"/actions",
		handlers.DispatchRequest{Type: "include_set", ID: "prod-002", Included: &excluded})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &dispatch)
	s.Len(dispatch.Snapshot.Items, 2)
	s.Equal("20", dispatch.Snapshot.TotalSum.String())
	s.Equal(services.MasterMixed, dispatch.MasterState)

	// 5. The HTML projection renders both rows.
	resp = s.makeRequest("GET", "/carts/"+cartID+"/html", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	s.NoError(err)
	s.Contains(string(body), `data-cart-item-id="prod-001"`)
	s.Contains(string(body), `data-cart-item-id="prod-002"`)

	// 6. The JSON export reflects the inclusion split.
	var export handlers.JSONExportResponse
	resp = s.makeRequest("GET", "/carts/"+cartID+"/export/json", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &export)
	s.Require().Len(export.Items, 2)
	s.True(export.Items[0].Included)
	s.False(export.Items[1].Included)
	s.True(export.Items[1].LineTotal.IsZero())
	s.Equal("20", export.Metadata.TotalSum.String())

	// 7. The debounced writer lands the cart in Redis.
	s.Eventually(func() bool {
		return s.testRedis.Server.Exists(fmt.Sprintf("cart:%s:items", cartID))
	}, 2*time.Second, 10*time.Millisecond)

	// 8. Deleting the cart removes session and durable state.
	resp = s.makeRequest("DELETE", "/carts/"+cartID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	s.False(s.testRedis.Server.Exists(fmt.Sprintf("cart:%s:items", cartID)))

	resp = s.makeRequest("GET", "/carts/"+cartID, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &cart)
	s.Empty(cart.Snapshot.Items)
}

func (s *CartE2ESuite) TestExcelExport() {
	const cartID = "e2e-excel"

	resp := s.makeRequest("POST", "/carts/"+cartID+"/actions",
		handlers.DispatchRequest{Type: "add", ID: "prod-003", Qty: 1})
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.makeRequest("GET", "/carts/"+cartID+"/export/excel", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"))
	s.Contains(resp.Header.Get("Content-Disposition"), "cart_"+cartID)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	s.NoError(err)
	s.NotEmpty(body)
}

func (s *CartE2ESuite) TestUnknownProductIsRejectedLater() {
	const cartID = "e2e-ghost"

	// The optimistic pass accepts the unknown id; enrichment cannot
	// resolve it, so the row stays pending rather than failing the action.
	var dispatch handlers.DispatchResponse
	resp := s.makeRequest("POST", "/carts/"+cartID+"/actions",
		handlers.DispatchRequest{Type: "add", ID: "prod-404", Qty: 1})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &dispatch)
	s.Require().Len(dispatch.Snapshot.Items, 1)
	s.Equal(domain.StockUnknown, dispatch.Snapshot.Items[0].StockState)
}

func (s *CartE2ESuite) makeRequest(method, path string, body any) *http.Response {
	s.T().Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *CartE2ESuite) decodeResponse(resp *http.Response, target any) {
	s.T().Helper()
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(target))
}

func TestCartE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	suite.Run(t, new(CartE2ESuite))
}
