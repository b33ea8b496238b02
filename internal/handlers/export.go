// internal/handlers/export.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	redis_a "github.com/merchkit/cartd/internal/adapters/redis_adapter"
	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/ports"
	"github.com/merchkit/cartd/internal/core/services"
)

// exportColumns is the fixed column order for cart exports.
var exportColumns = []string{
	"Item ID", "Name", "Unit Price", "Quantity", "Included", "Line Total", "Stock",
}

// CartExportRow represents one exported cart line.
type CartExportRow struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Included  bool            `json:"included"`
	LineTotal decimal.Decimal `json:"line_total"`
	Stock     string          `json:"stock"`
}

// JSONExportResponse represents the JSON export response structure
type JSONExportResponse struct {
	Items    []CartExportRow `json:"items"`
	Metadata ExportMetadata  `json:"metadata"`
}

// ExportMetadata contains metadata about the export
type ExportMetadata struct {
	ExportDate    time.Time       `json:"export_date"`
	CartID        string          `json:"cart_id"`
	TotalItems    int             `json:"total_items"`
	TotalQuantity int             `json:"total_quantity"`
	TotalSum      decimal.Decimal `json:"total_sum"`
}

// ExportHandler handles cart export operations
type ExportHandler struct {
	sessions *services.SessionManager
	cache    ports.CacheRepository
	logger   *slog.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(sessions *services.SessionManager, cache ports.CacheRepository, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		sessions: sessions,
		cache:    cache,
		logger:   logger.With(slog.String("handler", "export")),
	}
}

// ExportExcel handles GET /api/v1/carts/{id}/export/excel
func (h *ExportHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cartID := strings.TrimSpace(r.PathValue("id"))
	if cartID == "" {
		h.respondError(w, http.StatusBadRequest, "Cart ID is required")
		return
	}

	rows, meta, err := h.cartRows(ctx, cartID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to collect cart data",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve cart")
		return
	}

	excelData, err := h.generateExcelFile(rows, meta)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate Excel file", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to generate Excel file")
		return
	}

	filename := fmt.Sprintf("cart_%s_%s.xlsx", cartID, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(excelData)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(excelData); err != nil {
		h.logger.ErrorContext(ctx, "failed to write Excel response", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "Excel export completed",
		slog.String("cart_id", cartID),
		slog.Int("rows", len(rows)))
}

// ExportJSON handles GET /api/v1/carts/{id}/export/json
func (h *ExportHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cartID := strings.TrimSpace(r.PathValue("id"))
	if cartID == "" {
		h.respondError(w, http.StatusBadRequest, "Cart ID is required")
		return
	}

	// Check cache first
	cacheKey := redis_a.BuildKey(redis_a.PrefixSnapshot, "export", cartID)
	var cachedData []byte
	if err := h.cache.Get(ctx, cacheKey, &cachedData); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("Content-Length", strconv.Itoa(len(cachedData)))

		if _, err := w.Write(cachedData); err != nil {
			h.logger.ErrorContext(ctx, "failed to write cached JSON response", slog.String("error", err.Error()))
		}
		return
	}

	rows, meta, err := h.cartRows(ctx, cartID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to collect cart data",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve cart")
		return
	}

	response := JSONExportResponse{
		Items:    rows,
		Metadata: meta,
	}

	responseData, err := json.Marshal(response)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal JSON response", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to generate JSON")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("Content-Length", strconv.Itoa(len(responseData)))

	if _, err := w.Write(responseData); err != nil {
		h.logger.ErrorContext(ctx, "failed to write JSON response", slog.String("error", err.Error()))
		return
	}

	// Cache the result briefly (async)
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := h.cache.SetWithTTL(cacheCtx, cacheKey, responseData, time.Minute); err != nil {
			h.logger.WarnContext(cacheCtx, "failed to cache JSON export", slog.String("error", err.Error()))
		}
	}()

	h.logger.InfoContext(ctx, "JSON export completed",
		slog.String("cart_id", cartID),
		slog.Int("rows", len(rows)))
}

// cartRows projects the current snapshot into export rows.
func (h *ExportHandler) cartRows(ctx context.Context, cartID string) ([]CartExportRow, ExportMetadata, error) {
	presenter, err := h.sessions.Get(ctx, cartID)
	if err != nil {
		return nil, ExportMetadata{}, err
	}

	snap := presenter.Snapshot()
	if snap == nil {
		return nil, ExportMetadata{}, fmt.Errorf("cart %s has no snapshot yet", cartID)
	}

	rows := make([]CartExportRow, 0, len(snap.Items))
	for _, item := range snap.Items {
		included, ok := snap.Inclusion[item.ID]
		if !ok {
			included = true
		}

		lineTotal := decimal.Zero
		if included {
			lineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}

		stock := "unknown"
		if item.StockState == domain.StockKnown {
			stock = strconv.Itoa(item.Stock)
		}

		rows = append(rows, CartExportRow{
			ItemID:    item.ID,
			Name:      item.DisplayName,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Included:  included,
			LineTotal: lineTotal,
			Stock:     stock,
		})
	}

	meta := ExportMetadata{
		ExportDate:    time.Now(),
		CartID:        cartID,
		TotalItems:    len(rows),
		TotalQuantity: snap.TotalQuantity,
		TotalSum:      snap.TotalSum,
	}

	return rows, meta, nil
}

func (h *ExportHandler) generateExcelFile(rows []CartExportRow, meta ExportMetadata) ([]byte, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet("Cart")
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, header := range exportColumns {
		cell := headerRow.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	for _, row := range rows {
		dataRow := sheet.AddRow()
		for _, value := range []string{
			row.ItemID,
			row.Name,
			row.UnitPrice.StringFixed(2),
			strconv.Itoa(row.Quantity),
			strconv.FormatBool(row.Included),
			row.LineTotal.StringFixed(2),
			row.Stock,
		} {
			cell := dataRow.AddCell()
			cell.Value = value
		}
	}

	// Totals row
	totalsRow := sheet.AddRow()
	for i, value := range []string{
		"TOTAL", "", "", strconv.Itoa(meta.TotalQuantity), "", meta.TotalSum.StringFixed(2), "",
	} {
		cell := totalsRow.AddCell()
		cell.Value = value
		if i == 0 {
			cell.GetStyle().Font.Bold = true
		}
	}

	// xlsx columns are 1-based.
	for i := 1; i <= len(exportColumns); i++ {
		sheet.SetColWidth(i, i, 15)
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write Excel file to buffer: %w", err)
	}

	return buffer.Bytes(), nil
}

func (h *ExportHandler) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
