// internal/handlers/cart.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/merchkit/cartd/internal/core/domain"
	"github.com/merchkit/cartd/internal/core/services"
	"github.com/merchkit/cartd/internal/render"
)

// CartHandler handles cart session HTTP requests
type CartHandler struct {
	sessions *services.SessionManager
	logger   *slog.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(sessions *services.SessionManager, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		logger:   logger.With(slog.String("handler", "cart")),
	}
}

// DispatchRequest is the request body for POST /api/v1/carts/{id}/actions
type DispatchRequest struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Qty      int    `json:"qty,omitempty"`
	Included *bool  `json:"included,omitempty"`
}

// CartResponse wraps a snapshot with the derived master checkbox state.
type CartResponse struct {
	Snapshot    *domain.Snapshot     `json:"snapshot"`
	MasterState services.MasterState `json:"master_state"`
}

// DispatchResponse is the response body for dispatched actions.
type DispatchResponse struct {
	Snapshot    *domain.Snapshot     `json:"snapshot"`
	Signal      domain.AddStatus     `json:"signal,omitempty"`
	Available   int                  `json:"available,omitempty"`
	MasterState services.MasterState `json:"master_state"`
}

// GetCart handles GET /api/v1/carts/{id}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	presenter, err := h.sessions.Get(ctx, cartID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open cart session",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to load cart")
		return
	}

	h.respondJSON(w, http.StatusOK, CartResponse{
		Snapshot:    presenter.Snapshot(),
		MasterState: presenter.MasterState(ctx),
	})
}

// GetCartHTML handles GET /api/v1/carts/{id}/html
func (h *CartHandler) GetCartHTML(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	presenter, err := h.sessions.Get(ctx, cartID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open cart session",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to load cart")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(render.HTML(presenter.Tree())))
}

// DispatchAction handles POST /api/v1/carts/{id}/actions
func (h *CartHandler) DispatchAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	action := services.Action{
		Type: services.ActionType(strings.ToUpper(strings.TrimSpace(req.Type))),
		ID:   req.ID,
		Qty:  req.Qty,
	}
	if req.Included != nil {
		action.Included = *req.Included
	}

	if !action.Valid() {
		h.respondError(w, http.StatusBadRequest, "Unknown or malformed action")
		return
	}

	presenter, err := h.sessions.Get(ctx, cartID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open cart session",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to load cart")
		return
	}

	result, err := presenter.Dispatch(ctx, action)
	if err != nil {
		h.logger.ErrorContext(ctx, "dispatch failed",
			slog.String("cart_id", cartID),
			slog.String("action", string(action.Type)),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to apply action")
		return
	}

	resp := DispatchResponse{MasterState: presenter.MasterState(ctx)}
	if result != nil {
		resp.Snapshot = result.Snapshot
		resp.Signal = result.Signal
		resp.Available = result.Available
	} else {
		resp.Snapshot = presenter.Snapshot()
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// DeleteCart handles DELETE /api/v1/carts/{id}
func (h *CartHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Delete(ctx, cartID); err != nil {
		h.logger.ErrorContext(ctx, "failed to destroy cart session",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to delete cart")
		return
	}

	h.logger.InfoContext(ctx, "cart deleted", slog.String("cart_id", cartID))

	h.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Cart deleted",
		"cart_id": cartID,
	})
}

func (h *CartHandler) cartID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "Cart ID is required")
		return "", false
	}
	return id, true
}

func (h *CartHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *CartHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
