package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/FikFikk/luminastore/internal/backend"
)

type orderAPI interface {
	Orders(ctx context.Context, token string) ([]backend.Order, error)
	Order(ctx context.Context, token, id string) (*backend.Order, error)
	CancelOrder(ctx context.Context, token, id string) error
}

type OrdersHandler struct {
	orders orderAPI
}

func NewOrdersHandler(orders orderAPI) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.Orders(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id is required")
		return
	}

	order, err := h.orders.Order(r.Context(), tokenFrom(r.Context()), id)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id is required")
		return
	}

	if err := h.orders.CancelOrder(r.Context(), tokenFrom(r.Context()), id); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
