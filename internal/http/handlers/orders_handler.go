package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/skytrip/flight-bookings/internal/http/response"
	"github.com/skytrip/flight-bookings/internal/repo/postgres"
	"github.com/skytrip/flight-bookings/pkg/logger"
	"github.com/skytrip/flight-bookings/pkg/middleware"
)

type OrdersHandler struct {
	Orders postgres.OrderRepository
}

func NewOrdersHandler(orders postgres.OrderRepository) *OrdersHandler {
	return &OrdersHandler{Orders: orders}
}

func (h *OrdersHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/{id}", h.getByID)
	return r
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	limit := 20
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(w, "invalid offset")
			return
		}
		offset = n
	}

	orders, err := h.Orders.ListByUser(r.Context(), claims.Sub, limit, offset)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list orders", "error", err, "user_id", claims.Sub)
		response.InternalError(w, "error listing orders")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"data": orders})
}

func (h *OrdersHandler) getByID(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		response.Unauthorized(w, "authentication required")
		return
	}

	orderID := chi.URLParam(r, "id")
	order, err := h.Orders.GetByIDForUser(r.Context(), orderID, claims.Sub)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to fetch order", "error", err, "order_id", orderID)
		response.InternalError(w, "error fetching order")
		return
	}
	if order == nil {
		response.NotFound(w, "order not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"data": order})
}
