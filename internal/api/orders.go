package api

import (
	"net/http"

	"github.com/AUTO-HOST/auto-host-backend/internal/market"
	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

// OrdersHandler handles order and sales endpoints.
type OrdersHandler struct {
	Orders *market.Orders
	Sales  *market.Sales
}

type placeOrderRequest struct {
	Items      []model.OrderItem `json:"items"`
	OrderTotal float64           `json:"orderTotal"`
}

// Place handles POST /api/orders.
func (h *OrdersHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.Orders.PlaceOrder(r.Context(), identity(r), req.Items, req.OrderTotal)
	if err != nil {
		writeError(w, r, err, "failed to place order")
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]string{
		"message": "Pedido realizado con éxito",
		"orderId": id,
	})
}

// List handles GET /api/orders.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListForBuyer(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err, "failed to list orders")
		return
	}
	jsonResponse(w, http.StatusOK, orders)
}

// Get handles GET /api/orders/{orderId}.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.GetOrder(r.Context(), r.PathValue("orderId"), identity(r))
	if err != nil {
		writeError(w, r, err, "failed to get order")
		return
	}
	jsonResponse(w, http.StatusOK, order)
}

// ListSales handles GET /api/sales.
func (h *OrdersHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Sales.ForSeller(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, err, "failed to list sales")
		return
	}
	jsonResponse(w, http.StatusOK, sales)
}
