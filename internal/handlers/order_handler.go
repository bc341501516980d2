package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/services"
)

type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) List(e *core.RequestEvent) error {
	orders, err := h.orders.ListMine(e.Request.Context(), actor(e))
	if err != nil {
		return fail(e, err, "")
	}
	return respond(e, http.StatusOK, orders, "")
}

func (h *OrderHandler) Place(e *core.RequestEvent) error {
	var in services.PlaceOrderInput
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	order, err := h.orders.PlaceOrder(e.Request.Context(), actor(e), in)
	if err != nil {
		return fail(e, err, in.EventID)
	}
	return respond(e, http.StatusCreated, order, "Order placed successfully")
}

func (h *OrderHandler) Get(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	order, err := h.orders.Get(e.Request.Context(), actor(e), id)
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, order, "")
}

func (h *OrderHandler) Cancel(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	order, err := h.orders.Cancel(e.Request.Context(), actor(e), id)
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, order, "Order cancelled successfully")
}
