package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/foodbuddy/api/internal/domain"
	"github.com/foodbuddy/api/internal/platform/auth"
	"github.com/foodbuddy/api/internal/platform/httpx"
	"github.com/foodbuddy/api/internal/services"
)

// DeliveryHandlers exposes the delivery partner workflows: claiming orders,
// advancing them through pickup and drop-off, and per-day earnings.
type DeliveryHandlers struct {
	authn    *auth.Authenticator
	delivery services.DeliveryService
}

func NewDeliveryHandlers(authn *auth.Authenticator, delivery services.DeliveryService) *DeliveryHandlers {
	return &DeliveryHandlers{authn: authn, delivery: delivery}
}

// Routes wires the /delivery endpoints onto the provided router.
func (h *DeliveryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleDelivery, auth.RoleAdmin))
	}
	r.Get("/orders/available", h.listAvailable)
	r.Get("/orders/tasks", h.listTasks)
	r.Get("/orders/history", h.listHistory)
	r.Get("/stats", h.stats)
	r.Post("/orders/{orderID}/accept", h.acceptOrder)
	r.Post("/orders/{orderID}/pickup", h.pickupOrder)
	r.Post("/orders/{orderID}/deliver", h.deliverOrder)
}

func (h *DeliveryHandlers) listAvailable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	pager, err := pagerFromRequest(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	page, err := h.delivery.ListAvailable(ctx, pager)
	if err != nil {
		h.writeDeliveryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListPayload(page))
}

func (h *DeliveryHandlers) listTasks(w http.ResponseWriter, r *http.Request) {
	h.listForPartner(w, r, func(ctx context.Context, partnerID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
		return h.delivery.ListTasks(ctx, partnerID, pager)
	})
}

func (h *DeliveryHandlers) listHistory(w http.ResponseWriter, r *http.Request) {
	h.listForPartner(w, r, func(ctx context.Context, partnerID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
		return h.delivery.ListHistory(ctx, partnerID, pager)
	})
}

func (h *DeliveryHandlers) listForPartner(w http.ResponseWriter, r *http.Request, list func(context.Context, string, services.Pagination) (domain.CursorPage[services.Order], error)) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	pager, err := pagerFromRequest(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	page, err := list(ctx, identity.UID, pager)
	if err != nil {
		h.writeDeliveryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListPayload(page))
}

func (h *DeliveryHandlers) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	day := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must be formatted YYYY-MM-DD", http.StatusBadRequest))
			return
		}
		day = parsed
	}

	stats, err := h.delivery.Stats(ctx, identity.UID, day)
	if err != nil {
		h.writeDeliveryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, deliveryStatsResponse{Stats: deliveryStatsPayload{
		Date:            stats.Date,
		DeliveredOrders: stats.DeliveredOrders,
		Earnings:        stats.Earnings,
	}})
}

func (h *DeliveryHandlers) acceptOrder(w http.ResponseWriter, r *http.Request) {
	h.actOnOrder(w, r, func(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error) {
		return h.delivery.Accept(ctx, cmd)
	})
}

func (h *DeliveryHandlers) pickupOrder(w http.ResponseWriter, r *http.Request) {
	h.actOnOrder(w, r, func(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error) {
		return h.delivery.Pickup(ctx, cmd)
	})
}

func (h *DeliveryHandlers) deliverOrder(w http.ResponseWriter, r *http.Request) {
	h.actOnOrder(w, r, func(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error) {
		return h.delivery.Deliver(ctx, cmd)
	})
}

func (h *DeliveryHandlers) actOnOrder(w http.ResponseWriter, r *http.Request, action func(context.Context, services.DeliveryActionCommand) (services.Order, error)) {
	ctx := r.Context()
	if h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	order, err := action(ctx, services.DeliveryActionCommand{
		OrderID:   chi.URLParam(r, "orderID"),
		PartnerID: identity.UID,
	})
	if err != nil {
		h.writeDeliveryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *DeliveryHandlers) writeDeliveryError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrDeliveryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDeliveryInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_delivery_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrDeliveryConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_already_claimed", "order was claimed by another partner", http.StatusConflict))
	case errors.Is(err, services.ErrDeliveryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrDeliveryUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("delivery_error", "delivery operation failed", http.StatusInternalServerError))
	}
}

type deliveryStatsResponse struct {
	Stats deliveryStatsPayload `json:"stats"`
}

type deliveryStatsPayload struct {
	Date            string `json:"date"`
	DeliveredOrders int    `json:"delivered_orders"`
	Earnings        int64  `json:"earnings"`
}
