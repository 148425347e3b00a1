package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/foodbuddy/api/internal/domain"
	"github.com/foodbuddy/api/internal/platform/auth"
	"github.com/foodbuddy/api/internal/platform/httpx"
	"github.com/foodbuddy/api/internal/services"
)

const maxOrderBodySize = 64 * 1024

// OrderHandlers exposes order placement and lifecycle endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs handlers enforcing bearer authentication before
// invoking the order service.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{authn: authn, orders: orders}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}/status", h.transitionStatus)
	r.Post("/{orderID}/cancel", h.cancelOrder)
	r.Post("/{orderID}/review", h.attachReview)
}

// AdminRoutes wires the admin order overrides. Mounted under /admin.
func (h *OrderHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleAdmin))
	}
	r.Put("/orders/{orderID}/status", h.forceStatus)
}

type addressRequest struct {
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	Phone        string `json:"phone"`
	Instructions string `json:"instructions"`
}

func (a *addressRequest) toDomain() *services.Address {
	if a == nil {
		return nil
	}
	return &services.Address{
		Street:       a.Street,
		City:         a.City,
		State:        a.State,
		ZipCode:      a.ZipCode,
		Phone:        a.Phone,
		Instructions: a.Instructions,
	}
}

type orderLineRequest struct {
	MenuItemID     string   `json:"menu_item_id"`
	Quantity       int      `json:"quantity"`
	UnitPrice      int64    `json:"unit_price"`
	Name           string   `json:"name"`
	Image          string   `json:"image"`
	Customizations []string `json:"customizations"`
}

type createOrderRequest struct {
	FromCart            bool               `json:"from_cart"`
	Items               []orderLineRequest `json:"items"`
	DeliveryAddress     *addressRequest    `json:"delivery_address"`
	Address             string             `json:"address"`
	RestaurantID        string             `json:"restaurant_id"`
	PaymentMethod       string             `json:"payment_method"`
	SpecialInstructions string             `json:"special_instructions"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	var (
		order services.Order
		err   error
	)
	if req.FromCart || len(req.Items) == 0 {
		order, err = h.orders.CreateFromCart(ctx, services.CheckoutCartCommand{
			UserID:              identity.UID,
			DeliveryAddress:     req.DeliveryAddress.toDomain(),
			RawAddress:          req.Address,
			PaymentMethod:       services.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
			SpecialInstructions: req.SpecialInstructions,
		})
	} else {
		lines := make([]services.CreateOrderLine, 0, len(req.Items))
		for _, line := range req.Items {
			lines = append(lines, services.CreateOrderLine{
				MenuItemID:     line.MenuItemID,
				Quantity:       line.Quantity,
				UnitPrice:      line.UnitPrice,
				Name:           line.Name,
				Image:          line.Image,
				Customizations: line.Customizations,
			})
		}
		order, err = h.orders.Create(ctx, services.CreateOrderCommand{
			UserID:              identity.UID,
			RestaurantID:        req.RestaurantID,
			Items:               lines,
			DeliveryAddress:     req.DeliveryAddress.toDomain(),
			RawAddress:          req.Address,
			PaymentMethod:       services.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
			SpecialInstructions: req.SpecialInstructions,
		})
	}
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
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

	filter := services.OrderListFilter{Pagination: pager}
	if identity.HasRole(auth.RoleAdmin) {
		filter.UserID = strings.TrimSpace(r.URL.Query().Get("user_id"))
	} else {
		// Everyone else sees only their own orders.
		filter.UserID = identity.UID
	}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		filter.Status = []services.OrderStatus{services.OrderStatus(status)}
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListPayload(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	if !canViewOrder(identity, order) {
		// Hidden orders read as missing; existence is never leaked.
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type transitionStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *OrderHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req transitionStatusRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID:      chi.URLParam(r, "orderID"),
		TargetStatus: services.OrderStatus(strings.TrimSpace(req.Status)),
		ActorID:      identity.UID,
		ActorRole:    primaryRole(identity),
		Reason:       req.Reason,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) forceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req transitionStatusRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.orders.ForceStatus(ctx, services.ForceOrderStatusCommand{
		OrderID:      chi.URLParam(r, "orderID"),
		TargetStatus: services.OrderStatus(strings.TrimSpace(req.Status)),
		ActorID:      identity.UID,
		Reason:       req.Reason,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		UserID:  identity.UID,
		Reason:  req.Reason,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type attachReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *OrderHandlers) attachReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req attachReviewRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.orders.AttachReview(ctx, services.AttachReviewCommand{
		OrderID: chi.URLParam(r, "orderID"),
		UserID:  identity.UID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "basket is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderItemUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("item_unavailable", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderAlreadyReviewed):
		httpx.WriteError(ctx, w, httpx.NewError("already_reviewed", "order already carries a review", http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order operation failed", http.StatusInternalServerError))
	}
}

func canViewOrder(identity *auth.Identity, order services.Order) bool {
	if identity.HasRole(auth.RoleAdmin) {
		return true
	}
	uid := strings.TrimSpace(identity.UID)
	if order.UserID == uid || order.RestaurantID == uid {
		return true
	}
	if order.DeliveryPartnerID != nil && *order.DeliveryPartnerID == uid {
		return true
	}
	return false
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderPayload struct {
	ID                    string              `json:"id"`
	UserID                string              `json:"user_id"`
	RestaurantID          string              `json:"restaurant_id"`
	Items                 []orderItemPayload  `json:"items"`
	Totals                totalsPayload       `json:"totals"`
	Status                string              `json:"status"`
	Payment               orderPaymentPayload `json:"payment"`
	DeliveryAddress       addressPayload      `json:"delivery_address"`
	DeliveryPartnerID     string              `json:"delivery_partner_id,omitempty"`
	EstimatedDeliveryTime string              `json:"estimated_delivery_time,omitempty"`
	ActualDeliveryTime    string              `json:"actual_delivery_time,omitempty"`
	SpecialInstructions   string              `json:"special_instructions,omitempty"`
	Review                *orderReviewPayload `json:"review,omitempty"`
	CancelReason          string              `json:"cancel_reason,omitempty"`
	CreatedAt             string              `json:"created_at,omitempty"`
	UpdatedAt             string              `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	MenuItemID     string   `json:"menu_item_id"`
	Name           string   `json:"name"`
	UnitPrice      int64    `json:"unit_price"`
	Image          string   `json:"image,omitempty"`
	Quantity       int      `json:"quantity"`
	Customizations []string `json:"customizations,omitempty"`
}

type orderPaymentPayload struct {
	Method   string `json:"method"`
	Status   string `json:"status"`
	IntentID string `json:"intent_id,omitempty"`
	RefundID string `json:"refund_id,omitempty"`
}

type addressPayload struct {
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	Phone        string `json:"phone,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type orderReviewPayload struct {
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:           order.ID,
		UserID:       order.UserID,
		RestaurantID: order.RestaurantID,
		Items:        buildOrderItems(order.Items),
		Totals: totalsPayload{
			Subtotal:    order.Totals.Subtotal,
			Tax:         order.Totals.Tax,
			DeliveryFee: order.Totals.DeliveryFee,
			Total:       order.Totals.Total,
		},
		Status: string(order.Status),
		Payment: orderPaymentPayload{
			Method: string(order.Payment.Method),
			Status: string(order.Payment.Status),
		},
		DeliveryAddress: addressPayload{
			Street:       order.DeliveryAddress.Street,
			City:         order.DeliveryAddress.City,
			State:        order.DeliveryAddress.State,
			ZipCode:      order.DeliveryAddress.ZipCode,
			Phone:        order.DeliveryAddress.Phone,
			Instructions: order.DeliveryAddress.Instructions,
		},
		SpecialInstructions:   order.SpecialInstructions,
		EstimatedDeliveryTime: formatTime(order.EstimatedDeliveryTime),
		CreatedAt:             formatTime(order.CreatedAt),
		UpdatedAt:             formatTime(order.UpdatedAt),
	}
	if order.Payment.IntentID != nil {
		payload.Payment.IntentID = *order.Payment.IntentID
	}
	if order.Payment.RefundID != nil {
		payload.Payment.RefundID = *order.Payment.RefundID
	}
	if order.DeliveryPartnerID != nil {
		payload.DeliveryPartnerID = *order.DeliveryPartnerID
	}
	if order.ActualDeliveryTime != nil {
		payload.ActualDeliveryTime = formatTime(*order.ActualDeliveryTime)
	}
	if order.CancelReason != nil {
		payload.CancelReason = *order.CancelReason
	}
	if order.Review != nil {
		payload.Review = &orderReviewPayload{
			Rating:    order.Review.Rating,
			Comment:   order.Review.Comment,
			CreatedAt: formatTime(order.Review.CreatedAt),
		}
	}
	return payload
}

func buildOrderItems(items []services.OrderItem) []orderItemPayload {
	if len(items) == 0 {
		return []orderItemPayload{}
	}
	payload := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, orderItemPayload{
			MenuItemID:     item.MenuItemID,
			Name:           item.Name,
			UnitPrice:      item.UnitPrice,
			Image:          item.Image,
			Quantity:       item.Quantity,
			Customizations: item.Customizations,
		})
	}
	return payload
}

func buildOrderListPayload(page domain.CursorPage[services.Order]) orderListResponse {
	orders := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		orders = append(orders, buildOrderPayload(order))
	}
	return orderListResponse{
		Orders:        orders,
		NextPageToken: page.NextPageToken,
	}
}
