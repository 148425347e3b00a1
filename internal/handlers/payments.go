package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foodbuddy/api/internal/platform/auth"
	"github.com/foodbuddy/api/internal/platform/httpx"
	"github.com/foodbuddy/api/internal/services"
)

const maxPaymentBodySize = 16 * 1024

// Gateway intent creation is the expensive call; cap bursts per client.
const (
	defaultIntentRateLimit  = 10
	defaultIntentRateWindow = time.Minute
)

// PaymentHandlers exposes the gateway reconciliation endpoints.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	payments services.PaymentService
	limiter  rateLimiter
}

func NewPaymentHandlers(authn *auth.Authenticator, payments services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{
		authn:    authn,
		payments: payments,
		limiter:  newSimpleRateLimiter(defaultIntentRateLimit, defaultIntentRateWindow, time.Now),
	}
}

// Routes wires the /payments endpoints onto the provided router.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/intent", h.createIntent)
	r.Post("/confirm", h.confirmPayment)
	r.Post("/refund", h.refundPayment)
}

type createIntentRequest struct {
	OrderID string `json:"order_id"`
}

func (h *PaymentHandlers) createIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many payment attempts; slow down", http.StatusTooManyRequests))
		return
	}

	var req createIntentRequest
	if err := decodeJSONBody(r, maxPaymentBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	result, err := h.payments.CreateIntent(ctx, services.CreatePaymentIntentCommand{
		OrderID: req.OrderID,
		UserID:  identity.UID,
	})
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, paymentIntentResponse{
		IntentID:       result.IntentID,
		ClientSecret:   result.ClientSecret,
		Amount:         result.Amount,
		Currency:       result.Currency,
		AmountAdjusted: result.AmountAdjusted,
	})
}

type confirmPaymentRequest struct {
	OrderID  string `json:"order_id"`
	IntentID string `json:"intent_id"`
}

func (h *PaymentHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req confirmPaymentRequest
	if err := decodeJSONBody(r, maxPaymentBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.payments.ConfirmPayment(ctx, services.ConfirmPaymentCommand{
		OrderID:  req.OrderID,
		IntentID: req.IntentID,
		ActorID:  identity.UID,
	})
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type refundPaymentRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (h *PaymentHandlers) refundPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	// Refunds move money back out; admins only.
	if !identity.HasRole(auth.RoleAdmin) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "refunds require the admin role", http.StatusForbidden))
		return
	}

	var req refundPaymentRequest
	if err := decodeJSONBody(r, maxPaymentBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.payments.Refund(ctx, services.RefundPaymentCommand{
		OrderID: req.OrderID,
		ActorID: identity.UID,
		Reason:  req.Reason,
	})
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *PaymentHandlers) writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotSucceeded):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_succeeded", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotRefundable):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_refundable", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentAlreadyRefunded):
		httpx.WriteError(ctx, w, httpx.NewError("payment_already_refunded", "payment was already refunded", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentGateway):
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_error", "payment gateway rejected the request", http.StatusBadGateway))
	case errors.Is(err, services.ErrPaymentUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "payment operation failed", http.StatusInternalServerError))
	}
}

type paymentIntentResponse struct {
	IntentID       string `json:"intent_id"`
	ClientSecret   string `json:"client_secret"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	AmountAdjusted bool   `json:"amount_adjusted"`
}
