package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foodbuddy/api/internal/platform/auth"
	"github.com/foodbuddy/api/internal/services"
)

func newPaymentRouter(svc services.PaymentService) http.Handler {
	handler := NewPaymentHandlers(nil, svc)
	router := chi.NewRouter()
	router.Route("/payments", handler.Routes)
	return router
}

func TestPaymentHandlersCreateIntent(t *testing.T) {
	var captured services.CreatePaymentIntentCommand
	svc := &stubPaymentService{intentFunc: func(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error) {
		captured = cmd
		return services.PaymentIntentResult{
			IntentID:       "pi_1",
			ClientSecret:   "secret_1",
			Amount:         5000,
			Currency:       "inr",
			AmountAdjusted: true,
		}, nil
	}}
	router := newPaymentRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/payments/intent", `{"order_id":"ord-1"}`, userIdentity("user-1")))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.OrderID != "ord-1" || captured.UserID != "user-1" {
		t.Fatalf("unexpected command %+v", captured)
	}
	var resp paymentIntentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IntentID != "pi_1" || !resp.AmountAdjusted || resp.Amount != 5000 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestPaymentHandlersCreateIntentRateLimited(t *testing.T) {
	handler := NewPaymentHandlers(nil, &stubPaymentService{})
	handler.limiter = newSimpleRateLimiter(2, defaultIntentRateWindow, func() time.Time { return handlerTestTime })
	router := chi.NewRouter()
	router.Route("/payments", handler.Routes)

	var last int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodPost, "/payments/intent", `{"order_id":"ord-1"}`, userIdentity("user-1")))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected third request limited with 429, got %d", last)
	}
}

func TestPaymentHandlersConfirmForwardsIntent(t *testing.T) {
	var captured services.ConfirmPaymentCommand
	svc := &stubPaymentService{confirmFunc: func(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.Order, error) {
		captured = cmd
		return sampleOrder(), nil
	}}
	router := newPaymentRouter(svc)

	rec := httptest.NewRecorder()
	body := `{"order_id":"ord-1","intent_id":"pi_1"}`
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/payments/confirm", body, userIdentity("user-1")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.OrderID != "ord-1" || captured.IntentID != "pi_1" || captured.ActorID != "user-1" {
		t.Fatalf("unexpected command %+v", captured)
	}
}

func TestPaymentHandlersRefundRequiresAdmin(t *testing.T) {
	called := false
	svc := &stubPaymentService{refundFunc: func(ctx context.Context, cmd services.RefundPaymentCommand) (services.Order, error) {
		called = true
		return sampleOrder(), nil
	}}
	router := newPaymentRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/payments/refund", `{"order_id":"ord-1"}`, userIdentity("user-1")))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
	if called {
		t.Fatal("refund must not reach the service for non-admins")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/payments/refund", `{"order_id":"ord-1","reason":"customer complaint"}`, userIdentity("admin-1", auth.RoleAdmin)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
	if !called {
		t.Fatal("expected refund to reach the service")
	}
}

func TestPaymentHandlersErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not succeeded", services.ErrPaymentNotSucceeded, http.StatusBadRequest},
		{"not refundable", services.ErrPaymentNotRefundable, http.StatusBadRequest},
		{"already refunded", services.ErrPaymentAlreadyRefunded, http.StatusBadRequest},
		{"not found", services.ErrPaymentNotFound, http.StatusNotFound},
		{"gateway", services.ErrPaymentGateway, http.StatusBadGateway},
		{"unavailable", services.ErrPaymentUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubPaymentService{confirmFunc: func(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.Order, error) {
				return services.Order{}, tc.err
			}}
			router := newPaymentRouter(svc)

			rec := httptest.NewRecorder()
			body := `{"order_id":"ord-1","intent_id":"pi_1"}`
			router.ServeHTTP(rec, authedRequest(http.MethodPost, "/payments/confirm", body, userIdentity("user-1")))

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}
