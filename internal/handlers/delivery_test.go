package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/foodbuddy/api/internal/domain"
	"github.com/foodbuddy/api/internal/platform/auth"
	"github.com/foodbuddy/api/internal/services"
)

func newDeliveryRouter(svc services.DeliveryService) http.Handler {
	handler := NewDeliveryHandlers(nil, svc)
	router := chi.NewRouter()
	router.Route("/delivery", handler.Routes)
	return router
}

func riderIdentity() *auth.Identity {
	return userIdentity("rider-1", auth.RoleDelivery)
}

func TestDeliveryHandlersListAvailable(t *testing.T) {
	svc := &stubDeliveryService{availableFunc: func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Order], error) {
		if pager.PageSize != 20 {
			t.Fatalf("expected default page size 20, got %d", pager.PageSize)
		}
		return domain.CursorPage[services.Order]{Items: []services.Order{sampleOrder()}, NextPageToken: "tok-1"}, nil
	}}
	router := newDeliveryRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/delivery/orders/available", "", riderIdentity()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp orderListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Orders) != 1 || resp.NextPageToken != "tok-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestDeliveryHandlersTasksUseCallerID(t *testing.T) {
	var captured string
	svc := &stubDeliveryService{tasksFunc: func(ctx context.Context, partnerID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
		captured = partnerID
		return domain.CursorPage[services.Order]{Items: []services.Order{}}, nil
	}}
	router := newDeliveryRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/delivery/orders/tasks", "", riderIdentity()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured != "rider-1" {
		t.Fatalf("expected partner rider-1, got %q", captured)
	}
}

func TestDeliveryHandlersStatsParsesDate(t *testing.T) {
	var captured time.Time
	svc := &stubDeliveryService{statsFunc: func(ctx context.Context, partnerID string, day time.Time) (services.DeliveryStats, error) {
		captured = day
		return services.DeliveryStats{Date: "2024-05-20", DeliveredOrders: 2, Earnings: 8000}, nil
	}}
	router := newDeliveryRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/delivery/stats?date=2024-05-20", "", riderIdentity()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	want := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	if !captured.Equal(want) {
		t.Fatalf("expected day %v, got %v", want, captured)
	}
	var resp deliveryStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Stats.DeliveredOrders != 2 || resp.Stats.Earnings != 8000 {
		t.Fatalf("unexpected stats %+v", resp.Stats)
	}
}

func TestDeliveryHandlersStatsRejectsBadDate(t *testing.T) {
	router := newDeliveryRouter(&stubDeliveryService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/delivery/stats?date=20-05-2024", "", riderIdentity()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeliveryHandlersAcceptForwardsPartner(t *testing.T) {
	var captured services.DeliveryActionCommand
	svc := &stubDeliveryService{acceptFunc: func(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error) {
		captured = cmd
		return sampleOrder(), nil
	}}
	router := newDeliveryRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/delivery/orders/ord-1/accept", "", riderIdentity()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.OrderID != "ord-1" || captured.PartnerID != "rider-1" {
		t.Fatalf("unexpected command %+v", captured)
	}
}

func TestDeliveryHandlersClaimConflictIs409(t *testing.T) {
	svc := &stubDeliveryService{acceptFunc: func(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error) {
		return services.Order{}, services.ErrDeliveryConflict
	}}
	router := newDeliveryRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/delivery/orders/ord-1/accept", "", riderIdentity()))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestDeliveryHandlersErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid state", services.ErrDeliveryInvalidState, http.StatusConflict},
		{"not found", services.ErrDeliveryNotFound, http.StatusNotFound},
		{"invalid input", services.ErrDeliveryInvalidInput, http.StatusBadRequest},
		{"unavailable", services.ErrDeliveryUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubDeliveryService{pickupFunc: func(ctx context.Context, cmd services.DeliveryActionCommand) (services.Order, error) {
				return services.Order{}, tc.err
			}}
			router := newDeliveryRouter(svc)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authedRequest(http.MethodPost, "/delivery/orders/ord-1/pickup", "", riderIdentity()))

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}
