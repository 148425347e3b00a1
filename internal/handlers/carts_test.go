package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/foodbuddy/api/internal/services"
)

func newCartRouter(svc services.CartService) http.Handler {
	handler := NewCartHandlers(nil, svc)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)
	return router
}

func TestCartHandlersGetCartReturnsItems(t *testing.T) {
	svc := &stubCartService{getFunc: func(ctx context.Context, userID string) (services.Cart, error) {
		if userID != "user-1" {
			t.Fatalf("unexpected user id %q", userID)
		}
		return services.Cart{
			UserID: "user-1",
			Items: []services.CartItem{{
				MenuItemID: "item-1",
				Name:       "Paneer Tikka",
				UnitPrice:  1000,
				Quantity:   2,
				AddedAt:    handlerTestTime,
			}},
			Totals:    services.CartTotals{Subtotal: 2000, Tax: 160, DeliveryFee: 299, Total: 2459},
			UpdatedAt: handlerTestTime,
		}, nil
	}}
	router := newCartRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/cart", "", userIdentity("user-1")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Cart.ItemsCount != 1 || len(resp.Cart.Items) != 1 {
		t.Fatalf("expected one cart item, got %+v", resp.Cart)
	}
	if resp.Cart.Totals.Total != 2459 {
		t.Fatalf("expected total 2459, got %d", resp.Cart.Totals.Total)
	}
}

func TestCartHandlersRequireIdentity(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/cart", "", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCartHandlersAddItemForwardsCommand(t *testing.T) {
	var captured services.AddCartItemCommand
	svc := &stubCartService{addFunc: func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
		captured = cmd
		return services.Cart{UserID: cmd.UserID, Items: []services.CartItem{{MenuItemID: cmd.MenuItemID, Quantity: cmd.Quantity}}}, nil
	}}
	router := newCartRouter(svc)

	body := `{"menu_item_id":"item-1","quantity":3,"special_instructions":"extra spicy"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/cart/items", body, userIdentity("user-1")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.UserID != "user-1" || captured.MenuItemID != "item-1" || captured.Quantity != 3 {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.SpecialInstructions != "extra spicy" {
		t.Fatalf("instructions not forwarded: %+v", captured)
	}
}

func TestCartHandlersAddItemRejectsMalformedBody(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/cart/items", "{not json", userIdentity("user-1")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCartHandlersAddItemOversizedBody(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	body := `{"menu_item_id":"` + strings.Repeat("x", maxCartBodySize) + `"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/cart/items", body, userIdentity("user-1")))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestCartHandlersSetQuantityUsesPathParam(t *testing.T) {
	var captured services.SetCartItemQuantityCommand
	svc := &stubCartService{setFunc: func(ctx context.Context, cmd services.SetCartItemQuantityCommand) (services.Cart, error) {
		captured = cmd
		return services.Cart{UserID: cmd.UserID}, nil
	}}
	router := newCartRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPut, "/cart/items/item-7", `{"quantity":4}`, userIdentity("user-1")))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.MenuItemID != "item-7" || captured.Quantity != 4 {
		t.Fatalf("unexpected command %+v", captured)
	}
}

func TestCartHandlersErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unavailable item", services.ErrCartItemUnavailable, http.StatusBadRequest},
		{"missing line", services.ErrCartNotFound, http.StatusNotFound},
		{"invalid input", services.ErrCartInvalidInput, http.StatusBadRequest},
		{"store down", services.ErrCartUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubCartService{addFunc: func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
				return services.Cart{}, tc.err
			}}
			router := newCartRouter(svc)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, authedRequest(http.MethodPost, "/cart/items", `{"menu_item_id":"item-1"}`, userIdentity("user-1")))

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCartHandlersClearCartReturnsNoContent(t *testing.T) {
	cleared := false
	svc := &stubCartService{clearFunc: func(ctx context.Context, userID string) error {
		cleared = true
		return nil
	}}
	router := newCartRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodDelete, "/cart", "", userIdentity("user-1")))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if !cleared {
		t.Fatal("expected clear to reach the service")
	}
}

func TestCartHandlersNilServiceUnavailable(t *testing.T) {
	router := newCartRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/cart", "", userIdentity("user-1")))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
