package domain

import "testing"

func TestPriceRollsUpTotals(t *testing.T) {
	policy := PricingPolicy{TaxRateBP: 800, DeliveryFee: 299}
	items := []CartItem{
		{MenuItemID: "item-1", UnitPrice: 1000, Quantity: 2},
		{MenuItemID: "item-2", UnitPrice: 500, Quantity: 1},
	}

	totals := policy.Price(items)

	if totals.Subtotal != 2500 {
		t.Fatalf("expected subtotal 2500, got %d", totals.Subtotal)
	}
	if totals.Tax != 200 {
		t.Fatalf("expected tax 200, got %d", totals.Tax)
	}
	if totals.DeliveryFee != 299 {
		t.Fatalf("expected fee 299, got %d", totals.DeliveryFee)
	}
	if totals.Total != 2999 {
		t.Fatalf("expected total 2999, got %d", totals.Total)
	}
}

func TestPriceEmptyBasketIsZero(t *testing.T) {
	policy := PricingPolicy{TaxRateBP: 800, DeliveryFee: 299}

	totals := policy.Price(nil)

	if totals != (CartTotals{}) {
		t.Fatalf("expected zero totals for empty basket, got %+v", totals)
	}
}

func TestPriceTaxRoundsHalfUp(t *testing.T) {
	policy := PricingPolicy{TaxRateBP: 800, DeliveryFee: 299}

	// 131 * 8% = 10.48 → 10; 132 * 8% = 10.56 → 11.
	down := policy.Price([]CartItem{{UnitPrice: 131, Quantity: 1}})
	up := policy.Price([]CartItem{{UnitPrice: 132, Quantity: 1}})

	if down.Tax != 10 {
		t.Fatalf("expected tax 10, got %d", down.Tax)
	}
	if up.Tax != 11 {
		t.Fatalf("expected tax 11, got %d", up.Tax)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusDelivered, OrderStatusCancelled}
	for _, status := range terminal {
		if !status.Terminal() {
			t.Fatalf("expected %s terminal", status)
		}
	}
	open := []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady, OrderStatusOutForDelivery}
	for _, status := range open {
		if status.Terminal() {
			t.Fatalf("expected %s not terminal", status)
		}
	}
}
