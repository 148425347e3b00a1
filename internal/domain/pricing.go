package domain

// PricingPolicy carries the platform-wide pricing knobs used to roll a basket
// up into totals. Rates are expressed in basis points, amounts in the smallest
// currency unit.
type PricingPolicy struct {
	Currency         string
	TaxRateBP        int64
	DeliveryFee      int64
	MaxItemQuantity  int
	EstimatedMinutes int
}

// Subtotal sums line totals for the given items.
func Subtotal(items []CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// Price rolls the given items up into totals: subtotal, tax on the subtotal,
// flat delivery fee and the grand total. An empty basket prices to zero with
// no delivery fee.
func (p PricingPolicy) Price(items []CartItem) CartTotals {
	subtotal := Subtotal(items)
	if subtotal == 0 {
		return CartTotals{}
	}
	tax := roundedBasisPoints(subtotal, p.TaxRateBP)
	return CartTotals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: p.DeliveryFee,
		Total:       subtotal + tax + p.DeliveryFee,
	}
}

// OrderTotals converts priced cart totals into the frozen order shape.
func (t CartTotals) OrderTotals() OrderTotals {
	return OrderTotals{
		Subtotal:    t.Subtotal,
		Tax:         t.Tax,
		DeliveryFee: t.DeliveryFee,
		Total:       t.Total,
	}
}

// roundedBasisPoints applies rate (in basis points) to amount with half-up
// rounding so totals stay integral in minor units.
func roundedBasisPoints(amount, rateBP int64) int64 {
	return (amount*rateBP + 5000) / 10000
}
