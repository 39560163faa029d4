// internal/domain/cart/totals.go
package cart

import "github.com/shopspring/decimal"

// In-cart shipping estimate. Checkout applies its own zone fees.
var (
	FreeShippingThreshold = decimal.NewFromInt(100)
	FlatShippingFee       = decimal.NewFromInt(10)
)

// ComputeTotals derives the cart totals from its lines
func ComputeTotals(items []LineItem) Totals {
	t := Totals{
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
		Shipping: decimal.Zero,
	}
	for _, li := range items {
		t.ItemCount += li.Quantity
		t.Subtotal = t.Subtotal.Add(li.UnitPrice().Mul(decimal.NewFromInt(int64(li.Quantity))))
	}
	if t.Subtotal.LessThan(FreeShippingThreshold) {
		t.Shipping = FlatShippingFee
	}
	// decimal.Round rounds half away from zero, which is half-up for money
	t.Total = t.Subtotal.Add(t.Tax).Add(t.Shipping).Round(2)
	return t
}
