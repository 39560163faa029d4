// internal/domain/checkout/shipping.go
package checkout

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Default zone table
var (
	DefaultDiscountedCities = []string{"Cairo", "Giza"}
	DefaultDiscountedFee    = decimal.NewFromInt(50)
	DefaultStandardFee      = decimal.NewFromInt(70)
)

// Quote is the checkout shipping fee for a destination city. A quote that is not
// Available must not be read as free shipping.
type Quote struct {
	City      string          `json:"city"`
	Fee       decimal.Decimal `json:"fee"`
	Available bool            `json:"available"`
}

// ShippingPolicy is the checkout zone table. It is separate from the in-cart
// estimate and the two may disagree for the same cart.
type ShippingPolicy struct {
	discounted    map[string]struct{}
	discountedFee decimal.Decimal
	standardFee   decimal.Decimal
}

// NewShippingPolicy creates a zone table where cities get discountedFee and any
// other city gets standardFee
func NewShippingPolicy(cities []string, discountedFee, standardFee decimal.Decimal) *ShippingPolicy {
	p := &ShippingPolicy{
		discounted:    make(map[string]struct{}, len(cities)),
		discountedFee: discountedFee,
		standardFee:   standardFee,
	}
	for _, c := range cities {
		if k := normalizeCity(c); k != "" {
			p.discounted[k] = struct{}{}
		}
	}
	return p
}

// DefaultShippingPolicy returns the stock zone table
func DefaultShippingPolicy() *ShippingPolicy {
	return NewShippingPolicy(DefaultDiscountedCities, DefaultDiscountedFee, DefaultStandardFee)
}

// Fee returns the shipping fee for city; zero for a blank city
func (p *ShippingPolicy) Fee(city string) decimal.Decimal {
	return p.Quote(city).Fee
}

// Quote prices shipping to city
func (p *ShippingPolicy) Quote(city string) Quote {
	key := normalizeCity(city)
	if key == "" {
		return Quote{Fee: decimal.Zero, Available: false}
	}
	fee := p.standardFee
	if _, ok := p.discounted[key]; ok {
		fee = p.discountedFee
	}
	return Quote{City: strings.TrimSpace(city), Fee: fee, Available: true}
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
