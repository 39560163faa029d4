// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/your-org/storefront-cart/internal/domain/catalog"
)

// WeightVariant is the weight option a line was added with. It is a copy taken at
// add time, so later catalog price changes do not touch existing lines.
type WeightVariant struct {
	Label string          `json:"label"`
	Grams int             `json:"grams"`
	Price decimal.Decimal `json:"price"`
}

// ProductRef is the slice of a catalog product a cart line keeps
type ProductRef struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LineItem is one cart entry: a product, optionally at a weight, and a quantity
type LineItem struct {
	Product  ProductRef       `json:"product"`
	Quantity int              `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"` // unit price captured at add time
	Variant  *WeightVariant   `json:"weight_option,omitempty"`
	AddedAt  time.Time        `json:"added_at"`
}

// Totals are derived from the line items on every read and never stored
type Totals struct {
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
}

// Mode names the store that is authoritative for a session
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// State is the controller lifecycle
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
)

// Session is what the controller needs to know about the caller
type Session struct {
	ID            string
	Authenticated bool
}

// Snapshot is the cart as seen after an operation
type Snapshot struct {
	Items    []LineItem `json:"items"`
	Totals   Totals     `json:"totals"`
	Mode     Mode       `json:"mode"`
	State    State      `json:"state"`
	Degraded bool       `json:"degraded"`
}

// VariantFromOption snapshots a catalog weight option for a cart line
func VariantFromOption(o catalog.WeightOption) *WeightVariant {
	return &WeightVariant{Label: o.Label, Grams: o.Grams, Price: o.Price}
}

// NewLineItem builds the line an add would append. The captured price is the
// variant price when a variant is given, otherwise the product base price.
func NewLineItem(p catalog.Product, quantity int, variant *WeightVariant, now time.Time) LineItem {
	price := p.Price
	var v *WeightVariant
	if variant != nil {
		cp := *variant
		v = &cp
		price = variant.Price
	}
	return LineItem{
		Product:  ProductRef{ID: p.ID, Name: p.Name, Price: p.Price},
		Quantity: quantity,
		Price:    &price,
		Variant:  v,
		AddedAt:  now.UTC(),
	}
}

// UnitPrice is the price charged per unit: the captured line price, then the
// variant price, then the product base price.
func (li LineItem) UnitPrice() decimal.Decimal {
	switch {
	case li.Price != nil:
		return *li.Price
	case li.Variant != nil:
		return li.Variant.Price
	default:
		return li.Product.Price
	}
}

// Key returns the identity of the line
func (li LineItem) Key() IdentityKey {
	return IdentityOf(li.Product.ID, li.Variant)
}
