// internal/domain/cart/validator.go
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/your-org/storefront-cart/internal/domain/catalog"
)

// Reason explains why a line blocks checkout
type Reason string

const (
	ReasonProductUnavailable Reason = "product_unavailable"
	ReasonInsufficientStock  Reason = "insufficient_stock"
)

// Problem is one line that failed validation
type Problem struct {
	Item      LineItem `json:"item"`
	Reason    Reason   `json:"reason"`
	Available *int     `json:"available,omitempty"`
}

// ValidationResult is the outcome of a pre-checkout check
type ValidationResult struct {
	IsValid  bool      `json:"is_valid"`
	Problems []Problem `json:"problems"`
}

// Validator checks cart lines against the catalog as it is at call time. No stock
// is reserved, so an order placed later can still race a stock change.
type Validator struct {
	catalog catalog.Reader
}

// NewValidator creates a validator reading from reader
func NewValidator(reader catalog.Reader) *Validator {
	return &Validator{catalog: reader}
}

// Validate reports lines whose product is inactive or missing, and lines asking
// for more than the tracked stock. items is never modified.
func (v *Validator) Validate(ctx context.Context, items []LineItem) (ValidationResult, error) {
	products := make(map[string]*catalog.Product, len(items))
	for _, li := range items {
		id := li.Product.ID
		if _, seen := products[id]; seen {
			continue
		}
		p, err := v.catalog.GetProduct(ctx, id)
		if errors.Is(err, catalog.ErrProductNotFound) {
			products[id] = nil
			continue
		}
		if err != nil {
			return ValidationResult{}, fmt.Errorf("failed to validate cart: %w", err)
		}
		products[id] = p
	}
	return ValidateAgainst(items, products), nil
}

// ValidateAgainst applies the validation rules to items using a product lookup.
// A nil or absent product counts as unavailable.
func ValidateAgainst(items []LineItem, products map[string]*catalog.Product) ValidationResult {
	result := ValidationResult{IsValid: true, Problems: []Problem{}}
	for _, li := range items {
		p := products[li.Product.ID]
		switch {
		case p == nil || !p.IsActive:
			result.Problems = append(result.Problems, Problem{Item: cloneLine(li), Reason: ReasonProductUnavailable})
		case p.Inventory.Tracked && li.Quantity > p.Inventory.Quantity:
			available := p.Inventory.Quantity
			result.Problems = append(result.Problems, Problem{Item: cloneLine(li), Reason: ReasonInsufficientStock, Available: &available})
		}
	}
	result.IsValid = len(result.Problems) == 0
	return result
}
