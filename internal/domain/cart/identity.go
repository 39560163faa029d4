// internal/domain/cart/identity.go
package cart

import "fmt"

// IdentityKey decides which line a mutation targets. Grams is zero for the
// no-variant line.
type IdentityKey struct {
	ProductID string
	Grams     int
}

// IdentityOf returns the key for a product at an optional weight. Variant label
// and price do not take part in identity.
func IdentityOf(productID string, variant *WeightVariant) IdentityKey {
	k := IdentityKey{ProductID: productID}
	if variant != nil {
		k.Grams = variant.Grams
	}
	return k
}

// HasVariant reports whether the key points at a weight variant line
func (k IdentityKey) HasVariant() bool {
	return k.Grams != 0
}

func (k IdentityKey) String() string {
	if !k.HasVariant() {
		return k.ProductID
	}
	return fmt.Sprintf("%s@%dg", k.ProductID, k.Grams)
}
