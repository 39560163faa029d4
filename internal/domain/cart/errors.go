// internal/domain/cart/errors.go
package cart

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrNoRemoteStore   = errors.New("cart has no remote store for this session")
)

// ValidationError carries the problems that block checkout
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cart has %d invalid item(s)", len(e.Problems))
}
