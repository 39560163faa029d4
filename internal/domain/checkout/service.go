// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-cart/internal/domain/cart"
)

// PaymentMethodCOD is the only payment method orders are accepted with
const PaymentMethodCOD = "cash_on_delivery"

var (
	ErrEmptyCart                = errors.New("cart is empty")
	ErrShippingQuoteUnavailable = errors.New("shipping city is required")
	ErrUnsupportedPayment       = errors.New("only cash on delivery is supported")
	ErrCartUnavailable          = errors.New("account cart is temporarily unavailable, please retry")
)

// SubmissionError is an order service rejection. Its message is the order
// service's own and is meant to be shown to the customer as is.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Address is where an order is delivered
type Address struct {
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Street   string `json:"street" binding:"required"`
	City     string `json:"city"`
	Notes    string `json:"notes,omitempty"`
}

// Summary is the cart handed to the order service
type Summary struct {
	Items  []cart.LineItem `json:"items"`
	Totals cart.Totals     `json:"totals"`
}

// OrderRequest is what the order service receives
type OrderRequest struct {
	UserID          string          `json:"user_id,omitempty"`
	ShippingAddress Address         `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	Summary         Summary         `json:"summary"`
}

// OrderSubmitter creates orders and returns their identifier
type OrderSubmitter interface {
	Submit(ctx context.Context, req OrderRequest) (string, error)
}

// CartValidator checks lines before an order is submitted
type CartValidator interface {
	Validate(ctx context.Context, items []cart.LineItem) (cart.ValidationResult, error)
}

// CartSession is the cart being checked out
type CartSession interface {
	Load(ctx context.Context) cart.Snapshot
	ClearCart(ctx context.Context) cart.Snapshot
}

// PlaceOrderRequest is the checkout form
type PlaceOrderRequest struct {
	UserID          string
	ShippingAddress Address
	PaymentMethod   string
}

// Receipt is returned for a placed order. Total uses the checkout shipping fee,
// not the in-cart estimate.
type Receipt struct {
	OrderNumber  string          `json:"order_number"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Total        decimal.Decimal `json:"total"`
}

// Service orchestrates order placement
type Service struct {
	validator CartValidator
	shipping  *ShippingPolicy
	orders    OrderSubmitter
	logger    logrus.FieldLogger
}

// NewService creates a new checkout service
func NewService(validator CartValidator, shipping *ShippingPolicy, orders OrderSubmitter, logger logrus.FieldLogger) *Service {
	return &Service{
		validator: validator,
		shipping:  shipping,
		orders:    orders,
		logger:    logger.WithField("component", "checkout"),
	}
}

// ShippingQuote prices checkout shipping to city
func (s *Service) ShippingQuote(city string) Quote {
	return s.shipping.Quote(city)
}

// PlaceOrder validates the cart, prices shipping, submits the order and clears
// the cart. The cart is left untouched on any failure.
func (s *Service) PlaceOrder(ctx context.Context, c CartSession, req PlaceOrderRequest) (*Receipt, error) {
	method := req.PaymentMethod
	if method == "" {
		method = PaymentMethodCOD
	}
	if method != PaymentMethodCOD {
		return nil, ErrUnsupportedPayment
	}

	snap := c.Load(ctx)
	// a remote cart that failed to load shows the local cart instead, which is
	// not the cart the account is ordering
	if snap.Mode == cart.ModeRemote && snap.Degraded {
		return nil, ErrCartUnavailable
	}
	if len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}

	result, err := s.validator.Validate(ctx, snap.Items)
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		return nil, &cart.ValidationError{Problems: result.Problems}
	}

	quote := s.shipping.Quote(req.ShippingAddress.City)
	if !quote.Available {
		return nil, ErrShippingQuoteUnavailable
	}

	address := req.ShippingAddress
	address.City = quote.City
	orderNumber, err := s.orders.Submit(ctx, OrderRequest{
		UserID:          req.UserID,
		ShippingAddress: address,
		PaymentMethod:   PaymentMethodCOD,
		ShippingCost:    quote.Fee,
		Summary:         Summary{Items: snap.Items, Totals: snap.Totals},
	})
	if err != nil {
		return nil, &SubmissionError{Err: err}
	}

	c.ClearCart(ctx)

	subtotal := snap.Totals.Subtotal
	receipt := &Receipt{
		OrderNumber:  orderNumber,
		Subtotal:     subtotal,
		ShippingCost: quote.Fee,
		Total:        subtotal.Add(quote.Fee).Round(2),
	}

	s.logger.WithFields(logrus.Fields{
		"order_number": orderNumber,
		"city":         quote.City,
		"total":        receipt.Total.StringFixed(2),
	}).Info("order placed")

	return receipt, nil
}
