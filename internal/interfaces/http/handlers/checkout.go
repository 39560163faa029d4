// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-cart/internal/domain/cart"
	"github.com/your-org/storefront-cart/internal/domain/checkout"
	"github.com/your-org/storefront-cart/internal/interfaces/http/middleware"
)

// CheckoutHandler handles checkout endpoints
type CheckoutHandler struct {
	checkout *checkout.Service
	carts    *CartHandler
	logger   logrus.FieldLogger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(service *checkout.Service, carts *CartHandler, logger logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: service,
		carts:    carts,
		logger:   logger,
	}
}

// PlaceOrderRequest is the body of POST /checkout
type PlaceOrderRequest struct {
	ShippingAddress checkout.Address `json:"shipping_address" binding:"required"`
	PaymentMethod   string           `json:"payment_method"`
}

// GetShippingQuote handles GET /checkout/shipping-quote?city=
func (h *CheckoutHandler) GetShippingQuote(c *gin.Context) {
	quote := h.checkout.ShippingQuote(c.Query("city"))

	c.JSON(http.StatusOK, gin.H{
		"data": quote,
	})
}

// PlaceOrder handles POST /checkout
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	receipt, err := h.checkout.PlaceOrder(c.Request.Context(), h.carts.Controller(c), checkout.PlaceOrderRequest{
		UserID:          userID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order placed successfully",
		"data":    receipt,
	})
}

func (h *CheckoutHandler) handleError(c *gin.Context, err error) {
	var (
		invalid  *cart.ValidationError
		rejected *checkout.SubmissionError
	)
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": invalid.Error(),
			"data":  gin.H{"problems": invalid.Problems},
		})
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrShippingQuoteUnavailable),
		errors.Is(err, checkout.ErrUnsupportedPayment):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, checkout.ErrCartUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": err.Error(),
		})
	case errors.As(err, &rejected):
		h.logger.WithError(err).Warn("order submission rejected")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": rejected.Error(),
		})
	default:
		h.logger.WithError(err).Error("checkout failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to place order",
		})
	}
}
