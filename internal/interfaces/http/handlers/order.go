// internal/interfaces/http/handlers/order.go
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-cart/internal/domain/order"
	"github.com/your-org/storefront-cart/internal/interfaces/http/middleware"
)

// OrderService is the order lookup and cancellation contract
type OrderService interface {
	GetByNumber(ctx context.Context, orderNumber string) (*order.Order, error)
	Cancel(ctx context.Context, orderNumber, reason, cancelledBy string) error
}

// OrderHandler handles order endpoints
type OrderHandler struct {
	orders OrderService
	logger logrus.FieldLogger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderService, logger logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// CancelOrderRequest is the body of POST /orders/:order_number/cancel
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// GetOrder handles GET /orders/:order_number. Account orders are only visible
// to their owner. Guest orders also need ?phone= matching the delivery phone.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	o, ok := h.loadOrder(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	if !ownsOrder(o, userID) && !guestPhoneMatches(o, c.Query("phone")) {
		notFound(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    o,
	})
}

// CancelOrder handles POST /orders/:order_number/cancel. Only the account that
// placed the order can cancel it.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	o, ok := h.loadOrder(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserIDFromContext(c)
	if !ownsOrder(o, userID) {
		notFound(c)
		return
	}

	err := h.orders.Cancel(c.Request.Context(), o.OrderNumber, req.Reason, userID)
	if errors.Is(err, order.ErrCannotBeCancelled) {
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to cancel order")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel order",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled successfully",
	})
}

func (h *OrderHandler) loadOrder(c *gin.Context) (*order.Order, bool) {
	o, err := h.orders.GetByNumber(c.Request.Context(), c.Param("order_number"))
	if errors.Is(err, order.ErrOrderNotFound) {
		notFound(c)
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to load order")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve order",
		})
		return nil, false
	}
	return o, true
}

// ownsOrder is false for guest orders, which belong to no account
func ownsOrder(o *order.Order, userID string) bool {
	return userID != "" && o.UserID != nil && *o.UserID == userID
}

func guestPhoneMatches(o *order.Order, phone string) bool {
	return o.UserID == nil && phone != "" && phone == o.ShippingAddress.Phone
}

// notFound hides whether an order exists from callers who may not see it
func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": "Order not found",
	})
}
