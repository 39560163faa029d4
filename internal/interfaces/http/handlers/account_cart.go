// internal/interfaces/http/handlers/account_cart.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-cart/internal/domain/cart"
	"github.com/your-org/storefront-cart/internal/domain/catalog"
	"github.com/your-org/storefront-cart/internal/interfaces/http/middleware"
)

// AccountCartHandler serves the account cart API used as the remote cart store.
// Lines are priced from the catalog, never from the request.
type AccountCartHandler struct {
	store   func(userID string) cart.Repository
	catalog catalog.Reader
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewAccountCartHandler creates a new account cart handler
func NewAccountCartHandler(store func(userID string) cart.Repository, reader catalog.Reader, logger logrus.FieldLogger) *AccountCartHandler {
	return &AccountCartHandler{
		store:   store,
		catalog: reader,
		logger:  logger.WithField("component", "account_cart"),
		now:     time.Now,
	}
}

// GetCart handles GET /account/cart
func (h *AccountCartHandler) GetCart(c *gin.Context) {
	repo, ok := h.repository(c)
	if !ok {
		return
	}
	items, err := repo.Load(c.Request.Context())
	h.respond(c, "Cart retrieved successfully", items, err)
}

// AddItem handles POST /account/cart
func (h *AccountCartHandler) AddItem(c *gin.Context) {
	repo, ok := h.repository(c)
	if !ok {
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}
	if req.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": cart.ErrInvalidQuantity.Error(),
		})
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), req.ProductID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Product not found",
		})
		return
	}
	if err != nil {
		h.respond(c, "", nil, err)
		return
	}

	var variant *cart.WeightVariant
	if req.Grams > 0 {
		option, found := product.WeightOption(req.Grams)
		if !found {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Weight option not found",
			})
			return
		}
		variant = cart.VariantFromOption(option)
	}

	line := cart.NewLineItem(*product, req.Quantity, variant, h.now())
	items, err := repo.Add(c.Request.Context(), line)
	h.respond(c, "Item added to cart successfully", items, err)
}

// UpdateItem handles PATCH /account/cart/:product_id?grams=
func (h *AccountCartHandler) UpdateItem(c *gin.Context) {
	repo, ok := h.repository(c)
	if !ok {
		return
	}
	variant, ok := variantFromQuery(c)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	key := cart.IdentityOf(c.Param("product_id"), variant)
	items, err := repo.SetQuantity(c.Request.Context(), key, req.Quantity)
	h.respond(c, "Cart item updated successfully", items, err)
}

// RemoveItem handles DELETE /account/cart/:product_id?grams=
func (h *AccountCartHandler) RemoveItem(c *gin.Context) {
	repo, ok := h.repository(c)
	if !ok {
		return
	}
	variant, ok := variantFromQuery(c)
	if !ok {
		return
	}

	key := cart.IdentityOf(c.Param("product_id"), variant)
	items, err := repo.Remove(c.Request.Context(), key)
	h.respond(c, "Item removed from cart successfully", items, err)
}

// ClearCart handles DELETE /account/cart
func (h *AccountCartHandler) ClearCart(c *gin.Context) {
	repo, ok := h.repository(c)
	if !ok {
		return
	}
	err := repo.Clear(c.Request.Context())
	h.respond(c, "Cart cleared successfully", []cart.LineItem{}, err)
}

func (h *AccountCartHandler) repository(c *gin.Context) (cart.Repository, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return nil, false
	}
	return h.store(userID), true
}

func (h *AccountCartHandler) respond(c *gin.Context, message string, items []cart.LineItem, err error) {
	if err != nil {
		h.logger.WithError(err).Error("account cart store failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Cart store unavailable",
		})
		return
	}
	if items == nil {
		items = []cart.LineItem{}
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    gin.H{"items": items},
	})
}
