// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-cart/internal/domain/cart"
	"github.com/your-org/storefront-cart/internal/domain/catalog"
	"github.com/your-org/storefront-cart/internal/interfaces/http/middleware"
)

const sessionCookie = "session_id"

// CartStores builds the per-request cart stores. Remote may be nil when no
// account cart store is configured.
type CartStores struct {
	Local  func(sessionID string) cart.Repository
	Remote func(userID, token string) cart.Repository
}

// CartHandler handles storefront cart endpoints
type CartHandler struct {
	stores        CartStores
	catalog       catalog.Reader
	validator     *cart.Validator
	remoteTimeout time.Duration
	logger        logrus.FieldLogger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(stores CartStores, reader catalog.Reader, remoteTimeout time.Duration, logger logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		stores:        stores,
		catalog:       reader,
		validator:     cart.NewValidator(reader),
		remoteTimeout: remoteTimeout,
		logger:        logger,
	}
}

// AddToCartRequest is the body of POST /cart/items
type AddToCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
	Grams     int    `json:"grams,omitempty"`
}

// UpdateQuantityRequest is the body of PATCH /cart/items/:product_id
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	snap := h.controller(c).Load(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    snap,
	})
}

// GetCartCount handles GET /cart/count
func (h *CartHandler) GetCartCount(c *gin.Context) {
	snap := h.controller(c).Load(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{"count": snap.Totals.ItemCount},
	})
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	product, variant, ok := h.resolveProduct(c, req.ProductID, req.Grams)
	if !ok {
		return
	}

	var added *cart.LineItem
	ctrl := h.controller(c, cart.WithAddedNotifier(func(line cart.LineItem) { added = &line }))

	snap, err := ctrl.AddItem(c.Request.Context(), *product, req.Quantity, variant)
	if errors.Is(err, cart.ErrInvalidQuantity) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	message := "Item added to cart successfully"
	if added != nil {
		message = fmt.Sprintf("%s added to cart", added.Product.Name)
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    snap,
	})
}

// UpdateCartItem handles PATCH /cart/items/:product_id?grams=
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
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

	snap := h.controller(c).UpdateQuantity(c.Request.Context(), c.Param("product_id"), req.Quantity, variant)

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item updated successfully",
		"data":    snap,
	})
}

// RemoveCartItem handles DELETE /cart/items/:product_id?grams=
func (h *CartHandler) RemoveCartItem(c *gin.Context) {
	variant, ok := variantFromQuery(c)
	if !ok {
		return
	}

	snap := h.controller(c).RemoveItem(c.Request.Context(), c.Param("product_id"), variant)

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"data":    snap,
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	snap := h.controller(c).ClearCart(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
		"data":    snap,
	})
}

// ValidateCart handles POST /cart/validate
func (h *CartHandler) ValidateCart(c *gin.Context) {
	snap := h.controller(c).Load(c.Request.Context())

	result, err := h.validator.Validate(c.Request.Context(), snap.Items)
	if err != nil {
		h.logger.WithError(err).Error("cart validation failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to validate cart",
		})
		return
	}

	if !result.IsValid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Cart has items that cannot be ordered",
			"data":  result,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart is valid",
		"data":    result,
	})
}

// MergeCart handles POST /cart/merge. It moves the guest cart of this browser
// session into the signed-in account cart.
func (h *CartHandler) MergeCart(c *gin.Context) {
	snap, err := h.controller(c).MergeLocal(c.Request.Context())
	if errors.Is(err, cart.ErrNoRemoteStore) {
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).Warn("cart merge failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to merge cart",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart merged successfully",
		"data":    snap,
	})
}

// Controller builds the cart controller for the caller of c
func (h *CartHandler) Controller(c *gin.Context) *cart.Controller {
	return h.controller(c)
}

func (h *CartHandler) controller(c *gin.Context, opts ...cart.Option) *cart.Controller {
	sessionID := getOrCreateSessionID(c)
	userID, authenticated := middleware.GetUserIDFromContext(c)

	var remote cart.Repository
	if authenticated && h.stores.Remote != nil {
		remote = h.stores.Remote(userID, middleware.GetAccessTokenFromContext(c))
	}

	base := []cart.Option{
		cart.WithLogger(h.logger),
		cart.WithRemoteTimeout(h.remoteTimeout),
	}
	return cart.NewController(
		cart.Session{ID: sessionID, Authenticated: authenticated},
		h.stores.Local(sessionID),
		remote,
		append(base, opts...)...,
	)
}

// resolveProduct loads an orderable product and its weight option, writing the
// error response itself when it cannot
func (h *CartHandler) resolveProduct(c *gin.Context, productID string, grams int) (*catalog.Product, *cart.WeightVariant, bool) {
	product, err := h.catalog.GetProduct(c.Request.Context(), productID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Product not found",
		})
		return nil, nil, false
	}
	if err != nil {
		h.logger.WithError(err).WithField("product_id", productID).Error("failed to load product")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load product",
		})
		return nil, nil, false
	}
	if !product.IsActive {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Product is not available",
		})
		return nil, nil, false
	}
	if !product.IsInStock() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Product is out of stock",
		})
		return nil, nil, false
	}

	if grams == 0 {
		return product, nil, true
	}
	option, ok := product.WeightOption(grams)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Product has no %dg option", grams),
		})
		return nil, nil, false
	}
	return product, cart.VariantFromOption(option), true
}

// variantFromQuery reads the optional ?grams= line selector
func variantFromQuery(c *gin.Context) (*cart.WeightVariant, bool) {
	raw := c.Query("grams")
	if raw == "" {
		return nil, true
	}
	grams, err := strconv.Atoi(raw)
	if err != nil || grams < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid grams",
		})
		return nil, false
	}
	if grams == 0 {
		return nil, true
	}
	return &cart.WeightVariant{Grams: grams}, true
}

func getOrCreateSessionID(c *gin.Context) string {
	if sessionID, err := c.Cookie(sessionCookie); err == nil && sessionID != "" {
		return sessionID
	}
	if id := c.GetString(sessionCookie); id != "" {
		return id
	}

	sessionID := uuid.NewString()
	c.Set(sessionCookie, sessionID)
	c.SetCookie(sessionCookie, sessionID, 86400, "/", "", false, true)
	return sessionID
}
