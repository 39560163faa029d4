// internal/interfaces/http/handlers/product.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-cart/internal/domain/catalog"
)

// ProductHandler exposes catalog reads
type ProductHandler struct {
	catalog catalog.Reader
	logger  logrus.FieldLogger
}

// NewProductHandler creates a new product handler
func NewProductHandler(reader catalog.Reader, logger logrus.FieldLogger) *ProductHandler {
	return &ProductHandler{catalog: reader, logger: logger}
}

// GetProduct handles GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if errors.Is(err, catalog.ErrProductNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Product not found",
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("failed to load product")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve product",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product retrieved successfully",
		"data":    product,
	})
}
