// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-cart/internal/config"
	"github.com/your-org/storefront-cart/internal/domain/cart"
	"github.com/your-org/storefront-cart/internal/domain/catalog"
	"github.com/your-org/storefront-cart/internal/domain/checkout"
	"github.com/your-org/storefront-cart/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-cart/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-cart/internal/pkg/auth"
)

// Dependencies are the services the API routes are built from
type Dependencies struct {
	Config       *config.Config
	Logger       logrus.FieldLogger
	JWT          *auth.JWTManager
	Catalog      catalog.Reader
	CartStores   handlers.CartStores
	AccountCarts func(userID string) cart.Repository
	Checkout     *checkout.Service
	Orders       handlers.OrderService
}

// SetupRoutes sets up all API routes
func SetupRoutes(rg *gin.RouterGroup, deps Dependencies) {
	cartHandler := handlers.NewCartHandler(deps.CartStores, deps.Catalog, deps.Config.Cart.RemoteTimeout, deps.Logger)

	SetupProductRoutes(rg, deps)
	SetupCartRoutes(rg, deps, cartHandler)
	SetupCheckoutRoutes(rg, deps, cartHandler)
	SetupAccountCartRoutes(rg, deps)
	SetupOrderRoutes(rg, deps)
}

// SetupProductRoutes sets up product related routes
func SetupProductRoutes(rg *gin.RouterGroup, deps Dependencies) {
	productHandler := handlers.NewProductHandler(deps.Catalog, deps.Logger)

	products := rg.Group("/products")
	{
		products.GET("/:id", productHandler.GetProduct)
	}
}

// SetupCartRoutes sets up storefront cart routes. Guests get a session cart;
// signed-in callers get their account cart.
func SetupCartRoutes(rg *gin.RouterGroup, deps Dependencies, cartHandler *handlers.CartHandler) {
	cartGroup := rg.Group("/cart")
	cartGroup.Use(middleware.OptionalAuthMiddleware(deps.JWT))
	{
		cartGroup.GET("", cartHandler.GetCart)
		cartGroup.GET("/count", cartHandler.GetCartCount)
		cartGroup.POST("/items", cartHandler.AddToCart)
		cartGroup.PATCH("/items/:product_id", cartHandler.UpdateCartItem)
		cartGroup.DELETE("/items/:product_id", cartHandler.RemoveCartItem)
		cartGroup.DELETE("", cartHandler.ClearCart)
		cartGroup.POST("/validate", cartHandler.ValidateCart)
	}

	protected := rg.Group("/cart")
	protected.Use(middleware.AuthMiddleware(deps.JWT))
	{
		protected.POST("/merge", cartHandler.MergeCart)
	}
}

// SetupCheckoutRoutes sets up checkout routes
func SetupCheckoutRoutes(rg *gin.RouterGroup, deps Dependencies, cartHandler *handlers.CartHandler) {
	checkoutHandler := handlers.NewCheckoutHandler(deps.Checkout, cartHandler, deps.Logger)

	checkoutGroup := rg.Group("/checkout")
	checkoutGroup.Use(middleware.OptionalAuthMiddleware(deps.JWT))
	{
		checkoutGroup.GET("/shipping-quote", checkoutHandler.GetShippingQuote)
		checkoutGroup.POST("", checkoutHandler.PlaceOrder)
	}
}

// SetupAccountCartRoutes sets up the account cart API backing remote carts
func SetupAccountCartRoutes(rg *gin.RouterGroup, deps Dependencies) {
	if deps.AccountCarts == nil {
		return
	}
	accountHandler := handlers.NewAccountCartHandler(deps.AccountCarts, deps.Catalog, deps.Logger)

	account := rg.Group("/account/cart")
	account.Use(middleware.AuthMiddleware(deps.JWT))
	{
		account.GET("", accountHandler.GetCart)
		account.POST("", accountHandler.AddItem)
		account.PATCH("/:product_id", accountHandler.UpdateItem)
		account.DELETE("/:product_id", accountHandler.RemoveItem)
		account.DELETE("", accountHandler.ClearCart)
	}
}

// SetupOrderRoutes sets up order lookup routes
func SetupOrderRoutes(rg *gin.RouterGroup, deps Dependencies) {
	if deps.Orders == nil {
		return
	}
	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Logger)

	orders := rg.Group("/orders")
	orders.Use(middleware.OptionalAuthMiddleware(deps.JWT))
	{
		orders.GET("/:order_number", orderHandler.GetOrder)
	}

	protected := rg.Group("/orders")
	protected.Use(middleware.AuthMiddleware(deps.JWT))
	{
		protected.POST("/:order_number/cancel", orderHandler.CancelOrder)
	}
}
