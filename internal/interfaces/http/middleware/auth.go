// internal/interfaces/http/middleware/auth.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/storefront-cart/internal/pkg/auth"
)

const (
	userIDKey      = "user_id"
	userEmailKey   = "user_email"
	accessTokenKey = "access_token"
)

// AuthMiddleware rejects requests without a valid access token
func AuthMiddleware(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		tokenString := auth.ExtractTokenFromHeader(authHeader)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			return
		}

		claims, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		setIdentity(c, claims, tokenString)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the caller when a valid token is present and
// lets anonymous requests through otherwise
func OptionalAuthMiddleware(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := auth.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			c.Next()
			return
		}

		// an invalid token is treated as no token
		if claims, err := jwtManager.ValidateAccessToken(tokenString); err == nil {
			setIdentity(c, claims, tokenString)
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims *auth.Claims, token string) {
	c.Set(userIDKey, claims.UserID)
	c.Set(userEmailKey, claims.Email)
	c.Set(accessTokenKey, token)
}

// GetUserIDFromContext extracts user ID from gin context
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDKey)
	return userID, userID != ""
}

// GetAccessTokenFromContext returns the bearer token the request was authenticated with
func GetAccessTokenFromContext(c *gin.Context) string {
	return c.GetString(accessTokenKey)
}
