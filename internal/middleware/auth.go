package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/veltrix/shoprec/internal/services"
)

// Auth requires a valid Bearer token and sets the user identity on the
// request context.
func Auth(authService *services.AuthService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "MISSING_AUTHORIZATION",
					"message": "Authorization header is required",
				},
			})
			c.Abort()
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "INVALID_AUTHORIZATION_FORMAT",
					"message": "Authorization header must be in format 'Bearer <token>'",
				},
			})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(tokenParts[1])
		if err != nil {
			logger.WithError(err).Warn("Invalid JWT token")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Invalid or expired token",
				},
			})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_tier", claims.Tier)
		c.Next()
	}
}

// OptionalAuth resolves the user identity when a valid token is
// present but lets anonymous requests through. Interaction tracking
// depends on this: an anonymous track call must reach the handler and
// no-op there, not be rejected at the edge.
func OptionalAuth(authService *services.AuthService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.Next()
			return
		}

		claims, err := authService.ValidateToken(tokenParts[1])
		if err != nil {
			logger.WithError(err).Debug("Ignoring invalid token on optional-auth route")
			c.Next()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_tier", claims.Tier)
		c.Next()
	}
}

// GetUserID returns the authenticated user id, or "" for anonymous
// requests.
func GetUserID(c *gin.Context) string {
	userID, ok := c.Get("user_id")
	if !ok {
		return ""
	}
	id, _ := userID.(string)
	return id
}
