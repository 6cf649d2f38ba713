package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"payment-reconciler/internal/shared/response"
	"payment-reconciler/pkg/jwt"
	"payment-reconciler/pkg/logger"
)

const (
	ContextKeySubject = "subject"
	ContextKeyRole    = "role"
)

// AuthMiddleware - Middleware xác thực JWT token cho admin API
func AuthMiddleware(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Lấy token từ Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		// 2. Extract token từ "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		// 3. Verify và parse JWT
		claims, err := manager.ValidateAccessToken(parts[1])
		if err != nil {
			logger.Warn("Rejected admin token", map[string]interface{}{
				"ip":    c.ClientIP(),
				"error": err.Error(),
			})
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}

		// 4. Set subject + role vào context
		c.Set(ContextKeySubject, claims.Subject)
		c.Set(ContextKeyRole, claims.Role)

		c.Next()
	}
}

// GetSubject returns the authenticated operator, empty when unauthenticated.
func GetSubject(c *gin.Context) string {
	return c.GetString(ContextKeySubject)
}
