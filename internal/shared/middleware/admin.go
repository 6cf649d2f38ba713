package middleware

import (
	"github.com/gin-gonic/gin"

	"payment-reconciler/internal/shared/response"
	"payment-reconciler/pkg/jwt"
)

// AdminMiddleware checks if caller has admin role. Must run after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextKeyRole) != jwt.RoleAdmin {
			response.Forbidden(c, "Access denied: admin role required")
			c.Abort()
			return
		}

		c.Next()
	}
}
