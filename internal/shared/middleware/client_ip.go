package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"payment-reconciler/internal/shared/utils"
)

type contextKey string

const ContextKeyClientIP = "client_ip"

const clientIPKey contextKey = "client_ip"

// ClientIPMiddleware extracts the client IP address once and injects it into
// both the gin context and the request context.
//
// Usage:
//
//	router.Use(middleware.ClientIPMiddleware())
func ClientIPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := utils.ExtractClientIP(c)

		c.Set(ContextKeyClientIP, clientIP)

		ctx := context.WithValue(c.Request.Context(), clientIPKey, clientIP)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetClientIP returns the address set by ClientIPMiddleware, falling back to
// a fresh extraction when the middleware did not run.
func GetClientIP(c *gin.Context) string {
	if ip := c.GetString(ContextKeyClientIP); ip != "" {
		return ip
	}
	return utils.ExtractClientIP(c)
}

// GetClientIPFromContext retrieves the client IP from context
// Returns empty string if not found
func GetClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		return ip
	}
	return ""
}
