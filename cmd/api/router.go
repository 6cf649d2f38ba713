package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payment-reconciler/internal/shared/middleware"
	"payment-reconciler/internal/shared/response"
	"payment-reconciler/pkg/container"
	"payment-reconciler/pkg/metrics"
)

func SetupRouter(c *container.Container) (*gin.Engine, error) {
	router, err := newEngine(c.Config.App.TrustedProxies)
	if err != nil {
		return nil, err
	}

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.ClientIPMiddleware(),
		middleware.Logger(),
		middleware.Metrics(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "Route not found")
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		setupWebhookRoutes(v1, c)
		setupPaymentRoutes(v1, c)
		setupAdminPaymentRoutes(v1, c)
	}

	return router, nil
}

// newEngine builds the bare engine. X-Forwarded-For is honoured only from
// trustedProxies; nil means the socket peer is the client.
func newEngine(trustedProxies []string) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	return router, nil
}

// ========================================
// WEBHOOK ROUTES
// ========================================
func setupWebhookRoutes(v1 *gin.RouterGroup, c *container.Container) {
	webhooks := v1.Group("/webhooks")
	webhooks.Use(middleware.RateLimit(c.RateLimiter))
	{
		webhooks.POST("/phonepe", c.PaymentHandler.Webhook)
	}
}

// ========================================
// PAYMENT ROUTES (buyer + storefront)
// ========================================
func setupPaymentRoutes(v1 *gin.RouterGroup, c *container.Container) {
	payments := v1.Group("/payments")
	{
		// Gateway sends the buyer back with either method; each hit costs a live status query
		payments.GET("/redirect", middleware.RateLimit(c.RateLimiter), c.PaymentHandler.Redirect)
		payments.POST("/redirect", middleware.RateLimit(c.RateLimiter), c.PaymentHandler.Redirect)

		payments.POST("", middleware.RateLimit(c.RateLimiter), c.PaymentHandler.CreatePayment)
		payments.POST("/verify", middleware.RateLimit(c.RateLimiter), c.PaymentHandler.VerifyCardPayment)
	}
}

// ========================================
// ADMIN PAYMENT ROUTES
// ========================================
func setupAdminPaymentRoutes(v1 *gin.RouterGroup, c *container.Container) {
	admin := v1.Group("/admin/payments")
	admin.Use(middleware.AuthMiddleware(c.JWTManager), middleware.AdminMiddleware())
	{
		admin.GET("/:merchant_order_id", c.PaymentHandler.AdminGetOrder)
		admin.POST("/:merchant_order_id/reconcile", c.PaymentHandler.AdminReconcile)
		admin.GET("/:merchant_order_id/webhooks", c.PaymentHandler.AdminWebhookHistory)
	}
}

// ========================================
// HEALTH CHECK HANDLER
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := appCtx.DB.HealthCheck(ctx); err != nil {
			dbStatus = "error: " + err.Error()
			metrics.DependencyStatus.WithLabelValues("postgres").Set(0)
		} else {
			metrics.DependencyStatus.WithLabelValues("postgres").Set(1)
		}

		redisStatus := "disabled (in-memory replay store)"
		if appCtx.Redis != nil {
			redisStatus = "ok"
			if err := appCtx.Redis.HealthCheck(ctx); err != nil {
				redisStatus = "error: " + err.Error()
				metrics.DependencyStatus.WithLabelValues("redis").Set(0)
			} else {
				metrics.DependencyStatus.WithLabelValues("redis").Set(1)
			}
		}

		health := gin.H{
			"status":      "ok",
			"version":     appCtx.Config.App.Version,
			"environment": appCtx.Config.App.Environment,
			"services": gin.H{
				"database": dbStatus,
				"redis":    redisStatus,
				"archive":  appCtx.Archive != nil,
			},
		}

		// Redis down degrades dedup but does not stop payments
		statusCode := http.StatusOK
		if dbStatus != "ok" {
			health["status"] = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, health)
	}
}
