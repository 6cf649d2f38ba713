// cmd/worker/startup.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"payment-reconciler/pkg/container"
)

// HealthChecker performs startup health checks
type HealthChecker struct {
	c *container.Container
}

// startServices performs health checks and starts the probe endpoint
func startServices(ctx context.Context, c *container.Container) error {
	log.Info().Msg("============================================")
	log.Info().Msg("🚀 Payment Reconciler Worker Starting...")
	log.Info().Msg("============================================")

	checker := &HealthChecker{c: c}
	if err := checker.checkAll(ctx); err != nil {
		return err
	}

	go startHealthCheckServer(ctx, c.Config.Worker.HealthPort, checker)
	return nil
}

// checkAll runs all health checks
func (h *HealthChecker) checkAll(ctx context.Context) error {
	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"Redis Connection", h.checkRedis},
		{"PostgreSQL", h.checkDatabase},
	}

	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			log.Error().Err(err).Str("check", check.name).Msg("❌ Health check failed")
			return fmt.Errorf("%s failed: %w", check.name, err)
		}
		log.Info().Str("check", check.name).Msg("✓ OK")
	}

	return nil
}

// checkRedis verifies Redis connection. Asynq cannot run without it.
func (h *HealthChecker) checkRedis(ctx context.Context) error {
	if h.c.Redis == nil {
		return errors.New("redis is not connected")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return h.c.Redis.HealthCheck(ctx)
}

func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	return h.c.DB.HealthCheck(ctx)
}

// startHealthCheckServer serves /health and /ready until ctx ends
func startHealthCheckServer(ctx context.Context, port string, checker *HealthChecker) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"UP","service":"payment-reconciler-worker"}`))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := checker.checkAll(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"NOT_READY"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"READY"}`))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", port).Msg("[Health] Starting health check server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("[Health] Failed to start")
	}
}
