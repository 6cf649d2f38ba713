package main

import (
	"github.com/hibiken/asynq"

	paymentJob "payment-reconciler/internal/domains/payment/job"
	"payment-reconciler/internal/shared"
	"payment-reconciler/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	paymentNotify  *paymentJob.PaymentNotifyHandler
	reconcileStale *paymentJob.ReconcileStaleHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		paymentNotify:  paymentJob.NewPaymentNotifyHandler(c.Email),
		reconcileStale: paymentJob.NewReconcileStaleHandler(c.ReconcileService),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypePaymentNotify, h.paymentNotify.ProcessTask)
	mux.HandleFunc(shared.TypePaymentReconcileStale, h.reconcileStale.ProcessTask)
}
