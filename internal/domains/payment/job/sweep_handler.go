package job

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/internal/shared"
	"payment-reconciler/internal/shared/utils"
)

const (
	defaultStaleAge   = 15 * time.Minute
	defaultSweepBatch = 100
)

// StaleReconciler is the slice of ReconcileService the sweep needs.
type StaleReconciler interface {
	ReconcileStalePending(ctx context.Context, olderThan time.Duration, limit int) (*model.SweepResult, error)
}

type ReconcileStaleHandler struct {
	reconciler StaleReconciler
}

func NewReconcileStaleHandler(reconciler StaleReconciler) *ReconcileStaleHandler {
	return &ReconcileStaleHandler{reconciler: reconciler}
}

func (h *ReconcileStaleHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload shared.ReconcileStalePayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return err
	}
	if payload.OlderThan <= 0 {
		payload.OlderThan = defaultStaleAge
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultSweepBatch
	}

	if _, err := h.reconciler.ReconcileStalePending(ctx, payload.OlderThan, payload.Limit); err != nil {
		return fmt.Errorf("reconcile stale pending: %w", err)
	}
	return nil
}
