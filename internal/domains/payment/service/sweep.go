package service

import (
	"context"
	"time"

	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/pkg/logger"
)

// ReconcileStalePending settles orders whose webhook never arrived or was deferred.
func (s *reconcileService) ReconcileStalePending(ctx context.Context, olderThan time.Duration, limit int) (*model.SweepResult, error) {
	orders, err := s.orders.ListStalePending(ctx, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, model.NewInternalError("list stale orders failed", err)
	}

	result := &model.SweepResult{Scanned: len(orders)}
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		resp, err := s.ReconcileOrder(ctx, o.MerchantOrderID)
		if err != nil {
			result.Failed++
			logger.ErrorWithFields("Stale order reconcile failed", err, map[string]interface{}{
				"merchant_order_id": o.MerchantOrderID,
			})
			continue
		}
		if resp.Changed {
			result.Settled++
		}
	}

	logger.Info("Stale pending sweep finished", map[string]interface{}{
		"scanned": result.Scanned,
		"settled": result.Settled,
		"failed":  result.Failed,
	})
	return result, nil
}
