package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	orderModel "payment-reconciler/internal/domains/order/model"
	orderRepo "payment-reconciler/internal/domains/order/repository"
	"payment-reconciler/internal/domains/payment/extractor"
	"payment-reconciler/internal/domains/payment/gateway"
	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/internal/domains/payment/replay"
	"payment-reconciler/internal/domains/payment/repository"
	"payment-reconciler/internal/domains/payment/signature"
	"payment-reconciler/internal/shared/utils"
	"payment-reconciler/pkg/logger"
	"payment-reconciler/pkg/metrics"
)

// =====================================================
// RECONCILE SERVICE IMPLEMENTATION
// =====================================================
type reconcileService struct {
	orders       orderRepo.OrderRepository
	webhooks     repository.WebhookRepository
	gateway      gateway.PaymentGateway
	cardVerifier gateway.CardVerifier
	verifier     *signature.Verifier
	guard        *replay.Guard
	extractor    *extractor.Extractor
	notifier     Notifier
	archiver     Archiver
	origins      *utils.IPAllowList
	redirect     RedirectTargets

	trustEmbedded     bool
	liveStatusTimeout time.Duration
}

func NewReconcileService(deps Dependencies) ReconcileService {
	timeout := deps.LiveStatusTimeout
	if timeout <= 0 {
		timeout = model.LiveStatusTimeout
	}
	ext := deps.Extractor
	if ext == nil {
		ext = extractor.New()
	}
	return &reconcileService{
		orders:            deps.Orders,
		webhooks:          deps.Webhooks,
		gateway:           deps.Gateway,
		cardVerifier:      deps.CardVerifier,
		verifier:          deps.Verifier,
		guard:             deps.Guard,
		extractor:         ext,
		notifier:          deps.Notifier,
		archiver:          deps.Archiver,
		origins:           deps.Origins,
		redirect:          deps.Redirect,
		trustEmbedded:     deps.TrustEmbeddedOnUpstreamFailure,
		liveStatusTimeout: timeout,
	}
}

// =====================================================
// APPLY (shared by every entry point)
// =====================================================

func (s *reconcileService) ApplyPayment(ctx context.Context, merchantOrderID string, rec *model.PaymentRecord) (*orderModel.Order, error) {
	order, _, err := s.apply(ctx, merchantOrderID, rec)
	return order, err
}

// apply commits rec through the store's conditional update.
// A missing order is not an error: it returns nil so callers retry later.
func (s *reconcileService) apply(ctx context.Context, merchantOrderID string, rec *model.PaymentRecord) (*orderModel.Order, bool, error) {
	order, changed, err := s.orders.UpdateWithPayment(ctx, merchantOrderID, rec)
	if err != nil {
		if errors.Is(err, orderModel.ErrOrderNotFound) {
			logger.Warn("Order not found while applying payment", map[string]interface{}{
				"merchant_order_id": merchantOrderID,
				"state":             string(rec.State),
			})
			return nil, false, nil
		}
		return nil, false, model.NewInternalError("apply payment failed", err)
	}

	if !changed {
		if order.PaymentState.IsTerminal() && order.PaymentState != rec.State {
			logger.Warn("Ignoring transition out of terminal state", map[string]interface{}{
				"merchant_order_id": merchantOrderID,
				"current":           string(order.PaymentState),
				"reported":          string(rec.State),
			})
		}
		return order, false, nil
	}

	metrics.PaymentsApplied.WithLabelValues(string(rec.State), string(rec.Source)).Inc()
	fields := rec.LogFields()
	fields["merchant_order_id"] = merchantOrderID
	logger.Info("Payment state applied", fields)

	if s.notifier != nil {
		if err := s.notifier.PaymentSettled(ctx, order, rec.Source); err != nil {
			logger.ErrorWithFields("Failed to enqueue settlement notification", err, map[string]interface{}{
				"merchant_order_id": merchantOrderID,
			})
		}
	}
	return order, true, nil
}

// =====================================================
// LIVE STATUS
// =====================================================

// liveRecord fetches the gateway's current view and extracts it.
func (s *reconcileService) liveRecord(ctx context.Context, merchantOrderID string, stored decimal.NullDecimal) (*model.OrderStatusPayload, *model.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.liveStatusTimeout)
	defer cancel()

	payload, err := s.gateway.GetOrderStatus(ctx, merchantOrderID, true)
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("order_status").Inc()
		return nil, nil, model.NewUpstreamError("order status", err)
	}

	rec, err := s.extractor.Extract(payload, extractor.Options{
		Source:       model.SourceLiveStatus,
		StoredAmount: stored,
	})
	if err != nil {
		return payload, nil, model.NewReconcileError(model.KindUpstream, model.ErrCodeGatewayUnavailable,
			"Unrecognized order status", err)
	}
	return payload, rec, nil
}

// storedAmount is the fee/payable fallback of last resort. Lookup failures yield null.
func (s *reconcileService) storedAmount(ctx context.Context, merchantOrderID string) decimal.NullDecimal {
	order, err := s.orders.FindByMerchantOrderID(ctx, merchantOrderID)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(order.Amount)
}

// =====================================================
// ADMIN / JOB RECONCILIATION
// =====================================================

func (s *reconcileService) ReconcileOrder(ctx context.Context, merchantOrderID string) (*model.ReconcileResponse, error) {
	if !model.IsValidMerchantOrderID(merchantOrderID) {
		return nil, model.NewInvalidOrderIDError(merchantOrderID)
	}

	order, err := s.orders.FindByMerchantOrderID(ctx, merchantOrderID)
	if err != nil {
		if errors.Is(err, orderModel.ErrOrderNotFound) {
			return nil, model.NewOrderNotFoundError(merchantOrderID)
		}
		return nil, model.NewInternalError("load order failed", err)
	}
	if order.IsTerminal() {
		return &model.ReconcileResponse{
			MerchantOrderID: merchantOrderID,
			PaymentState:    order.PaymentState,
			Order:           order,
		}, nil
	}

	live, rec, err := s.liveRecord(ctx, merchantOrderID, decimal.NewNullDecimal(order.Amount))
	if err != nil {
		return nil, err
	}

	updated, changed, err := s.apply(ctx, merchantOrderID, rec)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, model.NewOrderNotFoundError(merchantOrderID)
	}

	return &model.ReconcileResponse{
		MerchantOrderID: merchantOrderID,
		PaymentState:    updated.PaymentState,
		Changed:         changed,
		TransactionID:   gateway.ExtractTransactionID(live),
		Order:           updated,
	}, nil
}

func (s *reconcileService) GetOrder(ctx context.Context, merchantOrderID string) (*orderModel.Order, error) {
	if !model.IsValidMerchantOrderID(merchantOrderID) {
		return nil, model.NewInvalidOrderIDError(merchantOrderID)
	}
	order, err := s.orders.FindByMerchantOrderID(ctx, merchantOrderID)
	if err != nil {
		if errors.Is(err, orderModel.ErrOrderNotFound) {
			return nil, model.NewOrderNotFoundError(merchantOrderID)
		}
		return nil, model.NewInternalError("load order failed", err)
	}
	return order, nil
}

func (s *reconcileService) WebhookHistory(ctx context.Context, merchantOrderID string, limit int) ([]model.WebhookLog, error) {
	if !model.IsValidMerchantOrderID(merchantOrderID) {
		return nil, model.NewInvalidOrderIDError(merchantOrderID)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	logs, err := s.webhooks.ListByMerchantOrderID(ctx, merchantOrderID, limit)
	if err != nil {
		return nil, model.NewInternalError("list webhook logs failed", err)
	}
	return logs, nil
}
