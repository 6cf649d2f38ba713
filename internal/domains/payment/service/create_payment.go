package service

import (
	"context"
	"errors"
	"time"

	orderModel "payment-reconciler/internal/domains/order/model"
	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/internal/shared/utils"
	"payment-reconciler/pkg/logger"
	"payment-reconciler/pkg/metrics"
)

// =====================================================
// CREATE PAYMENT
// =====================================================

func (s *reconcileService) CreatePayment(ctx context.Context, req model.CreatePaymentRequest) (*model.CreatePaymentResponse, error) {
	// Step 1: Validate
	if err := req.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}

	// Step 2: Load or create the pending order
	order, err := s.orders.FindByMerchantOrderID(ctx, req.MerchantOrderID)
	switch {
	case errors.Is(err, orderModel.ErrOrderNotFound):
		order, err = s.orders.CreatePending(ctx, orderModel.CreatePendingInput{
			MerchantOrderID: req.MerchantOrderID,
			Amount:          req.Amount,
			Currency:        req.Currency,
			CustomerEmail:   req.CustomerEmail,
		})
		if errors.Is(err, orderModel.ErrOrderAlreadyExists) {
			// lost a race with a concurrent create
			order, err = s.orders.FindByMerchantOrderID(ctx, req.MerchantOrderID)
		}
		if err != nil {
			return nil, model.NewInternalError("create order failed", err)
		}
	case err != nil:
		return nil, model.NewInternalError("load order failed", err)
	}

	if order.IsTerminal() {
		return nil, model.NewOrderNotPendingError(order.MerchantOrderID, string(order.PaymentState))
	}

	// Step 3: Register with the gateway, using the stored amount
	result, err := s.gateway.CreatePayment(ctx, model.GatewayCreateRequest{
		MerchantOrderID: order.MerchantOrderID,
		AmountPaise:     utils.ToPaise(order.Amount),
		Message:         "Payment for order " + order.MerchantOrderID,
	})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("create_payment").Inc()
		return nil, model.NewUpstreamError("create payment", err)
	}

	// Step 4: Remember the gateway's id
	if result.GatewayOrderID != "" {
		if err := s.orders.SetGatewayOrderID(ctx, order.MerchantOrderID, result.GatewayOrderID); err != nil {
			logger.ErrorWithFields("Failed to store gateway order id", err, map[string]interface{}{
				"merchant_order_id": order.MerchantOrderID,
			})
		}
	}

	resp := &model.CreatePaymentResponse{
		MerchantOrderID: order.MerchantOrderID,
		GatewayOrderID:  result.GatewayOrderID,
		RedirectURL:     result.RedirectURL,
		State:           result.State,
	}
	if result.ExpireAt != nil {
		t := time.UnixMilli(*result.ExpireAt)
		resp.ExpireAt = &t
	}

	logger.Info("Payment created", map[string]interface{}{
		"merchant_order_id": order.MerchantOrderID,
		"gateway_order_id":  result.GatewayOrderID,
	})
	return resp, nil
}
