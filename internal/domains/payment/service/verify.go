package service

import (
	"context"

	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/pkg/logger"
)

// VerifyCardPayment is a pure check; nothing is written.
func (s *reconcileService) VerifyCardPayment(ctx context.Context, req model.CardVerificationRequest) (*model.CardVerificationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}
	if s.cardVerifier == nil {
		return nil, model.NewVerifierNotConfiguredError()
	}

	ok, reason, err := s.cardVerifier.VerifyPayment(ctx, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Warn("Card payment verification failed", map[string]interface{}{
			"merchant_order_id": req.MerchantOrderID,
			"reason":            reason,
		})
	}

	return &model.CardVerificationResponse{
		Verified:        ok,
		MerchantOrderID: req.MerchantOrderID,
		Reason:          reason,
	}, nil
}
