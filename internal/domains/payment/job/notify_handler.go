package job

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"payment-reconciler/internal/infrastructure/email"
	"payment-reconciler/internal/shared"
	"payment-reconciler/internal/shared/utils"
	"payment-reconciler/pkg/logger"
)

type PaymentNotifyHandler struct {
	emailService email.EmailService
}

func NewPaymentNotifyHandler(emailService email.EmailService) *PaymentNotifyHandler {
	return &PaymentNotifyHandler{emailService: emailService}
}

func (h *PaymentNotifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload shared.PaymentSettledPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return err
	}

	logger.Info("Processing payment notification", map[string]interface{}{
		"merchant_order_id": payload.MerchantOrderID,
		"state":             payload.PaymentState,
	})

	err := h.emailService.SendPaymentOutcome(ctx, email.PaymentOutcomeData{
		MerchantOrderID: payload.MerchantOrderID,
		PaymentState:    payload.PaymentState,
		Source:          payload.Source,
		CustomerEmail:   payload.CustomerEmail,
		SettledAt:       payload.SettledAt,
	})
	if err != nil {
		// Lỗi SMTP/mạng: để asynq retry
		return fmt.Errorf("send payment outcome: %w", err)
	}
	return nil
}
