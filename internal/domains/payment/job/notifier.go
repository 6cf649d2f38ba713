package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	orderModel "payment-reconciler/internal/domains/order/model"
	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/internal/shared"
	"payment-reconciler/internal/shared/utils"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqNotifier turns committed transitions into payment:notify tasks.
type AsynqNotifier struct {
	client   Enqueuer
	maxRetry int
}

func NewAsynqNotifier(client Enqueuer, maxRetry int) *AsynqNotifier {
	return &AsynqNotifier{client: client, maxRetry: maxRetry}
}

func (n *AsynqNotifier) PaymentSettled(ctx context.Context, order *orderModel.Order, source model.RecordSource) error {
	payload := shared.PaymentSettledPayload{
		MerchantOrderID: order.MerchantOrderID,
		PaymentState:    string(order.PaymentState),
		Source:          string(source),
		CustomerEmail:   utils.Deref(order.CustomerEmail),
		SettledAt:       order.UpdatedAt,
	}
	task, err := utils.MarshalTask(shared.TypePaymentNotify, payload)
	if err != nil {
		return err
	}

	// one notification per order, even if two instances race to enqueue
	_, err = n.client.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueueCritical),
		asynq.MaxRetry(n.maxRetry),
		asynq.TaskID("notify:"+order.MerchantOrderID),
		asynq.Retention(24*time.Hour),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue payment notification: %w", err)
	}
	return nil
}
