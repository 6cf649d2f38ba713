package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	orderModel "payment-reconciler/internal/domains/order/model"
	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/internal/infrastructure/email"
	"payment-reconciler/internal/shared"
	"payment-reconciler/internal/shared/utils"
)

// =====================================================
// MOCKS
// =====================================================

type enqueuerMock struct{ mock.Mock }

func (m *enqueuerMock) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(task.Type(), string(task.Payload()))
	return nil, args.Error(0)
}

type emailMock struct{ mock.Mock }

func (m *emailMock) SendEmail(ctx context.Context, req email.EmailRequest) error {
	return m.Called(req).Error(0)
}

func (m *emailMock) SendPaymentOutcome(ctx context.Context, data email.PaymentOutcomeData) error {
	return m.Called(data).Error(0)
}

type reconcilerMock struct{ mock.Mock }

func (m *reconcilerMock) ReconcileStalePending(ctx context.Context, olderThan time.Duration, limit int) (*model.SweepResult, error) {
	args := m.Called(olderThan, limit)
	res, _ := args.Get(0).(*model.SweepResult)
	return res, args.Error(1)
}

// =====================================================
// TESTS
// =====================================================

func TestAsynqNotifier(t *testing.T) {
	t.Parallel()

	settled := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	customerEmail := "buyer@example.com"
	order := &orderModel.Order{
		MerchantOrderID: "ORD1",
		PaymentState:    orderModel.PaymentStateCompleted,
		CustomerEmail:   &customerEmail,
		UpdatedAt:       settled,
	}

	var tests = []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "enqueued"},
		{name: "already enqueued by another instance", err: asynq.ErrTaskIDConflict},
		{name: "redis down", err: errors.New("dial tcp"), wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := new(enqueuerMock)
			client.On("EnqueueContext", shared.TypePaymentNotify, mock.MatchedBy(func(p string) bool {
				return p == `{"merchant_order_id":"ORD1","payment_state":"COMPLETED","source":"webhook","customer_email":"buyer@example.com","settled_at":"2026-03-01T10:00:00Z"}`
			})).Return(tt.err)

			err := NewAsynqNotifier(client, 5).PaymentSettled(context.Background(), order, model.SourceWebhook)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			client.AssertExpectations(t)
		})
	}
}

func TestPaymentNotifyHandler(t *testing.T) {
	t.Parallel()

	t.Run("sends", func(t *testing.T) {
		t.Parallel()
		svc := new(emailMock)
		svc.On("SendPaymentOutcome", mock.MatchedBy(func(d email.PaymentOutcomeData) bool {
			return d.MerchantOrderID == "ORD1" && d.PaymentState == "FAILED"
		})).Return(nil)

		task, err := utils.MarshalTask(shared.TypePaymentNotify, shared.PaymentSettledPayload{MerchantOrderID: "ORD1", PaymentState: "FAILED"})
		require.NoError(t, err)
		require.NoError(t, NewPaymentNotifyHandler(svc).ProcessTask(context.Background(), task))
		svc.AssertExpectations(t)
	})

	t.Run("smtp failure is retried", func(t *testing.T) {
		t.Parallel()
		svc := new(emailMock)
		svc.On("SendPaymentOutcome", mock.Anything).Return(errors.New("421"))

		task, _ := utils.MarshalTask(shared.TypePaymentNotify, shared.PaymentSettledPayload{MerchantOrderID: "ORD1"})
		err := NewPaymentNotifyHandler(svc).ProcessTask(context.Background(), task)
		require.Error(t, err)
		require.NotErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("bad payload skips retry", func(t *testing.T) {
		t.Parallel()
		err := NewPaymentNotifyHandler(new(emailMock)).ProcessTask(context.Background(), asynq.NewTask(shared.TypePaymentNotify, []byte("{")))
		require.ErrorIs(t, err, asynq.SkipRetry)
	})
}

func TestReconcileStaleHandler(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name      string
		payload   shared.ReconcileStalePayload
		wantAge   time.Duration
		wantLimit int
	}{
		{name: "explicit", payload: shared.ReconcileStalePayload{OlderThan: time.Hour, Limit: 10}, wantAge: time.Hour, wantLimit: 10},
		{name: "defaults", payload: shared.ReconcileStalePayload{}, wantAge: defaultStaleAge, wantLimit: defaultSweepBatch},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := new(reconcilerMock)
			r.On("ReconcileStalePending", tt.wantAge, tt.wantLimit).Return(&model.SweepResult{}, nil)

			task, err := utils.MarshalTask(shared.TypePaymentReconcileStale, tt.payload)
			require.NoError(t, err)
			require.NoError(t, NewReconcileStaleHandler(r).ProcessTask(context.Background(), task))
			r.AssertExpectations(t)
		})
	}
}
