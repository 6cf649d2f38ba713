package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"payment-reconciler/internal/domains/order/model"
	paymentModel "payment-reconciler/internal/domains/payment/model"
)

func seedPending(t *testing.T, repo *MemoryOrderRepository, id string) {
	t.Helper()
	_, err := repo.CreatePending(context.Background(), model.CreatePendingInput{
		MerchantOrderID: id,
		Amount:          decimal.RequireFromString("499.00"),
	})
	require.NoError(t, err)
}

func completedRecord() *paymentModel.PaymentRecord {
	return &paymentModel.PaymentRecord{
		State:          model.PaymentStateCompleted,
		GatewayOrderID: "OMO123",
		TransactionID:  "T2401",
		UTR:            "UTR998",
		PaymentMode:    "UPI_COLLECT",
		BankName:       "ybl",
		FeeAmount:      decimal.NewNullDecimal(decimal.RequireFromString("499.00")),
		PayableAmount:  decimal.NewNullDecimal(decimal.RequireFromString("499.00")),
		Timestamp:      time.UnixMilli(1724866793837),
		Source:         paymentModel.SourceLiveStatus,
	}
}

func TestMemoryOrderRepository_UpdateWithPayment(t *testing.T) {
	t.Parallel()

	failed := &paymentModel.PaymentRecord{State: model.PaymentStateFailed, Timestamp: time.Now()}
	pending := &paymentModel.PaymentRecord{State: model.PaymentStatePending}

	var tests = []struct {
		name        string
		records     []*paymentModel.PaymentRecord
		wantState   model.PaymentState
		wantChanged []bool
		wantWrites  int
	}{
		{
			name:        "pending to completed",
			records:     []*paymentModel.PaymentRecord{completedRecord()},
			wantState:   model.PaymentStateCompleted,
			wantChanged: []bool{true},
			wantWrites:  1,
		},
		{
			name:        "same record twice is idempotent",
			records:     []*paymentModel.PaymentRecord{completedRecord(), completedRecord()},
			wantState:   model.PaymentStateCompleted,
			wantChanged: []bool{true, false},
			wantWrites:  1,
		},
		{
			name:        "late failure cannot downgrade completed",
			records:     []*paymentModel.PaymentRecord{completedRecord(), failed},
			wantState:   model.PaymentStateCompleted,
			wantChanged: []bool{true, false},
			wantWrites:  1,
		},
		{
			name:        "pending report is a self loop",
			records:     []*paymentModel.PaymentRecord{pending},
			wantState:   model.PaymentStatePending,
			wantChanged: []bool{false},
			wantWrites:  0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := NewMemoryOrderRepository()
			seedPending(t, repo, "ORD123")

			var last *model.Order
			for i, rec := range tt.records {
				order, changed, err := repo.UpdateWithPayment(context.Background(), "ORD123", rec)
				require.NoError(t, err)
				require.Equal(t, tt.wantChanged[i], changed)
				last = order
			}

			require.Equal(t, tt.wantState, last.PaymentState)
			require.Equal(t, tt.wantWrites, repo.Writes())
		})
	}
}

func TestMemoryOrderRepository_ApplyTwiceMatchesApplyOnce(t *testing.T) {
	t.Parallel()

	once := NewMemoryOrderRepository()
	twice := NewMemoryOrderRepository()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	once.SetClock(func() time.Time { return fixed })
	twice.SetClock(func() time.Time { return fixed })
	seedPending(t, once, "ORD1")
	seedPending(t, twice, "ORD1")

	a, _, err := once.UpdateWithPayment(context.Background(), "ORD1", completedRecord())
	require.NoError(t, err)
	_, _, err = twice.UpdateWithPayment(context.Background(), "ORD1", completedRecord())
	require.NoError(t, err)
	b, changed, err := twice.UpdateWithPayment(context.Background(), "ORD1", completedRecord())
	require.NoError(t, err)
	require.False(t, changed)

	b.ID = a.ID
	require.Equal(t, a, b)
	require.Equal(t, "UTR998", *b.UTR)
	require.True(t, b.FeeAmount.Decimal.Equal(decimal.RequireFromString("499")))
}

func TestMemoryOrderRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewMemoryOrderRepository()

	_, err := repo.FindByMerchantOrderID(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrOrderNotFound)

	_, _, err = repo.UpdateWithPayment(context.Background(), "missing", completedRecord())
	require.ErrorIs(t, err, model.ErrOrderNotFound)

	require.ErrorIs(t, repo.SetGatewayOrderID(context.Background(), "missing", "OMO1"), model.ErrOrderNotFound)
}

func TestMemoryOrderRepository_CreatePendingDuplicate(t *testing.T) {
	t.Parallel()

	repo := NewMemoryOrderRepository()
	seedPending(t, repo, "ORD1")

	_, err := repo.CreatePending(context.Background(), model.CreatePendingInput{MerchantOrderID: "ORD1"})
	require.ErrorIs(t, err, model.ErrOrderAlreadyExists)
}

func TestMemoryOrderRepository_ConcurrentTerminalWrites(t *testing.T) {
	t.Parallel()

	repo := NewMemoryOrderRepository()
	seedPending(t, repo, "ORD1")

	var wg sync.WaitGroup
	results := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := completedRecord()
			if i%2 == 1 {
				rec = &paymentModel.PaymentRecord{State: model.PaymentStateFailed}
			}
			_, changed, err := repo.UpdateWithPayment(context.Background(), "ORD1", rec)
			if err != nil {
				t.Error(err)
			}
			results <- changed
		}(i)
	}
	wg.Wait()
	close(results)

	changedCount := 0
	for c := range results {
		if c {
			changedCount++
		}
	}
	require.Equal(t, 1, changedCount)
	require.Equal(t, 1, repo.Writes())
}

func TestMemoryOrderRepository_ListStalePending(t *testing.T) {
	t.Parallel()

	repo := NewMemoryOrderRepository()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"OLD1", "OLD2", "NEW1"} {
		at := base.Add(time.Duration(i) * time.Hour)
		repo.SetClock(func() time.Time { return at })
		seedPending(t, repo, id)
	}
	_, _, err := repo.UpdateWithPayment(context.Background(), "OLD2", completedRecord())
	require.NoError(t, err)

	stale, err := repo.ListStalePending(context.Background(), base.Add(90*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "OLD1", stale[0].MerchantOrderID)
}
