package extractor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	orderModel "payment-reconciler/internal/domains/order/model"
	"payment-reconciler/internal/domains/payment/model"
)

func i64(v int64) *int64 { return &v }

func fixedExtractor(now time.Time) *Extractor {
	return &Extractor{now: func() time.Time { return now }}
}

func decodePayload(t *testing.T, raw string) *model.OrderStatusPayload {
	t.Helper()
	var p model.OrderStatusPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

func TestExtract_FieldFallbacks(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name   string
		raw    string
		assert func(t *testing.T, rec *model.PaymentRecord)
	}{
		{
			name: "utr from first split entry when top-level rail lacks it",
			raw: `{"state":"COMPLETED","paymentDetails":[{"state":"COMPLETED","timestamp":1,
				"rail":{"type":"UPI"},
				"splitInstruments":[{"rail":{"utr":"SPLITUTR"}},{}]}]}`,
			assert: func(t *testing.T, rec *model.PaymentRecord) {
				require.Equal(t, "SPLITUTR", rec.UTR)
				require.Equal(t, "SPLITUTR", rec.TransactionID)
			},
		},
		{
			name: "bank name from second split entry when first is empty",
			raw: `{"state":"COMPLETED","paymentDetails":[{"state":"COMPLETED","timestamp":1,
				"splitInstruments":[{},{"instrument":{"accountHolderName":"HDFC Bank","accountType":"SAVINGS","maskedAccountNumber":"XXXX1234"}}]}]}`,
			assert: func(t *testing.T, rec *model.PaymentRecord) {
				require.Equal(t, "HDFC Bank", rec.BankName)
				require.Equal(t, "SAVINGS", rec.AccountType)
				require.Equal(t, "1234", rec.CardLast4)
			},
		},
		{
			name: "upi transaction id preferred over utr for transaction id",
			raw: `{"state":"COMPLETED","paymentDetails":[{"state":"COMPLETED","timestamp":1,
				"rail":{"utr":"TOPUTR","upiTransactionId":"TOPUPI"}}]}`,
			assert: func(t *testing.T, rec *model.PaymentRecord) {
				require.Equal(t, "TOPUPI", rec.TransactionID)
				require.Equal(t, "TOPUTR", rec.UTR)
			},
		},
		{
			name: "split upi id beats top-level upi id",
			raw: `{"state":"COMPLETED","paymentDetails":[{"state":"COMPLETED","timestamp":1,
				"rail":{"upiTransactionId":"TOPUPI","utr":"TOPUTR"},
				"splitInstruments":[{"rail":{"upiTransactionId":"SPLITUPI"}}]}]}`,
			assert: func(t *testing.T, rec *model.PaymentRecord) {
				require.Equal(t, "SPLITUPI", rec.TransactionID)
				require.Equal(t, "TOPUTR", rec.UTR)
			},
		},
		{
			name: "utr falls back to upi transaction id",
			raw: `{"state":"COMPLETED","paymentDetails":[{"state":"COMPLETED","timestamp":1,
				"rail":{"upiTransactionId":"ONLYUPI"}}]}`,
			assert: func(t *testing.T, rec *model.PaymentRecord) {
				require.Equal(t, "ONLYUPI", rec.UTR)
			},
		},
		{
			name: "bank name from vpa suffix",
			raw: `{"state":"COMPLETED","paymentDetails":[{"state":"COMPLETED","timestamp":1,
				"rail":{"type":"UPI","vpa":"buyer@okaxis"}}]}`,
			assert: func(t *testing.T, rec *model.PaymentRecord) {
				require.Equal(t, "okaxis", rec.BankName)
				require.Equal(t, "UPI", rec.PaymentMode)
			},
		},
		{
			name: "attempt transaction id is the last resort",
			raw: `{"state":"COMPLETED","paymentDetails":[{"state":"COMPLETED","timestamp":1,
				"transactionId":"OM123","paymentMode":"CARD"}]}`,
			assert: func(t *testing.T, rec *model.PaymentRecord) {
				require.Equal(t, "OM123", rec.TransactionID)
				require.Equal(t, "CARD", rec.PaymentMode)
				require.Empty(t, rec.UTR)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, err := New().Extract(decodePayload(t, tt.raw), Options{Source: model.SourceLiveStatus})
			require.NoError(t, err)
			tt.assert(t, rec)
		})
	}
}

func TestSelectAttempt(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name     string
		attempts []model.PaymentAttempt
		wantTxn  string
	}{
		{name: "none", attempts: nil, wantTxn: ""},
		{
			name: "latest completed wins over newer failed",
			attempts: []model.PaymentAttempt{
				{TransactionID: "C1", State: "COMPLETED", Timestamp: i64(100)},
				{TransactionID: "C2", State: "COMPLETED", Timestamp: i64(200)},
				{TransactionID: "F1", State: "FAILED", Timestamp: i64(300)},
			},
			wantTxn: "C2",
		},
		{
			name: "no completed picks latest of any state",
			attempts: []model.PaymentAttempt{
				{TransactionID: "F1", State: "FAILED", Timestamp: i64(300)},
				{TransactionID: "P1", State: "PENDING", Timestamp: i64(100)},
			},
			wantTxn: "F1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SelectAttempt(tt.attempts)
			if tt.wantTxn == "" {
				require.Nil(t, got)
				return
			}
			require.Equal(t, tt.wantTxn, got.TransactionID)
		})
	}
}

func TestExtract_Amounts(t *testing.T) {
	t.Parallel()

	stored := decimal.NewNullDecimal(decimal.RequireFromString("250.00"))

	var tests = []struct {
		name        string
		payload     *model.OrderStatusPayload
		stored      decimal.NullDecimal
		wantFee     string
		wantPayable string
	}{
		{
			name: "attempt level wins",
			payload: &model.OrderStatusPayload{State: "COMPLETED", Amount: i64(10000), FeeAmount: i64(300),
				PaymentDetails: []model.PaymentAttempt{{State: "COMPLETED", FeeAmount: i64(200), PayableAmount: i64(9800)}}},
			wantFee:     "2",
			wantPayable: "98",
		},
		{
			name:        "order level when attempt lacks it",
			payload:     &model.OrderStatusPayload{State: "COMPLETED", Amount: i64(10000), FeeAmount: i64(300), PayableAmount: i64(9700)},
			wantFee:     "3",
			wantPayable: "97",
		},
		{
			name:        "requested amount as last resort",
			payload:     &model.OrderStatusPayload{State: "COMPLETED", Amount: i64(49900)},
			wantFee:     "499",
			wantPayable: "499",
		},
		{
			name:        "stored amount when payload has none",
			payload:     &model.OrderStatusPayload{State: "COMPLETED"},
			stored:      stored,
			wantFee:     "250",
			wantPayable: "250",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, err := New().Extract(tt.payload, Options{StoredAmount: tt.stored})
			require.NoError(t, err)
			require.True(t, rec.FeeAmount.Valid)
			require.True(t, rec.FeeAmount.Decimal.Equal(decimal.RequireFromString(tt.wantFee)), rec.FeeAmount.Decimal.String())
			require.True(t, rec.PayableAmount.Decimal.Equal(decimal.RequireFromString(tt.wantPayable)))
		})
	}

	t.Run("genuinely absent stays null", func(t *testing.T) {
		t.Parallel()
		rec, err := New().Extract(&model.OrderStatusPayload{State: "FAILED"}, Options{})
		require.NoError(t, err)
		require.False(t, rec.FeeAmount.Valid)
		require.False(t, rec.PayableAmount.Valid)
	})
}

func TestExtract_StateAndTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("timestamp defaults to now", func(t *testing.T) {
		t.Parallel()
		rec, err := fixedExtractor(now).Extract(&model.OrderStatusPayload{State: "PENDING"}, Options{})
		require.NoError(t, err)
		require.Equal(t, now, rec.Timestamp)
		require.Equal(t, orderModel.PaymentStatePending, rec.State)
	})

	t.Run("attempt timestamp used", func(t *testing.T) {
		t.Parallel()
		p := &model.OrderStatusPayload{State: "COMPLETED", OrderID: "OMO9",
			PaymentDetails: []model.PaymentAttempt{{State: "COMPLETED", Timestamp: i64(1724866793837)}}}
		rec, err := fixedExtractor(now).Extract(p, Options{})
		require.NoError(t, err)
		require.Equal(t, time.UnixMilli(1724866793837), rec.Timestamp)
		require.Equal(t, "OMO9", rec.GatewayOrderID)
	})

	t.Run("attempt state when order state missing", func(t *testing.T) {
		t.Parallel()
		p := &model.OrderStatusPayload{PaymentDetails: []model.PaymentAttempt{{State: "FAILED"}}}
		rec, err := New().Extract(p, Options{})
		require.NoError(t, err)
		require.Equal(t, orderModel.PaymentStateFailed, rec.State)
	})

	t.Run("unknown state is an error", func(t *testing.T) {
		t.Parallel()
		_, err := New().Extract(&model.OrderStatusPayload{State: "REVERSED"}, Options{})
		require.ErrorIs(t, err, ErrUnknownState)
	})
}

func TestShapeOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindSimple, ShapeOf(nil).Kind())
	require.Equal(t, KindSimple, ShapeOf(&model.PaymentAttempt{}).Kind())

	split := ShapeOf(&model.PaymentAttempt{SplitInstruments: []model.SplitInstrument{{}, {}}})
	require.Equal(t, KindSplit, split.Kind())
	require.Len(t, split.Scopes(), 2)
}
