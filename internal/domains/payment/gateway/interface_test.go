package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"

	"payment-reconciler/internal/domains/payment/model"
)

func TestExtractTransactionID(t *testing.T) {
	t.Parallel()

	require.Empty(t, ExtractTransactionID(nil))
	require.Empty(t, ExtractTransactionID(&model.OrderStatusPayload{}))

	p := &model.OrderStatusPayload{PaymentDetails: []model.PaymentAttempt{
		{TransactionID: "F1", State: "FAILED"},
		{TransactionID: "C1", State: "COMPLETED"},
	}}
	require.Equal(t, "C1", ExtractTransactionID(p))

	p.PaymentDetails[1].State = "PENDING"
	require.Equal(t, "F1", ExtractTransactionID(p))
}
