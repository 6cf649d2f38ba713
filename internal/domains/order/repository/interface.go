package repository

import (
	"context"
	"time"

	"payment-reconciler/internal/domains/order/model"
	paymentModel "payment-reconciler/internal/domains/payment/model"
)

// =====================================================
// ORDER REPOSITORY INTERFACE
// =====================================================

// OrderRepository is the order store used by reconciliation.
// UpdateWithPayment is the only place a terminal payment state is committed.
type OrderRepository interface {
	// CreatePending inserts a new PENDING order. Returns model.ErrOrderAlreadyExists on a duplicate id.
	CreatePending(ctx context.Context, in model.CreatePendingInput) (*model.Order, error)

	// FindByMerchantOrderID returns model.ErrOrderNotFound when the id is unknown.
	FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*model.Order, error)

	SetGatewayOrderID(ctx context.Context, merchantOrderID, gatewayOrderID string) error

	// UpdateWithPayment merges rec into a PENDING order when rec carries a terminal state.
	// Terminal orders and PENDING records are no-ops returning the stored order with changed=false.
	UpdateWithPayment(ctx context.Context, merchantOrderID string, rec *paymentModel.PaymentRecord) (order *model.Order, changed bool, err error)

	// ListStalePending returns PENDING orders created before olderThan, oldest first.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.Order, error)
}

// applyRecord copies the payment evidence onto o. Empty record fields keep what is stored.
func applyRecord(o *model.Order, rec *paymentModel.PaymentRecord, now time.Time) {
	o.PaymentState = rec.State
	setIfPresent(&o.GatewayOrderID, rec.GatewayOrderID)
	setIfPresent(&o.PaymentTransactionID, rec.TransactionID)
	setIfPresent(&o.UTR, rec.UTR)
	setIfPresent(&o.PaymentMode, rec.PaymentMode)
	setIfPresent(&o.BankName, rec.BankName)
	setIfPresent(&o.AccountType, rec.AccountType)
	setIfPresent(&o.CardLast4, rec.CardLast4)
	if rec.FeeAmount.Valid {
		o.FeeAmount = rec.FeeAmount
	}
	if rec.PayableAmount.Valid {
		o.PayableAmount = rec.PayableAmount
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = now
	}
	o.PaymentTimestamp = &ts
	o.UpdatedAt = now
}

func setIfPresent(dst **string, v string) {
	if v == "" {
		return
	}
	s := v
	*dst = &s
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
