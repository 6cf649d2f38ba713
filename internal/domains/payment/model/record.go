package model

import (
	"time"

	"github.com/shopspring/decimal"

	orderModel "payment-reconciler/internal/domains/order/model"
)

// RecordSource tells where the payment evidence came from.
type RecordSource string

const (
	SourceLiveStatus RecordSource = "live_status"
	SourceWebhook    RecordSource = "webhook"
)

// PaymentRecord is the canonical payment evidence for one reconciliation
// attempt. It is merged into an Order and never stored on its own.
type PaymentRecord struct {
	State          orderModel.PaymentState
	GatewayOrderID string
	TransactionID  string
	UTR            string
	PaymentMode    string
	BankName       string
	AccountType    string
	CardLast4      string
	FeeAmount      decimal.NullDecimal
	PayableAmount  decimal.NullDecimal
	Timestamp      time.Time
	Source         RecordSource
}

// LogFields returns non-sensitive fields for structured logs.
func (r *PaymentRecord) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"state":            string(r.State),
		"gateway_order_id": r.GatewayOrderID,
		"transaction_id":   r.TransactionID,
		"payment_mode":     r.PaymentMode,
		"source":           string(r.Source),
	}
}
