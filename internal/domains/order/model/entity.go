package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// PAYMENT STATE
// =====================================================

// PaymentState is the order's payment lifecycle. COMPLETED and FAILED are terminal.
type PaymentState string

const (
	PaymentStatePending   PaymentState = "PENDING"
	PaymentStateCompleted PaymentState = "COMPLETED"
	PaymentStateFailed    PaymentState = "FAILED"
)

func (s PaymentState) IsTerminal() bool {
	return s == PaymentStateCompleted || s == PaymentStateFailed
}

func (s PaymentState) IsValid() bool {
	switch s {
	case PaymentStatePending, PaymentStateCompleted, PaymentStateFailed:
		return true
	}
	return false
}

// ParsePaymentState maps a gateway state string. Unknown values return ok=false.
func ParsePaymentState(raw string) (PaymentState, bool) {
	s := PaymentState(raw)
	return s, s.IsValid()
}

// CanTransition reports whether moving from s to next changes persisted state.
// PENDING -> PENDING is a self-loop and terminal states never move.
func (s PaymentState) CanTransition(next PaymentState) bool {
	return s == PaymentStatePending && next.IsTerminal()
}

// =====================================================
// ENTITY: Order
// =====================================================

// Order is the persisted aggregate, keyed by the merchant order id.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	MerchantOrderID string          `json:"merchant_order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	CustomerEmail   *string         `json:"customer_email,omitempty"`

	PaymentState         PaymentState        `json:"payment_state"`
	GatewayOrderID       *string             `json:"gateway_order_id,omitempty"`
	PaymentTransactionID *string             `json:"payment_transaction_id,omitempty"`
	UTR                  *string             `json:"utr,omitempty"`
	PaymentMode          *string             `json:"payment_mode,omitempty"`
	BankName             *string             `json:"bank_name,omitempty"`
	AccountType          *string             `json:"account_type,omitempty"`
	CardLast4            *string             `json:"card_last4,omitempty"`
	FeeAmount            decimal.NullDecimal `json:"fee_amount"`
	PayableAmount        decimal.NullDecimal `json:"payable_amount"`
	PaymentTimestamp     *time.Time          `json:"payment_timestamp,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) IsTerminal() bool {
	return o.PaymentState.IsTerminal()
}

// Clone returns a deep copy, used by the in-memory store so callers never share pointers.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.CustomerEmail = cloneString(o.CustomerEmail)
	c.GatewayOrderID = cloneString(o.GatewayOrderID)
	c.PaymentTransactionID = cloneString(o.PaymentTransactionID)
	c.UTR = cloneString(o.UTR)
	c.PaymentMode = cloneString(o.PaymentMode)
	c.BankName = cloneString(o.BankName)
	c.AccountType = cloneString(o.AccountType)
	c.CardLast4 = cloneString(o.CardLast4)
	if o.PaymentTimestamp != nil {
		ts := *o.PaymentTimestamp
		c.PaymentTimestamp = &ts
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// CreatePendingInput carries what the upstream order flow knows at creation time.
type CreatePendingInput struct {
	MerchantOrderID string
	Amount          decimal.Decimal
	Currency        string
	CustomerEmail   string
}

const DefaultCurrency = "INR"
