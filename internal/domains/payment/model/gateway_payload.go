package model

import "encoding/json"

// =====================================================
// RAW GATEWAY ORDER STATUS
// =====================================================
// Shapes returned by the gateway's order status endpoint and embedded in
// webhook payloads. Amounts are integer paise. Every nested field is optional:
// depth varies with the payment method.

type OrderStatusPayload struct {
	MerchantOrderID string           `json:"merchantOrderId,omitempty"`
	OrderID         string           `json:"orderId,omitempty"`
	State           string           `json:"state,omitempty"`
	Amount          *int64           `json:"amount,omitempty"`
	PayableAmount   *int64           `json:"payableAmount,omitempty"`
	FeeAmount       *int64           `json:"feeAmount,omitempty"`
	ExpireAt        *int64           `json:"expireAt,omitempty"`
	ErrorCode       string           `json:"errorCode,omitempty"`
	PaymentDetails  []PaymentAttempt `json:"paymentDetails,omitempty"`
}

// PaymentAttempt is one sub-payment try for an order (retried UPI collect, etc).
type PaymentAttempt struct {
	PaymentMode      string            `json:"paymentMode,omitempty"`
	TransactionID    string            `json:"transactionId,omitempty"`
	Timestamp        *int64            `json:"timestamp,omitempty"` // epoch millis
	Amount           *int64            `json:"amount,omitempty"`
	PayableAmount    *int64            `json:"payableAmount,omitempty"`
	FeeAmount        *int64            `json:"feeAmount,omitempty"`
	State            string            `json:"state,omitempty"`
	ErrorCode        string            `json:"errorCode,omitempty"`
	Rail             *Rail             `json:"rail,omitempty"`
	Instrument       *Instrument       `json:"instrument,omitempty"`
	SplitInstruments []SplitInstrument `json:"splitInstruments,omitempty"`
}

// Rail is the transfer mechanism metadata (UPI, card network, netbanking).
type Rail struct {
	Type             string `json:"type,omitempty"`
	UTR              string `json:"utr,omitempty"`
	UPITransactionID string `json:"upiTransactionId,omitempty"`
	VPA              string `json:"vpa,omitempty"`
}

type Instrument struct {
	Type                string `json:"type,omitempty"`
	MaskedAccountNumber string `json:"maskedAccountNumber,omitempty"`
	AccountType         string `json:"accountType,omitempty"`
	AccountHolderName   string `json:"accountHolderName,omitempty"`
	IFSC                string `json:"ifsc,omitempty"`
}

// SplitInstrument is one funding source of a split payment.
type SplitInstrument struct {
	Amount     *int64      `json:"amount,omitempty"`
	Rail       *Rail       `json:"rail,omitempty"`
	Instrument *Instrument `json:"instrument,omitempty"`
}

// HasDetail reports whether the entry carries bank or VPA evidence.
func (s SplitInstrument) HasDetail() bool {
	if s.Instrument != nil && (s.Instrument.AccountHolderName != "" || s.Instrument.MaskedAccountNumber != "") {
		return true
	}
	return s.Rail != nil && s.Rail.VPA != ""
}

// =====================================================
// WEBHOOK ENVELOPE
// =====================================================

// WebhookEnvelope is the outer body of a gateway callback.
// Payload is kept raw so the replay fingerprint covers the exact bytes.
type WebhookEnvelope struct {
	Event     string          `json:"event"`
	Timestamp *int64          `json:"timestamp,omitempty"` // epoch millis, optional
	Payload   json.RawMessage `json:"payload"`
}

// =====================================================
// CREATE PAYMENT (gateway side)
// =====================================================

type GatewayCreateRequest struct {
	MerchantOrderID string
	AmountPaise     int64
	RedirectURL     string
	ExpireAfter     int // seconds
	Message         string
}

type GatewayCreateResult struct {
	GatewayOrderID string
	RedirectURL    string
	State          string
	ExpireAt       *int64 // epoch millis
}
