package model

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"

	orderModel "payment-reconciler/internal/domains/order/model"
)

// merchantOrderIDRules is shared by every request that names an order.
var merchantOrderIDRules = []validation.Rule{
	validation.Required,
	validation.Length(1, MaxMerchantOrderIDLength),
	validation.Match(MerchantOrderIDPattern),
}

// =====================================================
// WEBHOOK INPUT / RESULT
// =====================================================

// WebhookInput is the transport-independent view of one webhook delivery.
type WebhookInput struct {
	Body       []byte
	Signature  string
	DeliveryID string
	RemoteIP   string
}

// WebhookOutcome describes what the coordinator did with an authentic delivery.
type WebhookOutcome string

const (
	OutcomeApplied   WebhookOutcome = "applied"
	OutcomeNoChange  WebhookOutcome = "no_change"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeDeferred  WebhookOutcome = "deferred"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeLogged    WebhookOutcome = "logged" // internal failure, acknowledged anyway
)

type WebhookResult struct {
	Outcome         WebhookOutcome `json:"outcome"`
	RequestID       string         `json:"request_id,omitempty"`
	MerchantOrderID string         `json:"merchant_order_id,omitempty"`
	Event           string         `json:"event,omitempty"`
}

// WebhookRequest is the parsed envelope after shape validation.
type WebhookRequest struct {
	Event     string
	Timestamp *int64
	Payload   *OrderStatusPayload
	Raw       []byte // payload bytes as received
}

func (r *WebhookRequest) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Event, validation.Required),
		validation.Field(&r.Payload, validation.NotNil),
	); err != nil {
		return err
	}
	p := r.Payload
	return validation.ValidateStruct(p,
		validation.Field(&p.MerchantOrderID, merchantOrderIDRules...),
		validation.Field(&p.State, validation.Required),
	)
}

// =====================================================
// REDIRECT
// =====================================================

type RedirectRequest struct {
	Code            string `form:"code"`
	State           string `form:"state"`
	MerchantOrderID string `form:"merchantOrderId"`
}

func (r *RedirectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MerchantOrderID, merchantOrderIDRules...),
	)
}

type RedirectOutcome string

const (
	RedirectSuccess     RedirectOutcome = "success"
	RedirectPending     RedirectOutcome = "pending"
	RedirectFailed      RedirectOutcome = "failed"
	RedirectSystemError RedirectOutcome = "system_error"
)

// RedirectDecision is where the buyer's browser goes next.
type RedirectDecision struct {
	Outcome  RedirectOutcome
	Location string
}

// =====================================================
// CREATE PAYMENT
// =====================================================

type CreatePaymentRequest struct {
	MerchantOrderID string          `json:"merchant_order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	CustomerEmail   string          `json:"customer_email"`
}

func (r *CreatePaymentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MerchantOrderID, merchantOrderIDRules...),
		validation.Field(&r.Amount, validation.By(positiveAmount)),
		validation.Field(&r.Currency, validation.In(orderModel.DefaultCurrency)),
		validation.Field(&r.CustomerEmail, is.EmailFormat),
	)
}

func positiveAmount(value interface{}) error {
	amount, _ := value.(decimal.Decimal)
	if !amount.IsPositive() {
		return errors.New("must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return errors.New("must have at most two decimal places")
	}
	return nil
}

type CreatePaymentResponse struct {
	MerchantOrderID string     `json:"merchant_order_id"`
	GatewayOrderID  string     `json:"gateway_order_id"`
	RedirectURL     string     `json:"redirect_url"`
	State           string     `json:"state"`
	ExpireAt        *time.Time `json:"expire_at,omitempty"`
}

// =====================================================
// CARD VERIFICATION
// =====================================================

// CardVerificationRequest is the three-part signature tuple plus the
// order/amount pairing the caller expects.
type CardVerificationRequest struct {
	GatewayOrderID   string          `json:"razorpay_order_id"`
	GatewayPaymentID string          `json:"razorpay_payment_id"`
	Signature        string          `json:"razorpay_signature"`
	MerchantOrderID  string          `json:"merchant_order_id"`
	Amount           decimal.Decimal `json:"amount"`
}

func (r *CardVerificationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.GatewayOrderID, validation.Required),
		validation.Field(&r.GatewayPaymentID, validation.Required),
		validation.Field(&r.Signature, validation.Required, is.Hexadecimal),
		validation.Field(&r.MerchantOrderID, merchantOrderIDRules...),
		validation.Field(&r.Amount, validation.By(positiveAmount)),
	)
}

type CardVerificationResponse struct {
	Verified        bool   `json:"verified"`
	MerchantOrderID string `json:"merchant_order_id"`
	Reason          string `json:"reason,omitempty"`
}

// =====================================================
// ADMIN
// =====================================================

type ReconcileResponse struct {
	MerchantOrderID string                  `json:"merchant_order_id"`
	PaymentState    orderModel.PaymentState `json:"payment_state"`
	Changed         bool                    `json:"changed"`
	// TransactionID is what the live status reported, set only when it was queried
	TransactionID string            `json:"transaction_id,omitempty"`
	Order         *orderModel.Order `json:"order,omitempty"`
}

type SweepResult struct {
	Scanned int `json:"scanned"`
	Settled int `json:"settled"`
	Failed  int `json:"failed"`
}
