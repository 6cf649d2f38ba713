package model

import (
	"regexp"
	"strings"
	"time"
)

// =====================================================
// GATEWAYS
// =====================================================
const (
	GatewayPhonePe  = "phonepe"
	GatewayRazorpay = "razorpay"
)

// =====================================================
// ERROR CODES
// =====================================================
const (
	ErrCodeInvalidSignature      = "PAY001"
	ErrCodeOriginRejected        = "PAY002"
	ErrCodeInvalidPayload        = "PAY003"
	ErrCodeInvalidOrderID        = "PAY004"
	ErrCodeReplayTampered        = "PAY005"
	ErrCodeReplayStale           = "PAY006"
	ErrCodeOrderNotFound         = "PAY007"
	ErrCodeGatewayUnavailable    = "PAY008"
	ErrCodeOrderNotPending       = "PAY009"
	ErrCodeVerifierNotConfigured = "PAY010"
	ErrCodeInternal              = "PAY099"
)

// =====================================================
// WEBHOOK EVENTS
// =====================================================

// WebhookEvent is the closed set of gateway events this service understands.
type WebhookEvent string

const (
	EventOrderCompleted  WebhookEvent = "order.completed"
	EventOrderFailed     WebhookEvent = "order.failed"
	EventRefundCompleted WebhookEvent = "refund.completed"
	EventRefundFailed    WebhookEvent = "refund.failed"
)

// AllWebhookEvents lists every member of the enum. Dispatch tests iterate it
// so a newly added event without a handler fails loudly.
var AllWebhookEvents = []WebhookEvent{
	EventOrderCompleted,
	EventOrderFailed,
	EventRefundCompleted,
	EventRefundFailed,
}

// ParseWebhookEvent accepts the bare names and the gateway's namespaced
// variants ("checkout.order.completed", "pg.refund.failed").
func ParseWebhookEvent(raw string) (WebhookEvent, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.TrimPrefix(name, "checkout.")
	name = strings.TrimPrefix(name, "pg.")

	for _, e := range AllWebhookEvents {
		if string(e) == name {
			return e, true
		}
	}
	return "", false
}

// =====================================================
// BUSINESS CONSTANTS
// =====================================================
const (
	MaxMerchantOrderIDLength = 63

	// Header names used by the webhook endpoint
	HeaderSignature  = "X-Webhook-Signature"
	HeaderDeliveryID = "X-Webhook-Delivery-Id"

	// MaxDeliveryIDLength matches payment_webhook_logs.delivery_id
	MaxDeliveryIDLength = 128

	// MaxWebhookBodyBytes caps how much of a webhook body is read.
	MaxWebhookBodyBytes = 1 << 20

	LiveStatusTimeout = 8 * time.Second
)

// MerchantOrderIDPattern allows only alphanumerics, hyphen and underscore.
var MerchantOrderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// IsValidMerchantOrderID checks format and length before anything touches the gateway.
func IsValidMerchantOrderID(id string) bool {
	return id != "" && len(id) <= MaxMerchantOrderIDLength && MerchantOrderIDPattern.MatchString(id)
}
