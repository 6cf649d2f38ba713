package shared

import "time"

// =====================================================
// QUEUES & TASK TYPES
// =====================================================
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"

	TypePaymentNotify         = "payment:notify"
	TypePaymentReconcileStale = "payment:reconcile_stale"
)

// PaymentSettledPayload is enqueued when an order reaches a terminal payment state.
type PaymentSettledPayload struct {
	MerchantOrderID string    `json:"merchant_order_id"`
	PaymentState    string    `json:"payment_state"`
	Source          string    `json:"source"`
	CustomerEmail   string    `json:"customer_email,omitempty"`
	SettledAt       time.Time `json:"settled_at"`
}

// ReconcileStalePayload drives the periodic sweep of orders stuck in PENDING.
type ReconcileStalePayload struct {
	OlderThan time.Duration `json:"older_than"`
	Limit     int           `json:"limit"`
}
