package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// =====================================================
// WEBHOOK LOG ENTITY
// =====================================================

// Verification results recorded in the audit log.
const (
	VerificationVerified   = "verified"
	VerificationUnverified = "unverified"
	VerificationBypassed   = "bypassed"
	VerificationRejected   = "rejected"
)

// WebhookLog is the audit trail of every delivery, rejected signatures included.
type WebhookLog struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	RequestID       string          `json:"request_id" db:"request_id"`
	Gateway         string          `json:"gateway" db:"gateway"`
	Event           string          `json:"event" db:"event"`
	MerchantOrderID string          `json:"merchant_order_id" db:"merchant_order_id"`
	DeliveryID      *string         `json:"delivery_id,omitempty" db:"delivery_id"`
	RemoteIP        string          `json:"remote_ip" db:"remote_ip"`
	Verification    string          `json:"verification" db:"verification"`
	Body            json.RawMessage `json:"body" db:"body"`
	Outcome         *string         `json:"outcome,omitempty" db:"outcome"`
	ProcessingError *string         `json:"processing_error,omitempty" db:"processing_error"`
	ArchiveKey      *string         `json:"archive_key,omitempty" db:"archive_key"`
	ReceivedAt      time.Time       `json:"received_at" db:"received_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
}
