package repository

import (
	"context"

	"github.com/google/uuid"

	"payment-reconciler/internal/domains/payment/model"
)

// =====================================================
// WEBHOOK LOG REPOSITORY INTERFACE
// =====================================================
type WebhookRepository interface {
	// Create is called as soon as a delivery passes authentication and replay admission
	Create(ctx context.Context, log *model.WebhookLog) error

	// MarkProcessed records how the delivery ended
	MarkProcessed(ctx context.Context, id uuid.UUID, outcome string, processingErr *string) error

	// SetArchiveKey links the raw body stored in object storage
	SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error

	// ListByMerchantOrderID returns the newest deliveries for an order
	ListByMerchantOrderID(ctx context.Context, merchantOrderID string, limit int) ([]model.WebhookLog, error)
}
