package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"payment-reconciler/internal/domains/payment/model"
)

// =====================================================
// WEBHOOK LOG REPOSITORY IMPLEMENTATION
// =====================================================
type webhookRepository struct {
	pool *pgxpool.Pool
}

func NewWebhookRepository(pool *pgxpool.Pool) WebhookRepository {
	return &webhookRepository{pool: pool}
}

// Create inserts the audit row. Body is stored as JSONB exactly as received.
func (r *webhookRepository) Create(ctx context.Context, log *model.WebhookLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.ReceivedAt.IsZero() {
		log.ReceivedAt = time.Now()
	}

	query := `
		INSERT INTO payment_webhook_logs (
			id, request_id, gateway, event, merchant_order_id,
			delivery_id, remote_ip, verification, body, outcome, received_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.pool.Exec(ctx, query,
		log.ID,
		log.RequestID,
		log.Gateway,
		log.Event,
		log.MerchantOrderID,
		log.DeliveryID,
		log.RemoteIP,
		log.Verification,
		[]byte(log.Body),
		log.Outcome,
		log.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook log: %w", err)
	}
	return nil
}

func (r *webhookRepository) MarkProcessed(ctx context.Context, id uuid.UUID, outcome string, processingErr *string) error {
	query := `
		UPDATE payment_webhook_logs
		SET outcome = $2, processing_error = $3, processed_at = NOW()
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, id, outcome, processingErr); err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	return nil
}

func (r *webhookRepository) SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `UPDATE payment_webhook_logs SET archive_key = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, key); err != nil {
		return fmt.Errorf("failed to set archive key: %w", err)
	}
	return nil
}

func (r *webhookRepository) ListByMerchantOrderID(ctx context.Context, merchantOrderID string, limit int) ([]model.WebhookLog, error) {
	query := `
		SELECT
			id, request_id, gateway, event, merchant_order_id, delivery_id,
			remote_ip, verification, body, outcome, processing_error,
			archive_key, received_at, processed_at
		FROM payment_webhook_logs
		WHERE merchant_order_id = $1
		ORDER BY received_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, merchantOrderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}
	defer rows.Close()

	var logs []model.WebhookLog
	for rows.Next() {
		var l model.WebhookLog
		var body []byte
		if err := rows.Scan(
			&l.ID, &l.RequestID, &l.Gateway, &l.Event, &l.MerchantOrderID, &l.DeliveryID,
			&l.RemoteIP, &l.Verification, &body, &l.Outcome, &l.ProcessingError,
			&l.ArchiveKey, &l.ReceivedAt, &l.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan webhook log: %w", err)
		}
		l.Body = body
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
