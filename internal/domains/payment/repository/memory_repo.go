package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"payment-reconciler/internal/domains/payment/model"
)

// MemoryWebhookRepository keeps audit rows in process. Used by tests and the CLI.
type MemoryWebhookRepository struct {
	mu   sync.Mutex
	logs map[uuid.UUID]*model.WebhookLog
}

var _ WebhookRepository = (*MemoryWebhookRepository)(nil)

func NewMemoryWebhookRepository() *MemoryWebhookRepository {
	return &MemoryWebhookRepository{logs: make(map[uuid.UUID]*model.WebhookLog)}
}

func (r *MemoryWebhookRepository) Create(_ context.Context, log *model.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.ReceivedAt.IsZero() {
		log.ReceivedAt = time.Now()
	}
	c := *log
	r.logs[log.ID] = &c
	return nil
}

func (r *MemoryWebhookRepository) MarkProcessed(_ context.Context, id uuid.UUID, outcome string, processingErr *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.logs[id]; ok {
		now := time.Now()
		l.Outcome = &outcome
		l.ProcessingError = processingErr
		l.ProcessedAt = &now
	}
	return nil
}

func (r *MemoryWebhookRepository) SetArchiveKey(_ context.Context, id uuid.UUID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.logs[id]; ok {
		l.ArchiveKey = &key
	}
	return nil
}

func (r *MemoryWebhookRepository) ListByMerchantOrderID(_ context.Context, merchantOrderID string, limit int) ([]model.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.WebhookLog
	for _, l := range r.logs {
		if l.MerchantOrderID == merchantOrderID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored rows.
func (r *MemoryWebhookRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}
