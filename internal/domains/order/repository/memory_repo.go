package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"payment-reconciler/internal/domains/order/model"
	paymentModel "payment-reconciler/internal/domains/payment/model"
)

// MemoryOrderRepository is an in-process order store for tests and local runs.
// A single mutex makes UpdateWithPayment atomic.
type MemoryOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	now    func() time.Time

	// Writes counts committed payment updates.
	writes int
}

var _ OrderRepository = (*MemoryOrderRepository)(nil)

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]*model.Order),
		now:    time.Now,
	}
}

func (r *MemoryOrderRepository) CreatePending(_ context.Context, in model.CreatePendingInput) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[in.MerchantOrderID]; exists {
		return nil, model.ErrOrderAlreadyExists
	}

	currency := in.Currency
	if currency == "" {
		currency = model.DefaultCurrency
	}
	now := r.now()
	o := &model.Order{
		ID:              uuid.New(),
		MerchantOrderID: in.MerchantOrderID,
		Amount:          in.Amount,
		Currency:        currency,
		CustomerEmail:   nullableString(in.CustomerEmail),
		PaymentState:    model.PaymentStatePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.orders[in.MerchantOrderID] = o
	return o.Clone(), nil
}

func (r *MemoryOrderRepository) FindByMerchantOrderID(_ context.Context, merchantOrderID string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[merchantOrderID]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryOrderRepository) SetGatewayOrderID(_ context.Context, merchantOrderID, gatewayOrderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[merchantOrderID]
	if !ok {
		return model.ErrOrderNotFound
	}
	setIfPresent(&o.GatewayOrderID, gatewayOrderID)
	o.UpdatedAt = r.now()
	return nil
}

func (r *MemoryOrderRepository) UpdateWithPayment(_ context.Context, merchantOrderID string, rec *paymentModel.PaymentRecord) (*model.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[merchantOrderID]
	if !ok {
		return nil, false, model.ErrOrderNotFound
	}
	if !o.PaymentState.CanTransition(rec.State) {
		return o.Clone(), false, nil
	}

	applyRecord(o, rec, r.now())
	r.writes++
	return o.Clone(), true, nil
}

func (r *MemoryOrderRepository) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Order
	for _, o := range r.orders {
		if o.PaymentState == model.PaymentStatePending && o.CreatedAt.Before(olderThan) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Writes returns how many payment updates were committed.
func (r *MemoryOrderRepository) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// SetClock overrides the time source.
func (r *MemoryOrderRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}
