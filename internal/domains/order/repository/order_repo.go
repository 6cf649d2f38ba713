package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"payment-reconciler/internal/domains/order/model"
	paymentModel "payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/pkg/database"
	"payment-reconciler/pkg/logger"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================
type postgresOrderRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &postgresOrderRepository{pool: pool}
}

const orderColumns = `
	id, merchant_order_id, amount, currency, customer_email,
	payment_state, gateway_order_id, payment_transaction_id, utr,
	payment_mode, bank_name, account_type, card_last4,
	fee_amount, payable_amount, payment_timestamp,
	created_at, updated_at`

const uniqueViolation = "23505"

// =====================================================
// CREATE
// =====================================================

func (r *postgresOrderRepository) CreatePending(ctx context.Context, in model.CreatePendingInput) (*model.Order, error) {
	currency := in.Currency
	if currency == "" {
		currency = model.DefaultCurrency
	}

	query := `
		INSERT INTO orders (id, merchant_order_id, amount, currency, customer_email, payment_state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + orderColumns

	order, err := scanOrder(r.pool.QueryRow(ctx, query,
		uuid.New(),
		in.MerchantOrderID,
		in.Amount,
		currency,
		nullableString(in.CustomerEmail),
		model.PaymentStatePending,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, model.ErrOrderAlreadyExists
		}
		return nil, fmt.Errorf("failed to create pending order: %w", err)
	}

	return order, nil
}

// =====================================================
// READ
// =====================================================

func (r *postgresOrderRepository) FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE merchant_order_id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, merchantOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (r *postgresOrderRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE payment_state = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, model.PaymentStatePending, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return orders, nil
}

// =====================================================
// UPDATE
// =====================================================

func (r *postgresOrderRepository) SetGatewayOrderID(ctx context.Context, merchantOrderID, gatewayOrderID string) error {
	query := `
		UPDATE orders
		SET gateway_order_id = $2, updated_at = NOW()
		WHERE merchant_order_id = $1`

	result, err := r.pool.Exec(ctx, query, merchantOrderID, gatewayOrderID)
	if err != nil {
		return fmt.Errorf("failed to set gateway order id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

type applyResult struct {
	order   *model.Order
	changed bool
}

// UpdateWithPayment locks the row, checks the transition and writes in one transaction.
// The WHERE on payment_state keeps the update conditional even without the lock.
func (r *postgresOrderRepository) UpdateWithPayment(ctx context.Context, merchantOrderID string, rec *paymentModel.PaymentRecord) (*model.Order, bool, error) {
	res, err := database.WithTransactionResult(ctx, r.pool, func(tx pgx.Tx) (applyResult, error) {
		// Step 1: lock current row
		current, err := scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE merchant_order_id = $1 FOR UPDATE`,
			merchantOrderID,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return applyResult{}, model.ErrOrderNotFound
			}
			return applyResult{}, fmt.Errorf("failed to lock order: %w", err)
		}

		// Step 2: terminal orders and PENDING reports change nothing
		if !current.PaymentState.CanTransition(rec.State) {
			return applyResult{order: current}, nil
		}

		// Step 3: merge in memory, then persist
		merged := current.Clone()
		applyRecord(merged, rec, time.Now())

		query := `
			UPDATE orders SET
				payment_state = $2,
				gateway_order_id = $3,
				payment_transaction_id = $4,
				utr = $5,
				payment_mode = $6,
				bank_name = $7,
				account_type = $8,
				card_last4 = $9,
				fee_amount = $10,
				payable_amount = $11,
				payment_timestamp = $12,
				updated_at = NOW()
			WHERE merchant_order_id = $1 AND payment_state = 'PENDING'
			RETURNING ` + orderColumns

		updated, err := scanOrder(tx.QueryRow(ctx, query,
			merchantOrderID,
			merged.PaymentState,
			merged.GatewayOrderID,
			merged.PaymentTransactionID,
			merged.UTR,
			merged.PaymentMode,
			merged.BankName,
			merged.AccountType,
			merged.CardLast4,
			merged.FeeAmount,
			merged.PayableAmount,
			merged.PaymentTimestamp,
		))
		if err != nil {
			return applyResult{}, fmt.Errorf("failed to update order payment: %w", err)
		}
		return applyResult{order: updated, changed: true}, nil
	})
	if err != nil {
		if !errors.Is(err, model.ErrOrderNotFound) {
			logger.ErrorWithFields("Failed to apply payment", err, map[string]interface{}{
				"merchant_order_id": merchantOrderID,
			})
		}
		return nil, false, err
	}

	return res.order, res.changed, nil
}

// =====================================================
// SCAN HELPER
// =====================================================

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var state string
	err := row.Scan(
		&o.ID,
		&o.MerchantOrderID,
		&o.Amount,
		&o.Currency,
		&o.CustomerEmail,
		&state,
		&o.GatewayOrderID,
		&o.PaymentTransactionID,
		&o.UTR,
		&o.PaymentMode,
		&o.BankName,
		&o.AccountType,
		&o.CardLast4,
		&o.FeeAmount,
		&o.PayableAmount,
		&o.PaymentTimestamp,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentState = model.PaymentState(state)
	return &o, nil
}
