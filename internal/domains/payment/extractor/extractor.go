package extractor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	orderModel "payment-reconciler/internal/domains/order/model"
	"payment-reconciler/internal/domains/payment/model"
)

var ErrUnknownState = errors.New("payload carries no recognizable payment state")

// Options carries what the payload itself may not.
type Options struct {
	Source model.RecordSource
	// StoredAmount is the order amount on record, the last resort for fee/payable.
	StoredAmount decimal.NullDecimal
}

type Extractor struct {
	now func() time.Time
}

func New() *Extractor {
	return &Extractor{now: time.Now}
}

// Extract turns a raw order status into a PaymentRecord.
func (e *Extractor) Extract(p *model.OrderStatusPayload, opts Options) (*model.PaymentRecord, error) {
	if p == nil {
		return nil, fmt.Errorf("extract: %w", model.ErrInvalidPayload)
	}

	// Step 1: pick the authoritative attempt
	attempt := SelectAttempt(p.PaymentDetails)

	// Step 2: classify
	state, ok := orderModel.ParsePaymentState(p.State)
	if !ok && attempt != nil {
		state, ok = orderModel.ParsePaymentState(attempt.State)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, p.State)
	}

	// Step 3: resolve fields through the shape
	shape := ShapeOf(attempt)
	rec := &model.PaymentRecord{
		State:          state,
		GatewayOrderID: p.OrderID,
		TransactionID:  firstOf(shape, FieldUPITransactionID, FieldUTR),
		UTR:            firstOf(shape, FieldUTR, FieldUPITransactionID),
		BankName:       bankName(shape),
		AccountType:    firstOf(shape, FieldAccountType),
		CardLast4:      last4(firstOf(shape, FieldMaskedAccountNumber)),
		Source:         opts.Source,
		Timestamp:      e.now(),
	}

	if attempt != nil {
		if rec.TransactionID == "" {
			rec.TransactionID = attempt.TransactionID
		}
		rec.PaymentMode = attempt.PaymentMode
		if rec.PaymentMode == "" && attempt.Rail != nil {
			rec.PaymentMode = attempt.Rail.Type
		}
		if attempt.Timestamp != nil && *attempt.Timestamp > 0 {
			rec.Timestamp = time.UnixMilli(*attempt.Timestamp)
		}
	}

	// Step 4: amounts, attempt -> order -> requested
	requested := paiseToRupees(p.Amount)
	if !requested.Valid {
		requested = opts.StoredAmount
	}
	var attemptFee, attemptPayable *int64
	if attempt != nil {
		attemptFee, attemptPayable = attempt.FeeAmount, attempt.PayableAmount
	}
	rec.FeeAmount = firstAmount(attemptFee, p.FeeAmount, requested)
	rec.PayableAmount = firstAmount(attemptPayable, p.PayableAmount, requested)

	return rec, nil
}

// SelectAttempt returns the latest COMPLETED attempt, else the latest attempt.
// Ties go to the later entry in the list.
func SelectAttempt(attempts []model.PaymentAttempt) *model.PaymentAttempt {
	if len(attempts) == 0 {
		return nil
	}
	if a := latest(attempts, func(a *model.PaymentAttempt) bool {
		return a.State == string(orderModel.PaymentStateCompleted)
	}); a != nil {
		return a
	}
	return latest(attempts, func(*model.PaymentAttempt) bool { return true })
}

func latest(attempts []model.PaymentAttempt, keep func(*model.PaymentAttempt) bool) *model.PaymentAttempt {
	var best *model.PaymentAttempt
	var bestTs int64 = -1
	for i := range attempts {
		a := &attempts[i]
		if !keep(a) {
			continue
		}
		var ts int64
		if a.Timestamp != nil {
			ts = *a.Timestamp
		}
		if ts >= bestTs {
			best, bestTs = a, ts
		}
	}
	return best
}

func bankName(shape PaymentShape) string {
	if name := firstOf(shape, FieldAccountHolderName); name != "" {
		return name
	}
	vpa := firstOf(shape, FieldVPA)
	if _, suffix, ok := strings.Cut(vpa, "@"); ok {
		return suffix
	}
	return ""
}

func last4(masked string) string {
	masked = strings.TrimSpace(masked)
	if len(masked) <= 4 {
		return masked
	}
	return masked[len(masked)-4:]
}

func firstAmount(attempt, order *int64, requested decimal.NullDecimal) decimal.NullDecimal {
	if v := paiseToRupees(attempt); v.Valid {
		return v
	}
	if v := paiseToRupees(order); v.Valid {
		return v
	}
	return requested
}

func paiseToRupees(p *int64) decimal.NullDecimal {
	if p == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.New(*p, -2))
}
