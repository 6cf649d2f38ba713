package service

import (
	"context"
	"time"

	orderModel "payment-reconciler/internal/domains/order/model"
	orderRepo "payment-reconciler/internal/domains/order/repository"
	"payment-reconciler/internal/domains/payment/extractor"
	"payment-reconciler/internal/domains/payment/gateway"
	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/internal/domains/payment/replay"
	"payment-reconciler/internal/domains/payment/repository"
	"payment-reconciler/internal/domains/payment/signature"
	"payment-reconciler/internal/shared/utils"
)

// =====================================================
// RECONCILE SERVICE INTERFACE
// =====================================================
type ReconcileService interface {
	// ============================================
	// GATEWAY ENTRY POINTS
	// ============================================

	// HandleWebhook verifies, dedups and applies one gateway push.
	// Returned errors are *model.ReconcileError; a nil error means acknowledge with 200.
	HandleWebhook(ctx context.Context, in model.WebhookInput) (*model.WebhookResult, error)

	// HandleRedirect classifies a returning buyer. It never fails: every path ends in a redirect.
	HandleRedirect(ctx context.Context, req model.RedirectRequest) model.RedirectDecision

	// ============================================
	// CHECKOUT
	// ============================================

	CreatePayment(ctx context.Context, req model.CreatePaymentRequest) (*model.CreatePaymentResponse, error)

	// VerifyCardPayment checks a card callback signature tuple without mutating state
	VerifyCardPayment(ctx context.Context, req model.CardVerificationRequest) (*model.CardVerificationResponse, error)

	// ============================================
	// RECONCILIATION
	// ============================================

	// ApplyPayment merges rec into the order. Returns nil, nil when the order does not exist yet.
	ApplyPayment(ctx context.Context, merchantOrderID string, rec *model.PaymentRecord) (*orderModel.Order, error)

	// ReconcileOrder queries live status and applies it
	ReconcileOrder(ctx context.Context, merchantOrderID string) (*model.ReconcileResponse, error)

	// ReconcileStalePending settles orders left PENDING longer than olderThan
	ReconcileStalePending(ctx context.Context, olderThan time.Duration, limit int) (*model.SweepResult, error)

	// ============================================
	// LOOKUP
	// ============================================

	GetOrder(ctx context.Context, merchantOrderID string) (*orderModel.Order, error)
	WebhookHistory(ctx context.Context, merchantOrderID string, limit int) ([]model.WebhookLog, error)
}

// Notifier is told about every committed terminal transition.
type Notifier interface {
	PaymentSettled(ctx context.Context, order *orderModel.Order, source model.RecordSource) error
}

// Archiver keeps raw webhook bodies outside the database.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

// RedirectTargets are the buyer-facing destinations.
type RedirectTargets struct {
	SuccessURL string
	PendingURL string
	FailureURL string
}

// Dependencies wires the service. Notifier, Archiver and CardVerifier are optional.
type Dependencies struct {
	Orders       orderRepo.OrderRepository
	Webhooks     repository.WebhookRepository
	Gateway      gateway.PaymentGateway
	CardVerifier gateway.CardVerifier
	Verifier     *signature.Verifier
	Guard        *replay.Guard
	Extractor    *extractor.Extractor
	Notifier     Notifier
	Archiver     Archiver
	Origins      *utils.IPAllowList
	Redirect     RedirectTargets

	// TrustEmbeddedOnUpstreamFailure lets order.completed fall back to the webhook's
	// own payment details when the live status query fails.
	TrustEmbeddedOnUpstreamFailure bool

	LiveStatusTimeout time.Duration
}
