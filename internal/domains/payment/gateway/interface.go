package gateway

import (
	"context"

	orderModel "payment-reconciler/internal/domains/order/model"
	"payment-reconciler/internal/domains/payment/model"
)

// =====================================================
// GATEWAY INTERFACES
// =====================================================

// PaymentGateway is the OAuth-authenticated checkout API.
type PaymentGateway interface {
	// CreatePayment registers a payment and returns the hosted checkout URL
	CreatePayment(ctx context.Context, req model.GatewayCreateRequest) (*model.GatewayCreateResult, error)

	// GetOrderStatus fetches the live order status, with attempt details when includeDetails is set
	GetOrderStatus(ctx context.Context, merchantOrderID string, includeDetails bool) (*model.OrderStatusPayload, error)
}

// CardVerifier checks card-network callback signatures without touching order state.
type CardVerifier interface {
	VerifyPayment(ctx context.Context, req model.CardVerificationRequest) (verified bool, reason string, err error)
}

// ExtractTransactionID returns the gateway transaction id of the completed
// attempt, else of the first attempt. Webhook processing uses the extractor instead.
func ExtractTransactionID(p *model.OrderStatusPayload) string {
	if p == nil || len(p.PaymentDetails) == 0 {
		return ""
	}
	for _, a := range p.PaymentDetails {
		if a.State == string(orderModel.PaymentStateCompleted) && a.TransactionID != "" {
			return a.TransactionID
		}
	}
	return p.PaymentDetails[0].TransactionID
}
