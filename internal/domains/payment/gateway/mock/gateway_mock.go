package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"payment-reconciler/internal/domains/payment/gateway"
	"payment-reconciler/internal/domains/payment/model"
)

// =====================================================
// MOCK GATEWAY FOR TESTING
// =====================================================

type Gateway struct{ mock.Mock }

var _ gateway.PaymentGateway = (*Gateway)(nil)

func (m *Gateway) CreatePayment(ctx context.Context, req model.GatewayCreateRequest) (*model.GatewayCreateResult, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*model.GatewayCreateResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Gateway) GetOrderStatus(ctx context.Context, merchantOrderID string, includeDetails bool) (*model.OrderStatusPayload, error) {
	args := m.Called(ctx, merchantOrderID, includeDetails)
	if v := args.Get(0); v != nil {
		return v.(*model.OrderStatusPayload), args.Error(1)
	}
	return nil, args.Error(1)
}

type CardVerifier struct{ mock.Mock }

var _ gateway.CardVerifier = (*CardVerifier)(nil)

func (m *CardVerifier) VerifyPayment(ctx context.Context, req model.CardVerificationRequest) (bool, string, error) {
	args := m.Called(ctx, req)
	return args.Bool(0), args.String(1), args.Error(2)
}
