package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	orderModel "payment-reconciler/internal/domains/order/model"
	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/internal/domains/payment/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =====================================================
// SERVICE MOCK
// =====================================================

type serviceMock struct{ mock.Mock }

var _ service.ReconcileService = (*serviceMock)(nil)

func (m *serviceMock) HandleWebhook(ctx context.Context, in model.WebhookInput) (*model.WebhookResult, error) {
	args := m.Called(in)
	res, _ := args.Get(0).(*model.WebhookResult)
	return res, args.Error(1)
}

func (m *serviceMock) HandleRedirect(ctx context.Context, req model.RedirectRequest) model.RedirectDecision {
	return m.Called(req).Get(0).(model.RedirectDecision)
}

func (m *serviceMock) CreatePayment(ctx context.Context, req model.CreatePaymentRequest) (*model.CreatePaymentResponse, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*model.CreatePaymentResponse)
	return res, args.Error(1)
}

func (m *serviceMock) VerifyCardPayment(ctx context.Context, req model.CardVerificationRequest) (*model.CardVerificationResponse, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*model.CardVerificationResponse)
	return res, args.Error(1)
}

func (m *serviceMock) ApplyPayment(ctx context.Context, id string, rec *model.PaymentRecord) (*orderModel.Order, error) {
	args := m.Called(id, rec)
	res, _ := args.Get(0).(*orderModel.Order)
	return res, args.Error(1)
}

func (m *serviceMock) ReconcileOrder(ctx context.Context, id string) (*model.ReconcileResponse, error) {
	args := m.Called(id)
	res, _ := args.Get(0).(*model.ReconcileResponse)
	return res, args.Error(1)
}

func (m *serviceMock) ReconcileStalePending(ctx context.Context, olderThan time.Duration, limit int) (*model.SweepResult, error) {
	args := m.Called(olderThan, limit)
	res, _ := args.Get(0).(*model.SweepResult)
	return res, args.Error(1)
}

func (m *serviceMock) GetOrder(ctx context.Context, id string) (*orderModel.Order, error) {
	args := m.Called(id)
	res, _ := args.Get(0).(*orderModel.Order)
	return res, args.Error(1)
}

func (m *serviceMock) WebhookHistory(ctx context.Context, id string, limit int) ([]model.WebhookLog, error) {
	args := m.Called(id, limit)
	res, _ := args.Get(0).([]model.WebhookLog)
	return res, args.Error(1)
}

func newRouter(svc service.ReconcileService) *gin.Engine {
	h := NewPaymentHandler(svc)
	r := gin.New()
	r.POST("/webhooks/phonepe", h.Webhook)
	r.GET("/payments/redirect", h.Redirect)
	r.POST("/payments/redirect", h.Redirect)
	r.POST("/payments", h.CreatePayment)
	r.POST("/payments/verify", h.VerifyCardPayment)
	r.POST("/admin/payments/:merchant_order_id/reconcile", h.AdminReconcile)
	r.GET("/admin/payments/:merchant_order_id", h.AdminGetOrder)
	r.GET("/admin/payments/:merchant_order_id/webhooks", h.AdminWebhookHistory)
	return r
}

// =====================================================
// WEBHOOK
// =====================================================

func TestWebhook_StatusCodes(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name     string
		result   *model.WebhookResult
		err      error
		wantCode int
		wantBody string
	}{
		{name: "applied", result: &model.WebhookResult{Outcome: model.OutcomeApplied}, wantCode: http.StatusOK, wantBody: `"applied"`},
		{name: "duplicate still 200", result: &model.WebhookResult{Outcome: model.OutcomeDuplicate}, wantCode: http.StatusOK},
		{name: "deferred still 200", result: &model.WebhookResult{Outcome: model.OutcomeDeferred}, wantCode: http.StatusOK},
		{name: "bad signature", err: model.NewInvalidSignatureError(), wantCode: http.StatusUnauthorized, wantBody: model.ErrCodeInvalidSignature},
		{name: "origin", err: model.NewOriginRejectedError("1.2.3.4"), wantCode: http.StatusForbidden, wantBody: model.ErrCodeOriginRejected},
		{name: "malformed", err: model.NewInvalidPayloadError(json.Unmarshal([]byte("{"), new(map[string]any))), wantCode: http.StatusBadRequest},
		{name: "tampered", err: model.NewReplayTamperedError("wh:1"), wantCode: http.StatusConflict, wantBody: model.ErrCodeReplayTampered},
		{name: "stale", err: model.NewReplayStaleError("wh:1"), wantCode: http.StatusConflict},
		{name: "unclassified", err: context.DeadlineExceeded, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := new(serviceMock)
			svc.On("HandleWebhook", mock.MatchedBy(func(in model.WebhookInput) bool {
				return string(in.Body) == `{"event":"order.completed"}` &&
					in.Signature == "abc" &&
					in.DeliveryID == "d-1" &&
					in.RemoteIP == "192.0.2.10"
			})).Return(tt.result, tt.err)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/phonepe", strings.NewReader(`{"event":"order.completed"}`))
			req.RemoteAddr = "192.0.2.10:5555"
			req.Header.Set(model.HeaderSignature, "abc")
			req.Header.Set(model.HeaderDeliveryID, "d-1")
			w := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(w, req)

			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				require.Contains(t, w.Body.String(), tt.wantBody)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestWebhook_DeliveryIDTooLong(t *testing.T) {
	t.Parallel()

	svc := new(serviceMock)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/phonepe", strings.NewReader(`{"event":"order.failed"}`))
	req.Header.Set(model.HeaderDeliveryID, strings.Repeat("d", model.MaxDeliveryIDLength+1))
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "HandleWebhook", mock.Anything)
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	t.Parallel()

	svc := new(serviceMock)
	body := bytes.Repeat([]byte("a"), model.MaxWebhookBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/phonepe", bytes.NewReader(body))
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	svc.AssertNotCalled(t, "HandleWebhook", mock.Anything)
}

// =====================================================
// REDIRECT
// =====================================================

func TestRedirect(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name   string
		method string
		target string
		body   string
	}{
		{name: "get query", method: http.MethodGet, target: "/payments/redirect?code=PAYMENT_SUCCESS&state=COMPLETED&merchantOrderId=ORD123"},
		{name: "post form", method: http.MethodPost, target: "/payments/redirect", body: "code=PAYMENT_SUCCESS&state=COMPLETED&merchantOrderId=ORD123"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := new(serviceMock)
			svc.On("HandleRedirect", model.RedirectRequest{Code: "PAYMENT_SUCCESS", State: "COMPLETED", MerchantOrderID: "ORD123"}).
				Return(model.RedirectDecision{Outcome: model.RedirectSuccess, Location: "https://shop.example/confirm?order_id=ORD123"})

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			w := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(w, req)

			require.Equal(t, http.StatusFound, w.Code)
			require.Equal(t, "https://shop.example/confirm?order_id=ORD123", w.Header().Get("Location"))
		})
	}
}

// =====================================================
// CHECKOUT + ADMIN
// =====================================================

func TestCreatePayment(t *testing.T) {
	t.Parallel()

	svc := new(serviceMock)
	svc.On("CreatePayment", mock.MatchedBy(func(r model.CreatePaymentRequest) bool {
		return r.MerchantOrderID == "ORD1" && r.Amount.String() == "499.5"
	})).Return(&model.CreatePaymentResponse{MerchantOrderID: "ORD1", GatewayOrderID: "OMO1"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"merchant_order_id":"ORD1","amount":"499.50"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), `"gateway_order_id":"OMO1"`)
}

func TestCreatePayment_Conflict(t *testing.T) {
	t.Parallel()

	svc := new(serviceMock)
	svc.On("CreatePayment", mock.Anything).Return(nil, model.NewOrderNotPendingError("ORD1", "COMPLETED"))

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"merchant_order_id":"ORD1","amount":1}`))
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), model.ErrCodeOrderNotPending)
}

func TestVerifyCardPayment(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		name     string
		resp     *model.CardVerificationResponse
		err      error
		wantCode int
	}{
		{name: "verified", resp: &model.CardVerificationResponse{Verified: true}, wantCode: http.StatusOK},
		{name: "mismatch", resp: &model.CardVerificationResponse{Reason: "signature mismatch"}, wantCode: http.StatusBadRequest},
		{name: "not configured", err: model.NewVerifierNotConfiguredError(), wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := new(serviceMock)
			svc.On("VerifyCardPayment", mock.Anything).Return(tt.resp, tt.err)

			req := httptest.NewRequest(http.MethodPost, "/payments/verify", strings.NewReader(`{"razorpay_order_id":"o","razorpay_payment_id":"p","razorpay_signature":"ab","merchant_order_id":"ORD1","amount":1}`))
			w := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(w, req)
			require.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestAdminEndpoints(t *testing.T) {
	t.Parallel()

	svc := new(serviceMock)
	svc.On("ReconcileOrder", "ORD1").Return(&model.ReconcileResponse{MerchantOrderID: "ORD1", PaymentState: orderModel.PaymentStateCompleted, Changed: true}, nil)
	svc.On("ReconcileOrder", "GONE").Return(nil, model.NewOrderNotFoundError("GONE"))
	svc.On("GetOrder", "ORD1").Return(&orderModel.Order{MerchantOrderID: "ORD1"}, nil)
	svc.On("WebhookHistory", "ORD1", 5).Return([]model.WebhookLog{{RequestID: "wh:1"}}, nil)
	r := newRouter(svc)

	var tests = []struct {
		name     string
		method   string
		target   string
		wantCode int
		wantBody string
	}{
		{name: "reconcile", method: http.MethodPost, target: "/admin/payments/ORD1/reconcile", wantCode: http.StatusOK, wantBody: `"changed":true`},
		{name: "reconcile missing", method: http.MethodPost, target: "/admin/payments/GONE/reconcile", wantCode: http.StatusNotFound},
		{name: "get order", method: http.MethodGet, target: "/admin/payments/ORD1", wantCode: http.StatusOK, wantBody: `"merchant_order_id":"ORD1"`},
		{name: "history", method: http.MethodGet, target: "/admin/payments/ORD1/webhooks?limit=5", wantCode: http.StatusOK, wantBody: `"wh:1"`},
		{name: "history bad limit", method: http.MethodGet, target: "/admin/payments/ORD1/webhooks?limit=x", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				require.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}
