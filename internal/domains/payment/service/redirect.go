package service

import (
	"context"
	"net/url"
	"strings"

	orderModel "payment-reconciler/internal/domains/order/model"
	"payment-reconciler/internal/domains/payment/extractor"
	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/pkg/logger"
	"payment-reconciler/pkg/metrics"
)

// =====================================================
// REDIRECT PATH
// =====================================================

func (s *reconcileService) HandleRedirect(ctx context.Context, req model.RedirectRequest) model.RedirectDecision {
	decision := s.classifyRedirect(ctx, req)
	metrics.Redirects.WithLabelValues(string(decision.Outcome)).Inc()
	return decision
}

func (s *reconcileService) classifyRedirect(ctx context.Context, req model.RedirectRequest) model.RedirectDecision {
	// Step 1: reject malformed ids before touching the gateway
	if err := req.Validate(); err != nil {
		logger.Warn("Redirect with invalid merchant order id", map[string]interface{}{
			"merchant_order_id": req.MerchantOrderID,
			"error":             err.Error(),
		})
		return s.systemError()
	}
	id := req.MerchantOrderID

	// Step 2: live status
	lctx, cancel := context.WithTimeout(ctx, s.liveStatusTimeout)
	payload, err := s.gateway.GetOrderStatus(lctx, id, true)
	cancel()
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("order_status").Inc()
		logger.ErrorWithFields("Live status failed on redirect", err, map[string]interface{}{"merchant_order_id": id})
		return s.systemError()
	}

	// Step 3: classify
	state, _ := orderModel.ParsePaymentState(payload.State)
	switch state {
	case orderModel.PaymentStateCompleted:
		s.applyFromRedirect(ctx, id, payload)
		return model.RedirectDecision{
			Outcome:  model.RedirectSuccess,
			Location: buildURL(s.redirect.SuccessURL, "order_id", id),
		}
	case orderModel.PaymentStatePending:
		return model.RedirectDecision{
			Outcome:  model.RedirectPending,
			Location: buildURL(s.redirect.PendingURL, "status", "pending", "orderId", id),
		}
	case orderModel.PaymentStateFailed:
		s.applyFromRedirect(ctx, id, payload)
		return s.failed(id)
	default:
		logger.Warn("Unrecognized live status on redirect", map[string]interface{}{
			"merchant_order_id": id,
			"state":             payload.State,
		})
		return s.failed(id)
	}
}

// applyFromRedirect records the outcome. Failures are logged only: the buyer is
// still sent to the destination matching the gateway's answer.
func (s *reconcileService) applyFromRedirect(ctx context.Context, id string, payload *model.OrderStatusPayload) {
	rec, err := s.extractor.Extract(payload, extractor.Options{
		Source:       model.SourceLiveStatus,
		StoredAmount: s.storedAmount(ctx, id),
	})
	if err != nil {
		logger.ErrorWithFields("Extraction failed on redirect", err, map[string]interface{}{"merchant_order_id": id})
		return
	}
	order, _, err := s.apply(ctx, id, rec)
	if err != nil {
		logger.ErrorWithFields("Apply failed on redirect", err, map[string]interface{}{"merchant_order_id": id})
		return
	}
	if order == nil {
		logger.Warn("Redirect for unknown order, leaving to webhook", map[string]interface{}{"merchant_order_id": id})
	}
}

func (s *reconcileService) failed(id string) model.RedirectDecision {
	return model.RedirectDecision{
		Outcome:  model.RedirectFailed,
		Location: buildURL(s.redirect.FailureURL, "error", "payment_failed", "orderId", id),
	}
}

func (s *reconcileService) systemError() model.RedirectDecision {
	return model.RedirectDecision{
		Outcome:  model.RedirectSystemError,
		Location: buildURL(s.redirect.FailureURL, "error", "system_error"),
	}
}

// buildURL replaces base's query with the given key/value pairs, in order.
func buildURL(base string, kv ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	parts := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		parts = append(parts, url.QueryEscape(kv[i])+"="+url.QueryEscape(kv[i+1]))
	}
	u.RawQuery = strings.Join(parts, "&")
	u.Fragment = ""
	return u.String()
}
