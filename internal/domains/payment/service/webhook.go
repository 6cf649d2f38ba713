package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	orderModel "payment-reconciler/internal/domains/order/model"
	"payment-reconciler/internal/domains/payment/extractor"
	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/internal/domains/payment/replay"
	"payment-reconciler/internal/domains/payment/signature"
	"payment-reconciler/internal/shared/utils"
	"payment-reconciler/pkg/logger"
	"payment-reconciler/pkg/metrics"
)

const (
	archiveTimeout = 10 * time.Second

	// fixed metric label for events outside the enum
	unknownEventLabel = "unknown"
	// payment_webhook_logs.event is VARCHAR(64)
	maxAuditEventLength = 64
)

// errDeferred marks a delivery acknowledged without applying, left for redelivery or the sweep.
var errDeferred = errors.New("deferred")

// =====================================================
// WEBHOOK PATH
// =====================================================

func (s *reconcileService) HandleWebhook(ctx context.Context, in model.WebhookInput) (*model.WebhookResult, error) {
	// Step 1: origin
	if !s.origins.Allows(in.RemoteIP) {
		metrics.WebhooksReceived.WithLabelValues("unknown", "origin_rejected").Inc()
		logger.Warn("Webhook from disallowed origin", map[string]interface{}{"remote_ip": in.RemoteIP})
		return nil, model.NewOriginRejectedError(in.RemoteIP)
	}

	// Step 2: signature over the raw body
	verification := s.verifier.Check(in.Body, in.Signature)
	metrics.SignatureChecks.WithLabelValues(verification.String()).Inc()
	if !verification.Accepted() {
		logger.Warn("Webhook signature rejected", map[string]interface{}{"remote_ip": in.RemoteIP})
		s.recordRejected(ctx, in)
		return nil, model.NewInvalidSignatureError()
	}

	// Step 3: shape
	req, err := parseWebhook(in.Body)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues("unknown", "invalid_payload").Inc()
		return nil, model.NewInvalidPayloadError(err)
	}
	event, known := model.ParseWebhookEvent(req.Event)
	eventLabel, eventName := unknownEventLabel, truncate(req.Event, maxAuditEventLength)
	if known {
		eventLabel, eventName = string(event), string(event)
	}

	result := &model.WebhookResult{
		MerchantOrderID: req.Payload.MerchantOrderID,
		Event:           eventName,
	}

	// Step 4: replay admission
	requestID := replay.RequestID(eventName, req.Payload.MerchantOrderID, req.Payload.OrderID, req.Payload.State, in.DeliveryID)
	result.RequestID = requestID
	admission := s.guard.Admit(ctx, requestID, replay.Fingerprint(req.Raw), replay.EventTimestamp(req.Timestamp))
	metrics.ReplayDecisions.WithLabelValues(string(admission.Decision)).Inc()

	switch admission.Decision {
	case replay.Duplicate:
		result.Outcome = model.OutcomeDuplicate
		metrics.WebhooksReceived.WithLabelValues(eventLabel, string(result.Outcome)).Inc()
		return result, nil
	case replay.Tampered:
		metrics.WebhooksReceived.WithLabelValues(eventLabel, "tampered").Inc()
		return nil, model.NewReplayTamperedError(requestID)
	case replay.Stale:
		metrics.WebhooksReceived.WithLabelValues(eventLabel, "stale").Inc()
		logger.Warn("Stale webhook rejected", map[string]interface{}{
			"request_id":        requestID,
			"merchant_order_id": req.Payload.MerchantOrderID,
		})
		return nil, model.NewReplayStaleError(requestID)
	}

	// Step 5: audit trail
	logID := s.recordDelivery(ctx, in, req, requestID, eventName, verification)

	// Step 6: dispatch
	var procErr error
	if !known {
		logger.Warn("Unhandled webhook event ignored", map[string]interface{}{
			"event":             req.Event,
			"merchant_order_id": req.Payload.MerchantOrderID,
		})
		result.Outcome = model.OutcomeIgnored
	} else {
		result.Outcome, procErr = s.dispatch(ctx, event, req)
	}

	// Step 7: deferred deliveries are forgotten so a redelivery gets processed
	if result.Outcome == model.OutcomeDeferred {
		if err := s.guard.Release(ctx, requestID); err != nil {
			logger.Error("Failed to release replay entry", err)
		}
	}
	if procErr != nil {
		logger.ErrorWithFields("Webhook processing failed, acknowledged to stop retries", procErr, map[string]interface{}{
			"request_id":        requestID,
			"merchant_order_id": req.Payload.MerchantOrderID,
			"event":             eventName,
		})
	}

	s.finishDelivery(ctx, logID, result.Outcome, procErr)
	metrics.WebhooksReceived.WithLabelValues(eventLabel, string(result.Outcome)).Inc()
	return result, nil
}

// dispatch handles every member of model.WebhookEvent. Adding an event to the
// enum without a case here trips TestDispatch_CoversAllEvents.
func (s *reconcileService) dispatch(ctx context.Context, event model.WebhookEvent, req *model.WebhookRequest) (model.WebhookOutcome, error) {
	var (
		rec *model.PaymentRecord
		err error
	)

	switch event {
	case model.EventOrderCompleted:
		rec, err = s.completedRecord(ctx, req.Payload)
	case model.EventOrderFailed:
		rec, err = s.failedRecord(ctx, req.Payload)
	case model.EventRefundCompleted, model.EventRefundFailed:
		logger.Info("Refund webhook acknowledged", map[string]interface{}{
			"event":             string(event),
			"merchant_order_id": req.Payload.MerchantOrderID,
		})
		return model.OutcomeIgnored, nil
	default:
		return "", fmt.Errorf("no handler for event %q", event)
	}

	if errors.Is(err, errDeferred) {
		return model.OutcomeDeferred, nil
	}
	if err != nil {
		return model.OutcomeLogged, err
	}

	order, changed, err := s.apply(ctx, req.Payload.MerchantOrderID, rec)
	switch {
	case err != nil:
		return model.OutcomeLogged, err
	case order == nil:
		return model.OutcomeDeferred, nil
	case changed:
		return model.OutcomeApplied, nil
	default:
		return model.OutcomeNoChange, nil
	}
}

// completedRecord prefers the live status; webhooks are often shallow.
func (s *reconcileService) completedRecord(ctx context.Context, payload *model.OrderStatusPayload) (*model.PaymentRecord, error) {
	stored := s.storedAmount(ctx, payload.MerchantOrderID)

	_, rec, err := s.liveRecord(ctx, payload.MerchantOrderID, stored)
	if err == nil {
		return rec, nil
	}

	if !s.trustEmbedded {
		logger.Warn("Live status unavailable, deferring completed webhook", map[string]interface{}{
			"merchant_order_id": payload.MerchantOrderID,
			"error":             err.Error(),
		})
		return nil, errDeferred
	}

	logger.Warn("Live status unavailable, using embedded webhook payload", map[string]interface{}{
		"merchant_order_id": payload.MerchantOrderID,
		"error":             err.Error(),
	})
	return s.embeddedRecord(ctx, payload)
}

// failedRecord trusts the embedded payload only for a failure. Any other state
// carried by a failed event is confirmed against the live status, never applied as is.
func (s *reconcileService) failedRecord(ctx context.Context, payload *model.OrderStatusPayload) (*model.PaymentRecord, error) {
	rec, err := s.embeddedRecord(ctx, payload)
	if err != nil {
		return nil, err
	}
	if rec.State == orderModel.PaymentStateFailed {
		return rec, nil
	}

	logger.Warn("Failed webhook carries a different state, checking live status", map[string]interface{}{
		"merchant_order_id": payload.MerchantOrderID,
		"state":             payload.State,
	})
	_, live, err := s.liveRecord(ctx, payload.MerchantOrderID, s.storedAmount(ctx, payload.MerchantOrderID))
	if err != nil {
		return nil, errDeferred
	}
	return live, nil
}

func (s *reconcileService) embeddedRecord(ctx context.Context, payload *model.OrderStatusPayload) (*model.PaymentRecord, error) {
	return s.extractor.Extract(payload, extractor.Options{
		Source:       model.SourceWebhook,
		StoredAmount: s.storedAmount(ctx, payload.MerchantOrderID),
	})
}

// =====================================================
// PARSING
// =====================================================

func parseWebhook(body []byte) (*model.WebhookRequest, error) {
	var env model.WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	req := &model.WebhookRequest{
		Event:     env.Event,
		Timestamp: env.Timestamp,
		Raw:       env.Payload,
	}
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		var p model.OrderStatusPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		req.Payload = &p
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// =====================================================
// AUDIT
// =====================================================

func (s *reconcileService) recordDelivery(ctx context.Context, in model.WebhookInput, req *model.WebhookRequest, requestID, event string, verification signature.Result) uuid.UUID {
	entry := &model.WebhookLog{
		ID:              uuid.New(),
		RequestID:       requestID,
		Gateway:         model.GatewayPhonePe,
		Event:           event,
		MerchantOrderID: req.Payload.MerchantOrderID,
		DeliveryID:      utils.StringPtr(in.DeliveryID),
		RemoteIP:        in.RemoteIP,
		Verification:    verification.String(),
		Body:            json.RawMessage(in.Body),
		ReceivedAt:      time.Now(),
	}

	if s.webhooks != nil {
		if err := s.webhooks.Create(ctx, entry); err != nil {
			logger.ErrorWithFields("Failed to write webhook log", err, map[string]interface{}{"request_id": requestID})
		}
	}

	if s.archiver != nil {
		key := archiveKey(entry)
		body := append([]byte(nil), in.Body...)
		go func() {
			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
			defer cancel()
			if err := s.archiver.Archive(actx, key, body); err != nil {
				logger.ErrorWithFields("Failed to archive webhook body", err, map[string]interface{}{"key": key})
				return
			}
			if s.webhooks != nil {
				if err := s.webhooks.SetArchiveKey(actx, entry.ID, key); err != nil {
					logger.Error("Failed to link archive key", err)
				}
			}
		}()
	}

	return entry.ID
}

// recordRejected keeps forged or misconfigured deliveries visible in the audit log.
func (s *reconcileService) recordRejected(ctx context.Context, in model.WebhookInput) {
	if s.webhooks == nil {
		return
	}
	outcome := "rejected"
	entry := &model.WebhookLog{
		ID:           uuid.New(),
		RequestID:    "rejected:" + uuid.NewString(),
		Gateway:      model.GatewayPhonePe,
		DeliveryID:   utils.StringPtr(in.DeliveryID),
		RemoteIP:     in.RemoteIP,
		Verification: model.VerificationRejected,
		Outcome:      &outcome,
		ReceivedAt:   time.Now(),
	}
	// jsonb column: keep the body only when it parses
	if json.Valid(in.Body) {
		entry.Body = json.RawMessage(in.Body)
	}
	if err := s.webhooks.Create(ctx, entry); err != nil {
		logger.Error("Failed to write rejected webhook log", err)
	}
}

func (s *reconcileService) finishDelivery(ctx context.Context, id uuid.UUID, outcome model.WebhookOutcome, procErr error) {
	if s.webhooks == nil {
		return
	}
	var msg *string
	if procErr != nil {
		m := procErr.Error()
		msg = &m
	}
	if err := s.webhooks.MarkProcessed(ctx, id, string(outcome), msg); err != nil {
		logger.Error("Failed to mark webhook processed", err)
	}
}

func truncate(v string, n int) string {
	if len(v) <= n {
		return v
	}
	return v[:n]
}

// archiveKey: webhooks/<yyyy>/<mm>/<dd>/<requestId>.json
func archiveKey(l *model.WebhookLog) string {
	return fmt.Sprintf("webhooks/%s/%s.json", l.ReceivedAt.UTC().Format("2006/01/02"), strings.TrimPrefix(l.RequestID, "wh:"))
}
