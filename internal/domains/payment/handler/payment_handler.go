package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/internal/domains/payment/service"
	"payment-reconciler/internal/shared/middleware"
	res "payment-reconciler/internal/shared/response"
	"payment-reconciler/pkg/logger"
)

type PaymentHandler struct {
	reconcileService service.ReconcileService
}

// NewPaymentHandler creates new payment handler
func NewPaymentHandler(reconcileService service.ReconcileService) *PaymentHandler {
	return &PaymentHandler{reconcileService: reconcileService}
}

// =====================================================
// GATEWAY CALLBACKS
// =====================================================

// Webhook handles the gateway's server-to-server push
// POST /api/v1/webhooks/phonepe
func (h *PaymentHandler) Webhook(c *gin.Context) {
	// Step 1: Read the raw body, the signature covers exact bytes
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, model.MaxWebhookBodyBytes+1))
	if err != nil {
		res.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidPayload, "Unable to read request body")
		return
	}
	if len(body) > model.MaxWebhookBodyBytes {
		res.ErrorResponse(c, http.StatusRequestEntityTooLarge, model.ErrCodeInvalidPayload, "Request body too large")
		return
	}

	deliveryID := c.GetHeader(model.HeaderDeliveryID)
	if len(deliveryID) > model.MaxDeliveryIDLength {
		res.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidPayload, "Delivery id header too long")
		return
	}

	// Step 2: Call service
	result, err := h.reconcileService.HandleWebhook(c.Request.Context(), model.WebhookInput{
		Body:       body,
		Signature:  c.GetHeader(model.HeaderSignature),
		DeliveryID: deliveryID,
		RemoteIP:   middleware.GetClientIP(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	// Step 3: Acknowledge. Anything 2xx stops gateway retries.
	res.Success(c, http.StatusOK, string(result.Outcome), result)
}

// Redirect sends the returning buyer to the storefront page matching the live status
// GET/POST /api/v1/payments/redirect
func (h *PaymentHandler) Redirect(c *gin.Context) {
	var req model.RedirectRequest
	if err := c.ShouldBind(&req); err != nil {
		// fall through: an empty id lands on the system error page
		logger.Warn("Unparseable redirect parameters", map[string]interface{}{"error": err.Error()})
	}

	decision := h.reconcileService.HandleRedirect(c.Request.Context(), req)
	c.Redirect(http.StatusFound, decision.Location)
}

// =====================================================
// CHECKOUT ENDPOINTS
// =====================================================

// CreatePayment registers a pending order with the gateway
// POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	// Step 1: Bind request body
	var req model.CreatePaymentRequest
	if err := bindJSON(c, &req); err != nil {
		res.BadRequest(c, err.Error())
		return
	}

	// Step 2: Call service (validates)
	response, err := h.reconcileService.CreatePayment(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	// Step 3: Return response
	res.Success(c, http.StatusCreated, "Payment created", response)
}

// VerifyCardPayment checks a card callback signature tuple
// POST /api/v1/payments/verify
func (h *PaymentHandler) VerifyCardPayment(c *gin.Context) {
	var req model.CardVerificationRequest
	if err := bindJSON(c, &req); err != nil {
		res.BadRequest(c, err.Error())
		return
	}

	response, err := h.reconcileService.VerifyCardPayment(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	if !response.Verified {
		res.ErrorWithDetails(c, http.StatusBadRequest, "VERIFICATION_FAILED", "Payment verification failed", response)
		return
	}
	res.Success(c, http.StatusOK, "Payment verified", response)
}

// =====================================================
// ADMIN ENDPOINTS
// =====================================================

// AdminReconcile re-runs live status reconciliation for one order
// POST /api/v1/admin/payments/:merchant_order_id/reconcile
func (h *PaymentHandler) AdminReconcile(c *gin.Context) {
	id := c.Param("merchant_order_id")

	response, err := h.reconcileService.ReconcileOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	logger.Info("Manual reconcile", map[string]interface{}{
		"merchant_order_id": id,
		"operator":          middleware.GetSubject(c),
		"changed":           response.Changed,
	})
	res.Success(c, http.StatusOK, "Order reconciled", response)
}

// AdminGetOrder returns the persisted order
// GET /api/v1/admin/payments/:merchant_order_id
func (h *PaymentHandler) AdminGetOrder(c *gin.Context) {
	order, err := h.reconcileService.GetOrder(c.Request.Context(), c.Param("merchant_order_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	res.Success(c, http.StatusOK, "OK", order)
}

// AdminWebhookHistory lists audit log entries for one order
// GET /api/v1/admin/payments/:merchant_order_id/webhooks?limit=20
func (h *PaymentHandler) AdminWebhookHistory(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			res.ErrorResponse(c, http.StatusBadRequest, "INVALID_QUERY", "limit must be a number")
			return
		}
		limit = l
	}

	logs, err := h.reconcileService.WebhookHistory(c.Request.Context(), c.Param("merchant_order_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	res.SuccessWithMeta(c, http.StatusOK, logs, &res.Meta{Limit: limit, Total: len(logs)})
}

// =====================================================
// ERROR MAPPING
// =====================================================

// mapReconcileError picks the HTTP status for an error kind.
func mapReconcileError(err error) (statusCode int, errorCode string, message string) {
	var re *model.ReconcileError
	if !errors.As(err, &re) {
		return http.StatusInternalServerError, model.ErrCodeInternal, "Internal server error"
	}

	switch re.Kind {
	case model.KindAuthentication:
		statusCode = http.StatusUnauthorized
		if errors.Is(err, model.ErrOriginRejected) {
			statusCode = http.StatusForbidden
		}
	case model.KindValidation:
		statusCode = http.StatusBadRequest
	case model.KindReplay, model.KindConflict:
		statusCode = http.StatusConflict
	case model.KindNotFound:
		statusCode = http.StatusNotFound
	case model.KindUpstream:
		statusCode = http.StatusServiceUnavailable
	default:
		statusCode = http.StatusInternalServerError
	}

	message = re.Message
	if statusCode == http.StatusInternalServerError {
		message = "Internal server error"
	}
	return statusCode, re.Code, message
}

func writeError(c *gin.Context, err error) {
	statusCode, code, message := mapReconcileError(err)
	if statusCode >= http.StatusInternalServerError {
		logger.ErrorWithFields("Request failed", err, map[string]interface{}{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(middleware.ContextKeyRequestID),
		})
	}
	_ = c.Error(err)

	var details validation.Errors
	if errors.As(err, &details) {
		res.ErrorWithDetails(c, statusCode, code, message, details)
		return
	}
	res.ErrorResponse(c, statusCode, code, message)
}

// =====================================================
// HELPER FUNCTIONS
// =====================================================

func bindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
