package model

import (
	"errors"
	"fmt"
)

// =====================================================
// PREDEFINED ERRORS
// =====================================================

var (
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrOriginRejected        = errors.New("webhook origin not allowed")
	ErrInvalidPayload        = errors.New("invalid webhook payload")
	ErrInvalidOrderID        = errors.New("invalid merchant order id")
	ErrReplayTampered        = errors.New("replayed delivery with different payload")
	ErrReplayStale           = errors.New("stale webhook event")
	ErrOrderNotFound         = errors.New("order not found")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrOrderNotPending       = errors.New("order is not pending")
	ErrVerifierNotConfigured = errors.New("card verifier not configured")
)

// =====================================================
// ERROR TAXONOMY
// =====================================================

// ErrorKind classifies failures so the transport layer can pick a status code
// without knowing the cause.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindValidation     ErrorKind = "validation"
	KindReplay         ErrorKind = "replay"
	KindNotFound       ErrorKind = "not_found"
	KindUpstream       ErrorKind = "upstream"
	KindConflict       ErrorKind = "conflict"
	KindInternal       ErrorKind = "internal"
)

type ReconcileError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *ReconcileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

func NewReconcileError(kind ErrorKind, code, message string, err error) *ReconcileError {
	return &ReconcileError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the kind carried by err, KindInternal for anything unclassified.
func KindOf(err error) ErrorKind {
	var re *ReconcileError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

// =====================================================
// ERROR CONSTRUCTORS
// =====================================================

func NewInvalidSignatureError() *ReconcileError {
	return NewReconcileError(KindAuthentication, ErrCodeInvalidSignature,
		"Invalid webhook signature - possible forgery", ErrInvalidSignature)
}

func NewOriginRejectedError(ip string) *ReconcileError {
	return NewReconcileError(KindAuthentication, ErrCodeOriginRejected,
		fmt.Sprintf("Webhook origin %s is not allowed", ip), ErrOriginRejected)
}

func NewInvalidPayloadError(reason error) *ReconcileError {
	return NewReconcileError(KindValidation, ErrCodeInvalidPayload,
		"Malformed webhook payload", fmt.Errorf("%w: %v", ErrInvalidPayload, reason))
}

func NewInvalidOrderIDError(id string) *ReconcileError {
	return NewReconcileError(KindValidation, ErrCodeInvalidOrderID,
		fmt.Sprintf("Invalid merchant order id: %q", id), ErrInvalidOrderID)
}

func NewReplayTamperedError(requestID string) *ReconcileError {
	return NewReconcileError(KindReplay, ErrCodeReplayTampered,
		fmt.Sprintf("Delivery %s replayed with a different payload", requestID), ErrReplayTampered)
}

func NewReplayStaleError(requestID string) *ReconcileError {
	return NewReconcileError(KindReplay, ErrCodeReplayStale,
		fmt.Sprintf("Delivery %s is older than the accepted window", requestID), ErrReplayStale)
}

func NewOrderNotFoundError(merchantOrderID string) *ReconcileError {
	return NewReconcileError(KindNotFound, ErrCodeOrderNotFound,
		fmt.Sprintf("Order not found: %s", merchantOrderID), ErrOrderNotFound)
}

func NewUpstreamError(operation string, err error) *ReconcileError {
	return NewReconcileError(KindUpstream, ErrCodeGatewayUnavailable,
		fmt.Sprintf("Gateway %s failed", operation), fmt.Errorf("%w: %v", ErrGatewayUnavailable, err))
}

func NewOrderNotPendingError(merchantOrderID string, state string) *ReconcileError {
	return NewReconcileError(KindConflict, ErrCodeOrderNotPending,
		fmt.Sprintf("Order %s is already %s", merchantOrderID, state), ErrOrderNotPending)
}

func NewVerifierNotConfiguredError() *ReconcileError {
	return NewReconcileError(KindUpstream, ErrCodeVerifierNotConfigured,
		"Card verification is not configured", ErrVerifierNotConfigured)
}

func NewValidationError(err error) *ReconcileError {
	return NewReconcileError(KindValidation, ErrCodeInvalidPayload, "Validation failed", err)
}

func NewInternalError(message string, err error) *ReconcileError {
	return NewReconcileError(KindInternal, ErrCodeInternal, message, err)
}
