package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	rzp "github.com/razorpay/razorpay-go"

	"payment-reconciler/internal/domains/payment/gateway"
	"payment-reconciler/internal/domains/payment/model"
)

// OrderFetcher is the slice of the Razorpay Orders API the verifier needs.
// *resources.Order from razorpay-go satisfies it.
type OrderFetcher interface {
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Config struct {
	KeyID     string
	KeySecret string
	// ConfirmAmount cross-checks amount and receipt against the Orders API.
	ConfirmAmount bool
}

// Verifier checks the (order_id, payment_id, signature) tuple sent after card checkout.
type Verifier struct {
	secret        string
	confirmAmount bool
	orders        OrderFetcher
}

var _ gateway.CardVerifier = (*Verifier)(nil)

func NewVerifier(cfg Config) *Verifier {
	client := rzp.NewClient(cfg.KeyID, cfg.KeySecret)
	return &Verifier{
		secret:        cfg.KeySecret,
		confirmAmount: cfg.ConfirmAmount,
		orders:        client.Order,
	}
}

// NewVerifierWithFetcher is used when the Orders API is reached through another client.
func NewVerifierWithFetcher(secret string, orders OrderFetcher) *Verifier {
	return &Verifier{secret: secret, confirmAmount: orders != nil, orders: orders}
}

// VerifyPayment never mutates anything. A false result carries a reason.
func (v *Verifier) VerifyPayment(_ context.Context, req model.CardVerificationRequest) (bool, string, error) {
	if v.secret == "" {
		return false, "", model.NewVerifierNotConfiguredError()
	}

	// Step 1: signature = HMAC-SHA256(order_id|payment_id)
	if !hmac.Equal([]byte(Sign(v.secret, req.GatewayOrderID, req.GatewayPaymentID)), []byte(req.Signature)) {
		return false, "signature mismatch", nil
	}

	if !v.confirmAmount || v.orders == nil {
		return true, "", nil
	}

	// Step 2: amount/order pairing
	order, err := v.orders.Fetch(req.GatewayOrderID, nil, nil)
	if err != nil {
		return false, "", model.NewUpstreamError("order fetch", err)
	}

	expected := req.Amount.Shift(2).IntPart()
	if got, ok := numberField(order["amount"]); !ok || got != expected {
		return false, fmt.Sprintf("amount mismatch: expected %d paise", expected), nil
	}
	if receipt, _ := order["receipt"].(string); receipt != "" && receipt != req.MerchantOrderID {
		return false, "order pairing mismatch", nil
	}
	return true, "", nil
}

// Sign computes the checkout signature. Exposed for tooling.
func Sign(secret, orderID, paymentID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(h.Sum(nil))
}

func numberField(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
