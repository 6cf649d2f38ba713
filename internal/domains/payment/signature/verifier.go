package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"payment-reconciler/pkg/logger"
)

// Result is the outcome of checking one delivery.
type Result int

const (
	// Rejected means the header did not match the body.
	Rejected Result = iota
	// Verified means the header matched.
	Verified
	// Unverified means no secret is provisioned; the delivery is processed with degraded trust.
	Unverified
	// Bypassed means the development switch skipped the check.
	Bypassed
)

func (r Result) String() string {
	switch r {
	case Verified:
		return "verified"
	case Unverified:
		return "unverified"
	case Bypassed:
		return "bypassed"
	default:
		return "rejected"
	}
}

// Accepted reports whether processing may continue.
func (r Result) Accepted() bool {
	return r != Rejected
}

var ErrBypassInProduction = errors.New("signature bypass requires an explicit non-production marker")

type Config struct {
	Secret        string
	DevBypass     bool
	NonProduction bool
}

type Verifier struct {
	secret []byte
	bypass bool
}

// NewVerifier refuses a bypass that is not paired with the non-production marker.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.DevBypass && !cfg.NonProduction {
		return nil, ErrBypassInProduction
	}
	if cfg.DevBypass {
		logger.Warn("Webhook signature verification is DISABLED", map[string]interface{}{
			"reason": "development bypass",
		})
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		bypass: cfg.DevBypass,
	}, nil
}

// Check verifies header against the raw, unparsed body.
func (v *Verifier) Check(body []byte, header string) Result {
	if v.bypass {
		return Bypassed
	}
	if len(v.secret) == 0 {
		logger.Warn("Webhook secret not configured, processing unverified", nil)
		return Unverified
	}
	if Verify(body, header, string(v.secret)) {
		return Verified
	}
	return Rejected
}

// Compute returns the lowercase hex HMAC-SHA256 of body under secret.
func Compute(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. The header must match the hex digest exactly.
func Verify(body []byte, header, secret string) bool {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return false
	}
	expected := Compute(secret, body)
	return hmac.Equal([]byte(expected), []byte(header))
}
