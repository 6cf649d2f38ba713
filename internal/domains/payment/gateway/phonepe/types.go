package phonepe

import "fmt"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"` // epoch seconds
}

type payRequest struct {
	MerchantOrderID string            `json:"merchantOrderId"`
	Amount          int64             `json:"amount"`
	ExpireAfter     int               `json:"expireAfter,omitempty"`
	MetaInfo        map[string]string `json:"metaInfo,omitempty"`
	PaymentFlow     paymentFlow       `json:"paymentFlow"`
}

type paymentFlow struct {
	Type         string       `json:"type"`
	Message      string       `json:"message,omitempty"`
	MerchantUrls merchantUrls `json:"merchantUrls"`
}

type merchantUrls struct {
	RedirectURL string `json:"redirectUrl"`
}

type payResponse struct {
	OrderID     string `json:"orderId"`
	State       string `json:"state"`
	ExpireAt    *int64 `json:"expireAt"`
	RedirectURL string `json:"redirectUrl"`
}

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("phonepe: status %d: %s %s", e.StatusCode, e.Code, e.Message)
}
