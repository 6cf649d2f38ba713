package phonepe

import "time"

// Config for the PhonePe standard checkout v2 API
type Config struct {
	ClientID      string
	ClientSecret  string
	ClientVersion string
	AuthURL       string // OAuth host, e.g. https://api.phonepe.com/apis/identity-manager
	APIURL        string // checkout host, e.g. https://api.phonepe.com/apis/pg
	RedirectURL   string
	ExpireAfter   int // seconds
	Timeout       time.Duration
}

const (
	tokenPath  = "/v1/oauth/token"
	payPath    = "/checkout/v2/pay"
	statusPath = "/checkout/v2/order/%s/status"

	authScheme = "O-Bearer"

	// refresh this long before the gateway's expiry
	tokenSkew = 60 * time.Second

	defaultTokenLifetime = 10 * time.Minute
)
