package phonepe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"payment-reconciler/internal/domains/payment/gateway"
	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/pkg/logger"
)

// =====================================================
// PHONEPE CLIENT IMPLEMENTATION
// =====================================================

type Client struct {
	cfg  Config
	http *resty.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

var _ gateway.PaymentGateway = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = model.LiveStatusTimeout
	}
	return &Client{
		cfg:  cfg,
		http: resty.New().SetTimeout(cfg.Timeout).SetHeader("Accept", "application/json"),
		now:  time.Now,
	}
}

// =====================================================
// CREATE PAYMENT
// =====================================================

func (c *Client) CreatePayment(ctx context.Context, req model.GatewayCreateRequest) (*model.GatewayCreateResult, error) {
	redirect := req.RedirectURL
	if redirect == "" {
		redirect = c.cfg.RedirectURL
	}
	expireAfter := req.ExpireAfter
	if expireAfter == 0 {
		expireAfter = c.cfg.ExpireAfter
	}

	// Gateway trả buyer về redirect endpoint kèm merchantOrderId
	redirectURL, err := withOrderID(redirect, req.MerchantOrderID)
	if err != nil {
		return nil, fmt.Errorf("phonepe: invalid redirect url: %w", err)
	}

	body := payRequest{
		MerchantOrderID: req.MerchantOrderID,
		Amount:          req.AmountPaise,
		ExpireAfter:     expireAfter,
		PaymentFlow: paymentFlow{
			Type:         "PG_CHECKOUT",
			Message:      req.Message,
			MerchantUrls: merchantUrls{RedirectURL: redirectURL},
		},
	}

	var out payResponse
	if err := c.do(ctx, http.MethodPost, c.cfg.APIURL+payPath, nil, body, &out); err != nil {
		return nil, err
	}

	return &model.GatewayCreateResult{
		GatewayOrderID: out.OrderID,
		RedirectURL:    out.RedirectURL,
		State:          out.State,
		ExpireAt:       out.ExpireAt,
	}, nil
}

// =====================================================
// ORDER STATUS
// =====================================================

func (c *Client) GetOrderStatus(ctx context.Context, merchantOrderID string, includeDetails bool) (*model.OrderStatusPayload, error) {
	endpoint := c.cfg.APIURL + fmt.Sprintf(statusPath, url.PathEscape(merchantOrderID))
	query := map[string]string{"details": strconv.FormatBool(includeDetails)}

	var out model.OrderStatusPayload
	if err := c.do(ctx, http.MethodGet, endpoint, query, nil, &out); err != nil {
		return nil, err
	}
	if out.MerchantOrderID == "" {
		out.MerchantOrderID = merchantOrderID
	}
	return &out, nil
}

// =====================================================
// TRANSPORT
// =====================================================

// do sends an authorized request. A 401 drops the cached token and retries once.
func (c *Client) do(ctx context.Context, method, endpoint string, query map[string]string, body, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		apiErr := &APIError{}
		req := c.http.R().
			SetContext(ctx).
			SetHeader("Authorization", authScheme+" "+token).
			SetResult(out).
			SetError(apiErr)
		if query != nil {
			req.SetQueryParams(query)
		}
		if body != nil {
			req.SetHeader("Content-Type", "application/json").SetBody(body)
		}

		resp, err := req.Execute(method, endpoint)
		if err != nil {
			return fmt.Errorf("phonepe: %s %s: %w", method, endpoint, err)
		}

		if resp.StatusCode() == http.StatusUnauthorized && attempt == 0 {
			logger.Warn("PhonePe rejected token, refreshing", map[string]interface{}{"endpoint": endpoint})
			c.invalidate()
			continue
		}
		if resp.IsError() {
			apiErr.StatusCode = resp.StatusCode()
			return apiErr
		}
		return nil
	}
	return &APIError{StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "token rejected after refresh"}
}

// =====================================================
// OAUTH TOKEN CACHE
// =====================================================

// accessToken returns the cached token, fetching a new one near expiry.
// The mutex is held across the fetch so concurrent callers share one refresh.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt.Add(-tokenSkew)) {
		return c.token, nil
	}

	token, expiresAt, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	c.token, c.expiresAt = token, expiresAt
	return token, nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Time, error) {
	var out tokenResponse
	apiErr := &APIError{}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":      c.cfg.ClientID,
			"client_version": c.cfg.ClientVersion,
			"client_secret":  c.cfg.ClientSecret,
			"grant_type":     "client_credentials",
		}).
		SetResult(&out).
		SetError(apiErr).
		Post(c.cfg.AuthURL + tokenPath)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("phonepe: oauth token request: %w", err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		return "", time.Time{}, apiErr
	}
	if out.AccessToken == "" {
		return "", time.Time{}, errors.New("phonepe: oauth response without access_token")
	}

	return out.AccessToken, c.tokenExpiry(out), nil
}

// tokenExpiry prefers expires_at, then the JWT exp claim, then a default lifetime.
func (c *Client) tokenExpiry(t tokenResponse) time.Time {
	if t.ExpiresAt > 0 {
		return time.Unix(t.ExpiresAt, 0)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return c.now().Add(defaultTokenLifetime)
}

func withOrderID(raw, merchantOrderID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("merchantOrderId", merchantOrderID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
