package phonepe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-reconciler/internal/domains/payment/model"
)

type fakePhonePe struct {
	tokenCalls  atomic.Int32
	statusCalls atomic.Int32
	rejectFirst atomic.Bool
	lastAuth    atomic.Value
	lastDetails atomic.Value
	lastPay     atomic.Value
}

func (f *fakePhonePe) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		n := f.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-" + string(rune('0'+n)),
			"token_type":   "O-Bearer",
			"expires_at":   time.Now().Add(time.Hour).Unix(),
		})
	})
	mux.HandleFunc("/checkout/v2/order/ORD123/status", func(w http.ResponseWriter, r *http.Request) {
		f.statusCalls.Add(1)
		f.lastAuth.Store(r.Header.Get("Authorization"))
		f.lastDetails.Store(r.URL.Query().Get("details"))
		if f.rejectFirst.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderId":"OMO1","state":"COMPLETED","amount":49900,
			"paymentDetails":[{"transactionId":"OM1","state":"COMPLETED","paymentMode":"UPI_QR","timestamp":1724866793837}]}`))
	})
	mux.HandleFunc("/checkout/v2/pay", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.lastPay.Store(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orderId":"OMO1","state":"PENDING","expireAt":1724866793837,"redirectUrl":"https://pay.example/OMO1"}`))
	})
	mux.HandleFunc("/checkout/v2/order/BROKEN/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"BAD_REQUEST","message":"invalid order"}`))
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakePhonePe) {
	t.Helper()
	fake := &fakePhonePe{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	return NewClient(Config{
		ClientID:      "cid",
		ClientSecret:  "secret",
		ClientVersion: "1",
		AuthURL:       srv.URL,
		APIURL:        srv.URL,
		RedirectURL:   "http://shop.local/api/v1/payments/redirect",
		ExpireAfter:   1200,
		Timeout:       2 * time.Second,
	}), fake
}

func TestClient_GetOrderStatus_CachesToken(t *testing.T) {
	t.Parallel()

	c, fake := newTestClient(t)

	for i := 0; i < 3; i++ {
		p, err := c.GetOrderStatus(context.Background(), "ORD123", true)
		require.NoError(t, err)
		require.Equal(t, "COMPLETED", p.State)
		require.Equal(t, "ORD123", p.MerchantOrderID)
		require.Len(t, p.PaymentDetails, 1)
	}

	require.EqualValues(t, 1, fake.tokenCalls.Load())
	require.EqualValues(t, 3, fake.statusCalls.Load())
	require.Equal(t, "O-Bearer tok-1", fake.lastAuth.Load())
	require.Equal(t, "true", fake.lastDetails.Load())
}

func TestClient_RefreshesTokenOnUnauthorized(t *testing.T) {
	t.Parallel()

	c, fake := newTestClient(t)
	fake.rejectFirst.Store(true)

	_, err := c.GetOrderStatus(context.Background(), "ORD123", false)
	require.NoError(t, err)
	require.EqualValues(t, 2, fake.tokenCalls.Load())
	require.Equal(t, "O-Bearer tok-2", fake.lastAuth.Load())
	require.Equal(t, "false", fake.lastDetails.Load())
}

func TestClient_RefreshesNearExpiry(t *testing.T) {
	t.Parallel()

	c, fake := newTestClient(t)
	_, err := c.GetOrderStatus(context.Background(), "ORD123", true)
	require.NoError(t, err)

	c.now = func() time.Time { return time.Now().Add(59*time.Minute + 30*time.Second) }
	_, err = c.GetOrderStatus(context.Background(), "ORD123", true)
	require.NoError(t, err)
	require.EqualValues(t, 2, fake.tokenCalls.Load())
}

func TestClient_APIError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	_, err := c.GetOrderStatus(context.Background(), "BROKEN", true)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "BAD_REQUEST", apiErr.Code)
}

func TestClient_CreatePayment(t *testing.T) {
	t.Parallel()

	c, fake := newTestClient(t)
	res, err := c.CreatePayment(context.Background(), model.GatewayCreateRequest{
		MerchantOrderID: "ORD123",
		AmountPaise:     49900,
	})
	require.NoError(t, err)
	require.Equal(t, "OMO1", res.GatewayOrderID)
	require.Equal(t, "https://pay.example/OMO1", res.RedirectURL)

	body := fake.lastPay.Load().(map[string]interface{})
	require.Equal(t, "ORD123", body["merchantOrderId"])
	require.EqualValues(t, 49900, body["amount"])
	require.EqualValues(t, 1200, body["expireAfter"])
	flow := body["paymentFlow"].(map[string]interface{})
	urls := flow["merchantUrls"].(map[string]interface{})
	require.Equal(t, "http://shop.local/api/v1/payments/redirect?merchantOrderId=ORD123", urls["redirectUrl"])
}

func TestTokenExpiry_FromJWT(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)

	c := NewClient(Config{})
	require.True(t, exp.Equal(c.tokenExpiry(tokenResponse{AccessToken: signed})))

	before := time.Now()
	got := c.tokenExpiry(tokenResponse{AccessToken: "opaque"})
	require.True(t, got.After(before.Add(defaultTokenLifetime-time.Second)))
}
