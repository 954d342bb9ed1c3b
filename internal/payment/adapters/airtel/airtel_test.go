package airtel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/payssd/chapchap-sub000/internal/payment/adapters/support"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/payssd/chapchap-sub000/internal/payment/tokenstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func testCreds() map[string]string {
	return map[string]string{
		"client_id":     "cid",
		"client_secret": "csecret",
		"country":       "ug",
		"environment":   "sandbox",
	}
}

type fakeAirtel struct {
	t          *testing.T
	tokenCalls int32
	payment    func(w http.ResponseWriter, body collectionRequest)
	status     func(w http.ResponseWriter, id string)
}

func (f *fakeAirtel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/auth/oauth2/token" {
		atomic.AddInt32(&f.tokenCalls, 1)
		var body tokenRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		if body.ClientSecret != "csecret" {
			writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_client","error_description":"Bad client credentials"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"access_token":"atok","expires_in":"180","token_type":"bearer"}`)
		return
	}

	assert.Equal(f.t, "Bearer atok", r.Header.Get("Authorization"))
	assert.Equal(f.t, "UG", r.Header.Get("X-Country"))
	assert.Equal(f.t, "UGX", r.Header.Get("X-Currency"))

	switch {
	case r.URL.Path == "/merchant/v1/payments/" && r.Method == http.MethodPost:
		var body collectionRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.payment(w, body)
	case r.Method == http.MethodGet && len(r.URL.Path) > len("/standard/v1/payments/"):
		f.status(w, r.URL.Path[len("/standard/v1/payments/"):])
	default:
		f.t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestAdapter(t *testing.T, fake *fakeAirtel, creds map[string]string) *Adapter {
	t.Helper()
	fake.t = t
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{
		Credentials: creds,
		BaseURL:     srv.URL,
		HTTPTimeout: time.Second,
		TokenStore:  tokenstore.NewMemory(),
	})
	require.NoError(t, err)
	return adapter.(*Adapter)
}

func TestNewAdapterValidatesCountry(t *testing.T) {
	creds := testCreds()
	creds["country"] = "FR"
	_, err := NewFactory().NewAdapter(domain.AdapterConfig{Credentials: creds})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestInitiateMobilePayment(t *testing.T) {
	fake := &fakeAirtel{}
	fake.payment = func(w http.ResponseWriter, body collectionRequest) {
		assert.Equal(t, "772123456", body.Subscriber.MSISDN)
		assert.Equal(t, "UG", body.Subscriber.Country)
		assert.Equal(t, "UGX", body.Transaction.Currency)
		assert.Equal(t, "50000", body.Transaction.Amount.String())
		assert.Equal(t, "AIR_1", body.Transaction.ID)
		writeJSON(w, http.StatusOK, `{"data":{"transaction":{"id":"AIR_1","status":"Success."}},"status":{"code":"200","message":"SUCCESS","result_code":"ESB000010","success":true}}`)
	}
	adapter := newTestAdapter(t, fake, testCreds())

	res := adapter.InitiateMobilePayment(context.Background(), domain.MobilePaymentRequest{
		Amount: decimal.NewFromInt(50000), Currency: "UGX", Phone: "0772 123456", Reference: "AIR_1",
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "AIR_1", res.Reference)
	assert.Equal(t, "AIR_1", res.CheckoutRequestID)

	res = adapter.InitiateMobilePayment(context.Background(), domain.MobilePaymentRequest{
		Amount: decimal.NewFromInt(1), Currency: "KES", Phone: "0772123456",
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "UGX")

	res = adapter.InitiateMobilePayment(context.Background(), domain.MobilePaymentRequest{
		Amount: decimal.NewFromInt(1), Phone: "+254712345678",
	})
	assert.False(t, res.Success)

	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.tokenCalls))
}

func TestVerifyPaymentStatuses(t *testing.T) {
	status := "TS"
	fake := &fakeAirtel{}
	fake.status = func(w http.ResponseWriter, id string) {
		assert.Equal(t, "AIR_1", id)
		writeJSON(w, http.StatusOK, `{"data":{"transaction":{"airtel_money_id":"MP123","id":"AIR_1","message":"Insufficient funds","status":"`+status+`"}},"status":{"code":"200","message":"SUCCESS","success":true}}`)
	}
	adapter := newTestAdapter(t, fake, testCreds())

	res := adapter.VerifyPayment(context.Background(), domain.VerifyPaymentRequest{Reference: "AIR_1"})
	assert.True(t, res.Success)
	assert.Equal(t, domain.PaymentStatusSuccess, res.Status)
	assert.Equal(t, "MP123", res.ProviderReference)

	status = "TIP"
	res = adapter.VerifyPayment(context.Background(), domain.VerifyPaymentRequest{Reference: "AIR_1"})
	assert.Equal(t, domain.PaymentStatusPending, res.Status)

	status = "TF"
	res = adapter.VerifyPayment(context.Background(), domain.VerifyPaymentRequest{Reference: "AIR_1"})
	assert.Equal(t, domain.PaymentStatusFailed, res.Status)
	assert.Equal(t, "Insufficient funds", res.Error)
}

func TestVerifyCredentials(t *testing.T) {
	assert.True(t, newTestAdapter(t, &fakeAirtel{}, testCreds()).VerifyCredentials(context.Background()))

	creds := testCreds()
	creds["client_secret"] = "nope"
	assert.False(t, newTestAdapter(t, &fakeAirtel{}, creds).VerifyCredentials(context.Background()))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"transaction":{"id":"AIR_1","status_code":"TS"}}`)

	unsigned := newTestAdapter(t, &fakeAirtel{}, testCreds())
	assert.True(t, unsigned.VerifyWebhookSignature(payload, ""))
	assert.False(t, unsigned.SignsWebhooks())

	creds := testCreds()
	creds["callback_secret"] = "cbs"
	signed := newTestAdapter(t, &fakeAirtel{}, creds)
	assert.True(t, signed.VerifyWebhookSignature(payload, support.HMACSHA256Base64("cbs", payload)))
	assert.False(t, signed.VerifyWebhookSignature(payload, support.HMACSHA256Base64("other", payload)))
	assert.False(t, signed.VerifyWebhookSignature(payload, ""))
	assert.True(t, signed.SignsWebhooks())
}

func TestCreatePaymentLinkUnsupported(t *testing.T) {
	res := newTestAdapter(t, &fakeAirtel{}, testCreds()).CreatePaymentLink(context.Background(), domain.PaymentLinkRequest{})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestParseCallback(t *testing.T) {
	event, err := parseCallback([]byte(`{"transaction":{"id":"AIR_1","message":"Paid UGX 5,000 to TECHNOLOGIES LIMITED","status_code":"TS","airtel_money_id":"MP210603.1234.L06941"}}`))
	require.NoError(t, err)
	assert.True(t, event.Successful)
	assert.Equal(t, "AIR_1", event.ReferenceKey)
	assert.Equal(t, "MP210603.1234.L06941", event.ProviderReference)
	assert.False(t, event.HasAmount)

	event, err = parseCallback([]byte(`{"transaction":{"id":"AIR_2","status_code":"TF"}}`))
	require.NoError(t, err)
	assert.False(t, event.Successful)

	_, err = parseCallback([]byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}
