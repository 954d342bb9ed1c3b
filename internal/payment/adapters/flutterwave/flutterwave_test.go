package flutterwave

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newTestAdapter(t *testing.T, creds map[string]string, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	if creds == nil {
		creds = map[string]string{"secret_key": "FLWSECK_TEST-1"}
	}
	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{
		Credentials: creds,
		BaseURL:     srv.URL,
		HTTPTimeout: time.Second,
	})
	require.NoError(t, err)
	return adapter.(*Adapter)
}

func TestVerifyCredentials(t *testing.T) {
	adapter := newTestAdapter(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balances", r.URL.Path)
		assert.Equal(t, "Bearer FLWSECK_TEST-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"status":"success","message":"Wallet balances fetched","data":[]}`)
	})
	assert.True(t, adapter.VerifyCredentials(context.Background()))

	bad := newTestAdapter(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"status":"error","message":"Invalid authorization key"}`)
	})
	assert.False(t, bad.VerifyCredentials(context.Background()))
}

func TestAmountIsSentUnscaled(t *testing.T) {
	var sent decimal.Decimal
	adapter := newTestAdapter(t, nil, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments":
			var body struct {
				TxRef    string          `json:"tx_ref"`
				Amount   decimal.Decimal `json:"amount"`
				Currency string          `json:"currency"`
				Customer customer        `json:"customer"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			sent = body.Amount
			assert.Equal(t, "INV_1", body.TxRef)
			assert.Equal(t, "NGN", body.Currency)
			assert.Equal(t, "payer@example.com", body.Customer.Email)
			writeJSON(w, http.StatusOK, `{"status":"success","message":"Hosted Link","data":{"link":"https://checkout.flutterwave.com/v3/hosted/pay/abc"}}`)
		case "/transactions/verify_by_reference":
			assert.Equal(t, "INV_1", r.URL.Query().Get("tx_ref"))
			writeJSON(w, http.StatusOK, `{"status":"success","data":{"id":99,"tx_ref":"INV_1","flw_ref":"FLW-1","amount":`+sent.String()+`,"currency":"NGN","status":"successful","payment_type":"card","created_at":"2024-02-03T04:05:06.000Z"}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			writeJSON(w, http.StatusNotFound, `{"status":"error"}`)
		}
	})

	amount := decimal.RequireFromString("2500.75")
	link := adapter.CreatePaymentLink(context.Background(), domain.PaymentLinkRequest{
		Amount: amount, Currency: "NGN", Email: "payer@example.com", Reference: "INV_1", InvoiceNumber: "INV-001",
	})
	require.True(t, link.Success, link.Error)
	assert.Equal(t, "INV_1", link.Reference)
	assert.True(t, amount.Equal(sent))

	verified := adapter.VerifyPayment(context.Background(), domain.VerifyPaymentRequest{Reference: "INV_1"})
	require.True(t, verified.Success, verified.Error)
	assert.True(t, amount.Equal(verified.Amount))
	assert.Equal(t, "99", verified.ProviderReference)
	assert.Equal(t, "card", verified.PaymentMethod)
	require.NotNil(t, verified.PaidAt)
}

func TestCreatePaymentLinkProviderError(t *testing.T) {
	adapter := newTestAdapter(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"status":"error","message":"Invalid currency provided"}`)
	})
	res := adapter.CreatePaymentLink(context.Background(), domain.PaymentLinkRequest{
		Amount: decimal.NewFromInt(1), Currency: "XYZ", Email: "a@b.c",
	})
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid currency provided", res.Error)
}

func TestInitiateMobilePayment(t *testing.T) {
	adapter := newTestAdapter(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charges", r.URL.Path)
		assert.Equal(t, "mpesa", r.URL.Query().Get("type"))
		var body chargeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "254712345678", body.PhoneNumber)
		assert.Equal(t, "KES", body.Currency)
		writeJSON(w, http.StatusOK, `{"status":"success","message":"Charge initiated","data":{"id":123,"tx_ref":"`+body.TxRef+`","status":"pending"}}`)
	})

	res := adapter.InitiateMobilePayment(context.Background(), domain.MobilePaymentRequest{
		Amount: decimal.NewFromInt(100), Currency: "KES", Phone: "0712345678", Email: "a@b.c", Reference: "REF_1",
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "REF_1", res.Reference)
	assert.Equal(t, "123", res.CheckoutRequestID)

	res = adapter.InitiateMobilePayment(context.Background(), domain.MobilePaymentRequest{
		Amount: decimal.NewFromInt(100), Currency: "USD", Phone: "0712345678", Email: "a@b.c",
	})
	assert.False(t, res.Success)
}

func TestVerifyPaymentPendingAndFailed(t *testing.T) {
	status := "pending"
	adapter := newTestAdapter(t, nil, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"success","data":{"id":1,"tx_ref":"r","amount":10,"status":"`+status+`","processor_response":"Insufficient funds"}}`)
	})

	res := adapter.VerifyPayment(context.Background(), domain.VerifyPaymentRequest{Reference: "r"})
	assert.Equal(t, domain.PaymentStatusPending, res.Status)
	assert.False(t, res.Success)

	status = "failed"
	res = adapter.VerifyPayment(context.Background(), domain.VerifyPaymentRequest{Reference: "r"})
	assert.Equal(t, domain.PaymentStatusFailed, res.Status)
	assert.Equal(t, "Insufficient funds", res.Error)
}

func TestVerifyWebhookSignature(t *testing.T) {
	noHash := newTestAdapter(t, nil, func(http.ResponseWriter, *http.Request) {})
	assert.True(t, noHash.VerifyWebhookSignature([]byte(`{}`), ""))
	assert.False(t, noHash.SignsWebhooks())

	withHash := newTestAdapter(t, map[string]string{"secret_key": "sk", "webhook_hash": "my-hash"}, func(http.ResponseWriter, *http.Request) {})
	assert.True(t, withHash.VerifyWebhookSignature([]byte(`{}`), "my-hash"))
	assert.False(t, withHash.VerifyWebhookSignature([]byte(`{}`), "wrong"))
	assert.False(t, withHash.VerifyWebhookSignature([]byte(`{}`), ""))
	assert.True(t, withHash.SignsWebhooks())
}

func TestParseWebhook(t *testing.T) {
	event, err := parseWebhook([]byte(`{"event":"charge.completed","data":{"id":285959875,"tx_ref":"INV_1","flw_ref":"FLW-MOCK","amount":100.5,"currency":"ngn","status":"successful","payment_type":"card","created_at":"2020-07-06T19:17:04.000Z"}}`))
	require.NoError(t, err)
	assert.True(t, event.Successful)
	assert.Equal(t, "INV_1", event.ReferenceKey)
	assert.True(t, decimal.RequireFromString("100.5").Equal(event.Amount))
	assert.Equal(t, "NGN", event.Currency)
	assert.Equal(t, "285959875", event.ProviderReference)
	assert.Equal(t, time.Date(2020, 7, 6, 19, 17, 4, 0, time.UTC), event.PaidAt)

	event, err = parseWebhook([]byte(`{"event":"charge.completed","data":{"tx_ref":"INV_1","status":"failed"}}`))
	require.NoError(t, err)
	assert.False(t, event.Successful)

	_, err = parseWebhook([]byte(`{"event":"charge.completed"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	_, err = parseWebhook([]byte(`[`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
