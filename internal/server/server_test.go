package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/clock"
	"github.com/payssd/chapchap-sub000/internal/config"
	"github.com/payssd/chapchap-sub000/internal/observability/metrics"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/support"
	"github.com/payssd/chapchap-sub000/internal/payment/connector"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/payssd/chapchap-sub000/internal/payment/paymenttest"
	"github.com/payssd/chapchap-sub000/internal/payment/reconcile"
	"github.com/payssd/chapchap-sub000/internal/payment/repository"
	paymentservice "github.com/payssd/chapchap-sub000/internal/payment/service"
	"github.com/payssd/chapchap-sub000/internal/payment/tokenstore"
	"github.com/payssd/chapchap-sub000/internal/payment/webhook"
	"github.com/payssd/chapchap-sub000/internal/security/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const paystackSecret = "sk_test_server"

const paystackChargeSuccess = `{"event":"charge.success","data":{"id":302961,"status":"success","reference":"INV_abc","amount":500000,"currency":"KES","paid_at":"2024-01-01T10:00:00Z","channel":"card"}}`

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	vault  vault.Provider
	user   uuid.UUID
}

func newTestEnv(t *testing.T, paystackAPI http.Handler) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := paymenttest.NewDB(t)
	v := paymenttest.NewVault(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFixed(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))

	cfg := config.Config{
		PublicBaseURL: "https://app.chapchap.test",
		Database:      config.DatabaseConfig{Driver: "sqlite"},
		Payments:      config.PaymentsConfig{HTTPTimeout: 2 * time.Second, BaseURLs: map[string]string{}},
	}
	if paystackAPI != nil {
		srv := httptest.NewServer(paystackAPI)
		t.Cleanup(srv.Close)
		cfg.Payments.BaseURLs["paystack"] = srv.URL
	}

	invoices := repository.NewInvoiceRepository(db)
	integrations := repository.NewIntegrationRepository(db)
	conn := connector.New(connector.Params{
		Registry: adapters.NewDefaultRegistry(),
		Vault:    v,
		Tokens:   tokenstore.NewMemory(),
		Cfg:      cfg,
	})
	reconciler := reconcile.New(reconcile.Params{DB: db, Log: zap.NewNop(), Invoices: invoices, Clock: clk})
	m := metrics.New()

	s := NewServer(Params{
		Cfg:     cfg,
		Log:     zap.NewNop(),
		DB:      db,
		Metrics: m,
		Payments: paymentservice.NewService(paymentservice.Params{
			DB:           db,
			Log:          zap.NewNop(),
			Cfg:          cfg,
			Connector:    conn,
			Reconciler:   reconciler,
			Integrations: integrations,
			Invoices:     invoices,
			Clock:        clk,
			Metrics:      m,
		}),
		Webhooks: webhook.NewService(webhook.Params{
			Log:          zap.NewNop(),
			Connector:    conn,
			Reconciler:   reconciler,
			Integrations: integrations,
			Events:       repository.NewWebhookEventRepository(db),
			Node:         node,
			Clock:        clk,
			Metrics:      m,
		}),
	})
	return &testEnv{router: s.Engine(), db: db, vault: v, user: uuid.New()}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) api(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return e.do(t, method, path, raw, map[string]string{HeaderUserID: e.user.String()})
}

func (e *testEnv) count(t *testing.T, model any) int64 {
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestPaystackWebhookSettlesInvoiceOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	integration := paymenttest.SeedIntegration(t, env.db, env.vault, env.user, domain.ProviderPaystack, map[string]string{"secret_key": paystackSecret})
	inv := paymenttest.SeedInvoice(t, env.db, paymenttest.WithReference("INV_abc"), paymenttest.WithUser(env.user))

	body := []byte(paystackChargeSuccess)
	path := "/webhooks/payments?provider=paystack&integration_id=" + integration.ID.String()
	headers := map[string]string{"X-Paystack-Signature": support.HMACSHA512Hex(paystackSecret, body)}

	w := env.do(t, http.MethodPost, path, body, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	settled := paymenttest.ReloadInvoice(t, env.db, inv.ID)
	assert.Equal(t, domain.InvoiceStatusPaid, settled.Status)
	var payment domain.Payment
	require.NoError(t, env.db.Where("invoice_id = ?", inv.ID).First(&payment).Error)
	assert.Equal(t, "5000", payment.Amount.String())
	assert.Equal(t, domain.ProviderPaystack, payment.Provider)

	w = env.do(t, http.MethodPost, path, body, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.EqualValues(t, 1, paymenttest.CountPayments(t, env.db, inv.ID))
}

func TestWebhookUnknownProviderIsBadRequest(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/webhooks/payments?provider=unknown_xyz", []byte(paystackChargeSuccess), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "provider_not_found")

	w = env.do(t, http.MethodPost, "/webhooks/payments", []byte(paystackChargeSuccess), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, env.count(t, &domain.WebhookEvent{}))
}

func TestWebhookBadSignatureWritesNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	integration := paymenttest.SeedIntegration(t, env.db, env.vault, env.user, domain.ProviderPaystack, map[string]string{"secret_key": paystackSecret})
	inv := paymenttest.SeedInvoice(t, env.db, paymenttest.WithReference("INV_abc"), paymenttest.WithUser(env.user))
	paymenttest.SeedReminder(t, env.db, inv, domain.ReminderStatusPending)

	body := []byte(paystackChargeSuccess)
	w := env.do(t, http.MethodPost, "/webhooks/payments?provider=paystack&integration_id="+integration.ID.String(), body,
		map[string]string{"X-Paystack-Signature": support.HMACSHA512Hex("sk_wrong", body)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), paystackSecret)

	assert.Equal(t, domain.InvoiceStatusSent, paymenttest.ReloadInvoice(t, env.db, inv.ID).Status)
	assert.Zero(t, env.count(t, &domain.Payment{}))
	assert.Zero(t, env.count(t, &domain.WebhookEvent{}))
	var pending int64
	require.NoError(t, env.db.Model(&domain.Reminder{}).Where("status = ?", domain.ReminderStatusPending).Count(&pending).Error)
	assert.EqualValues(t, 1, pending)
}

func TestMpesaCallbackAlwaysAcknowledged(t *testing.T) {
	env := newTestEnv(t, nil)
	inv := paymenttest.SeedInvoice(t, env.db, paymenttest.WithReference("ws_CO_191220191020363925"), paymenttest.WithUser(env.user))

	cancelled := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)
	w := env.do(t, http.MethodPost, "/webhooks/payments?provider=mpesa", cancelled, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())
	assert.Equal(t, domain.InvoiceStatusSent, paymenttest.ReloadInvoice(t, env.db, inv.ID).Status)

	paid := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":5000},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},{"Name":"TransactionDate","Value":20191219102115},{"Name":"PhoneNumber","Value":254708374149}]}}}}`)
	w = env.do(t, http.MethodPost, "/webhooks/payments?provider=mpesa", paid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())
	assert.Equal(t, domain.InvoiceStatusPaid, paymenttest.ReloadInvoice(t, env.db, inv.ID).Status)
}

func TestAPIRequiresUser(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/integrations", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/integrations", nil, map[string]string{HeaderUserID: "not-a-uuid"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentProviderCatalog(t *testing.T) {
	env := newTestEnv(t, nil)

	var out struct {
		Data []struct {
			ID               string `json:"id"`
			CredentialFields []struct {
				Key      string `json:"key"`
				Label    string `json:"label"`
				Type     string `json:"type"`
				Required bool   `json:"required"`
			} `json:"credential_fields"`
		} `json:"data"`
	}
	w := env.api(t, http.MethodGet, "/api/payment-providers?type=mobile_money&country=ke", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	ids := []string{}
	for _, p := range out.Data {
		ids = append(ids, p.ID)
		assert.NotEmpty(t, p.CredentialFields)
	}
	assert.ElementsMatch(t, []string{"mpesa", "airtel_money"}, ids)

	w = env.api(t, http.MethodGet, "/api/payment-providers?currency=EUR", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())

	w = env.api(t, http.MethodGet, "/api/payment-providers?type=crypto", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.api(t, http.MethodGet, "/api/payment-providers/stripe", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConnectAndPayThroughAPI(t *testing.T) {
	var lastAmount float64
	paystackAPI := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/balance":
			writeJSON(w, http.StatusOK, map[string]any{"status": true, "data": []any{}})
		case r.URL.Path == "/transaction/initialize":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			lastAmount, _ = body["amount"].(float64)
			writeJSON(w, http.StatusOK, map[string]any{"status": true, "data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/xyz",
				"reference":         body["reference"],
			}})
		case strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
			writeJSON(w, http.StatusOK, map[string]any{"status": true, "data": map[string]any{
				"id": 1, "status": "success", "amount": lastAmount, "currency": "KES",
				"reference": strings.TrimPrefix(r.URL.Path, "/transaction/verify/"),
				"paid_at":   "2026-02-01T09:00:00Z", "channel": "card",
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	env := newTestEnv(t, paystackAPI)

	w := env.api(t, http.MethodPost, "/api/integrations", map[string]any{
		"provider":    "paystack",
		"credentials": map[string]string{"secret_key": "sk_test_live_check"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "sk_test_live_check")
	assert.NotContains(t, w.Body.String(), "credentials")

	var connected struct {
		Data struct {
			ID                  string   `json:"id"`
			IsDefault           bool     `json:"is_default"`
			VerificationStatus  string   `json:"verification_status"`
			SupportedCurrencies []string `json:"supported_currencies"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &connected))
	assert.True(t, connected.Data.IsDefault)
	assert.Equal(t, "verified", connected.Data.VerificationStatus)
	assert.Contains(t, connected.Data.SupportedCurrencies, "KES")

	inv := paymenttest.SeedInvoice(t, env.db, paymenttest.WithUser(env.user))
	w = env.api(t, http.MethodPost, "/api/invoices/"+inv.ID.String()+"/payment-link", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "https://checkout.paystack.com/xyz")
	assert.EqualValues(t, 500000, lastAmount)

	w = env.api(t, http.MethodPost, "/api/invoices/"+inv.ID.String()+"/verify-payment", map[string]string{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"processed"`)
	assert.Equal(t, domain.InvoiceStatusPaid, paymenttest.ReloadInvoice(t, env.db, inv.ID).Status)

	w = env.api(t, http.MethodPost, "/api/invoices/"+inv.ID.String()+"/payment-link", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.api(t, http.MethodGet, "/api/invoices/"+uuid.NewString()+"/payment-methods", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.api(t, http.MethodPost, "/api/invoices/not-a-uuid/payment-link", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/ready", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"ready":true`)

	w = env.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestToAPIError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{domain.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
		{domain.ErrProviderMismatch, http.StatusUnauthorized, "provider_mismatch"},
		{domain.ErrInvoiceNotFound, http.StatusNotFound, "invoice_not_found"},
		{domain.ErrInvoiceAlreadyPaid, http.StatusConflict, "invoice_already_paid"},
		{errors.Join(errors.New("ctx"), domain.ErrMissingCredentials), http.StatusBadRequest, "missing_credentials"},
		{&domain.ProviderError{Provider: domain.ProviderMpesa, Operation: "initiate_mobile_payment", Message: "Bad Request - Invalid PhoneNumber"}, http.StatusBadGateway, "provider_request_failed"},
		{errors.New("pq: password authentication failed for user chapchap"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		got := toAPIError(tc.err)
		assert.Equal(t, tc.status, got.Status, tc.err.Error())
		assert.Equal(t, tc.kind, got.Type)
	}
	assert.Equal(t, "internal server error", toAPIError(errors.New("secret detail")).Message)
}
