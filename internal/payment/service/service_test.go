package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/clock"
	"github.com/payssd/chapchap-sub000/internal/config"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters"
	"github.com/payssd/chapchap-sub000/internal/payment/connector"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/payssd/chapchap-sub000/internal/payment/paymenttest"
	"github.com/payssd/chapchap-sub000/internal/payment/reconcile"
	"github.com/payssd/chapchap-sub000/internal/payment/repository"
	"github.com/payssd/chapchap-sub000/internal/payment/tokenstore"
	"github.com/payssd/chapchap-sub000/internal/security/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// fakePaystack answers balance, initialize and verify calls.
type fakePaystack struct {
	validKey   string
	txStatus   string
	lastAmount int64
}

func (f *fakePaystack) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.validKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"status": false, "message": "Invalid key"})
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/balance":
			writeJSON(w, http.StatusOK, map[string]any{"status": true, "data": []any{}})
		case r.Method == http.MethodPost && r.URL.Path == "/transaction/initialize":
			var body struct {
				Amount      int64  `json:"amount"`
				Reference   string `json:"reference"`
				CallbackURL string `json:"callback_url"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.lastAmount = body.Amount
			cb, err := url.Parse(body.CallbackURL)
			if assert.NoError(t, err) {
				assert.Equal(t, "/webhooks/payments", cb.Path)
				assert.Equal(t, "paystack", cb.Query().Get("provider"))
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": true, "data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"reference":         body.Reference,
			}})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
			writeJSON(w, http.StatusOK, map[string]any{"status": true, "data": map[string]any{
				"id":        4099260516,
				"status":    f.txStatus,
				"reference": strings.TrimPrefix(r.URL.Path, "/transaction/verify/"),
				"amount":    f.lastAmount,
				"currency":  "KES",
				"paid_at":   "2026-02-01T09:15:00Z",
				"channel":   "card",
			}})
		default:
			t.Errorf("unexpected paystack call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func fakeMpesa(t *testing.T, resultCode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "daraja-token", "expires_in": "3599"})
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer daraja-token", r.Header.Get("Authorization"))
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "254712345678", body["PhoneNumber"])
			writeJSON(w, http.StatusOK, map[string]any{
				"MerchantRequestID":   "29115-34620561-1",
				"CheckoutRequestID":   "ws_CO_191220191020363925",
				"ResponseCode":        "0",
				"ResponseDescription": "Success. Request accepted for processing",
				"CustomerMessage":     "Success. Request accepted for processing",
			})
		case "/mpesa/stkpushquery/v1/query":
			writeJSON(w, http.StatusOK, map[string]any{
				"ResponseCode":      "0",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode":        resultCode,
				"ResultDesc":        "The service request is processed successfully.",
			})
		default:
			t.Errorf("unexpected mpesa call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

type harness struct {
	svc      *Service
	db       *gorm.DB
	vault    vault.Provider
	user     uuid.UUID
	paystack *fakePaystack
}

func newHarness(t *testing.T, mpesaResult string) *harness {
	t.Helper()
	db := paymenttest.NewDB(t)
	v := paymenttest.NewVault(t)
	ps := &fakePaystack{validKey: "sk_test_good", txStatus: "success"}
	psSrv := httptest.NewServer(ps.handler(t))
	t.Cleanup(psSrv.Close)
	mpSrv := httptest.NewServer(fakeMpesa(t, mpesaResult))
	t.Cleanup(mpSrv.Close)

	cfg := config.Config{
		PublicBaseURL: "https://app.chapchap.test",
		Payments: config.PaymentsConfig{
			HTTPTimeout: 2 * time.Second,
			BaseURLs:    map[string]string{"paystack": psSrv.URL, "mpesa": mpSrv.URL},
		},
	}
	clk := clock.NewFixed(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	invoices := repository.NewInvoiceRepository(db)
	conn := connector.New(connector.Params{
		Registry: adapters.NewDefaultRegistry(),
		Vault:    v,
		Tokens:   tokenstore.NewMemory(),
		Cfg:      cfg,
	})
	reconciler := reconcile.New(reconcile.Params{DB: db, Log: zap.NewNop(), Invoices: invoices, Clock: clk})

	svc := NewService(Params{
		DB:           db,
		Log:          zap.NewNop(),
		Cfg:          cfg,
		Connector:    conn,
		Reconciler:   reconciler,
		Integrations: repository.NewIntegrationRepository(db),
		Invoices:     invoices,
		Clock:        clk,
	})
	return &harness{svc: svc, db: db, vault: v, user: uuid.New(), paystack: ps}
}

func mpesaCreds() map[string]string {
	return map[string]string{
		"consumer_key":    "ck",
		"consumer_secret": "cs",
		"shortcode":       "174379",
		"passkey":         "bfb279f9aa9bdbcf158e97dd71a467cd2e0c893059b10f78e6b72ada1ed2c919",
		"environment":     "sandbox",
	}
}

func TestConnectIntegration(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")

	first, err := h.svc.ConnectIntegration(ctx, h.user, ConnectInput{
		Provider:    "paystack",
		Credentials: map[string]string{"secret_key": "sk_test_good", "unexpected": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, first.VerificationStatus)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "Paystack", first.DisplayName)
	assert.Equal(t, domain.IntegrationTypeGateway, first.IntegrationType)
	assert.Contains(t, domain.DecodeStringList(first.SupportedCurrencies), "KES")

	creds, err := vault.OpenCredentials(h.vault, first.ID, first.Credentials)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"secret_key": "sk_test_good"}, creds)

	second, err := h.svc.ConnectIntegration(ctx, h.user, ConnectInput{
		Provider:    "paystack",
		DisplayName: "Backup",
		Credentials: map[string]string{"secret_key": "sk_test_bad"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationFailed, second.VerificationStatus)
	assert.False(t, second.IsDefault)

	mobile, err := h.svc.ConnectIntegration(ctx, h.user, ConnectInput{Provider: "mpesa", Credentials: mpesaCreds()})
	require.NoError(t, err)
	assert.True(t, mobile.IsDefault)

	_, err = h.svc.ConnectIntegration(ctx, h.user, ConnectInput{Provider: "mpesa", Credentials: map[string]string{"consumer_key": "ck"}})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)

	_, err = h.svc.ConnectIntegration(ctx, h.user, ConnectInput{Provider: "stripe"})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestSetDefaultAndDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	a := paymenttest.SeedIntegration(t, h.db, h.vault, h.user, domain.ProviderPaystack, map[string]string{"secret_key": "sk_test_good"})
	b := paymenttest.SeedIntegration(t, h.db, h.vault, h.user, domain.ProviderFlutterwave, map[string]string{"secret_key": "FLWSECK"})
	require.NoError(t, h.db.Model(b).Update("is_default", false).Error)

	updated, err := h.svc.SetDefault(ctx, h.user, b.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	got, err := h.svc.GetIntegration(ctx, h.user, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)

	_, err = h.svc.GetIntegration(ctx, uuid.New(), a.ID)
	assert.ErrorIs(t, err, domain.ErrIntegrationNotFound)

	inv := paymenttest.SeedInvoice(t, h.db, paymenttest.WithUser(h.user))
	require.NoError(t, repository.NewInvoiceRepository(h.db).UpsertPaymentMethod(ctx, nil, &domain.InvoicePaymentMethod{
		ID: uuid.New(), InvoiceID: inv.ID, IntegrationID: b.ID, Provider: domain.ProviderFlutterwave,
		PaymentReference: "FLW_1", IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	require.NoError(t, h.svc.DeleteIntegration(ctx, h.user, b.ID))
	got, err = h.svc.GetIntegration(ctx, h.user, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault, "remaining gateway becomes default")

	methods, err := h.svc.ListInvoicePaymentMethods(ctx, h.user, inv.ID)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.False(t, methods[0].IsActive)

	inactive, err := h.svc.SetActive(ctx, h.user, a.ID, false)
	require.NoError(t, err)
	assert.False(t, inactive.IsActive)
	assert.False(t, inactive.IsDefault)
	_, err = h.svc.SetDefault(ctx, h.user, a.ID)
	assert.ErrorIs(t, err, domain.ErrIntegrationInactive)
}

func TestVerifyIntegrationStampsResult(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	bad := paymenttest.SeedIntegration(t, h.db, h.vault, h.user, domain.ProviderPaystack, map[string]string{"secret_key": "sk_rotated"})

	got, err := h.svc.VerifyIntegration(ctx, h.user, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationFailed, got.VerificationStatus)
	require.NotNil(t, got.LastVerifiedAt)
}

func TestGeneratePaymentLinkAndVerify(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	integration := paymenttest.SeedIntegration(t, h.db, h.vault, h.user, domain.ProviderPaystack, map[string]string{"secret_key": "sk_test_good"})
	inv := paymenttest.SeedInvoice(t, h.db, paymenttest.WithUser(h.user))
	reminder := paymenttest.SeedReminder(t, h.db, inv, domain.ReminderStatusPending)

	link, err := h.svc.GeneratePaymentLink(ctx, h.user, inv.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc123", link.PaymentLink)
	assert.Equal(t, integration.ID, link.IntegrationID)
	assert.True(t, strings.HasPrefix(link.Reference, "PSK_"), link.Reference)
	assert.EqualValues(t, 500000, h.paystack.lastAmount)

	stored := paymenttest.ReloadInvoice(t, h.db, inv.ID)
	require.NotNil(t, stored.PaymentReference)
	assert.Equal(t, link.Reference, *stored.PaymentReference)

	verification, err := h.svc.VerifyInvoicePayment(ctx, h.user, inv.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, verification.Result.Status)
	assert.True(t, verification.Result.Amount.Equal(inv.Total), "round trip of %s", verification.Result.Amount)
	require.NotNil(t, verification.Reconciled)
	assert.Equal(t, domain.OutcomeProcessed, verification.Reconciled.Outcome)
	assert.Equal(t, domain.ReminderStatusCancelled, paymenttest.ReminderStatus(t, h.db, reminder.ID))

	again, err := h.svc.VerifyInvoicePayment(ctx, h.user, inv.ID, integration.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAlreadyPaid, again.Reconciled.Outcome)
	assert.EqualValues(t, 1, paymenttest.CountPayments(t, h.db, inv.ID))

	_, err = h.svc.GeneratePaymentLink(ctx, h.user, inv.ID, integration.ID)
	assert.ErrorIs(t, err, domain.ErrInvoiceAlreadyPaid)
}

func TestVerifyPendingDoesNotSettle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	h.paystack.txStatus = "ongoing"
	paymenttest.SeedIntegration(t, h.db, h.vault, h.user, domain.ProviderPaystack, map[string]string{"secret_key": "sk_test_good"})
	inv := paymenttest.SeedInvoice(t, h.db, paymenttest.WithUser(h.user))

	_, err := h.svc.VerifyInvoicePayment(ctx, h.user, inv.ID, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrPaymentNotInitiated)

	_, err = h.svc.GeneratePaymentLink(ctx, h.user, inv.ID, uuid.Nil)
	require.NoError(t, err)
	verification, err := h.svc.VerifyInvoicePayment(ctx, h.user, inv.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, verification.Result.Status)
	assert.Nil(t, verification.Reconciled)
	assert.Equal(t, domain.InvoiceStatusSent, paymenttest.ReloadInvoice(t, h.db, inv.ID).Status)
}

func TestInitiateMobilePaymentStoresCheckoutID(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	paymenttest.SeedIntegration(t, h.db, h.vault, h.user, domain.ProviderMpesa, mpesaCreds())
	inv := paymenttest.SeedInvoice(t, h.db, paymenttest.WithUser(h.user))

	res, err := h.svc.InitiateMobilePayment(ctx, h.user, inv.ID, uuid.Nil, "")
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)
	assert.True(t, strings.HasPrefix(res.Reference, "MPESA_"))

	stored := paymenttest.ReloadInvoice(t, h.db, inv.ID)
	require.NotNil(t, stored.PaymentReference)
	assert.Equal(t, "ws_CO_191220191020363925", *stored.PaymentReference)

	verification, err := h.svc.VerifyInvoicePayment(ctx, h.user, inv.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, verification.Result.Status)
	require.NotNil(t, verification.Reconciled)
	assert.Equal(t, domain.OutcomeProcessed, verification.Reconciled.Outcome)

	var payment domain.Payment
	require.NoError(t, h.db.Where("invoice_id = ?", inv.ID).First(&payment).Error)
	assert.True(t, payment.Amount.Equal(inv.Total), "query carries no amount, total is used")
}

func TestInitiateMobilePaymentCancelledByUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "1032")
	integration := paymenttest.SeedIntegration(t, h.db, h.vault, h.user, domain.ProviderMpesa, mpesaCreds())
	inv := paymenttest.SeedInvoice(t, h.db, paymenttest.WithUser(h.user))

	_, err := h.svc.InitiateMobilePayment(ctx, h.user, inv.ID, integration.ID, "+254 712 345 678")
	require.NoError(t, err)

	verification, err := h.svc.VerifyInvoicePayment(ctx, h.user, inv.ID, integration.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, verification.Result.Status)
	assert.Contains(t, verification.Result.Error, "cancelled")
	assert.Equal(t, domain.InvoiceStatusSent, paymenttest.ReloadInvoice(t, h.db, inv.ID).Status)
}

func TestPaymentPreconditions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "0")
	integration := paymenttest.SeedIntegration(t, h.db, h.vault, h.user, domain.ProviderMpesa, mpesaCreds())

	_, err := h.svc.GeneratePaymentLink(ctx, h.user, uuid.New(), integration.ID)
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)

	cancelled := paymenttest.SeedInvoice(t, h.db, paymenttest.WithUser(h.user), paymenttest.WithStatus(domain.InvoiceStatusCancelled))
	_, err = h.svc.InitiateMobilePayment(ctx, h.user, cancelled.ID, integration.ID, "0712345678")
	assert.ErrorIs(t, err, domain.ErrInvoiceNotPayable)

	ngn := paymenttest.SeedInvoice(t, h.db, paymenttest.WithUser(h.user), paymenttest.WithTotal("100", "NGN"))
	_, err = h.svc.InitiateMobilePayment(ctx, h.user, ngn.ID, integration.ID, "0712345678")
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	kes := paymenttest.SeedInvoice(t, h.db, paymenttest.WithUser(h.user))
	_, err = h.svc.GeneratePaymentLink(ctx, h.user, kes.ID, integration.ID)
	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, domain.ErrProviderRequestFailed)
	assert.Equal(t, domain.ProviderMpesa, perr.Provider)

	_, err = h.svc.GeneratePaymentLink(ctx, h.user, kes.ID, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrIntegrationNotFound)
}
