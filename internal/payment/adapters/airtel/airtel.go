package airtel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/support"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

const (
	sandboxBaseURL = "https://openapiuat.airtel.africa"
	liveBaseURL    = "https://openapi.airtel.africa"

	// SignatureHeader carries the base64 HMAC-SHA256 of the callback body
	// when callback signing is enabled for the app.
	SignatureHeader = "X-Callback-Signature"

	credClientID       = "client_id"
	credClientSecret   = "client_secret"
	credCountry        = "country"
	credEnvironment    = "environment"
	credCallbackSecret = "callback_secret"

	providerName = "airtel_money"

	statusSuccess = "TS"
	statusFailed  = "TF"
)

var countryCurrencies = map[string]string{
	"KE": "KES",
	"UG": "UGX",
	"TZ": "TZS",
	"RW": "RWF",
	"ZM": "ZMW",
	"MW": "MWK",
	"CD": "CDF",
	"NE": "XOF",
	"TD": "XAF",
	"GA": "XAF",
	"CG": "XAF",
	"MG": "MGA",
	"SC": "SCR",
}

// Factory creates Airtel Money adapters.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() domain.Provider {
	return domain.ProviderAirtelMoney
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	a := &Adapter{
		clientID:       cfg.Credential(credClientID),
		clientSecret:   cfg.Credential(credClientSecret),
		country:        strings.ToUpper(cfg.Credential(credCountry)),
		callbackSecret: cfg.Credential(credCallbackSecret),
	}
	if a.clientID == "" || a.clientSecret == "" {
		return nil, domain.ErrInvalidConfig
	}
	currency, ok := countryCurrencies[a.country]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported airtel country %q", domain.ErrInvalidConfig, a.country)
	}
	a.currency = currency
	a.dialCode, _ = support.DialCode(a.country)

	env := support.ParseEnvironment(cfg.Credential(credEnvironment))
	a.client = support.NewClient(support.ClientOptions{
		BaseURL:     support.BaseURL(cfg.BaseURL, env, sandboxBaseURL, liveBaseURL),
		Timeout:     cfg.HTTPTimeout,
		ReadRetries: cfg.ReadRetries,
	})

	margin := cfg.TokenRefreshMargin
	if margin == 0 {
		margin = support.DefaultRefreshMargin
	}
	a.tokens = support.NewTokenSource(cfg.TokenStore, support.TokenKey(domain.ProviderAirtelMoney, env, a.clientID), margin, a.fetchToken)
	return a, nil
}

func (f *Factory) ParseWebhook(payload []byte) (*domain.PaymentEvent, error) {
	return parseCallback(payload)
}

// Adapter drives Airtel Africa collections (USSD push). Amounts are major
// units in the country's currency.
type Adapter struct {
	clientID       string
	clientSecret   string
	country        string
	currency       string
	dialCode       string
	callbackSecret string

	client *resty.Client
	tokens *support.TokenSource
}

func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderAirtelMoney
}

func (a *Adapter) VerifyCredentials(ctx context.Context) (ok bool) {
	ctx, span := support.StartSpan(ctx, domain.ProviderAirtelMoney, "verify_credentials")
	defer func() { support.EndSpan(span, ok, "") }()

	a.tokens.Invalidate(ctx)
	_, err := a.tokens.Token(ctx)
	return err == nil
}

func (a *Adapter) CreatePaymentLink(context.Context, domain.PaymentLinkRequest) domain.PaymentLinkResult {
	return domain.PaymentLinkResult{Error: "Airtel Money does not support payment links; use a mobile payment request instead"}
}

func (a *Adapter) InitiateMobilePayment(ctx context.Context, req domain.MobilePaymentRequest) (result domain.MobilePaymentResult) {
	ctx, span := support.StartSpan(ctx, domain.ProviderAirtelMoney, "initiate_mobile_payment")
	defer func() { support.EndSpan(span, result.Success, result.Error) }()

	if !req.Amount.IsPositive() {
		return domain.MobilePaymentResult{Error: "amount must be greater than zero"}
	}
	if currency := strings.ToUpper(strings.TrimSpace(req.Currency)); currency != "" && currency != a.currency {
		return domain.MobilePaymentResult{Error: fmt.Sprintf("this Airtel Money account collects %s, not %s", a.currency, currency)}
	}
	phone, err := support.NormalizePhone(req.Phone, a.dialCode)
	if err != nil {
		return domain.MobilePaymentResult{Error: err.Error()}
	}
	if !strings.HasPrefix(phone, a.dialCode) {
		return domain.MobilePaymentResult{Error: "phone number is not registered in " + a.country}
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = support.NewReference("AIRTEL")
	}

	token, err := a.tokens.Token(ctx)
	if err != nil {
		return domain.MobilePaymentResult{Error: "Airtel Money authentication failed: " + err.Error()}
	}

	body := collectionRequest{
		Reference: firstNonEmpty(req.Description, req.AccountReference, "Invoice payment"),
		Subscriber: subscriber{
			Country:  a.country,
			Currency: a.currency,
			MSISDN:   support.LocalNumber(phone, a.dialCode),
		},
		Transaction: collectionTransaction{
			Amount:   json.Number(req.Amount.String()),
			Country:  a.country,
			Currency: a.currency,
			ID:       reference,
		},
	}

	var out transactionResponse
	var apiErr apiError
	resp, err := a.request(ctx, token).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/merchant/v1/payments/")
	if err == nil && resp.StatusCode() == http.StatusUnauthorized {
		a.tokens.Invalidate(ctx)
	}
	if err != nil || resp.IsError() {
		return domain.MobilePaymentResult{Error: support.Failure(providerName, resp, err, apiErr.message())}
	}
	if !out.Status.Success {
		return domain.MobilePaymentResult{Error: support.Failure(providerName, resp, nil, out.Status.Message)}
	}

	return domain.MobilePaymentResult{
		Success:           true,
		Reference:         reference,
		CheckoutRequestID: firstNonEmpty(out.Data.Transaction.ID, reference),
		Message:           out.Status.Message,
	}
}

func (a *Adapter) VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (result domain.VerifyPaymentResult) {
	ctx, span := support.StartSpan(ctx, domain.ProviderAirtelMoney, "verify_payment")
	defer func() { support.EndSpan(span, result.Status != domain.PaymentStatusFailed, result.Error) }()

	id := firstNonEmpty(req.Reference, req.CheckoutRequestID)
	if id == "" {
		return domain.FailedVerification("reference is required")
	}

	token, err := a.tokens.Token(ctx)
	if err != nil {
		return domain.FailedVerification("Airtel Money authentication failed: " + err.Error())
	}

	var out transactionResponse
	var apiErr apiError
	resp, err := a.request(ctx, token).
		SetResult(&out).
		SetError(&apiErr).
		Get("/standard/v1/payments/" + url.PathEscape(id))
	if err == nil && resp.StatusCode() == http.StatusUnauthorized {
		a.tokens.Invalidate(ctx)
	}
	if err != nil || resp.IsError() {
		return domain.FailedVerification(support.Failure(providerName, resp, err, apiErr.message()))
	}
	if !out.Status.Success {
		return domain.FailedVerification(support.Failure(providerName, resp, nil, out.Status.Message))
	}

	tx := out.Data.Transaction
	result = domain.VerifyPaymentResult{
		Currency:          a.currency,
		PaymentMethod:     providerName,
		ProviderReference: firstNonEmpty(tx.AirtelMoneyID, tx.ID),
		Metadata: map[string]any{
			"airtel_status": tx.Status,
			"message":       tx.Message,
		},
	}
	switch strings.ToUpper(tx.Status) {
	case statusSuccess:
		result.Success = true
		result.Status = domain.PaymentStatusSuccess
	case statusFailed:
		result.Status = domain.PaymentStatusFailed
		result.Error = firstNonEmpty(tx.Message, "payment failed")
	default:
		// TIP (in progress) and TA (ambiguous) settle later.
		result.Status = domain.PaymentStatusPending
	}
	return result
}

func (a *Adapter) SignsWebhooks() bool {
	return a.callbackSecret != ""
}

// VerifyWebhookSignature checks the callback HMAC when a signing secret is
// configured and accepts everything otherwise.
func (a *Adapter) VerifyWebhookSignature(payload []byte, signature string) bool {
	if a.callbackSecret == "" {
		return true
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	return support.SecureCompare(signature, support.HMACSHA256Base64(a.callbackSecret, payload))
}

func (a *Adapter) request(ctx context.Context, token string) *resty.Request {
	return a.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("X-Country", a.country).
		SetHeader("X-Currency", a.currency)
}

func (a *Adapter) fetchToken(ctx context.Context) (string, time.Duration, error) {
	var out tokenResponse
	var apiErr apiError
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(tokenRequest{
			ClientID:     a.clientID,
			ClientSecret: a.clientSecret,
			GrantType:    "client_credentials",
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/auth/oauth2/token")
	if err != nil {
		return "", 0, err
	}
	if resp.IsError() {
		if msg := apiErr.message(); msg != "" {
			return "", 0, errors.New(msg)
		}
		return "", 0, fmt.Errorf("oauth returned HTTP %d", resp.StatusCode())
	}
	seconds, err := out.ExpiresIn.Int64()
	if err != nil || seconds <= 0 {
		seconds = 180
	}
	return out.AccessToken, time.Duration(seconds) * time.Second, nil
}

func (e apiError) message() string {
	return firstNonEmpty(e.ErrorDescription, e.Status.Message, e.Error)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
