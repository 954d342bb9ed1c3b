package mpesa

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/support"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

const (
	sandboxBaseURL = "https://sandbox.safaricom.co.ke"
	liveBaseURL    = "https://api.safaricom.co.ke"

	credConsumerKey     = "consumer_key"
	credConsumerSecret  = "consumer_secret"
	credShortcode       = "shortcode"
	credPasskey         = "passkey"
	credEnvironment     = "environment"
	credTransactionType = "transaction_type"

	defaultTransactionType = "CustomerPayBillOnline"
	providerName           = "mpesa"
	timestampLayout        = "20060102150405"

	resultSuccess         = "0"
	resultCancelledByUser = "1032"
	resultTimeout         = "1037"
	// Returned by the query API while the customer has not answered yet.
	errorCodeProcessing = "500.001.1001"

	accountReferenceMax = 12
	transactionDescMax  = 13
)

// Daraja timestamps are in East Africa Time, which has no DST.
var nairobi = time.FixedZone("EAT", 3*60*60)

// Factory creates M-Pesa Daraja adapters.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() domain.Provider {
	return domain.ProviderMpesa
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	a := &Adapter{
		consumerKey:     cfg.Credential(credConsumerKey),
		consumerSecret:  cfg.Credential(credConsumerSecret),
		shortcode:       cfg.Credential(credShortcode),
		passkey:         cfg.Credential(credPasskey),
		transactionType: cfg.Credential(credTransactionType),
		now:             time.Now,
	}
	if a.consumerKey == "" || a.consumerSecret == "" || a.shortcode == "" || a.passkey == "" {
		return nil, domain.ErrInvalidConfig
	}
	if a.transactionType == "" {
		a.transactionType = defaultTransactionType
	}

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
	a.tokens = support.NewTokenSource(cfg.TokenStore, support.TokenKey(domain.ProviderMpesa, env, a.consumerKey), margin, a.fetchToken)
	return a, nil
}

func (f *Factory) ParseWebhook(payload []byte) (*domain.PaymentEvent, error) {
	return parseCallback(payload)
}

// Adapter drives Lipa na M-Pesa Online (STK push). Amounts are whole KES.
type Adapter struct {
	consumerKey     string
	consumerSecret  string
	shortcode       string
	passkey         string
	transactionType string

	client *resty.Client
	tokens *support.TokenSource
	now    func() time.Time
}

func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderMpesa
}

// VerifyCredentials forces a fresh OAuth exchange.
func (a *Adapter) VerifyCredentials(ctx context.Context) (ok bool) {
	ctx, span := support.StartSpan(ctx, domain.ProviderMpesa, "verify_credentials")
	defer func() { support.EndSpan(span, ok, "") }()

	a.tokens.Invalidate(ctx)
	_, err := a.tokens.Token(ctx)
	return err == nil
}

func (a *Adapter) CreatePaymentLink(context.Context, domain.PaymentLinkRequest) domain.PaymentLinkResult {
	return domain.PaymentLinkResult{Error: "M-Pesa does not support payment links; use an STK push instead"}
}

func (a *Adapter) InitiateMobilePayment(ctx context.Context, req domain.MobilePaymentRequest) (result domain.MobilePaymentResult) {
	ctx, span := support.StartSpan(ctx, domain.ProviderMpesa, "initiate_mobile_payment")
	defer func() { support.EndSpan(span, result.Success, result.Error) }()

	if currency := strings.ToUpper(strings.TrimSpace(req.Currency)); currency != "" && currency != "KES" {
		return domain.MobilePaymentResult{Error: "M-Pesa only accepts KES, got " + currency}
	}
	amount := support.WholeUnits(req.Amount)
	if amount < 1 {
		return domain.MobilePaymentResult{Error: "amount must be at least 1 KES"}
	}
	if strings.TrimSpace(req.CallbackURL) == "" {
		return domain.MobilePaymentResult{Error: "callback URL is required for STK push"}
	}
	dialCode, _ := support.DialCode("KE")
	phone, err := support.NormalizePhone(req.Phone, dialCode)
	if err != nil {
		return domain.MobilePaymentResult{Error: err.Error()}
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = support.NewReference("MPESA")
	}

	token, err := a.tokens.Token(ctx)
	if err != nil {
		return domain.MobilePaymentResult{Error: "M-Pesa authentication failed: " + err.Error()}
	}

	password, timestamp := a.password()
	body := stkPushRequest{
		BusinessShortCode: a.shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   a.transactionType,
		Amount:            amount,
		PartyA:            phone,
		PartyB:            a.shortcode,
		PhoneNumber:       phone,
		CallBackURL:       req.CallbackURL,
		AccountReference:  truncate(firstNonEmpty(req.AccountReference, reference), accountReferenceMax),
		TransactionDesc:   truncate(firstNonEmpty(req.Description, "Invoice payment"), transactionDescMax),
	}

	var out stkPushResponse
	var apiErr apiError
	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/mpesa/stkpush/v1/processrequest")
	if err == nil && resp.StatusCode() == http.StatusUnauthorized {
		a.tokens.Invalidate(ctx)
	}
	if err != nil || resp.IsError() {
		return domain.MobilePaymentResult{Error: support.Failure(providerName, resp, err, apiErr.ErrorMessage)}
	}
	if out.ResponseCode != resultSuccess || out.CheckoutRequestID == "" {
		return domain.MobilePaymentResult{Error: support.Failure(providerName, resp, nil, out.ResponseDescription)}
	}

	return domain.MobilePaymentResult{
		Success:           true,
		Reference:         reference,
		CheckoutRequestID: out.CheckoutRequestID,
		Message:           firstNonEmpty(out.CustomerMessage, out.ResponseDescription),
	}
}

// VerifyPayment queries an STK push by its CheckoutRequestID.
func (a *Adapter) VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (result domain.VerifyPaymentResult) {
	ctx, span := support.StartSpan(ctx, domain.ProviderMpesa, "verify_payment")
	defer func() { support.EndSpan(span, result.Status != domain.PaymentStatusFailed, result.Error) }()

	checkoutID := firstNonEmpty(req.CheckoutRequestID, req.Reference)
	if checkoutID == "" {
		return domain.FailedVerification("checkout request id is required")
	}

	token, err := a.tokens.Token(ctx)
	if err != nil {
		return domain.FailedVerification("M-Pesa authentication failed: " + err.Error())
	}

	password, timestamp := a.password()
	var out stkQueryResponse
	var apiErr apiError
	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(stkQueryRequest{
			BusinessShortCode: a.shortcode,
			Password:          password,
			Timestamp:         timestamp,
			CheckoutRequestID: checkoutID,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/mpesa/stkpushquery/v1/query")
	if err != nil {
		return domain.FailedVerification(support.Failure(providerName, resp, err, ""))
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusUnauthorized {
			a.tokens.Invalidate(ctx)
		}
		if apiErr.ErrorCode == errorCodeProcessing {
			return domain.VerifyPaymentResult{Status: domain.PaymentStatusPending, ProviderReference: checkoutID}
		}
		return domain.FailedVerification(support.Failure(providerName, resp, nil, apiErr.ErrorMessage))
	}

	result = domain.VerifyPaymentResult{
		ProviderReference: checkoutID,
		Currency:          "KES",
		PaymentMethod:     providerName,
		Metadata: map[string]any{
			"merchant_request_id": out.MerchantRequestID,
			"result_code":         out.ResultCode.String(),
			"result_desc":         out.ResultDesc,
		},
	}
	switch out.ResultCode.String() {
	case resultSuccess:
		result.Success = true
		result.Status = domain.PaymentStatusSuccess
	case resultCancelledByUser:
		result.Status = domain.PaymentStatusFailed
		result.Error = "payment cancelled by user"
	case resultTimeout:
		result.Status = domain.PaymentStatusFailed
		result.Error = "payment timed out: customer could not be reached"
	case "":
		result.Status = domain.PaymentStatusPending
	default:
		result.Status = domain.PaymentStatusFailed
		result.Error = firstNonEmpty(out.ResultDesc, "payment failed")
	}
	return result
}

func (a *Adapter) SignsWebhooks() bool {
	return false
}

// VerifyWebhookSignature always accepts: Daraja does not sign callbacks.
func (a *Adapter) VerifyWebhookSignature([]byte, string) bool {
	return true
}

func (a *Adapter) fetchToken(ctx context.Context) (string, time.Duration, error) {
	var out tokenResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBasicAuth(a.consumerKey, a.consumerSecret).
		SetQueryParam("grant_type", "client_credentials").
		SetResult(&out).
		Get("/oauth/v1/generate")
	if err != nil {
		return "", 0, err
	}
	if resp.IsError() {
		return "", 0, fmt.Errorf("oauth returned HTTP %d", resp.StatusCode())
	}
	if out.AccessToken == "" {
		return "", 0, errors.New("oauth response has no access token")
	}
	seconds, err := out.ExpiresIn.Int64()
	if err != nil || seconds <= 0 {
		seconds = 3599
	}
	return out.AccessToken, time.Duration(seconds) * time.Second, nil
}

// password is base64(shortcode + passkey + timestamp).
func (a *Adapter) password() (string, string) {
	timestamp := a.now().In(nairobi).Format(timestampLayout)
	raw := a.shortcode + a.passkey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw)), timestamp
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
