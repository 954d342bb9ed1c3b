package flutterwave

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/support"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

const (
	defaultBaseURL = "https://api.flutterwave.com/v3"

	// SignatureHeader echoes the secret hash configured on the dashboard.
	SignatureHeader = "Verif-Hash"

	credSecretKey   = "secret_key"
	credWebhookHash = "webhook_hash"
	providerName    = "flutterwave"
	statusSuccess   = "success"
)

// Factory creates Flutterwave adapters.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() domain.Provider {
	return domain.ProviderFlutterwave
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	secretKey := cfg.Credential(credSecretKey)
	if secretKey == "" {
		return nil, domain.ErrInvalidConfig
	}

	baseURL := cfg.BaseURL
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}

	client := support.NewClient(support.ClientOptions{
		BaseURL:     baseURL,
		Timeout:     cfg.HTTPTimeout,
		ReadRetries: cfg.ReadRetries,
	}).SetAuthToken(secretKey)

	return &Adapter{
		webhookHash: cfg.Credential(credWebhookHash),
		client:      client,
	}, nil
}

func (f *Factory) ParseWebhook(payload []byte) (*domain.PaymentEvent, error) {
	return parseWebhook(payload)
}

// Adapter talks to Flutterwave v3. Amounts are sent in major units, unscaled.
type Adapter struct {
	webhookHash string
	client      *resty.Client
}

func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderFlutterwave
}

func (a *Adapter) VerifyCredentials(ctx context.Context) (ok bool) {
	ctx, span := support.StartSpan(ctx, domain.ProviderFlutterwave, "verify_credentials")
	defer func() { support.EndSpan(span, ok, "") }()

	var out envelope[json.RawMessage]
	resp, err := a.client.R().SetContext(ctx).SetResult(&out).Get("/balances")
	if err != nil || resp.IsError() {
		return false
	}
	return out.Status == statusSuccess
}

func (a *Adapter) CreatePaymentLink(ctx context.Context, req domain.PaymentLinkRequest) (result domain.PaymentLinkResult) {
	ctx, span := support.StartSpan(ctx, domain.ProviderFlutterwave, "create_payment_link")
	defer func() { support.EndSpan(span, result.Success, result.Error) }()

	if !req.Amount.IsPositive() {
		return domain.PaymentLinkResult{Error: "amount must be greater than zero"}
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return domain.PaymentLinkResult{Error: "flutterwave requires a customer email"}
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = support.NewReference("FLW")
	}

	body := paymentRequest{
		TxRef:       reference,
		Amount:      json.Number(req.Amount.String()),
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		RedirectURL: req.CallbackURL,
		Customer: customer{
			Email:       email,
			Name:        req.CustomerName,
			PhoneNumber: req.Phone,
		},
		Customizations: customizations{
			Title:       invoiceTitle(req.InvoiceNumber),
			Description: req.Description,
		},
		Meta: req.Metadata,
	}

	var out envelope[paymentData]
	var apiErr envelope[json.RawMessage]
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/payments")
	if err != nil || resp.IsError() {
		return domain.PaymentLinkResult{Error: support.Failure(providerName, resp, err, apiErr.Message)}
	}
	if out.Status != statusSuccess || out.Data.Link == "" {
		return domain.PaymentLinkResult{Error: support.Failure(providerName, resp, nil, out.Message)}
	}
	return domain.PaymentLinkResult{Success: true, PaymentLink: out.Data.Link, Reference: reference}
}

func (a *Adapter) InitiateMobilePayment(ctx context.Context, req domain.MobilePaymentRequest) (result domain.MobilePaymentResult) {
	ctx, span := support.StartSpan(ctx, domain.ProviderFlutterwave, "initiate_mobile_payment")
	defer func() { support.EndSpan(span, result.Success, result.Error) }()

	if !req.Amount.IsPositive() {
		return domain.MobilePaymentResult{Error: "amount must be greater than zero"}
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	channel, ok := mobileChannels[currency]
	if !ok {
		return domain.MobilePaymentResult{Error: "flutterwave mobile money is not available for " + currency}
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return domain.MobilePaymentResult{Error: "flutterwave requires a customer email"}
	}
	dialCode, _ := support.DialCode(channel.country)
	phone, err := support.NormalizePhone(req.Phone, dialCode)
	if err != nil {
		return domain.MobilePaymentResult{Error: err.Error()}
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = support.NewReference("FLW")
	}

	body := chargeRequest{
		TxRef:       reference,
		Amount:      json.Number(req.Amount.String()),
		Currency:    currency,
		Email:       email,
		PhoneNumber: phone,
		Network:     channel.network,
	}

	var out envelope[chargeData]
	var apiErr envelope[json.RawMessage]
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("type", channel.chargeType).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/charges")
	if err != nil || resp.IsError() {
		return domain.MobilePaymentResult{Error: support.Failure(providerName, resp, err, apiErr.Message)}
	}
	if out.Status != statusSuccess || strings.EqualFold(out.Data.Status, "failed") {
		return domain.MobilePaymentResult{Error: support.Failure(providerName, resp, nil, firstNonEmpty(out.Data.ProcessorResponse, out.Message))}
	}

	res := domain.MobilePaymentResult{Success: true, Reference: reference, Message: out.Message}
	if out.Data.ID != 0 {
		res.CheckoutRequestID = strconv.FormatInt(out.Data.ID, 10)
	}
	return res
}

func (a *Adapter) VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (result domain.VerifyPaymentResult) {
	ctx, span := support.StartSpan(ctx, domain.ProviderFlutterwave, "verify_payment")
	defer func() { support.EndSpan(span, result.Status != domain.PaymentStatusFailed, result.Error) }()

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return domain.FailedVerification("reference is required")
	}

	var out envelope[transaction]
	var apiErr envelope[json.RawMessage]
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("tx_ref", reference).
		SetResult(&out).
		SetError(&apiErr).
		Get("/transactions/verify_by_reference")
	if err != nil || resp.IsError() {
		return domain.FailedVerification(support.Failure(providerName, resp, err, apiErr.Message))
	}
	if out.Status != statusSuccess {
		return domain.FailedVerification(support.Failure(providerName, resp, nil, out.Message))
	}

	tx := out.Data
	result = domain.VerifyPaymentResult{
		Status:        mapStatus(tx.Status),
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		PaymentMethod: tx.PaymentType,
		Metadata: map[string]any{
			"flw_ref":            tx.FlwRef,
			"flutterwave_status": tx.Status,
		},
	}
	if tx.ID != 0 {
		result.ProviderReference = strconv.FormatInt(tx.ID, 10)
	} else {
		result.ProviderReference = tx.FlwRef
	}
	if paidAt, ok := parseTime(tx.CreatedAt); ok {
		result.PaidAt = &paidAt
	}
	switch result.Status {
	case domain.PaymentStatusSuccess:
		result.Success = true
	case domain.PaymentStatusFailed:
		result.Error = firstNonEmpty(tx.ProcessorResponse, "payment "+tx.Status)
	}
	return result
}

func (a *Adapter) SignsWebhooks() bool {
	return a.webhookHash != ""
}

// VerifyWebhookSignature compares the verif-hash header with the configured
// secret hash. Integrations without a hash accept every callback.
func (a *Adapter) VerifyWebhookSignature(_ []byte, signature string) bool {
	if a.webhookHash == "" {
		return true
	}
	return support.SecureCompare(strings.TrimSpace(signature), a.webhookHash)
}

func mapStatus(status string) domain.PaymentStatus {
	switch strings.ToLower(status) {
	case "successful":
		return domain.PaymentStatusSuccess
	case "failed", "cancelled":
		return domain.PaymentStatusFailed
	default:
		return domain.PaymentStatusPending
	}
}

type mobileChannel struct {
	chargeType string
	country    string
	network    string
}

var mobileChannels = map[string]mobileChannel{
	"KES": {chargeType: "mpesa", country: "KE"},
	"GHS": {chargeType: "mobile_money_ghana", country: "GH", network: "MTN"},
	"UGX": {chargeType: "mobile_money_uganda", country: "UG", network: "MTN"},
	"RWF": {chargeType: "mobile_money_rwanda", country: "RW"},
	"ZMW": {chargeType: "mobile_money_zambia", country: "ZM", network: "MTN"},
	"TZS": {chargeType: "mobile_money_tanzania", country: "TZ"},
	"XAF": {chargeType: "mobile_money_franco", country: "CM"},
	"XOF": {chargeType: "mobile_money_franco", country: "CI"},
}

func invoiceTitle(number string) string {
	if number == "" {
		return ""
	}
	return "Invoice " + number
}

func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
