package paystack

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/support"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

const (
	defaultBaseURL = "https://api.paystack.co"

	// SignatureHeader carries the HMAC-SHA512 of the raw body.
	SignatureHeader = "X-Paystack-Signature"

	credSecretKey = "secret_key"
	providerName  = "paystack"
)

// Factory creates Paystack adapters.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() domain.Provider {
	return domain.ProviderPaystack
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

	return &Adapter{secretKey: secretKey, client: client}, nil
}

func (f *Factory) ParseWebhook(payload []byte) (*domain.PaymentEvent, error) {
	return parseWebhook(payload)
}

// Adapter talks to the Paystack API. Amounts go out in kobo-style minor
// units (x100) and come back divided by the same factor.
type Adapter struct {
	secretKey string
	client    *resty.Client
}

func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderPaystack
}

func (a *Adapter) VerifyCredentials(ctx context.Context) (ok bool) {
	ctx, span := support.StartSpan(ctx, domain.ProviderPaystack, "verify_credentials")
	defer func() { support.EndSpan(span, ok, "") }()

	var out envelope[[]any]
	resp, err := a.client.R().SetContext(ctx).SetResult(&out).Get("/balance")
	if err != nil || resp.IsError() {
		return false
	}
	return out.Status
}

func (a *Adapter) CreatePaymentLink(ctx context.Context, req domain.PaymentLinkRequest) (result domain.PaymentLinkResult) {
	ctx, span := support.StartSpan(ctx, domain.ProviderPaystack, "create_payment_link")
	defer func() { support.EndSpan(span, result.Success, result.Error) }()

	if !req.Amount.IsPositive() {
		return domain.PaymentLinkResult{Error: "amount must be greater than zero"}
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return domain.PaymentLinkResult{Error: "paystack requires a customer email"}
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = support.NewReference("PSK")
	}

	body := initializeRequest{
		Email:       email,
		Amount:      support.ToMinorUnits(req.Amount, support.MinorUnitScale),
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Reference:   reference,
		CallbackURL: req.CallbackURL,
		Metadata:    linkMetadata(req),
	}

	var out envelope[initializeData]
	var apiErr apiError
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/transaction/initialize")
	if err != nil || resp.IsError() {
		return domain.PaymentLinkResult{Error: support.Failure(providerName, resp, err, apiErr.Message)}
	}
	if !out.Status || out.Data.AuthorizationURL == "" {
		return domain.PaymentLinkResult{Error: support.Failure(providerName, resp, nil, out.Message)}
	}

	if out.Data.Reference != "" {
		reference = out.Data.Reference
	}
	return domain.PaymentLinkResult{
		Success:     true,
		PaymentLink: out.Data.AuthorizationURL,
		Reference:   reference,
	}
}

// InitiateMobilePayment uses Paystack's mobile_money charge channel, which
// covers M-Pesa in Kenya and MTN in Ghana.
func (a *Adapter) InitiateMobilePayment(ctx context.Context, req domain.MobilePaymentRequest) (result domain.MobilePaymentResult) {
	ctx, span := support.StartSpan(ctx, domain.ProviderPaystack, "initiate_mobile_payment")
	defer func() { support.EndSpan(span, result.Success, result.Error) }()

	if !req.Amount.IsPositive() {
		return domain.MobilePaymentResult{Error: "amount must be greater than zero"}
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	mm, ok := mobileNetworks[currency]
	if !ok {
		return domain.MobilePaymentResult{Error: "paystack mobile money is not available for " + currency}
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return domain.MobilePaymentResult{Error: "paystack requires a customer email"}
	}
	phone, err := formatPhone(req.Phone, mm)
	if err != nil {
		return domain.MobilePaymentResult{Error: err.Error()}
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = support.NewReference("PSK")
	}

	body := chargeRequest{
		Email:       email,
		Amount:      support.ToMinorUnits(req.Amount, support.MinorUnitScale),
		Currency:    currency,
		Reference:   reference,
		MobileMoney: mobileMoney{Phone: phone, Provider: mm.provider},
	}
	if req.AccountReference != "" {
		body.Metadata = map[string]any{"account_reference": req.AccountReference}
	}

	var out envelope[chargeData]
	var apiErr apiError
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/charge")
	if err != nil || resp.IsError() {
		return domain.MobilePaymentResult{Error: support.Failure(providerName, resp, err, apiErr.Message)}
	}
	if !out.Status || out.Data.Status == "failed" {
		return domain.MobilePaymentResult{Error: support.Failure(providerName, resp, nil, firstNonEmpty(out.Data.DisplayText, out.Message))}
	}

	if out.Data.Reference != "" {
		reference = out.Data.Reference
	}
	return domain.MobilePaymentResult{
		Success:   true,
		Reference: reference,
		Message:   firstNonEmpty(out.Data.DisplayText, out.Message),
	}
}

func (a *Adapter) VerifyPayment(ctx context.Context, req domain.VerifyPaymentRequest) (result domain.VerifyPaymentResult) {
	ctx, span := support.StartSpan(ctx, domain.ProviderPaystack, "verify_payment")
	defer func() { support.EndSpan(span, result.Status != domain.PaymentStatusFailed, result.Error) }()

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return domain.FailedVerification("reference is required")
	}

	var out envelope[transaction]
	var apiErr apiError
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Get("/transaction/verify/" + url.PathEscape(reference))
	if err != nil || resp.IsError() {
		return domain.FailedVerification(support.Failure(providerName, resp, err, apiErr.Message))
	}
	if !out.Status {
		return domain.FailedVerification(support.Failure(providerName, resp, nil, out.Message))
	}

	tx := out.Data
	result = domain.VerifyPaymentResult{
		Status:        mapStatus(tx.Status),
		Amount:        support.FromMinorUnits(tx.Amount, support.MinorUnitScale),
		Currency:      tx.Currency,
		PaymentMethod: tx.Channel,
		Metadata: map[string]any{
			"gateway_response": tx.GatewayResponse,
			"paystack_status":  tx.Status,
		},
	}
	if tx.ID != 0 {
		result.ProviderReference = strconv.FormatInt(tx.ID, 10)
	} else {
		result.ProviderReference = tx.Reference
	}
	if paidAt, ok := parseTime(tx.PaidAt); ok {
		result.PaidAt = &paidAt
	}
	switch result.Status {
	case domain.PaymentStatusSuccess:
		result.Success = true
	case domain.PaymentStatusFailed:
		result.Error = firstNonEmpty(tx.GatewayResponse, "payment "+tx.Status)
	}
	return result
}

func (a *Adapter) SignsWebhooks() bool {
	return true
}

func (a *Adapter) VerifyWebhookSignature(payload []byte, signature string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return false
	}
	return support.SecureCompare(signature, support.HMACSHA512Hex(a.secretKey, payload))
}

func mapStatus(status string) domain.PaymentStatus {
	switch strings.ToLower(status) {
	case "success":
		return domain.PaymentStatusSuccess
	case "failed", "reversed":
		return domain.PaymentStatusFailed
	default:
		// abandoned, ongoing, pending, processing, queued
		return domain.PaymentStatusPending
	}
}

type mobileNetwork struct {
	provider string
	country  string
	local    bool
}

var mobileNetworks = map[string]mobileNetwork{
	"KES": {provider: "mpesa", country: "KE"},
	"GHS": {provider: "mtn", country: "GH", local: true},
}

// formatPhone renders +254... for Kenya and the 0-prefixed local form Paystack
// documents for Ghana.
func formatPhone(raw string, n mobileNetwork) (string, error) {
	dialCode, _ := support.DialCode(n.country)
	normalized, err := support.NormalizePhone(raw, dialCode)
	if err != nil {
		return "", err
	}
	if n.local {
		return "0" + support.LocalNumber(normalized, dialCode), nil
	}
	return "+" + normalized, nil
}

func linkMetadata(req domain.PaymentLinkRequest) map[string]any {
	meta := map[string]any{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if req.InvoiceNumber != "" {
		meta["invoice_number"] = req.InvoiceNumber
	}
	if req.CustomerName != "" {
		meta["customer_name"] = req.CustomerName
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
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
