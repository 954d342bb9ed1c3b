package registry

import (
	"fmt"
	"slices"
	"strings"

	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldPassword FieldType = "password"
	FieldSelect   FieldType = "select"
)

type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// CredentialField describes one input of a provider's connect form. Key,
// Label, Type and Required are consumed by clients and must stay stable.
type CredentialField struct {
	Key         string        `json:"key"`
	Label       string        `json:"label"`
	Type        FieldType     `json:"type"`
	Required    bool          `json:"required"`
	HelpText    string        `json:"help_text,omitempty"`
	Placeholder string        `json:"placeholder,omitempty"`
	Options     []FieldOption `json:"options,omitempty"`
}

type ProviderConfig struct {
	ID               domain.Provider        `json:"id"`
	Name             string                 `json:"name"`
	Type             domain.IntegrationType `json:"type"`
	Description      string                 `json:"description"`
	Countries        []string               `json:"countries"`
	Currencies       []string               `json:"currencies"`
	Methods          []string               `json:"methods"`
	CredentialFields []CredentialField      `json:"credential_fields"`
	DocsURL          string                 `json:"docs_url"`
	SignupURL        string                 `json:"signup_url"`
}

var environmentOptions = []FieldOption{
	{Value: "sandbox", Label: "Sandbox"},
	{Value: "live", Label: "Live"},
}

var providers = []ProviderConfig{
	{
		ID:          domain.ProviderPaystack,
		Name:        "Paystack",
		Type:        domain.IntegrationTypeGateway,
		Description: "Cards, bank transfers, USSD and mobile money across West and East Africa.",
		Countries:   []string{"NG", "GH", "ZA", "KE", "CI"},
		Currencies:  []string{"NGN", "GHS", "ZAR", "KES", "USD"},
		Methods:     []string{"card", "bank_transfer", "ussd", "mobile_money"},
		CredentialFields: []CredentialField{
			{Key: "secret_key", Label: "Secret Key", Type: FieldPassword, Required: true, Placeholder: "sk_live_...", HelpText: "Settings > API Keys & Webhooks in the Paystack dashboard."},
			{Key: "public_key", Label: "Public Key", Type: FieldText, Placeholder: "pk_live_..."},
		},
		DocsURL:   "https://paystack.com/docs/api/",
		SignupURL: "https://dashboard.paystack.com/#/signup",
	},
	{
		ID:          domain.ProviderFlutterwave,
		Name:        "Flutterwave",
		Type:        domain.IntegrationTypeGateway,
		Description: "Hosted checkout with cards, bank transfers and mobile money in 30+ countries.",
		Countries:   []string{"NG", "GH", "KE", "UG", "TZ", "RW", "ZA", "ZM", "CM", "CI", "SN"},
		Currencies:  []string{"NGN", "GHS", "KES", "UGX", "TZS", "RWF", "ZAR", "ZMW", "XAF", "XOF", "USD"},
		Methods:     []string{"card", "bank_transfer", "mobile_money", "ussd"},
		CredentialFields: []CredentialField{
			{Key: "secret_key", Label: "Secret Key", Type: FieldPassword, Required: true, Placeholder: "FLWSECK-..."},
			{Key: "public_key", Label: "Public Key", Type: FieldText, Placeholder: "FLWPUBK-..."},
			{Key: "webhook_hash", Label: "Webhook Secret Hash", Type: FieldPassword, HelpText: "The secret hash configured under Settings > Webhooks; sent back in the verif-hash header."},
		},
		DocsURL:   "https://developer.flutterwave.com/docs",
		SignupURL: "https://app.flutterwave.com/register",
	},
	{
		ID:          domain.ProviderMpesa,
		Name:        "M-Pesa",
		Type:        domain.IntegrationTypeMobileMoney,
		Description: "Safaricom Daraja STK push for Kenyan paybill and till numbers.",
		Countries:   []string{"KE"},
		Currencies:  []string{"KES"},
		Methods:     []string{"mpesa_stk_push"},
		CredentialFields: []CredentialField{
			{Key: "consumer_key", Label: "Consumer Key", Type: FieldPassword, Required: true},
			{Key: "consumer_secret", Label: "Consumer Secret", Type: FieldPassword, Required: true},
			{Key: "shortcode", Label: "Business Shortcode", Type: FieldText, Required: true, Placeholder: "174379", HelpText: "Paybill or till number."},
			{Key: "passkey", Label: "Lipa na M-Pesa Passkey", Type: FieldPassword, Required: true},
			{Key: "environment", Label: "Environment", Type: FieldSelect, Required: true, Options: environmentOptions},
			{Key: "transaction_type", Label: "Transaction Type", Type: FieldSelect, Options: []FieldOption{
				{Value: "CustomerPayBillOnline", Label: "Paybill"},
				{Value: "CustomerBuyGoodsOnline", Label: "Buy Goods (Till)"},
			}},
		},
		DocsURL:   "https://developer.safaricom.co.ke/APIs/MpesaExpressSimulate",
		SignupURL: "https://developer.safaricom.co.ke/",
	},
	{
		ID:          domain.ProviderAirtelMoney,
		Name:        "Airtel Money",
		Type:        domain.IntegrationTypeMobileMoney,
		Description: "Airtel Africa collections via USSD push.",
		Countries:   []string{"KE", "UG", "TZ", "RW", "ZM", "MW", "CD", "NE", "TD", "GA", "MG", "SC", "CG"},
		Currencies:  []string{"KES", "UGX", "TZS", "RWF", "ZMW", "MWK", "CDF", "XOF", "XAF", "MGA", "SCR", "USD"},
		Methods:     []string{"airtel_money"},
		CredentialFields: []CredentialField{
			{Key: "client_id", Label: "Client ID", Type: FieldText, Required: true},
			{Key: "client_secret", Label: "Client Secret", Type: FieldPassword, Required: true},
			{Key: "country", Label: "Country", Type: FieldSelect, Required: true, Options: []FieldOption{
				{Value: "KE", Label: "Kenya"},
				{Value: "UG", Label: "Uganda"},
				{Value: "TZ", Label: "Tanzania"},
				{Value: "RW", Label: "Rwanda"},
				{Value: "ZM", Label: "Zambia"},
				{Value: "MW", Label: "Malawi"},
				{Value: "CD", Label: "DR Congo"},
				{Value: "NE", Label: "Niger"},
				{Value: "TD", Label: "Chad"},
				{Value: "GA", Label: "Gabon"},
				{Value: "MG", Label: "Madagascar"},
				{Value: "SC", Label: "Seychelles"},
				{Value: "CG", Label: "Congo-Brazzaville"},
			}},
			{Key: "environment", Label: "Environment", Type: FieldSelect, Required: true, Options: environmentOptions},
			{Key: "callback_secret", Label: "Callback Signing Secret", Type: FieldPassword, HelpText: "Only needed when callback signing is enabled for the app."},
		},
		DocsURL:   "https://developers.airtel.africa/documentation",
		SignupURL: "https://developers.airtel.africa/",
	},
}

// All returns every provider definition.
func All() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(providers))
	for _, p := range providers {
		out = append(out, p.clone())
	}
	return out
}

func GetProviderConfig(id domain.Provider) (ProviderConfig, bool) {
	for _, p := range providers {
		if p.ID == id {
			return p.clone(), true
		}
	}
	return ProviderConfig{}, false
}

func GatewayProviders() []ProviderConfig {
	return filter(func(p ProviderConfig) bool { return p.Type == domain.IntegrationTypeGateway })
}

func MobileMoneyProviders() []ProviderConfig {
	return filter(func(p ProviderConfig) bool { return p.Type == domain.IntegrationTypeMobileMoney })
}

// ProvidersByCountry matches an ISO 3166 alpha-2 code, case-insensitively.
func ProvidersByCountry(code string) []ProviderConfig {
	code = strings.ToUpper(strings.TrimSpace(code))
	return filter(func(p ProviderConfig) bool { return slices.Contains(p.Countries, code) })
}

// ProvidersByCurrency matches an ISO 4217 code, case-insensitively.
func ProvidersByCurrency(code string) []ProviderConfig {
	code = strings.ToUpper(strings.TrimSpace(code))
	return filter(func(p ProviderConfig) bool { return p.SupportsCurrency(code) })
}

func (p ProviderConfig) SupportsCurrency(code string) bool {
	return slices.Contains(p.Currencies, strings.ToUpper(strings.TrimSpace(code)))
}

// ValidateCredentials checks required fields and select values. The error
// wraps domain.ErrMissingCredentials or domain.ErrInvalidConfig.
func (p ProviderConfig) ValidateCredentials(creds map[string]string) error {
	var missing []string
	for _, field := range p.CredentialFields {
		value := strings.TrimSpace(creds[field.Key])
		if value == "" {
			if field.Required {
				missing = append(missing, field.Key)
			}
			continue
		}
		if field.Type == FieldSelect && !field.allows(value) {
			return fmt.Errorf("%w: %s has unsupported value %q", domain.ErrInvalidConfig, field.Key, value)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// KnownKeys filters a credential bag down to declared fields.
func (p ProviderConfig) KnownKeys(creds map[string]string) map[string]string {
	out := make(map[string]string, len(p.CredentialFields))
	for _, field := range p.CredentialFields {
		if value := strings.TrimSpace(creds[field.Key]); value != "" {
			out[field.Key] = value
		}
	}
	return out
}

func (f CredentialField) allows(value string) bool {
	for _, opt := range f.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func (p ProviderConfig) clone() ProviderConfig {
	out := p
	out.Countries = slices.Clone(p.Countries)
	out.Currencies = slices.Clone(p.Currencies)
	out.Methods = slices.Clone(p.Methods)
	out.CredentialFields = make([]CredentialField, len(p.CredentialFields))
	for i, f := range p.CredentialFields {
		f.Options = slices.Clone(f.Options)
		out.CredentialFields[i] = f
	}
	return out
}

func filter(keep func(ProviderConfig) bool) []ProviderConfig {
	var out []ProviderConfig
	for _, p := range providers {
		if keep(p) {
			out = append(out, p.clone())
		}
	}
	return out
}
