package domain

import "strings"

// Provider identifies a supported payment provider.
type Provider string

const (
	ProviderPaystack    Provider = "paystack"
	ProviderFlutterwave Provider = "flutterwave"
	ProviderMpesa       Provider = "mpesa"
	ProviderAirtelMoney Provider = "airtel_money"
)

// IntegrationType separates hosted-checkout gateways from push-to-phone providers.
type IntegrationType string

const (
	IntegrationTypeGateway     IntegrationType = "gateway"
	IntegrationTypeMobileMoney IntegrationType = "mobile_money"
)

// AllProviders lists every provider in a stable order.
func AllProviders() []Provider {
	return []Provider{
		ProviderPaystack,
		ProviderFlutterwave,
		ProviderMpesa,
		ProviderAirtelMoney,
	}
}

// Type reports the integration type of the provider. Unknown providers return "".
func (p Provider) Type() IntegrationType {
	switch p {
	case ProviderPaystack, ProviderFlutterwave:
		return IntegrationTypeGateway
	case ProviderMpesa, ProviderAirtelMoney:
		return IntegrationTypeMobileMoney
	default:
		return ""
	}
}

func (p Provider) Valid() bool {
	return p.Type() != ""
}

func (p Provider) String() string {
	return string(p)
}

// ParseProvider normalizes a raw provider id.
func ParseProvider(raw string) (Provider, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", ErrInvalidProvider
	}
	p := Provider(value)
	if !p.Valid() {
		return "", ErrProviderNotFound
	}
	return p, nil
}

func (t IntegrationType) Valid() bool {
	return t == IntegrationTypeGateway || t == IntegrationTypeMobileMoney
}
