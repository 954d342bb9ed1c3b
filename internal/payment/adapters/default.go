package adapters

import (
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/airtel"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/flutterwave"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/mpesa"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/paystack"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

// NewFactory returns the factory for a provider. The switch is exhaustive
// over domain.AllProviders.
func NewFactory(provider domain.Provider) (domain.AdapterFactory, error) {
	switch provider {
	case domain.ProviderPaystack:
		return paystack.NewFactory(), nil
	case domain.ProviderFlutterwave:
		return flutterwave.NewFactory(), nil
	case domain.ProviderMpesa:
		return mpesa.NewFactory(), nil
	case domain.ProviderAirtelMoney:
		return airtel.NewFactory(), nil
	default:
		return nil, domain.ErrProviderNotFound
	}
}

// NewDefaultRegistry registers every supported provider.
func NewDefaultRegistry() *Registry {
	factories := make([]domain.AdapterFactory, 0, len(domain.AllProviders()))
	for _, p := range domain.AllProviders() {
		f, err := NewFactory(p)
		if err != nil {
			panic("payment adapters: no factory for " + p.String())
		}
		factories = append(factories, f)
	}
	return NewRegistry(factories...)
}
