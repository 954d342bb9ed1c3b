package adapters

import (
	"sort"

	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

// Registry maps providers to their adapter factories.
type Registry struct {
	factories map[domain.Provider]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	r := &Registry{factories: make(map[domain.Provider]domain.AdapterFactory, len(factories))}
	for _, f := range factories {
		if f == nil {
			continue
		}
		r.factories[f.Provider()] = f
	}
	return r
}

func (r *Registry) ProviderExists(provider domain.Provider) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[provider]
	return ok
}

func (r *Registry) Factory(provider domain.Provider) (domain.AdapterFactory, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	f, ok := r.factories[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return f, nil
}

func (r *Registry) NewAdapter(provider domain.Provider, cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	f, err := r.Factory(provider)
	if err != nil {
		return nil, err
	}
	cfg.Provider = provider
	return f.NewAdapter(cfg)
}

// ParseWebhook decodes a callback with the provider's extractor.
func (r *Registry) ParseWebhook(provider domain.Provider, payload []byte) (*domain.PaymentEvent, error) {
	f, err := r.Factory(provider)
	if err != nil {
		return nil, err
	}
	event, err := f.ParseWebhook(payload)
	if err != nil {
		return nil, err
	}
	event.Provider = provider
	if event.RawPayload == nil {
		event.RawPayload = payload
	}
	return event, nil
}

// Providers lists registered providers in sorted order.
func (r *Registry) Providers() []domain.Provider {
	if r == nil {
		return nil
	}
	out := make([]domain.Provider, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
