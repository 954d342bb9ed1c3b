package adapters

import (
	"testing"

	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/payssd/chapchap-sub000/internal/payment/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryMatchesProviderCatalog(t *testing.T) {
	reg := NewDefaultRegistry()

	for _, p := range reg.Providers() {
		cfg, ok := registry.GetProviderConfig(p)
		require.True(t, ok, "adapter %s has no catalog entry", p)
		assert.NotEmpty(t, cfg.CredentialFields, "catalog entry %s has no credential fields", p)
	}
	for _, cfg := range registry.All() {
		assert.True(t, reg.ProviderExists(cfg.ID), "catalog entry %s has no adapter", cfg.ID)
		f, err := reg.Factory(cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, cfg.ID, f.Provider())
	}
	assert.Len(t, reg.Providers(), len(registry.All()))
}

func TestRegistryUnknownProvider(t *testing.T) {
	reg := NewDefaultRegistry()
	assert.False(t, reg.ProviderExists("unknown_xyz"))

	_, err := reg.NewAdapter("unknown_xyz", domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	_, err = reg.ParseWebhook("unknown_xyz", []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	var nilReg *Registry
	assert.False(t, nilReg.ProviderExists(domain.ProviderPaystack))
	assert.Nil(t, nilReg.Providers())
}

func TestNewAdapterRejectsMissingCredentials(t *testing.T) {
	reg := NewDefaultRegistry()
	for _, p := range reg.Providers() {
		_, err := reg.NewAdapter(p, domain.AdapterConfig{})
		assert.ErrorIs(t, err, domain.ErrInvalidConfig, "provider %s", p)
	}
}

func TestParseWebhookStampsProvider(t *testing.T) {
	reg := NewDefaultRegistry()
	payload := []byte(`{"event":"charge.success","data":{"reference":"INV_abc","amount":500000,"status":"success"}}`)

	event, err := reg.ParseWebhook(domain.ProviderPaystack, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderPaystack, event.Provider)
	assert.Equal(t, payload, event.RawPayload)
}
