package connector

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/payssd/chapchap-sub000/internal/config"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/payssd/chapchap-sub000/internal/security/vault"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.connector",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Registry *adapters.Registry
	Vault    vault.Provider
	Tokens   domain.TokenStore
	Cfg      config.Config
}

// Connector turns stored integrations into live adapters. Credentials are
// decrypted on every call so rotated secrets take effect immediately.
type Connector struct {
	registry *adapters.Registry
	vault    vault.Provider
	tokens   domain.TokenStore
	payments config.PaymentsConfig
}

func New(p Params) *Connector {
	return &Connector{
		registry: p.Registry,
		vault:    p.Vault,
		tokens:   p.Tokens,
		payments: p.Cfg.Payments,
	}
}

// Credentials decrypts the integration's credential bag.
func (c *Connector) Credentials(integration *domain.PaymentIntegration) (map[string]string, error) {
	if c.vault == nil {
		return nil, domain.ErrEncryptionKeyMissing
	}
	creds, err := vault.OpenCredentials(c.vault, integration.ID, integration.Credentials)
	if err != nil {
		if errors.Is(err, vault.ErrInvalidKey) {
			return nil, domain.ErrEncryptionKeyMissing
		}
		return nil, fmt.Errorf("%w: credentials unreadable", domain.ErrInvalidConfig)
	}
	return creds, nil
}

// Adapter builds the provider adapter for an integration.
func (c *Connector) Adapter(integration *domain.PaymentIntegration) (domain.PaymentAdapter, error) {
	creds, err := c.Credentials(integration)
	if err != nil {
		return nil, err
	}
	return c.AdapterFor(integration.Provider, creds)
}

// AdapterFor builds an adapter from plaintext credentials, e.g. while
// connecting a new integration.
func (c *Connector) AdapterFor(provider domain.Provider, creds map[string]string) (domain.PaymentAdapter, error) {
	return c.registry.NewAdapter(provider, domain.AdapterConfig{
		Credentials:        creds,
		BaseURL:            c.payments.BaseURLs[provider.String()],
		HTTPTimeout:        c.payments.HTTPTimeout,
		ReadRetries:        c.payments.ReadRetries,
		TokenStore:         c.tokens,
		TokenRefreshMargin: c.payments.TokenRefreshMargin,
	})
}

func (c *Connector) Registry() *adapters.Registry {
	return c.registry
}

// Seal encrypts a credential bag for storage on the given integration.
func (c *Connector) Seal(integrationID uuid.UUID, creds map[string]string) ([]byte, error) {
	if c.vault == nil {
		return nil, domain.ErrEncryptionKeyMissing
	}
	return vault.SealCredentials(c.vault, integrationID, creds)
}
