package server

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/payssd/chapchap-sub000/internal/payment/registry"
)

// ListPaymentProviders returns the provider catalog with its credential
// schemas. Filters combine.
// GET /api/payment-providers?type=&country=&currency=
func (s *Server) ListPaymentProviders(c *gin.Context) {
	providers := registry.All()

	if t := strings.TrimSpace(c.Query("type")); t != "" {
		if !domain.IntegrationType(t).Valid() {
			AbortWithError(c, newValidationError("type", "invalid_type", "type must be gateway or mobile_money"))
			return
		}
		providers = slices.DeleteFunc(providers, func(p registry.ProviderConfig) bool {
			return string(p.Type) != t
		})
	}
	if country := strings.ToUpper(strings.TrimSpace(c.Query("country"))); country != "" {
		providers = slices.DeleteFunc(providers, func(p registry.ProviderConfig) bool {
			return !slices.Contains(p.Countries, country)
		})
	}
	if currency := strings.TrimSpace(c.Query("currency")); currency != "" {
		providers = slices.DeleteFunc(providers, func(p registry.ProviderConfig) bool {
			return !p.SupportsCurrency(currency)
		})
	}
	if providers == nil {
		providers = []registry.ProviderConfig{}
	}

	respondData(c, providers)
}

// GetPaymentProvider returns one provider definition.
// GET /api/payment-providers/:id
func (s *Server) GetPaymentProvider(c *gin.Context) {
	provider, err := domain.ParseProvider(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	cfg, ok := registry.GetProviderConfig(provider)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}
	respondData(c, cfg)
}
