package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	paymentservice "github.com/payssd/chapchap-sub000/internal/payment/service"
)

type connectIntegrationRequest struct {
	Provider    string            `json:"provider" binding:"required"`
	DisplayName string            `json:"display_name"`
	Credentials map[string]string `json:"credentials" binding:"required"`
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// integrationView is the wire form of an integration. Credentials are never
// part of it.
type integrationView struct {
	*domain.PaymentIntegration
	SupportedCurrencies []string `json:"supported_currencies"`
	SupportedMethods    []string `json:"supported_methods"`
}

func newIntegrationView(integration *domain.PaymentIntegration) integrationView {
	return integrationView{
		PaymentIntegration:  integration,
		SupportedCurrencies: domain.DecodeStringList(integration.SupportedCurrencies),
		SupportedMethods:    domain.DecodeStringList(integration.SupportedMethods),
	}
}

// ListIntegrations
// GET /api/integrations
func (s *Server) ListIntegrations(c *gin.Context) {
	items, err := s.paymentSvc.ListIntegrations(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	views := make([]integrationView, 0, len(items))
	for i := range items {
		views = append(views, newIntegrationView(&items[i]))
	}
	respondData(c, views)
}

// ConnectIntegration stores a new provider connection after a live credential check.
// POST /api/integrations
func (s *Server) ConnectIntegration(c *gin.Context) {
	var req connectIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	integration, err := s.paymentSvc.ConnectIntegration(c.Request.Context(), userIDFromContext(c), paymentservice.ConnectInput{
		Provider:    req.Provider,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Credentials: req.Credentials,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": newIntegrationView(integration)})
}

// GET /api/integrations/:id
func (s *Server) GetIntegration(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	integration, err := s.paymentSvc.GetIntegration(c.Request.Context(), userIDFromContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, newIntegrationView(integration))
}

// DELETE /api/integrations/:id
func (s *Server) DeleteIntegration(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := s.paymentSvc.DeleteIntegration(c.Request.Context(), userIDFromContext(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// POST /api/integrations/:id/default
func (s *Server) SetDefaultIntegration(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	integration, err := s.paymentSvc.SetDefault(c.Request.Context(), userIDFromContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, newIntegrationView(integration))
}

// POST /api/integrations/:id/active
func (s *Server) SetIntegrationActive(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	integration, err := s.paymentSvc.SetActive(c.Request.Context(), userIDFromContext(c), id, *req.IsActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, newIntegrationView(integration))
}

// POST /api/integrations/:id/verify
func (s *Server) VerifyIntegration(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	integration, err := s.paymentSvc.VerifyIntegration(c.Request.Context(), userIDFromContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, newIntegrationView(integration))
}
