package server

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

type paymentLinkRequest struct {
	IntegrationID string `json:"integration_id"`
}

type mobilePaymentRequest struct {
	IntegrationID string `json:"integration_id"`
	Phone         string `json:"phone"`
}

type verifyPaymentRequest struct {
	IntegrationID string `json:"integration_id"`
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return false
	}
	return true
}

// GeneratePaymentLink creates a hosted checkout link. Without integration_id
// the user's default gateway is used.
// POST /api/invoices/:id/payment-link
func (s *Server) GeneratePaymentLink(c *gin.Context) {
	invoiceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req paymentLinkRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	integrationID, ok := optionalUUID(c, "integration_id", req.IntegrationID)
	if !ok {
		return
	}

	link, err := s.paymentSvc.GeneratePaymentLink(c.Request.Context(), userIDFromContext(c), invoiceID, integrationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, link)
}

// InitiateMobilePayment sends a push prompt to the payer's phone.
// POST /api/invoices/:id/mobile-payment
func (s *Server) InitiateMobilePayment(c *gin.Context) {
	invoiceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req mobilePaymentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	integrationID, ok := optionalUUID(c, "integration_id", req.IntegrationID)
	if !ok {
		return
	}

	res, err := s.paymentSvc.InitiateMobilePayment(c.Request.Context(), userIDFromContext(c), invoiceID, integrationID, req.Phone)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, res)
}

// VerifyInvoicePayment polls the provider and settles the invoice on success.
// POST /api/invoices/:id/verify-payment
func (s *Server) VerifyInvoicePayment(c *gin.Context) {
	invoiceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req verifyPaymentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	integrationID, ok := optionalUUID(c, "integration_id", req.IntegrationID)
	if !ok {
		return
	}

	res, err := s.paymentSvc.VerifyInvoicePayment(c.Request.Context(), userIDFromContext(c), invoiceID, integrationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, res)
}

// GET /api/invoices/:id/payment-methods
func (s *Server) ListInvoicePaymentMethods(c *gin.Context) {
	invoiceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	methods, err := s.paymentSvc.ListInvoicePaymentMethods(c.Request.Context(), userIDFromContext(c), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, methods)
}
