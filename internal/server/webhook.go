package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/airtel"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/flutterwave"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/mpesa"
	"github.com/payssd/chapchap-sub000/internal/payment/adapters/paystack"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

// signatureHeaders are checked in order; the first non-empty one wins.
var signatureHeaders = []string{
	paystack.SignatureHeader,
	flutterwave.SignatureHeader,
	airtel.SignatureHeader,
}

// ReceivePaymentWebhook accepts provider callbacks.
// POST /webhooks/payments?provider=<id>&integration_id=<uuid>
func (s *Server) ReceivePaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, newValidationError("body", "payload_too_large", "payload too large"))
			return
		}
		AbortWithError(c, domain.ErrInvalidPayload)
		return
	}

	result, err := s.webhookSvc.Ingest(c.Request.Context(), domain.WebhookInput{
		Provider:      c.Query("provider"),
		IntegrationID: c.Query("integration_id"),
		Payload:       body,
		Signature:     webhookSignature(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.Provider == domain.ProviderMpesa {
		c.JSON(http.StatusOK, mpesa.Acknowledgement())
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func webhookSignature(c *gin.Context) string {
	for _, header := range signatureHeaders {
		if v := strings.TrimSpace(c.GetHeader(header)); v != "" {
			return v
		}
	}
	return ""
}
