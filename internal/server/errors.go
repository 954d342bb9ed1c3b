package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

// APIError is the JSON error body. Type is a stable machine-readable code.
type APIError struct {
	Status  int    `json:"-"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

var (
	ErrUnauthorized   = &APIError{Status: http.StatusUnauthorized, Type: "unauthorized", Message: "unauthorized"}
	ErrInvalidRequest = &APIError{Status: http.StatusBadRequest, Type: "invalid_request", Message: "invalid request"}
	ErrNotFound       = &APIError{Status: http.StatusNotFound, Type: "not_found", Message: "not found"}
	ErrInternal       = &APIError{Status: http.StatusInternalServerError, Type: "internal_error", Message: "internal server error"}
)

func invalidRequestError() *APIError {
	return ErrInvalidRequest
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Type: code, Message: message, Field: field}
}

var statusByError = []struct {
	err    error
	status int
}{
	{domain.ErrInvalidProvider, http.StatusBadRequest},
	{domain.ErrProviderNotFound, http.StatusBadRequest},
	{domain.ErrInvalidPayload, http.StatusBadRequest},
	{domain.ErrInvalidEvent, http.StatusBadRequest},
	{domain.ErrInvalidConfig, http.StatusBadRequest},
	{domain.ErrInvalidAmount, http.StatusBadRequest},
	{domain.ErrInvalidCurrency, http.StatusBadRequest},
	{domain.ErrInvalidPhone, http.StatusBadRequest},
	{domain.ErrInvalidIntegrationID, http.StatusBadRequest},
	{domain.ErrMissingCredentials, http.StatusBadRequest},
	{domain.ErrUnsupportedOperation, http.StatusBadRequest},
	{domain.ErrInvalidSignature, http.StatusUnauthorized},
	{domain.ErrProviderMismatch, http.StatusUnauthorized},
	{domain.ErrIntegrationNotFound, http.StatusNotFound},
	{domain.ErrInvoiceNotFound, http.StatusNotFound},
	{domain.ErrInvoiceAlreadyPaid, http.StatusConflict},
	{domain.ErrInvoiceNotPayable, http.StatusConflict},
	{domain.ErrPaymentNotInitiated, http.StatusConflict},
	{domain.ErrIntegrationInactive, http.StatusConflict},
}

// AbortWithError writes the error response for err and aborts the chain.
// Unknown errors become a generic 500; their text is only logged.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(toAPIError(err).response())
}

func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var providerErr *domain.ProviderError
	if errors.As(err, &providerErr) {
		return &APIError{Status: http.StatusBadGateway, Type: domain.ErrProviderRequestFailed.Error(), Message: providerErr.Error()}
	}

	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return &APIError{Status: m.status, Type: m.err.Error(), Message: err.Error()}
		}
	}
	return ErrInternal
}

func (e *APIError) response() (int, gin.H) {
	return e.Status, gin.H{"error": e}
}
