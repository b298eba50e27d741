package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/pkg/logger"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Common error codes
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeProviderAuth        = "PROVIDER_AUTH_FAILED"
	CodeProviderRejected    = "PROVIDER_REJECTED"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeProviderTimeout     = "PROVIDER_TIMEOUT"
	CodePaymentInvalid      = "PAYMENT_INVALID"
	CodePaymentFailed       = "PAYMENT_FAILED"
	CodeDocumentRender      = "DOCUMENT_RENDER_FAILED"
	CodeEmailFailed         = "EMAIL_SEND_FAILED"
)

// WriteJSON writes any payload as a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteValidation writes a 400 with per-field details.
func WriteValidation(w http.ResponseWriter, message string, fields map[string]string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   message,
		Code:    CodeInvalidInput,
		Details: fields,
	})
}

// WriteDomainError maps the service error taxonomy onto HTTP statuses.
// Unknown errors become a generic 500 so internals never leak.
func WriteDomainError(w http.ResponseWriter, err error) {
	var (
		verr    *domain.ValidationError
		perr    *domain.PaymentValidationError
		authErr *domain.ProviderAuthError
		reqErr  *domain.ProviderRequestError
		unavail *domain.ProviderUnavailableError
		payErr  *domain.PaymentError
		docErr  *domain.DocumentRenderError
	)

	switch {
	case errors.As(err, &verr):
		WriteValidation(w, "validation failed", verr.Fields)
	case errors.As(err, &perr):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "card validation failed",
			Code:    CodePaymentInvalid,
			Details: perr.Fields,
		})
	case errors.As(err, &authErr):
		WriteError(w, http.StatusBadGateway, "flight provider authentication failed", CodeProviderAuth)
	case errors.As(err, &reqErr):
		WriteError(w, http.StatusBadGateway, reqErr.Error(), CodeProviderRejected)
	case errors.As(err, &unavail):
		if unavail.Timeout {
			WriteError(w, http.StatusGatewayTimeout, "flight provider timed out", CodeProviderTimeout)
		} else {
			WriteError(w, http.StatusBadGateway, "flight provider unavailable", CodeProviderUnavailable)
		}
	case errors.As(err, &payErr):
		WriteError(w, http.StatusBadRequest, payErr.Message, CodePaymentFailed)
	case errors.As(err, &docErr):
		WriteError(w, http.StatusInternalServerError, "document rendering failed", CodeDocumentRender)
	default:
		WriteError(w, http.StatusInternalServerError, "internal error", CodeInternalError)
	}
}

// Known reports whether err belongs to the service error taxonomy, i.e.
// WriteDomainError would produce something more specific than a 500.
func Known(err error) bool {
	var (
		verr    *domain.ValidationError
		perr    *domain.PaymentValidationError
		authErr *domain.ProviderAuthError
		reqErr  *domain.ProviderRequestError
		unavail *domain.ProviderUnavailableError
		payErr  *domain.PaymentError
		docErr  *domain.DocumentRenderError
	)
	return errors.As(err, &verr) || errors.As(err, &perr) ||
		errors.As(err, &authErr) || errors.As(err, &reqErr) ||
		errors.As(err, &unavail) || errors.As(err, &payErr) ||
		errors.As(err, &docErr)
}

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}
