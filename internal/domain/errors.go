package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports field-level problems found before any external
// call is made. Keys are dotted field paths, values are human messages.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = message
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ProviderAuthError means the flight inventory provider rejected or failed
// our authentication. Fatal for the calling operation, never retried silently.
type ProviderAuthError struct {
	Err error
}

func (e *ProviderAuthError) Error() string {
	return fmt.Sprintf("provider authentication failed: %v", e.Err)
}

func (e *ProviderAuthError) Unwrap() error { return e.Err }

// ProviderRequestError is a provider-side 4xx: our request was understood
// and refused. Carries the upstream code and detail for the caller.
type ProviderRequestError struct {
	Status int
	Code   int
	Title  string
	Detail string
}

func (e *ProviderRequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("provider rejected request (%d/%d): %s", e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("provider rejected request (%d/%d): %s", e.Status, e.Code, e.Title)
}

// ProviderUnavailableError is a provider 5xx or a transport-level failure
// (timeout included). The operation failed with unknown upstream effect.
type ProviderUnavailableError struct {
	Timeout bool
	Err     error
}

func (e *ProviderUnavailableError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("provider timed out: %v", e.Err)
	}
	return fmt.Sprintf("provider unavailable: %v", e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// PaymentValidationError reports card input problems caught locally,
// before anything reaches the payment provider.
type PaymentValidationError struct {
	Fields map[string]string
}

func (e *PaymentValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "card validation failed: " + strings.Join(parts, "; ")
}

// PaymentError is a payment provider failure, surfaced with the provider's
// own message. Not retried by the coordinator.
type PaymentError struct {
	Code    string
	Message string
}

func (e *PaymentError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment failed (%s): %s", e.Code, e.Message)
	}
	return "payment failed: " + e.Message
}

// DocumentRenderError means the confirmation document could not be produced
// at all (fonts/resources). Malformed individual fields degrade instead.
type DocumentRenderError struct {
	Err error
}

func (e *DocumentRenderError) Error() string {
	return fmt.Sprintf("document render failed: %v", e.Err)
}

func (e *DocumentRenderError) Unwrap() error { return e.Err }

// NotificationTransportError means the mail transport could not be verified
// at startup. Startup-fatal, distinct from a per-send failure.
type NotificationTransportError struct {
	Err error
}

func (e *NotificationTransportError) Error() string {
	return fmt.Sprintf("notification transport unavailable: %v", e.Err)
}

func (e *NotificationTransportError) Unwrap() error { return e.Err }
