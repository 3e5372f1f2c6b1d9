package llm

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind categorizes provider failures.
type ErrorKind string

const (
	KindUnauthorized     ErrorKind = "unauthorized"
	KindRateLimited      ErrorKind = "rate_limited"
	KindMalformedRequest ErrorKind = "malformed_request"
	KindUpstream         ErrorKind = "upstream"
)

// ProviderError is a categorized failure returned by a provider call.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%s, status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindFromStatus maps an HTTP status code to an error category.
func KindFromStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return KindMalformedRequest
	default:
		return KindUpstream
	}
}

// StatusError builds a ProviderError for a non-2xx response.
func StatusError(provider string, status int, detail string) *ProviderError {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}
	kind := KindFromStatus(status)
	var msg string
	switch kind {
	case KindUnauthorized:
		msg = fmt.Sprintf("invalid %s API key, check your credentials", provider)
	case KindRateLimited:
		msg = "API rate limit exceeded, wait a moment and try again"
	case KindMalformedRequest:
		msg = fmt.Sprintf("invalid request format: %s", detail)
	default:
		msg = fmt.Sprintf("%s API error: %s", provider, detail)
	}
	return &ProviderError{Provider: provider, Kind: kind, Status: status, Message: msg}
}

// TransportError wraps a failure that happened before any HTTP status was received.
func TransportError(provider string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     KindUpstream,
		Message:  fmt.Sprintf("%s request failed: %v", provider, err),
		Err:      err,
	}
}
