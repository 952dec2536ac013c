// Package errors provides error definitions and classification helpers
// for the TRC daemon. It defines the APIError type used by both
// external API clients, sentinel errors for common HTTP failure modes,
// and helpers that drive retry decisions in the monitor.
package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for common API failure modes. Wrapped into APIError
// based on the response status code, so callers can use errors.Is.
var (
	// ErrUnauthorized indicates a rejected or missing API key.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the remote API returned 429 despite the
	// local gate spacing.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates a 5xx response from the remote API.
	ErrServiceUnavailable = errors.New("service unavailable")
)

// APIError represents a failed call to one of the external APIs.
type APIError struct {
	// Service is the API the call was made against ("riven" or "realdebrid").
	Service string
	// Endpoint is the request path, without query parameters.
	Endpoint string
	// StatusCode is the HTTP status of the response, 0 for transport errors.
	StatusCode int
	// Message is a short description, typically a snippet of the response body.
	Message string

	cause error
}

// NewAPIError creates an APIError for a non-2xx response, wrapping the
// sentinel error matching the status code.
func NewAPIError(service, endpoint string, statusCode int, message string) *APIError {
	return &APIError{
		Service:    service,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		cause:      sentinelFor(statusCode),
	}
}

// WrapTransport creates an APIError for a request that failed before a
// response was received (DNS, connect, timeout).
func WrapTransport(service, endpoint string, err error) *APIError {
	return &APIError{
		Service:  service,
		Endpoint: endpoint,
		Message:  "request failed",
		cause:    err,
	}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Service, e.Endpoint, e.Message, e.cause)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.cause
}

// sentinelFor maps an HTTP status code to its sentinel error, or nil
// for codes without one.
func sentinelFor(statusCode int) error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrUnauthorized
	case statusCode == http.StatusNotFound:
		return ErrNotFound
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case statusCode >= 500:
		return ErrServiceUnavailable
	default:
		return nil
	}
}

// IsRetryable reports whether the operation that produced err may
// succeed on a later attempt. Rate limiting, server-side failures and
// transient network errors are retryable; auth failures and missing
// resources are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServiceUnavailable) {
		return true
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// Transport-level failure with no status code.
		return apiErr.StatusCode == 0
	}
	return false
}

// IsAuthError reports whether err indicates a rejected API key, which
// is fatal for the daemon: retrying will not help until the operator
// fixes the configuration.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// Is re-exports errors.Is so callers don't need both packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As so callers don't need both packages.
func As(err error, target any) bool {
	return errors.As(err, target)
}
