// Package domain provides the canonical error types shared by the client.
package domain

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates an authentication failure.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypePermission indicates a permission/authorization failure.
	ErrorTypePermission ErrorType = "permission"

	// ErrorTypeNotFound indicates a resource was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeRateLimit indicates rate limiting was triggered.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"

	// ErrorTypeUnavailable indicates the backend could not be reached at all:
	// connection failures, DNS errors, and request timeouts.
	ErrorTypeUnavailable ErrorType = "unavailable"
)

// APIError is the canonical error surfaced for any failed backend call.
// Detail carries the backend-provided human-readable message when one was
// present in the response body.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Detail is the human-readable error message
	Detail string `json:"detail"`

	// StatusCode is the HTTP status of the response, or 0 when no
	// response was obtained
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Type, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Detail)
}

// Retryable reports whether the failure is worth reissuing: the backend was
// unreachable, timed out, or answered with a server-side error. Client errors
// are final; resubmission will not change the outcome.
func (e *APIError) Retryable() bool {
	switch e.Type {
	case ErrorTypeUnavailable, ErrorTypeServer:
		return true
	}
	return false
}

// errorBody matches the FastAPI error envelope used by the backend.
type errorBody struct {
	Detail string `json:"detail"`
}

// FromResponse builds an APIError from a non-2xx response. The backend wraps
// messages as {"detail": "..."}; anything else degrades to a generic message
// so callers always have something printable.
func FromResponse(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Type:       typeForStatus(statusCode),
		StatusCode: statusCode,
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != "" {
		apiErr.Detail = parsed.Detail
	} else {
		apiErr.Detail = fmt.Sprintf("request failed with status %d", statusCode)
	}

	return apiErr
}

// Unreachable builds an APIError for a request that produced no response.
func Unreachable(err error) *APIError {
	return &APIError{
		Type:   ErrorTypeUnavailable,
		Detail: err.Error(),
	}
}

func typeForStatus(statusCode int) ErrorType {
	switch {
	case statusCode == http.StatusUnauthorized:
		return ErrorTypeAuthentication
	case statusCode == http.StatusForbidden:
		return ErrorTypePermission
	case statusCode == http.StatusNotFound:
		return ErrorTypeNotFound
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServer
	default:
		return ErrorTypeInvalidRequest
	}
}
