package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Failure kinds carried on CallError.
const (
	KindTimeout         = "timeout"
	KindRateLimited     = "rate_limited"
	KindAuthFailed      = "auth_failed"
	KindServerError     = "server_error"
	KindInvalidResponse = "invalid_response"
)

// CallError describes a failed provider call with a stable failure kind.
type CallError struct {
	Provider string
	Kind     string
	Status   int
	Err      error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s call failed (%s): %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s call failed (%s)", e.Provider, e.Kind)
}

func (e *CallError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth one more attempt.
// Auth failures and malformed payloads never are; a second identical
// request would fail the same way.
func (e *CallError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindServerError
}

// NewCallError wraps err with a provider name and failure kind.
func NewCallError(provider, kind string, status int, err error) *CallError {
	return &CallError{Provider: provider, Kind: kind, Status: status, Err: err}
}

// ClassifyHTTPStatus maps an HTTP status to a failure kind.
func ClassifyHTTPStatus(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthFailed
	case status >= 500:
		return KindServerError
	default:
		return KindInvalidResponse
	}
}

// ClassifyTransportError maps a transport-level error to a failure kind.
func ClassifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return KindTimeout
	}
	return KindServerError
}

// FailureKind extracts the failure kind from any error, defaulting to
// server_error for errors that did not originate in a provider call.
func FailureKind(err error) string {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindServerError
}
