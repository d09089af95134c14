package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported to callers alongside a message.
const (
	KindOAuth             = "oauth_error"
	KindHostResolution    = "host_resolution_error"
	KindRequest           = "request_error"
	KindRateLimitExceeded = "rate_limit_exceeded"
	KindProvider          = "provider_error"
	KindRejected          = "provider_rejected"
	KindValidation        = "validation_error"
	KindNotFound          = "not_found"
	KindConfiguration     = "configuration_error"
	KindInternal          = "internal_error"
)

// OAuthError is returned when the provider rejects an authorization code or
// refresh token exchange.
type OAuthError struct {
	Status int
	Body   string
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("oauth exchange rejected (status %d): %s", e.Status, e.Body)
}

// HostResolutionError is returned when the discovery endpoint cannot map an API
// token to a database host.
type HostResolutionError struct {
	Reason string
	Err    error
}

func (e *HostResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve host: %s: %v", e.Reason, e.Err)
	}
	return "resolve host: " + e.Reason
}

func (e *HostResolutionError) Unwrap() error { return e.Err }

// RequestError is a non-retryable 4xx response other than 429.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("provider request failed (status %d): %s", e.Status, e.Body)
}

// RateLimitExceededError is returned when 429 responses persist after every retry.
type RateLimitExceededError struct {
	Attempts int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("provider rate limit exceeded after %d attempts", e.Attempts)
}

// ProviderError is returned when 5xx responses, timeouts or network failures
// persist after every retry. Status is zero for transport failures.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return "provider unavailable: " + e.Body
	}
	return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Body)
}

// RejectedError is a successful HTTP exchange in which the provider refused the
// operation (Accurate answers "s": false with messages).
type RejectedError struct {
	Messages []string
}

func (e *RejectedError) Error() string {
	if len(e.Messages) == 0 {
		return "rejected by provider"
	}
	return strings.Join(e.Messages, "; ")
}

// ValidationError rejects a row (RowIndex >= 0) or a request field (RowIndex -1)
// before anything is sent to the provider.
type ValidationError struct {
	RowIndex int
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.RowIndex < 0 {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("row %d: invalid %s: %s", e.RowIndex, e.Field, e.Reason)
}

// NotFoundError is returned when a credential, job or provider record lookup misses.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ConfigurationError is returned when a required setting is missing.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing configuration: " + strings.Join(e.Missing, ", ")
}

// PartialExportError aborts an export that failed after Rows rows were produced.
type PartialExportError struct {
	Rows int
	Err  error
}

func (e *PartialExportError) Error() string {
	return fmt.Sprintf("export aborted after %d rows: %v", e.Rows, e.Err)
}

func (e *PartialExportError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a provider failure that survived the
// dispatcher's retries, as opposed to a definitive rejection.
func IsTransient(err error) bool {
	var rateErr *RateLimitExceededError
	var provErr *ProviderError
	return errors.As(err, &rateErr) || errors.As(err, &provErr)
}

// ErrorKind maps err to its stable kind string. Unknown errors are internal.
func ErrorKind(err error) string {
	var (
		oauthErr  *OAuthError
		hostErr   *HostResolutionError
		reqErr    *RequestError
		rateErr   *RateLimitExceededError
		provErr   *ProviderError
		rejectErr *RejectedError
		validErr  *ValidationError
		notFound  *NotFoundError
		configErr *ConfigurationError
	)

	// HostResolutionError wraps the dispatcher error that caused it, so it is
	// checked before the transport kinds.
	switch {
	case errors.As(err, &hostErr):
		return KindHostResolution
	case errors.As(err, &oauthErr):
		return KindOAuth
	case errors.As(err, &validErr):
		return KindValidation
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &configErr):
		return KindConfiguration
	case errors.As(err, &rateErr):
		return KindRateLimitExceeded
	case errors.As(err, &provErr):
		return KindProvider
	case errors.As(err, &rejectErr):
		return KindRejected
	case errors.As(err, &reqErr):
		return KindRequest
	default:
		return KindInternal
	}
}
