package githubapi

import (
	"errors"
	"fmt"
)

const (
	transientStatusErrorTemplateConstant   = "transient failure from %s: HTTP %d"
	transientCauseErrorTemplateConstant    = "transient failure from %s: %v"
	authErrorTemplateConstant              = "authentication rejected by %s: HTTP %d %s"
	rateLimitErrorTemplateConstant         = "rate limit reached at %s: HTTP %d %s"
	unexpectedStatusErrorTemplateConstant  = "unexpected response from %s: HTTP %d %s"
	malformedResponseErrorTemplateConstant = "malformed response from %s: %s"
	malformedCauseTemplateConstant         = "%s: %v"
	pageLimitErrorTemplateConstant         = "pagination stopped at %s after %d pages"
)

// TransientNetworkError reports a failure that may succeed when repeated, such as a 5xx
// status or a dropped connection.
type TransientNetworkError struct {
	URL        string
	StatusCode int
	Cause      error
}

// Error describes the transient failure.
func (transientError TransientNetworkError) Error() string {
	if transientError.Cause != nil {
		return fmt.Sprintf(transientCauseErrorTemplateConstant, transientError.URL, transientError.Cause)
	}
	return fmt.Sprintf(transientStatusErrorTemplateConstant, transientError.URL, transientError.StatusCode)
}

// Unwrap exposes the underlying transport error.
func (transientError TransientNetworkError) Unwrap() error {
	return transientError.Cause
}

// AuthError reports a rejected or missing credential (HTTP 401).
type AuthError struct {
	URL        string
	StatusCode int
	Message    string
}

// Error describes the authentication failure.
func (authError AuthError) Error() string {
	return fmt.Sprintf(authErrorTemplateConstant, authError.URL, authError.StatusCode, authError.Message)
}

// RateLimitError reports throttling by the API (HTTP 403 or 429).
type RateLimitError struct {
	URL        string
	StatusCode int
	Message    string
}

// Error describes the rate limit.
func (rateLimitError RateLimitError) Error() string {
	return fmt.Sprintf(rateLimitErrorTemplateConstant, rateLimitError.URL, rateLimitError.StatusCode, rateLimitError.Message)
}

// UnexpectedStatusError reports any other non-success status, such as an unknown owner.
type UnexpectedStatusError struct {
	URL        string
	StatusCode int
	Message    string
}

// Error describes the unexpected status.
func (statusError UnexpectedStatusError) Error() string {
	return fmt.Sprintf(unexpectedStatusErrorTemplateConstant, statusError.URL, statusError.StatusCode, statusError.Message)
}

// MalformedResponseError reports a payload that could not be interpreted.
type MalformedResponseError struct {
	URL     string
	Message string
	Cause   error
}

// Error describes the malformed payload.
func (malformedError MalformedResponseError) Error() string {
	message := malformedError.Message
	if malformedError.Cause != nil {
		message = fmt.Sprintf(malformedCauseTemplateConstant, message, malformedError.Cause)
	}
	return fmt.Sprintf(malformedResponseErrorTemplateConstant, malformedError.URL, message)
}

// Unwrap exposes the underlying decoding error.
func (malformedError MalformedResponseError) Unwrap() error {
	return malformedError.Cause
}

// PageLimitError reports that pagination was cut off at the configured ceiling.
type PageLimitError struct {
	URL      string
	MaxPages int
}

// Error describes the page ceiling.
func (pageLimitError PageLimitError) Error() string {
	return fmt.Sprintf(pageLimitErrorTemplateConstant, pageLimitError.URL, pageLimitError.MaxPages)
}

// IsRetryable reports whether the error is worth repeating under the retry policy.
func IsRetryable(candidate error) bool {
	var transientError TransientNetworkError
	return errors.As(candidate, &transientError)
}
