package qbclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedMethod is returned for any HTTP method other than GET, POST
// or PUT, before any I/O happens.
var ErrUnsupportedMethod = errors.New("unsupported HTTP method")

// AuthenticationError is returned when the remote rejects the bearer token
// even after a forced refresh. It signals a credential-level problem, not a
// transient one.
type AuthenticationError struct {
	Body string
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication rejected after token refresh: %s", e.Body)
}

// RateLimitError is returned on HTTP 429. RetryAfter carries the provider's
// hint when present; zero means the caller should apply its own default pause.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// RemoteError is returned for any other non-success response. The body is
// preserved verbatim because the provider embeds fault details in it.
type RemoteError struct {
	StatusCode int
	Body       string
	URL        string
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Body)
}
