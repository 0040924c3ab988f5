package credentials

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when no active credential exists for a tenant.
var ErrNotConnected = errors.New("no active credential for tenant")

// AuthExchangeError is returned when the authorization code exchange is
// rejected by the provider. The provider response body is preserved verbatim
// for operator diagnosis.
type AuthExchangeError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("authorization code exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// RefreshError is returned when a token refresh fails. It is terminal for the
// credential pair: the operator must re-run the authorization flow.
type RefreshError struct {
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface
func (e *RefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refresh failed: %v", e.Err)
	}
	return fmt.Sprintf("token refresh failed with status %d: %s", e.StatusCode, e.Body)
}

// Unwrap returns the underlying error
func (e *RefreshError) Unwrap() error {
	return e.Err
}
