package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedState is returned when the supplied state is not a
	// well-formed serialized record or is missing required fields
	ErrMalformedState = errors.New("oauth: malformed state token")

	// ErrStateNotFound is returned when no state record exists for the
	// triple. Expired and never-issued states are indistinguishable.
	ErrStateNotFound = errors.New("oauth: state token not found")

	// ErrStateMismatch is returned when the stored nonce differs from the
	// nonce supplied by the callback
	ErrStateMismatch = errors.New("oauth: state token does not match")

	// ErrUnsupportedIntegration is returned when no token endpoint is
	// registered for the integration
	ErrUnsupportedIntegration = errors.New("oauth: unsupported integration")

	// ErrCredentialsNotFound is returned when credentials are absent
	// (never stored, already consumed, or expired)
	ErrCredentialsNotFound = errors.New("oauth: no credentials found")

	// ErrInvalidCredentialFormat is returned when the stored credential
	// blob does not decode to a non-empty record
	ErrInvalidCredentialFormat = errors.New("oauth: invalid credentials format")
)

// TokenExchangeError is a terminal failure of the code-for-token exchange.
// It carries the upstream status code and response body verbatim.
type TokenExchangeError struct {
	Integration string
	StatusCode  int
	Body        string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("oauth: token exchange for %s failed with status %d: %s", e.Integration, e.StatusCode, e.Body)
}

// StorageError wraps a connectivity failure of the ephemeral store. Unlike
// the sentinel errors above it surfaces as a server error, not a client one.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("oauth: storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
