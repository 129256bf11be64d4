// Package apperr defines the typed errors that cross the HTTP boundary. Each
// error carries the status code and the client-facing message explicitly, so
// handlers and middleware never have to guess how a failure is reported.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	PoolExhaustion     Kind = "pool_exhaustion"
	AuthMissingHeader  Kind = "auth_missing_header"
	AuthInvalidScheme  Kind = "auth_invalid_scheme"
	AuthTokenExpired   Kind = "auth_token_expired"
	AuthTokenInvalid   Kind = "auth_token_invalid"
	CredentialMismatch Kind = "credential_mismatch"
	HashingFailure     Kind = "hashing_failure"
	QueryFailure       Kind = "query_failure"
	RequestCanceled    Kind = "request_canceled"
	Internal           Kind = "internal"
)

// StatusClientClosedRequest is the non-standard status recorded when the
// client disconnected before a response could be produced.
const StatusClientClosedRequest = 499

// Error is a failure with an HTTP status and a message that is safe to show
// to the client. Err holds the underlying cause for logs only.
type Error struct {
	Kind   Kind
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind using the default status for it.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Status: StatusFor(kind), Msg: msg, Err: cause}
}

// StatusFor maps a kind to its HTTP status code.
func StatusFor(kind Kind) int {
	switch kind {
	case PoolExhaustion:
		return http.StatusServiceUnavailable
	case RequestCanceled:
		return StatusClientClosedRequest
	case AuthMissingHeader, AuthInvalidScheme, AuthTokenExpired, AuthTokenInvalid, CredentialMismatch:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// IsClientError reports whether the failure is expected and correctable by
// the caller (as opposed to a server fault).
func (e *Error) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}
