package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientCredentials = errors.New("insufficient credentials provided")
	ErrMissingParameter        = errors.New("insufficient parameters")
	ErrAlreadyExists           = errors.New("already exists")
	ErrNotFound                = errors.New("does not exist")
	ErrInvalidCredentials      = errors.New("invalid credentials provided")
	ErrAuthenticationFailed    = errors.New("failed to authenticate")
	ErrCSRFFetchFailed         = errors.New("failed to get csrf token")
	ErrAccountIDNotFound       = errors.New("account id not found in page body")
	ErrMalformedRequest        = errors.New("malformed request")
	ErrRemovalFailed           = errors.New("removal failed")
	ErrTransport               = errors.New("transport error")
	ErrSessionExpired          = errors.New("session expired")
	ErrNotAuthenticated        = errors.New("not authenticated")
	ErrDeployTimeout           = errors.New("timed out waiting for database to be provisioned")

	ErrProfileNotFound = errors.New("profile not found")
	ErrSecretNotFound  = errors.New("secret not found")
)

// TransportError describes a dashboard request that did not produce the
// expected response. It matches ErrTransport with errors.Is.
type TransportError struct {
	Op         string
	StatusCode int
	Location   string
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	if e.StatusCode == 0 {
		msg = e.Op
	}
	if e.Location != "" {
		msg += fmt.Sprintf(" (location %q)", e.Location)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}
