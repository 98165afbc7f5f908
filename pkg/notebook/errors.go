package notebook

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication      = errors.New("authentication failed")
	ErrCapacityExceeded    = errors.New("session capacity exceeded")
	ErrAcquisitionTimeout  = errors.New("no stable answer before timeout")
	ErrSessionDisconnected = errors.New("session disconnected")
	ErrRateLimited         = errors.New("rate limited by the remote site")
	ErrSessionClosed       = errors.New("session closed")
	ErrMissingTarget       = errors.New("target resource is required for a new session")
	ErrEmptyQuestion       = errors.New("question is required")
	ErrSessionNotFound     = errors.New("session not found")
)

// errDraining tells a creator to wait for the previous session with the
// same id to finish its question.
var errDraining = errors.New("session id still draining")

// AuthenticationError wraps the reason an interactive login did not produce
// a usable credential.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is matches ErrAuthentication so callers can test either form.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// NewAuthenticationError creates an AuthenticationError.
func NewAuthenticationError(reason string, err error) *AuthenticationError {
	return &AuthenticationError{Reason: reason, Err: err}
}

// IsRetryable returns true if asking again later might succeed without
// user intervention.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrAcquisitionTimeout) ||
		errors.Is(err, ErrSessionDisconnected)
}
