package account

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is returned when the account service rejects the credentials.
	ErrAuthentication = errors.New("authentication rejected")
	// ErrTimeout is returned when a login attempt does not complete in time.
	ErrTimeout = errors.New("login timed out")
	// ErrConnection is returned when the account service cannot be reached.
	ErrConnection = errors.New("cannot connect to account service")
	// ErrUnavailable is returned while the circuit breaker short-circuits logins.
	ErrUnavailable = errors.New("account service temporarily unavailable")
)

// ResponseError reports an unexpected HTTP response from the account service.
type ResponseError struct {
	StatusCode int
	Err        error
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected response from account service (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("unexpected response from account service (status %d)", e.StatusCode)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// IsConnectivityError reports whether err belongs to the timeout/connection class:
// the service could not be reached or answered with something other than a verdict on
// the credentials.
func IsConnectivityError(err error) bool {
	var respErr *ResponseError
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrConnection), errors.Is(err, ErrUnavailable):
		return true
	case errors.As(err, &respErr):
		return true
	}
	return false
}
