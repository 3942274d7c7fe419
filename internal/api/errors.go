package api

import (
	"errors"
	"fmt"
)

// NetworkErrorMessage is shown to the user when a request fails in transit.
const NetworkErrorMessage = "Ошибка сети, попробуйте снова"

// AuthError is a failure reported by the server itself: bad credentials,
// an unverified account, a taken username, an invalid or expired token.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%d): %s", e.Status, e.Message)
}

// TransportError is a failure to obtain a well-formed answer from the
// server: connection errors, timeouts, undecodable bodies and 5xx replies.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsTransportError reports whether err (or any error in its chain) is a
// TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// Message returns the text to show the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	if IsTransportError(err) {
		return NetworkErrorMessage
	}
	return err.Error()
}
