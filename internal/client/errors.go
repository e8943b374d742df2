package client

import (
	"errors"
	"fmt"
	"net/http"
)

const defaultFailureMessage = "Request failed"

// NetworkError means the exchange never produced a response: DNS, dial,
// TLS, a dropped connection, or a canceled context.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return "network error"
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ProtocolError means the server answered but the exchange failed: the
// envelope said success:false, the body was not an envelope, or the status
// signalled failure. Error() is the server's message verbatim.
type ProtocolError struct {
	StatusCode int
	Status     string
	Message    string
	Err        error
}

func (e *ProtocolError) Error() string {
	switch {
	case e == nil:
		return defaultFailureMessage
	case e.Message != "":
		return e.Message
	case e.Status != "":
		return e.Status
	default:
		return defaultFailureMessage
	}
}

func (e *ProtocolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError reports a caller-side precondition failure; nothing was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "invalid input"
	}
	return e.Message
}

func IsUnauthorized(err error) bool {
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		return false
	}
	return protoErr.StatusCode == http.StatusUnauthorized || protoErr.StatusCode == http.StatusForbidden
}

func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
