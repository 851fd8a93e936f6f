package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies a crawler failure. Every type is recoverable: the
// affected scope (catalog, thread or single download) is retried next cycle.
type ErrorType string

const (
	ErrorTypeTransport ErrorType = "transport"
	ErrorTypeProtocol  ErrorType = "protocol"
	ErrorTypeBlocked   ErrorType = "blocked"
	ErrorTypeNotFound  ErrorType = "not_found"
	ErrorTypeMalformed ErrorType = "malformed"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error represents a remote operation failure with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	URL     string
	Err     error
}

func (e *Error) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport wraps a connection, timeout or DNS failure.
func Transport(url string, err error) *Error {
	return &Error{
		Type:    ErrorTypeTransport,
		Message: err.Error(),
		URL:     url,
		Err:     err,
	}
}

// Malformed wraps a response body that could not be decoded.
func Malformed(url string, code int, err error) *Error {
	return &Error{
		Type:    ErrorTypeMalformed,
		Message: fmt.Sprintf("unexpected response shape: %v", err),
		Code:    code,
		URL:     url,
		Err:     err,
	}
}

// FromStatus maps a non-success HTTP status to an error. It returns nil for 200.
func FromStatus(code int, url string) *Error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusForbidden:
		return &Error{Type: ErrorTypeBlocked, Message: "request blocked, possibly by the CDN", Code: code, URL: url}
	case code == http.StatusNotFound:
		return &Error{Type: ErrorTypeNotFound, Message: "resource not found", Code: code, URL: url}
	default:
		return &Error{Type: ErrorTypeProtocol, Message: fmt.Sprintf("unexpected status code: %d", code), Code: code, URL: url}
	}
}

// TypeOf returns the type of the first *Error in err's chain.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
