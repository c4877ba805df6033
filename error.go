package agentrpc

import (
	"fmt"
	"time"
)

// Error returns the error message
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("code: %d, message: %s, data: %v", e.Code, e.Message, e.Data)
}

// NewError creates a new JSON-RPC error with the supplied code, message and data.
func NewError(code int, message string, data interface{}) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// NewParsingError creates a new parsing error
func NewParsingError(message string, data []byte) *Error {
	return NewError(ParseError, message, string(data))
}

// NewInternalError creates a new internal error
func NewInternalError(message string) *Error {
	return NewError(InternalError, message, nil)
}

// NewInvalidRequest creates a new invalid request error
func NewInvalidRequest(message string) *Error {
	return NewError(InvalidRequest, message, nil)
}

// NewInvalidParamsError creates a new invalid params error
func NewInvalidParamsError(message string) *Error {
	return NewError(InvalidParams, message, nil)
}

// NewMethodNotFound creates a new method not found error
func NewMethodNotFound(method string) *Error {
	return NewError(MethodNotFound, fmt.Sprintf("Method not found: %s", method), nil)
}

// TimeoutError indicates that a request did not receive a response within its
// deadline. The request is removed from the pending set; a late response is
// silently dropped.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

// Error returns the error message
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %q timed out after %s", e.Method, e.Timeout)
}

// NewTimeoutError creates a new timeout error for the supplied method.
func NewTimeoutError(method string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{Method: method, Timeout: timeout}
}

// StateError indicates an operation on a component in the wrong state:
// sending on a closed connection, using a destroyed session, or calling a
// client that is not connected.
type StateError struct {
	Message string
}

// Error returns the error message
func (e *StateError) Error() string {
	return e.Message
}

// NewStateError creates a new state error.
func NewStateError(format string, args ...interface{}) *StateError {
	return &StateError{Message: fmt.Sprintf(format, args...)}
}
