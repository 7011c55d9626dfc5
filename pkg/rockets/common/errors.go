package common

import (
	"errors"
	"fmt"
)

// ErrorCode defines the JSON-RPC error codes
type ErrorCode int

// Common error codes
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603

	// SocketClosed is reported when the connection went away before a reply arrived
	SocketClosed ErrorCode = -30100
)

// RequestError reports the error code and message of a request that has failed
type RequestError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RequestError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// Is matches reserved errors by code, so a decoded error object compares
// equal to ErrSocketClosed or ErrInvalidRequest.
func (e *RequestError) Is(target error) bool {
	var other *RequestError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// Reserved request errors
var (
	ErrSocketClosed   = &RequestError{Code: SocketClosed, Message: "Socket connection closed"}
	ErrInvalidRequest = &RequestError{Code: InvalidRequest, Message: "Invalid Request"}
)
