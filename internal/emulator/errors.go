package emulator

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes adapter-level failures.
type ErrorCode string

const (
	// ErrCodeUnavailable indicates the engine could not be loaded or crashed.
	ErrCodeUnavailable ErrorCode = "ENGINE_UNAVAILABLE"

	// ErrCodeProtocol indicates a malformed request or response.
	ErrCodeProtocol ErrorCode = "ENGINE_PROTOCOL"
)

// Error is an adapter-level failure. It aborts the caller's operation.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the engine function being called.
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewUnavailableError creates an Error for an engine that cannot serve calls.
func NewUnavailableError(op, msg string, cause error) *Error {
	return &Error{Code: ErrCodeUnavailable, Op: op, Message: msg, Err: cause}
}

// NewProtocolError creates an Error for a malformed exchange.
func NewProtocolError(op, msg string, cause error) *Error {
	return &Error{Code: ErrCodeProtocol, Op: op, Message: msg, Err: cause}
}

// IsUnavailable reports whether err is an ENGINE_UNAVAILABLE error.
// Uses errors.As to handle wrapped errors.
func IsUnavailable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeUnavailable
	}
	return false
}

// IsProtocol reports whether err is an ENGINE_PROTOCOL error.
func IsProtocol(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeProtocol
	}
	return false
}
