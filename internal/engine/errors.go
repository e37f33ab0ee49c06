package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/sandbox/internal/ledger"
)

// RuntimeError is a precondition violation reported by a System or one of
// its contracts. It is surfaced to the caller immediately and never retried.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Address is the account involved, if any.
	Address string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeContractNotActive indicates a getter call on an account without
	// active code and data.
	ErrCodeContractNotActive RuntimeErrorCode = "CONTRACT_NOT_ACTIVE"

	// ErrCodeUnsupportedMessageType indicates a message kind an account
	// cannot receive.
	ErrCodeUnsupportedMessageType RuntimeErrorCode = "UNSUPPORTED_MESSAGE_TYPE"

	// ErrCodeInvalidMessageKind indicates a message kind Send does not accept.
	ErrCodeInvalidMessageKind RuntimeErrorCode = "INVALID_MESSAGE_KIND"

	// ErrCodeContractExists indicates an explicit creation for an address
	// that is already registered.
	ErrCodeContractExists RuntimeErrorCode = "CONTRACT_EXISTS"

	// ErrCodeQuotaExceeded indicates a run applied more transactions than
	// its limit allows.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Address != "" {
		return fmt.Sprintf("%s: %s (address=%s)", e.Code, e.Message, e.Address)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func isCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsContractNotActive reports whether err is a CONTRACT_NOT_ACTIVE error.
func IsContractNotActive(err error) bool { return isCode(err, ErrCodeContractNotActive) }

// IsUnsupportedMessageType reports whether err is an
// UNSUPPORTED_MESSAGE_TYPE error.
func IsUnsupportedMessageType(err error) bool { return isCode(err, ErrCodeUnsupportedMessageType) }

// IsInvalidMessageKind reports whether err is an INVALID_MESSAGE_KIND error.
func IsInvalidMessageKind(err error) bool { return isCode(err, ErrCodeInvalidMessageKind) }

// IsContractExists reports whether err is a CONTRACT_EXISTS error.
func IsContractExists(err error) bool { return isCode(err, ErrCodeContractExists) }

// IsQuotaError reports whether err is a QUOTA_EXCEEDED error.
func IsQuotaError(err error) bool { return isCode(err, ErrCodeQuotaExceeded) }

// NewContractNotActiveError reports which part of the active state is
// missing.
func NewContractNotActiveError(addr ledger.Address, reason string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeContractNotActive,
		Message: reason,
		Address: addr.String(),
	}
}

// NewUnsupportedMessageTypeError creates an UNSUPPORTED_MESSAGE_TYPE error.
func NewUnsupportedMessageTypeError(addr ledger.Address, kind ledger.MessageKind) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnsupportedMessageType,
		Message: fmt.Sprintf("unsupported message type: %s", kind),
		Address: addr.String(),
	}
}

// NewInvalidMessageKindError creates an INVALID_MESSAGE_KIND error.
func NewInvalidMessageKindError(kind ledger.MessageKind) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidMessageKind,
		Message: fmt.Sprintf("only external-in messages can be sent, got %s", kind),
	}
}

// NewContractExistsError creates a CONTRACT_EXISTS error.
func NewContractExistsError(addr ledger.Address) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeContractExists,
		Message: "contract already exists",
		Address: addr.String(),
	}
}

// NewQuotaError creates a QUOTA_EXCEEDED error.
func NewQuotaError(runID string, applied, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("run exceeded max transactions (%d >= %d)", applied, limit),
		Details: map[string]string{
			"run_id":           runID,
			"transactions":     fmt.Sprintf("%d", applied),
			"max_transactions": fmt.Sprintf("%d", limit),
		},
	}
}
