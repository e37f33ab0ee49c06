package events

import (
	"errors"
	"fmt"
)

// ErrCodeUnsupportedShape marks a transaction the tracker cannot interpret.
const ErrCodeUnsupportedShape = "UNSUPPORTED_TRANSACTION_SHAPE"

// ShapeError reports a transaction without an inbound message or with a
// non-generic description.
type ShapeError struct {
	Code    string
	Message string
	LT      uint64
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s (lt=%d)", e.Code, e.Message, e.LT)
}

func newShapeError(lt uint64, format string, args ...any) *ShapeError {
	return &ShapeError{Code: ErrCodeUnsupportedShape, Message: fmt.Sprintf(format, args...), LT: lt}
}

// IsShapeError reports whether err is a ShapeError.
// Uses errors.As to handle wrapped errors.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}
