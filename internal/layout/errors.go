package layout

import (
	"errors"
	"fmt"
)

// Fault kinds. Every validation failure wraps exactly one of them.
var (
	ErrShapeMismatch   = errors.New("shape/size mismatch")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// ValidationError describes a malformed batch.
type ValidationError struct {
	Kind    error  // ErrShapeMismatch or ErrIndexOutOfRange
	Field   string // Input array involved (e.g. "scatter_idxs")
	Index   int    // Offending position, -1 if not applicable
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%v: %s[%d]: %s", e.Kind, e.Field, e.Index, e.Details)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Details)
}

// Unwrap returns the fault kind so callers can use errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func shapeErr(field string, index int, format string, args ...any) error {
	return &ValidationError{Kind: ErrShapeMismatch, Field: field, Index: index, Details: fmt.Sprintf(format, args...)}
}

func rangeErr(field string, index int, format string, args ...any) error {
	return &ValidationError{Kind: ErrIndexOutOfRange, Field: field, Index: index, Details: fmt.Sprintf(format, args...)}
}
