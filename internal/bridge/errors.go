package bridge

import (
	"errors"
	"fmt"

	"github.com/born-ml/ndbridge/internal/layout"
)

// Error kinds. Every error returned by a conversion matches exactly one of
// them with errors.Is.
var (
	ErrUnsupportedRank  = layout.ErrUnsupportedRank
	ErrUnsupportedType  = layout.ErrUnsupportedType
	ErrAllocationFailed = errors.New("allocation failed")
	ErrNotAnArray       = errors.New("not an array")
)

// Error describes a failed conversion.
type Error struct {
	Op     string // Operation, e.g. "to_mat"
	Kind   error  // One of the Err* kinds
	Detail string // Human-readable specifics
	Err    error  // Underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// wrapAnalysis converts an analyzer error into an *Error of the matching
// kind.
func wrapAnalysis(op string, err error) error {
	kind := ErrUnsupportedType
	if errors.Is(err, ErrUnsupportedRank) {
		kind = ErrUnsupportedRank
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
