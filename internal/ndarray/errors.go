package ndarray

import "errors"

// Common errors.
var (
	ErrOutOfMemory   = errors.New("out of memory")
	ErrInvalidShape  = errors.New("invalid shape")
	ErrInvalidType   = errors.New("invalid type code")
	ErrTypeMismatch  = errors.New("element type mismatch")
	ErrViewOutOfSpan = errors.New("view extends beyond base array")
	ErrReleased      = errors.New("array already released")
)
