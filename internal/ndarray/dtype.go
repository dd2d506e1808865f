// Package ndarray implements the array runtime whose objects the bridge
// shares with the matrix library: reference-counted, strided arrays guarded
// by a cooperative interpreter lock.
package ndarray

import (
	"fmt"
	"strings"
)

// DType is a constraint for Go element types that have a TypeCode.
type DType interface {
	bool | int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// TypeCode identifies the element type of an array.
type TypeCode int

// Supported element type codes.
const (
	Bool TypeCode = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

// Size returns the byte size of one element.
func (c TypeCode) Size() int {
	switch c {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		panic("unknown type code")
	}
}

// Valid reports whether c is one of the defined type codes.
func (c TypeCode) Valid() bool {
	return c >= Bool && c <= Float64
}

// IsFloat reports whether c is a floating-point type.
func (c TypeCode) IsFloat() bool {
	return c == Float32 || c == Float64
}

// IsUnsigned reports whether c is an unsigned integer type.
func (c TypeCode) IsUnsigned() bool {
	return c == Bool || c == Uint8 || c == Uint16 || c == Uint32 || c == Uint64
}

// String returns a human-readable name for the type code.
func (c TypeCode) String() string {
	switch c {
	case Bool:
		return "bool"
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// ParseTypeCode parses a type name as produced by TypeCode.String.
func ParseTypeCode(s string) (TypeCode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for c := Bool; c <= Float64; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown type code %q", s)
}

// typeCodeOf infers the TypeCode of a generic element type.
func typeCodeOf[T DType]() TypeCode {
	var dummy T
	switch any(dummy).(type) {
	case bool:
		return Bool
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic("unsupported type")
	}
}
