package ndarray

import (
	"context"
	"fmt"
	"math"
	"unsafe"
)

// scalar is one element widened for conversion between type codes.
type scalar struct {
	i     int64
	u     uint64
	f     float64
	float bool
	neg   bool // Signed source value below zero
}

//nolint:gosec // unsafe element access, offsets are bounds checked by the caller's layout
func load(code TypeCode, p []byte) scalar {
	ptr := unsafe.Pointer(&p[0])
	switch code {
	case Bool:
		if *(*bool)(ptr) {
			return fromUint(1)
		}
		return fromUint(0)
	case Int8:
		return fromInt(int64(*(*int8)(ptr)))
	case Uint8:
		return fromUint(uint64(*(*uint8)(ptr)))
	case Int16:
		return fromInt(int64(*(*int16)(ptr)))
	case Uint16:
		return fromUint(uint64(*(*uint16)(ptr)))
	case Int32:
		return fromInt(int64(*(*int32)(ptr)))
	case Uint32:
		return fromUint(uint64(*(*uint32)(ptr)))
	case Int64:
		return fromInt(*(*int64)(ptr))
	case Uint64:
		return fromUint(*(*uint64)(ptr))
	case Float32:
		return fromFloat(float64(*(*float32)(ptr)))
	case Float64:
		return fromFloat(*(*float64)(ptr))
	default:
		panic("unknown type code")
	}
}

func fromInt(v int64) scalar {
	return scalar{i: v, u: uint64(v), f: float64(v), neg: v < 0} //nolint:gosec // wrap is the cast semantics
}

func fromUint(v uint64) scalar {
	return scalar{i: int64(v), u: v, f: float64(v)} //nolint:gosec // wrap is the cast semantics
}

func fromFloat(v float64) scalar {
	return scalar{i: int64(v), u: uint64(v), f: v, float: true, neg: v < 0}
}

//nolint:gosec // unsafe element access, offsets are bounds checked by the caller's layout
func store(code TypeCode, p []byte, v scalar) {
	ptr := unsafe.Pointer(&p[0])
	switch code {
	case Bool:
		*(*bool)(ptr) = v.f != 0
	case Int8:
		*(*int8)(ptr) = int8(v.i)
	case Uint8:
		*(*uint8)(ptr) = uint8(v.i)
	case Int16:
		*(*int16)(ptr) = int16(v.i)
	case Uint16:
		*(*uint16)(ptr) = uint16(v.i)
	case Int32:
		*(*int32)(ptr) = int32(v.i)
	case Uint32:
		*(*uint32)(ptr) = uint32(v.i)
	case Int64:
		*(*int64)(ptr) = v.i
	case Uint64:
		*(*uint64)(ptr) = v.u
	case Float32:
		*(*float32)(ptr) = float32(v.f)
	case Float64:
		*(*float64)(ptr) = v.f
	default:
		panic("unknown type code")
	}
}

// bounds returns the representable range of an integer type code.
func bounds(code TypeCode) (lo int64, hi uint64) {
	switch code {
	case Bool:
		return 0, 1
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Uint8:
		return 0, math.MaxUint8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Uint16:
		return 0, math.MaxUint16
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Uint32:
		return 0, math.MaxUint32
	case Int64:
		return math.MinInt64, math.MaxInt64
	default:
		return 0, math.MaxUint64
	}
}

func (v scalar) fits(code TypeCode) bool {
	if code.IsFloat() {
		return true
	}
	lo, hi := bounds(code)
	if v.float {
		return v.f == math.Trunc(v.f) && v.f >= float64(lo) && v.f <= float64(hi)
	}
	if v.neg {
		return v.i >= lo
	}
	return v.u <= hi
}

// Fits reports whether every element of a converts to code without
// changing its value. Float targets always fit.
func Fits(a *Array, code TypeCode) bool {
	if a.Released() {
		return false
	}
	ok := true
	a.forEachElement(func(off int) {
		if ok && !load(a.code, a.buf.data[off:]).fits(code) {
			ok = false
		}
	})
	return ok
}

// FromSlice creates a contiguous array with the given shape holding a copy
// of data. ctx must hold the runtime's GIL.
func FromSlice[T DType](ctx context.Context, rt *Runtime, data []T, shape Shape) (*Array, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("%w: shape %v requires %d elements, but got %d",
			ErrInvalidShape, shape, shape.NumElements(), len(data))
	}

	a, err := rt.AllocateContiguous(ctx, shape, typeCodeOf[T]())
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		//nolint:gosec // unsafe.Slice for zero-copy view of the source slice
		src := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*a.code.Size())
		copy(a.Bytes(), src)
	}
	return a, nil
}

// ToSlice gathers a's elements in C order, following any strides.
func ToSlice[T DType](a *Array) ([]T, error) {
	if want := typeCodeOf[T](); a.code != want {
		return nil, fmt.Errorf("%w: array is %s, not %s", ErrTypeMismatch, a.code, want)
	}
	if a.Released() {
		return nil, ErrReleased
	}

	out := make([]T, 0, a.NumElements())
	a.forEachElement(func(off int) {
		out = append(out, *(*T)(unsafe.Pointer(&a.buf.data[off]))) //nolint:gosec // aligned element read
	})
	return out, nil
}

// At returns the element at the given index.
// Panics if the type or index does not match the array.
func At[T DType](a *Array, idx ...int) T {
	if want := typeCodeOf[T](); a.code != want {
		panic(fmt.Sprintf("array dtype is %s, not %s", a.code, want))
	}
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("index has %d axes, array has %d", len(idx), len(a.shape)))
	}
	off := a.offset
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			panic(fmt.Sprintf("index %d out of range for axis %d of extent %d", v, i, a.shape[i]))
		}
		off += v * a.strides[i]
	}
	return *(*T)(unsafe.Pointer(&a.buf.data[off])) //nolint:gosec // bounds checked above
}
