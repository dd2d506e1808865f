package ndarray

import (
	"sync/atomic"
	"unsafe"
)

// Array is a reference-counted, strided view over runtime-owned memory.
//
// The runtime owns every Array: it is created with a reference count of 1
// belonging to the creator, and is destroyed by the DecRef that brings the
// count to zero. Strides are byte distances and may be negative.
type Array struct {
	rt       *Runtime
	buf      *buffer  // Shared with views of the same memory
	base     *Array   // Array this view keeps alive, nil for owners of buf
	offset   int      // Byte offset of element [0, ..., 0] within buf.data
	shape    Shape    // Array extents
	strides  []int    // Signed byte strides
	code     TypeCode // Element type
	refCount atomic.Int32
}

// Shape returns the array's extents.
func (a *Array) Shape() Shape {
	return a.shape
}

// Strides returns the array's byte strides.
func (a *Array) Strides() []int {
	return a.strides
}

// Type returns the element type code.
func (a *Array) Type() TypeCode {
	return a.code
}

// NDim returns the number of axes.
func (a *Array) NDim() int {
	return len(a.shape)
}

// NumElements returns the total number of elements.
func (a *Array) NumElements() int {
	return a.shape.NumElements()
}

// ByteSize returns the logical data size in bytes.
func (a *Array) ByteSize() int {
	return a.NumElements() * a.code.Size()
}

// RefCount returns the current external reference count.
func (a *Array) RefCount() int {
	return int(a.refCount.Load())
}

// Base returns the array whose memory this view shares, or nil.
func (a *Array) Base() *Array {
	return a.base
}

// Runtime returns the runtime that owns the array.
func (a *Array) Runtime() *Runtime {
	return a.rt
}

// Released reports whether the array's memory has been returned to the
// runtime.
func (a *Array) Released() bool {
	return a.buf.data == nil
}

// IsContiguous reports whether the array is laid out in C order with
// densely packed elements.
func (a *Array) IsContiguous() bool {
	expected := ContiguousStrides(a.shape, a.code.Size())
	for i, s := range a.strides {
		if s != expected[i] {
			return false
		}
	}
	return true
}

// DataPtr returns the address of element [0, ..., 0], or nil once the
// array has been released.
func (a *Array) DataPtr() unsafe.Pointer {
	if a.buf.data == nil {
		return nil
	}
	return unsafe.Pointer(&a.buf.data[a.offset])
}

// Bytes returns the backing memory starting at element [0, ..., 0].
// WARNING: Direct access to runtime-owned memory. Elements at negative
// strides lie before the returned slice.
func (a *Array) Bytes() []byte {
	if a.buf.data == nil {
		return nil
	}
	return a.buf.data[a.offset:]
}

// forEachElement visits the byte offset (into buf.data) of every element in
// C order.
func (a *Array) forEachElement(fn func(off int)) {
	forEach(a.shape, a.strides, a.offset, fn)
}
