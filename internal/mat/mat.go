package mat

import (
	"context"
	"errors"
	"fmt"
	"unsafe"
)

// Layout errors.
var (
	ErrInvalidSizes = errors.New("invalid matrix sizes")
	ErrShortBuffer  = errors.New("buffer too small for layout")
	ErrMismatch     = errors.New("matrix shape or type mismatch")
)

// Mat is an n-dimensional matrix header. Several headers may share one
// Storage; each holds one reference to it until released.
type Mat struct {
	typ       Type
	sizes     []int
	steps     []int // Byte step per axis
	data      []byte
	u         *Storage
	allocator Allocator
}

// New allocates a matrix through alloc, or the default allocator if alloc
// is nil.
func New(ctx context.Context, sizes []int, typ Type, alloc Allocator) (*Mat, error) {
	if err := validateSizes(sizes); err != nil {
		return nil, err
	}
	if alloc == nil {
		alloc = DefaultAllocator()
	}

	u, steps, err := alloc.Allocate(ctx, sizes, typ)
	if err != nil {
		return nil, err
	}
	m, err := FromStorage(u, sizes, typ, steps, alloc)
	if err != nil {
		u.Release(ctx)
		return nil, err
	}
	return m, nil
}

// NewEmpty returns a matrix with no data that allocates through alloc.
func NewEmpty(alloc Allocator) *Mat {
	return &Mat{allocator: alloc}
}

// NewHeader creates a matrix over caller-owned bytes. It holds no storage
// record, so nothing is released with it.
func NewHeader(sizes []int, typ Type, data []byte, steps []int) (*Mat, error) {
	if err := validateLayout(sizes, steps, typ, len(data)); err != nil {
		return nil, err
	}
	return &Mat{
		typ:   typ,
		sizes: append([]int(nil), sizes...),
		steps: append([]int(nil), steps...),
		data:  data,
	}, nil
}

// FromStorage creates a matrix over u, taking over one reference the
// caller already holds.
func FromStorage(u *Storage, sizes []int, typ Type, steps []int, alloc Allocator) (*Mat, error) {
	if err := validateLayout(sizes, steps, typ, len(u.Data())); err != nil {
		return nil, err
	}
	return &Mat{
		typ:       typ,
		sizes:     append([]int(nil), sizes...),
		steps:     append([]int(nil), steps...),
		data:      u.Data(),
		u:         u,
		allocator: alloc,
	}, nil
}

func validateSizes(sizes []int) error {
	if len(sizes) == 0 || len(sizes) > MaxDim {
		return fmt.Errorf("%w: %d dimensions (want 1..%d)", ErrInvalidSizes, len(sizes), MaxDim)
	}
	for i, s := range sizes {
		if s <= 0 {
			return fmt.Errorf("%w: size %d at axis %d", ErrInvalidSizes, s, i)
		}
	}
	return nil
}

func validateLayout(sizes, steps []int, typ Type, n int) error {
	if err := validateSizes(sizes); err != nil {
		return err
	}
	if len(steps) != len(sizes) {
		return fmt.Errorf("%w: %d steps for %d dimensions", ErrInvalidSizes, len(steps), len(sizes))
	}
	need := typ.ElemSize()
	for i, s := range sizes {
		if steps[i] < 0 {
			return fmt.Errorf("%w: negative step %d at axis %d", ErrInvalidSizes, steps[i], i)
		}
		need += (s - 1) * steps[i]
	}
	if need > n {
		return fmt.Errorf("%w: layout spans %d bytes, buffer has %d", ErrShortBuffer, need, n)
	}
	return nil
}

// Type returns the element type.
func (m *Mat) Type() Type { return m.typ }

// Dims returns the number of dimensions, 0 for an empty matrix.
func (m *Mat) Dims() int { return len(m.sizes) }

// Sizes returns the extent of every axis.
func (m *Mat) Sizes() []int { return m.sizes }

// Steps returns the byte step of every axis.
func (m *Mat) Steps() []int { return m.steps }

// Data returns the bytes starting at the first element.
func (m *Mat) Data() []byte { return m.data }

// Storage returns the shared storage record, nil for headers and empty
// matrices.
func (m *Mat) Storage() *Storage { return m.u }

// Allocator returns the allocator used for new buffers of this matrix.
func (m *Mat) Allocator() Allocator { return m.allocator }

// Empty reports whether the matrix has no data.
func (m *Mat) Empty() bool {
	return m == nil || len(m.data) == 0
}

// Total returns the number of elements.
func (m *Mat) Total() int {
	if m.Empty() {
		return 0
	}
	return total(m.sizes)
}

// DataPtr returns the address of the first element, or nil if empty.
func (m *Mat) DataPtr() unsafe.Pointer {
	if m.Empty() {
		return nil
	}
	return unsafe.Pointer(&m.data[0])
}

// IsContinuous reports whether elements are densely packed in row-major
// order.
func (m *Mat) IsContinuous() bool {
	if m.Empty() {
		return true
	}
	expected := ContinuousSteps(m.sizes, m.typ.ElemSize())
	for i := range m.sizes {
		if m.sizes[i] > 1 && m.steps[i] != expected[i] {
			return false
		}
	}
	return true
}

// AddRef adds a reference to the underlying storage, if any.
func (m *Mat) AddRef() {
	if m.u != nil {
		m.u.AddRef()
	}
}

// Share returns a new header over the same storage, holding its own
// reference.
func (m *Mat) Share() *Mat {
	m.AddRef()
	return m.header(m.data, m.sizes, m.steps)
}

func (m *Mat) header(data []byte, sizes, steps []int) *Mat {
	return &Mat{
		typ:       m.typ,
		sizes:     append([]int(nil), sizes...),
		steps:     append([]int(nil), steps...),
		data:      data,
		u:         m.u,
		allocator: m.allocator,
	}
}

// Release drops this header's storage reference and empties it. Releasing
// an empty matrix is a no-op.
func (m *Mat) Release() {
	m.ReleaseContext(context.Background())
}

// ReleaseContext is Release with the caller's context, which allocators
// may use to find locks the caller already holds.
func (m *Mat) ReleaseContext(ctx context.Context) {
	if m == nil {
		return
	}
	if m.u != nil {
		m.u.Release(ctx)
	}
	m.u = nil
	m.data = nil
	m.sizes = nil
	m.steps = nil
}

// RowRange returns a header over rows [start, end) of the first axis,
// sharing storage.
func (m *Mat) RowRange(start, end int) (*Mat, error) {
	if m.Empty() || start < 0 || end > m.sizes[0] || start >= end {
		return nil, fmt.Errorf("%w: row range [%d, %d)", ErrInvalidSizes, start, end)
	}
	sizes := append([]int(nil), m.sizes...)
	sizes[0] = end - start
	m.AddRef()
	return m.header(m.data[start*m.steps[0]:], sizes, m.steps), nil
}
