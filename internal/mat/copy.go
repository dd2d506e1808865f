package mat

import (
	"context"
	"fmt"
	"unsafe"
)

// Elem is a constraint for Go types that match a channel depth.
type Elem interface {
	uint8 | int8 | uint16 | int16 | int32 | float32 | float64
}

func depthOf[T Elem]() Depth {
	var dummy T
	switch any(dummy).(type) {
	case uint8:
		return Depth8U
	case int8:
		return Depth8S
	case uint16:
		return Depth16U
	case int16:
		return Depth16S
	case int32:
		return Depth32S
	case float32:
		return Depth32F
	case float64:
		return Depth64F
	default:
		panic("unsupported type")
	}
}

// forEach2 walks two layouts of the same sizes in row-major order, calling
// fn with the byte offset of each element in both.
func forEach2(sizes, stepsA, stepsB []int, fn func(a, b int)) {
	idx := make([]int, len(sizes))
	offA, offB := 0, 0
	for {
		fn(offA, offB)

		d := len(sizes) - 1
		for ; d >= 0; d-- {
			idx[d]++
			offA += stepsA[d]
			offB += stepsB[d]
			if idx[d] < sizes[d] {
				break
			}
			offA -= stepsA[d] * sizes[d]
			offB -= stepsB[d] * sizes[d]
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

func sameShape(a, b *Mat) bool {
	if a.typ != b.typ || len(a.sizes) != len(b.sizes) {
		return false
	}
	for i := range a.sizes {
		if a.sizes[i] != b.sizes[i] {
			return false
		}
	}
	return true
}

// CopyTo copies m's elements into dst, which must already have the same
// sizes and type.
func (m *Mat) CopyTo(dst *Mat) error {
	if m.Empty() || dst.Empty() || !sameShape(m, dst) {
		return fmt.Errorf("%w: copy %v %s into %v %s", ErrMismatch, m.Sizes(), m.typ, dst.Sizes(), dst.typ)
	}

	es := m.typ.ElemSize()
	if m.IsContinuous() && dst.IsContinuous() {
		n := m.Total() * es
		copy(dst.data[:n], m.data[:n])
		return nil
	}

	forEach2(m.sizes, m.steps, dst.steps, func(src, off int) {
		copy(dst.data[off:off+es], m.data[src:src+es])
	})
	return nil
}

// Clone allocates a continuous copy of m through alloc (nil for the
// default allocator).
func (m *Mat) Clone(ctx context.Context, alloc Allocator) (*Mat, error) {
	if m.Empty() {
		return NewEmpty(alloc), nil
	}
	dst, err := New(ctx, m.sizes, m.typ, alloc)
	if err != nil {
		return nil, err
	}
	if err := m.CopyTo(dst); err != nil {
		dst.ReleaseContext(ctx)
		return nil, err
	}
	return dst, nil
}

// TransposeInto writes the transpose of the two-dimensional m into dst,
// whose sizes must be m's reversed.
func (m *Mat) TransposeInto(dst *Mat) error {
	if m.Dims() != 2 || dst.Dims() != 2 || m.typ != dst.typ ||
		dst.sizes[0] != m.sizes[1] || dst.sizes[1] != m.sizes[0] {
		return fmt.Errorf("%w: transpose %v %s into %v %s", ErrMismatch, m.Sizes(), m.typ, dst.Sizes(), dst.typ)
	}

	es := m.typ.ElemSize()
	for i := 0; i < m.sizes[0]; i++ {
		for j := 0; j < m.sizes[1]; j++ {
			src := i*m.steps[0] + j*m.steps[1]
			off := j*dst.steps[0] + i*dst.steps[1]
			copy(dst.data[off:off+es], m.data[src:src+es])
		}
	}
	return nil
}

func (m *Mat) offset(idx []int) int {
	if len(idx) != len(m.sizes) {
		panic(fmt.Sprintf("index has %d axes, matrix has %d", len(idx), len(m.sizes)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= m.sizes[i] {
			panic(fmt.Sprintf("index %d out of range for axis %d of size %d", v, i, m.sizes[i]))
		}
		off += v * m.steps[i]
	}
	return off
}

func checkElem[T Elem](m *Mat, channel int) {
	if d := depthOf[T](); m.typ.Depth() != d {
		panic(fmt.Sprintf("matrix depth is %s, not %s", m.typ.Depth(), d))
	}
	if channel < 0 || channel >= m.typ.Channels() {
		panic(fmt.Sprintf("channel %d out of range for %s", channel, m.typ))
	}
}

// At returns channel ch of the element at idx.
func At[T Elem](m *Mat, ch int, idx ...int) T {
	checkElem[T](m, ch)
	off := m.offset(idx) + ch*m.typ.ElemSize1()
	return *(*T)(unsafe.Pointer(&m.data[off])) //nolint:gosec // bounds checked by offset
}

// Set stores v in channel ch of the element at idx.
func Set[T Elem](m *Mat, v T, ch int, idx ...int) {
	checkElem[T](m, ch)
	off := m.offset(idx) + ch*m.typ.ElemSize1()
	*(*T)(unsafe.Pointer(&m.data[off])) = v //nolint:gosec // bounds checked by offset
}

// ToSlice gathers every channel of every element in row-major order.
func ToSlice[T Elem](m *Mat) []T {
	if m.Empty() {
		return nil
	}
	checkElem[T](m, 0)
	cn := m.typ.Channels()
	es1 := m.typ.ElemSize1()
	out := make([]T, 0, m.Total()*cn)
	forEach2(m.sizes, m.steps, m.steps, func(off, _ int) {
		for c := 0; c < cn; c++ {
			out = append(out, *(*T)(unsafe.Pointer(&m.data[off+c*es1]))) //nolint:gosec // within element
		}
	})
	return out
}
