package ndarray

import "fmt"

// Shape represents the extents of an array, outermost axis first.
type Shape []int

// NumElements returns the total number of elements.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every extent is positive.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ContiguousStrides calculates C-order byte strides for the shape:
// stride[i] = elemSize * product of all extents after i.
func ContiguousStrides(s Shape, elemSize int) []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = elemSize
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// span returns the lowest and one-past-highest byte offsets, relative to
// the first element, touched by an array with the given layout.
func span(s Shape, strides []int, elemSize int) (lo, hi int) {
	hi = elemSize
	for i, dim := range s {
		ext := (dim - 1) * strides[i]
		if ext < 0 {
			lo += ext
		} else {
			hi += ext
		}
	}
	return lo, hi
}

// forEach calls fn with the byte offset of every element in C order,
// starting at base.
func forEach(s Shape, strides []int, base int, fn func(off int)) {
	if len(s) == 0 {
		fn(base)
		return
	}

	idx := make([]int, len(s))
	off := base
	for {
		fn(off)

		d := len(s) - 1
		for ; d >= 0; d-- {
			idx[d]++
			off += strides[d]
			if idx[d] < s[d] {
				break
			}
			off -= strides[d] * s[d]
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}
