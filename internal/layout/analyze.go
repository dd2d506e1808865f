package layout

import (
	"errors"
	"fmt"

	"github.com/born-ml/ndbridge/internal/mat"
	"github.com/born-ml/ndbridge/internal/ndarray"
)

// Analysis errors.
var (
	ErrUnsupportedRank = errors.New("unsupported rank")
	ErrUnsupportedType = errors.New("unsupported element type")
	ErrInvalidLayout   = errors.New("invalid layout")
)

// Descriptor is the matrix-side view of an array buffer.
type Descriptor struct {
	Sizes    []int    // Matrix extents
	Steps    []int    // Byte step per matrix axis
	Type     mat.Type // Element type with folded channels
	Channels int      // Number of folded channels
}

// Span returns the number of bytes from the first element that the
// descriptor touches.
func (d Descriptor) Span() int {
	n := d.Type.ElemSize()
	for i, s := range d.Sizes {
		n += (s - 1) * d.Steps[i]
	}
	return n
}

// Plan is the outcome of analysing an array layout.
type Plan struct {
	Source       ndarray.TypeCode // Type code of the analysed array
	CastNeeded   bool             // Convert to CastTo before viewing
	CastTo       ndarray.TypeCode // Target of the conversion
	CopyNeeded   bool             // Make a contiguous copy before viewing
	Multichannel bool             // The trailing axis folds into channels
	Transposed   bool             // Descriptor views the transpose; the caller must transpose it back

	// Descriptor is the view of the analysed buffer. It is only set when
	// CopyNeeded is false; after a copy the new array is analysed again.
	Descriptor Descriptor
}

// Analyze decides how an array with the given layout becomes a matrix.
//
// The checks run in order: rank limit, type mapping, contiguity (with
// Fortran-ordered two-dimensional input recognised as a transposed view)
// and channel folding. Contiguity and channel folding are independent and
// both must pass for a zero-copy view.
func Analyze(shape ndarray.Shape, strides []int, code ndarray.TypeCode) (Plan, error) {
	ndims := len(shape)
	if len(strides) != ndims {
		return Plan{}, fmt.Errorf("%w: %d strides for %d axes", ErrInvalidLayout, len(strides), ndims)
	}
	if err := shape.Validate(); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if ndims > mat.MaxDim {
		return Plan{}, fmt.Errorf("%w: dimensionality %d exceeds %d", ErrUnsupportedRank, ndims, mat.MaxDim)
	}

	m, ok := Lookup(code)
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s has no matrix depth", ErrUnsupportedType, code)
	}

	plan := Plan{
		Source:     code,
		CastNeeded: m.Cast,
		CastTo:     m.CastTo,
		CopyNeeded: m.Cast,
	}

	elem := m.Depth.Size()
	plan.Multichannel = ndims == 3 && shape[2] <= mat.CNMax

	if !plan.CopyNeeded && !contiguous(strides, elem) {
		if fortran2D(shape, strides, elem) {
			plan.Transposed = true
		} else {
			plan.CopyNeeded = true
		}
	}
	if plan.Multichannel && strides[1] != elem*shape[2] {
		plan.CopyNeeded = true
	}
	if plan.CopyNeeded {
		return plan, nil
	}

	plan.Descriptor = describe(shape, strides, m.Depth, plan.Multichannel, plan.Transposed)
	return plan, nil
}

// contiguous scans from the innermost axis outward: the innermost stride
// must equal the element size and strides must not increase outward.
func contiguous(strides []int, elem int) bool {
	for i := len(strides) - 1; i >= 0; i-- {
		if i == len(strides)-1 && strides[i] != elem {
			return false
		}
		if i < len(strides)-1 && strides[i] < strides[i+1] {
			return false
		}
	}
	return true
}

// fortran2D reports whether a two-dimensional layout is the column-major
// packing of its transpose.
func fortran2D(shape ndarray.Shape, strides []int, elem int) bool {
	return len(shape) == 2 && strides[0] == elem && strides[1] >= elem*shape[0]
}

func describe(shape ndarray.Shape, strides []int, depth mat.Depth, multichannel, transposed bool) Descriptor {
	sizes := append([]int(nil), shape...)
	steps := append([]int(nil), strides...)

	// Rank 0 becomes a single element on one axis.
	if len(sizes) == 0 {
		sizes = []int{1}
		steps = []int{depth.Size()}
	}

	if transposed {
		sizes[0], sizes[1] = sizes[1], sizes[0]
		steps[0], steps[1] = steps[1], steps[0]
	}

	channels := 1
	if multichannel {
		channels = sizes[2]
		sizes = sizes[:2]
		steps = steps[:2]
	}

	return Descriptor{
		Sizes:    sizes,
		Steps:    steps,
		Type:     mat.MakeType(depth, channels),
		Channels: channels,
	}
}
