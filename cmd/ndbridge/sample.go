package main

import (
	"context"
	"fmt"

	"github.com/born-ml/ndbridge/internal/ndarray"
	"github.com/spf13/pflag"
)

// sample describes a generated array and the view taken of it.
type sample struct {
	shape     []int
	dtype     string
	transpose bool
	flip      int // Axis to reverse, -1 for none
	step      int // Step along the last axis
}

func (s *sample) addFlags(fs *pflag.FlagSet) {
	fs.IntSliceVar(&s.shape, "shape", []int{4, 6}, "array shape")
	fs.StringVar(&s.dtype, "dtype", "float32", "element type")
	fs.BoolVar(&s.transpose, "transpose", false, "reverse the axes (column-major view)")
	fs.IntVar(&s.flip, "flip", -1, "reverse this axis (negative strides)")
	fs.IntVar(&s.step, "step", 1, "take every step-th element of the last axis")
}

func (s sample) String() string {
	v := fmt.Sprintf("%s%v", s.dtype, s.shape)
	if s.transpose {
		v += ".T"
	}
	if s.flip >= 0 {
		v += fmt.Sprintf(" flip(%d)", s.flip)
	}
	if s.step > 1 {
		v += fmt.Sprintf(" step(%d)", s.step)
	}
	return v
}

// build creates the sample under the GIL held by ctx. It returns the view
// and every array the caller must release, the view included.
func (s sample) build(ctx context.Context, rt *ndarray.Runtime) (*ndarray.Array, []*ndarray.Array, error) {
	code, err := ndarray.ParseTypeCode(s.dtype)
	if err != nil {
		return nil, nil, err
	}

	shape := ndarray.Shape(s.shape)
	values := make([]float64, shape.NumElements())
	for i := range values {
		values[i] = float64(i % 97)
	}
	a, err := ndarray.FromSlice(ctx, rt, values, shape)
	if err != nil {
		return nil, nil, err
	}
	if code != ndarray.Float64 {
		cast, err := rt.Cast(ctx, a, code)
		rt.DecRef(ctx, a)
		if err != nil {
			return nil, nil, err
		}
		a = cast
	}

	owned := []*ndarray.Array{a}
	fail := func(err error) (*ndarray.Array, []*ndarray.Array, error) {
		for _, o := range owned {
			rt.DecRef(ctx, o)
		}
		return nil, nil, err
	}

	if s.transpose {
		if a, err = rt.Transpose(ctx, a); err != nil {
			return fail(err)
		}
		owned = append(owned, a)
	}
	if s.flip >= 0 {
		if a, err = rt.Flip(ctx, a, s.flip); err != nil {
			return fail(err)
		}
		owned = append(owned, a)
	}
	if s.step > 1 && a.NDim() > 0 {
		last := a.NDim() - 1
		if a, err = rt.Slice(ctx, a, last, 0, a.Shape()[last], s.step); err != nil {
			return fail(err)
		}
		owned = append(owned, a)
	}
	return a, owned, nil
}
