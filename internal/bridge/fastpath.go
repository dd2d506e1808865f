package bridge

import (
	"context"
	"fmt"

	"github.com/born-ml/ndbridge/internal/mat"
)

// float64Type is the element type produced by the number fast paths.
var float64Type = mat.MakeType(mat.Depth64F, 1)

// fromNumbers handles Go numbers and numeric slices. It reports false when
// v is neither.
func (c *Converter) fromNumbers(ctx context.Context, v any) (*mat.Mat, bool, error) {
	if f, ok := number(v); ok {
		m, err := newFloat64Mat(ctx, []float64{f})
		return m, true, err
	}

	var values []float64
	switch x := v.(type) {
	case []float64:
		values = x
	case []float32:
		values = convertSlice(x)
	case []int:
		values = convertSlice(x)
	case []int32:
		values = convertSlice(x)
	case []int64:
		values = convertSlice(x)
	case []any:
		values = make([]float64, len(x))
		for i, e := range x {
			f, ok := number(e)
			if !ok {
				return nil, true, &Error{
					Op:     "to_mat",
					Kind:   ErrNotAnArray,
					Detail: fmt.Sprintf("element %d of type %T is not a number", i, e),
				}
			}
			values[i] = f
		}
	default:
		return nil, false, nil
	}

	if len(values) == 0 {
		return mat.NewEmpty(c.bridge), true, nil
	}
	m, err := newFloat64Mat(ctx, values)
	return m, true, err
}

// newFloat64Mat copies values into a one-dimensional float64 matrix on the
// default heap allocator.
func newFloat64Mat(ctx context.Context, values []float64) (*mat.Mat, error) {
	m, err := mat.New(ctx, []int{len(values)}, float64Type, nil)
	if err != nil {
		return nil, &Error{Op: "to_mat", Kind: ErrAllocationFailed, Err: err}
	}
	for i, f := range values {
		mat.Set(m, f, 0, i)
	}
	return m, nil
}

func convertSlice[T int | int32 | int64 | float32](xs []T) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

// number widens any Go integer or float to float64.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
