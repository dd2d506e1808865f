package ndarray

import (
	"context"
	"fmt"
)

// NewView creates an array sharing base's memory with its own layout.
// offset is in bytes relative to base's first element. The view holds a
// reference to base until it is destroyed. ctx must hold the GIL.
func (rt *Runtime) NewView(ctx context.Context, base *Array, shape Shape, strides []int, offset int) (*Array, error) {
	rt.gil.mustHold(ctx, "NewView")

	if base.Released() {
		return nil, ErrReleased
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	if len(strides) != len(shape) {
		return nil, fmt.Errorf("%w: %d strides for %d axes", ErrInvalidShape, len(strides), len(shape))
	}

	start := base.offset + offset
	lo, hi := span(shape, strides, base.code.Size())
	if start+lo < 0 || start+hi > len(base.buf.data) {
		return nil, fmt.Errorf("%w: bytes [%d, %d) of %d", ErrViewOutOfSpan, start+lo, start+hi, len(base.buf.data))
	}

	rt.IncRef(ctx, base)
	return rt.newArray(base.buf, base, start, shape.Clone(), append([]int(nil), strides...), base.code), nil
}

// Transpose returns a view with permuted axes; no axes reverses them.
func (rt *Runtime) Transpose(ctx context.Context, a *Array, axes ...int) (*Array, error) {
	n := a.NDim()
	if len(axes) == 0 {
		axes = make([]int, n)
		for i := range axes {
			axes[i] = n - 1 - i
		}
	}
	if len(axes) != n {
		return nil, fmt.Errorf("%w: %d axes for rank %d", ErrInvalidShape, len(axes), n)
	}

	seen := make([]bool, n)
	shape := make(Shape, n)
	strides := make([]int, n)
	for i, ax := range axes {
		if ax < 0 || ax >= n || seen[ax] {
			return nil, fmt.Errorf("%w: invalid axis permutation %v", ErrInvalidShape, axes)
		}
		seen[ax] = true
		shape[i] = a.shape[ax]
		strides[i] = a.strides[ax]
	}
	return rt.NewView(ctx, a, shape, strides, 0)
}

// Flip returns a view with the order of elements along axis reversed.
func (rt *Runtime) Flip(ctx context.Context, a *Array, axis int) (*Array, error) {
	if axis < 0 || axis >= a.NDim() {
		return nil, fmt.Errorf("%w: axis %d for rank %d", ErrInvalidShape, axis, a.NDim())
	}
	strides := append([]int(nil), a.strides...)
	offset := (a.shape[axis] - 1) * strides[axis]
	strides[axis] = -strides[axis]
	return rt.NewView(ctx, a, a.shape, strides, offset)
}

// Slice returns a view of elements start, start+step, ... below stop along
// axis. step must be positive.
func (rt *Runtime) Slice(ctx context.Context, a *Array, axis, start, stop, step int) (*Array, error) {
	if axis < 0 || axis >= a.NDim() {
		return nil, fmt.Errorf("%w: axis %d for rank %d", ErrInvalidShape, axis, a.NDim())
	}
	stop = min(stop, a.shape[axis])
	if step <= 0 || start < 0 || start >= stop {
		return nil, fmt.Errorf("%w: empty or invalid slice [%d:%d:%d]", ErrInvalidShape, start, stop, step)
	}

	shape := a.shape.Clone()
	shape[axis] = (stop - start + step - 1) / step
	strides := append([]int(nil), a.strides...)
	strides[axis] *= step
	return rt.NewView(ctx, a, shape, strides, start*a.strides[axis])
}
