package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/ndbridge/internal/layout"
	"github.com/born-ml/ndbridge/internal/mat"
	"github.com/born-ml/ndbridge/internal/ndarray"
	"go.uber.org/zap"
)

// Options tune conversion behaviour.
type Options struct {
	// StrictCast rejects arrays whose values would change when cast to the
	// 32-bit fallback type instead of silently wrapping them.
	StrictCast bool

	// AllowND permits matrices with more than two dimensions.
	AllowND bool
}

// DefaultOptions returns strict casting with n-dimensional matrices
// allowed.
func DefaultOptions() Options {
	return Options{StrictCast: true, AllowND: true}
}

// Converter converts between arrays and matrices through one Bridge.
// Each call is single-threaded; independent calls may run concurrently.
type Converter struct {
	bridge *Bridge
	opts   Options
}

// NewConverter creates a converter using b for every matrix it produces.
func NewConverter(b *Bridge, opts Options) *Converter {
	return &Converter{bridge: b, opts: opts}
}

// Bridge returns the converter's bridge.
func (c *Converter) Bridge() *Bridge {
	return c.bridge
}

// ToMat converts v to a matrix.
//
// A nil value yields an empty matrix that allocates through the bridge.
// Go numbers and numeric slices go through the scalar and tuple fast paths
// and produce float64 matrices. An *ndarray.Array is viewed in place when
// its layout allows, otherwise cast or copied once first. The returned
// matrix owns one storage reference; release it when done.
func (c *Converter) ToMat(ctx context.Context, v any) (*mat.Mat, error) {
	switch x := v.(type) {
	case nil:
		return mat.NewEmpty(c.bridge), nil
	case *ndarray.Array:
		if x == nil {
			return mat.NewEmpty(c.bridge), nil
		}
		return c.fromArray(ctx, x)
	}

	if m, ok, err := c.fromNumbers(ctx, v); ok {
		return m, err
	}
	return nil, &Error{Op: "to_mat", Kind: ErrNotAnArray, Detail: fmt.Sprintf("value of type %T", v)}
}

func (c *Converter) fromArray(ctx context.Context, a *ndarray.Array) (*mat.Mat, error) {
	if a.Released() {
		return nil, &Error{Op: "to_mat", Kind: ErrNotAnArray, Err: ndarray.ErrReleased}
	}

	plan, err := layout.Analyze(a.Shape(), a.Strides(), a.Type())
	if err != nil {
		return nil, wrapAnalysis("to_mat", err)
	}

	rt := c.bridge.rt
	ctx, release := rt.GIL().Acquire(ctx)
	defer release()

	src := a
	if plan.CopyNeeded {
		if src, err = c.contiguous(ctx, a, plan); err != nil {
			return nil, err
		}
		// The record takes its own reference; ours goes when we return.
		defer rt.DecRef(ctx, src)

		if plan, err = layout.Analyze(src.Shape(), src.Strides(), src.Type()); err != nil {
			return nil, wrapAnalysis("to_mat", err)
		}
		if plan.CopyNeeded {
			return nil, fmt.Errorf("to_mat: copy of %v produced an incompatible layout %v", a.Shape(), src.Strides())
		}
	}

	desc := plan.Descriptor
	if !c.opts.AllowND && len(desc.Sizes) > 2 {
		return nil, &Error{
			Op:     "to_mat",
			Kind:   ErrUnsupportedRank,
			Detail: fmt.Sprintf("%d dimensions with n-dimensional matrices disabled", len(desc.Sizes)),
		}
	}

	u, err := c.bridge.Bind(ctx, src, desc)
	if err != nil {
		return nil, err
	}
	m, err := mat.FromStorage(u, desc.Sizes, desc.Type, desc.Steps, c.bridge)
	if err != nil {
		u.Release(ctx)
		return nil, err
	}

	if plan.Transposed {
		t, err := c.transpose(ctx, m)
		m.ReleaseContext(ctx)
		if err != nil {
			return nil, err
		}
		m = t
	}
	return m, nil
}

// contiguous returns a new reference to a contiguous array of the planned
// type with a's contents. ctx must hold the GIL.
func (c *Converter) contiguous(ctx context.Context, a *ndarray.Array, plan layout.Plan) (*ndarray.Array, error) {
	rt := c.bridge.rt
	var (
		out *ndarray.Array
		err error
	)

	if plan.CastNeeded {
		if c.opts.StrictCast {
			restore := rt.GIL().AllowThreads(ctx)
			fits := ndarray.Fits(a, plan.CastTo)
			restore()
			if !fits {
				return nil, &Error{
					Op:     "to_mat",
					Kind:   ErrUnsupportedType,
					Detail: fmt.Sprintf("%s values do not fit the %s fallback", plan.Source, plan.CastTo),
				}
			}
		}
		Logger().Debug("casting array before conversion",
			zap.Stringer("from", plan.Source),
			zap.Stringer("to", plan.CastTo),
			zap.Ints("shape", a.Shape()))
		out, err = rt.Cast(ctx, a, plan.CastTo)
	} else {
		Logger().Debug("copying non-contiguous array",
			zap.Ints("shape", a.Shape()),
			zap.Ints("strides", a.Strides()))
		out, err = rt.MakeContiguous(ctx, a)
	}

	if err != nil {
		kind := ErrAllocationFailed
		if !errors.Is(err, ndarray.ErrOutOfMemory) {
			kind = ErrNotAnArray
		}
		return nil, &Error{Op: "to_mat", Kind: kind, Detail: "contiguous copy", Err: err}
	}
	return out, nil
}

// transpose returns the transpose of the two-dimensional m in fresh bridge
// storage. The element copy runs with the GIL released.
func (c *Converter) transpose(ctx context.Context, m *mat.Mat) (*mat.Mat, error) {
	sizes := m.Sizes()
	dst, err := mat.New(ctx, []int{sizes[1], sizes[0]}, m.Type(), c.bridge)
	if err != nil {
		return nil, err
	}

	Logger().Debug("transposing column-major array", zap.Ints("sizes", sizes))

	restore := c.bridge.rt.GIL().AllowThreads(ctx)
	err = m.TransposeInto(dst)
	restore()
	if err != nil {
		dst.ReleaseContext(ctx)
		return nil, err
	}
	return dst, nil
}

// ToArray returns an array holding m's contents as a new reference owned
// by the caller.
//
// If m's storage was created by this converter's bridge and m covers the
// whole backing array, that array is returned without copying. Otherwise
// m is copied once into a freshly materialized array; m itself is left
// untouched. An empty or nil matrix yields (nil, nil): no value, no error.
func (c *Converter) ToArray(ctx context.Context, m *mat.Mat) (*ndarray.Array, error) {
	if m.Empty() {
		return nil, nil
	}

	rt := c.bridge.rt
	ctx, release := rt.GIL().Acquire(ctx)
	defer release()

	if a, ok := c.shared(m); ok {
		rt.IncRef(ctx, a)
		return a, nil
	}

	tmp, err := mat.New(ctx, m.Sizes(), m.Type(), c.bridge)
	if err != nil {
		return nil, err
	}
	defer tmp.ReleaseContext(ctx)

	Logger().Debug("copying matrix into new array",
		zap.Ints("sizes", m.Sizes()),
		zap.Stringer("type", m.Type()))

	restore := rt.GIL().AllowThreads(ctx)
	err = m.CopyTo(tmp)
	restore()
	if err != nil {
		return nil, err
	}

	a, _ := c.bridge.ArrayOf(tmp.Storage())
	rt.IncRef(ctx, a)
	return a, nil
}

// shared returns the array behind m when m's header describes that array
// exactly, so that handing it out cannot expose more or different memory.
func (c *Converter) shared(m *mat.Mat) (*ndarray.Array, bool) {
	a, ok := c.bridge.ArrayOf(m.Storage())
	if !ok || a.Released() || m.DataPtr() != a.DataPtr() {
		return nil, false
	}
	if a.NDim() == 0 {
		return a, m.Total() == 1
	}
	shape := layout.ArrayShape(m.Sizes(), m.Type())
	// A trailing axis of extent 1 folds into a single channel.
	if !shape.Equal(a.Shape()) && !append(shape, 1).Equal(a.Shape()) {
		return nil, false
	}
	for i, step := range m.Steps() {
		if step != a.Strides()[i] {
			return nil, false
		}
	}
	return a, true
}
