package ndarray

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Runtime owns array memory and reference counts. It provides the
// capability set the bridge consumes: allocation, reference counting, data
// and layout accessors (on Array), casting and contiguous copies.
type Runtime struct {
	gil   GIL
	mem   memory
	limit int64 // Maximum bytes live at once, 0 for unlimited

	used atomic.Int64
	live atomic.Int64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMemoryLimit caps the number of bytes that may be allocated at once.
func WithMemoryLimit(limit int64) Option {
	return func(rt *Runtime) {
		rt.limit = limit
	}
}

// WithMmapThreshold serves allocations of at least threshold bytes from
// anonymous memory mappings where the platform supports them.
func WithMmapThreshold(threshold int) Option {
	return func(rt *Runtime) {
		rt.mem = newMmapMemory(threshold)
	}
}

// NewRuntime creates a runtime that allocates from the Go heap by default.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{mem: heapMemory{}}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// GIL returns the runtime's interpreter lock.
func (rt *Runtime) GIL() *GIL {
	return &rt.gil
}

// Live returns the number of arrays that have not been destroyed.
func (rt *Runtime) Live() int {
	return int(rt.live.Load())
}

// Used returns the number of bytes currently allocated.
func (rt *Runtime) Used() int64 {
	return rt.used.Load()
}

// AllocateContiguous creates a zero-filled C-contiguous array with a
// reference count of 1 owned by the caller. ctx must hold the GIL.
func (rt *Runtime) AllocateContiguous(ctx context.Context, shape Shape, code TypeCode) (*Array, error) {
	rt.gil.mustHold(ctx, "AllocateContiguous")

	if !code.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, code)
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}

	size := shape.NumElements() * code.Size()
	if rt.limit > 0 && rt.used.Load()+int64(size) > rt.limit {
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrOutOfMemory, size, rt.used.Load(), rt.limit)
	}

	buf, err := rt.mem.alloc(size)
	if err != nil {
		return nil, err
	}
	rt.used.Add(int64(size))

	return rt.newArray(buf, nil, 0, shape.Clone(), ContiguousStrides(shape, code.Size()), code), nil
}

func (rt *Runtime) newArray(buf *buffer, base *Array, offset int, shape Shape, strides []int, code TypeCode) *Array {
	a := &Array{
		rt:      rt,
		buf:     buf,
		base:    base,
		offset:  offset,
		shape:   shape,
		strides: strides,
		code:    code,
	}
	a.refCount.Store(1)
	rt.live.Add(1)
	return a
}

// IncRef adds one reference to a. ctx must hold the GIL.
func (rt *Runtime) IncRef(ctx context.Context, a *Array) {
	rt.gil.mustHold(ctx, "IncRef")
	if a.refCount.Add(1) <= 1 {
		panic("ndarray: IncRef on a destroyed array")
	}
}

// DecRef drops one reference to a and destroys it when none remain. A view
// releases its base; an owning array frees its memory. ctx must hold the
// GIL.
func (rt *Runtime) DecRef(ctx context.Context, a *Array) {
	rt.gil.mustHold(ctx, "DecRef")

	n := a.refCount.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic("ndarray: DecRef below zero")
	}

	rt.live.Add(-1)
	if a.base != nil {
		base := a.base
		a.base = nil
		rt.DecRef(ctx, base)
		return
	}

	size := len(a.buf.data)
	if err := rt.mem.free(a.buf); err != nil {
		panic("ndarray: " + err.Error())
	}
	rt.used.Add(-int64(size))
}

// XDecRef is DecRef that accepts nil.
func (rt *Runtime) XDecRef(ctx context.Context, a *Array) {
	if a != nil {
		rt.DecRef(ctx, a)
	}
}

// Cast returns a new contiguous array holding a's elements converted to
// code. Integer conversions wrap and float-to-integer conversions truncate;
// use Fits to detect value changes beforehand. The element copy runs with
// the GIL released. ctx must hold the GIL.
func (rt *Runtime) Cast(ctx context.Context, a *Array, code TypeCode) (*Array, error) {
	if a.Released() {
		return nil, ErrReleased
	}
	dst, err := rt.AllocateContiguous(ctx, a.shape, code)
	if err != nil {
		return nil, err
	}

	restore := rt.gil.AllowThreads(ctx)
	defer restore()
	castInto(dst, a)
	return dst, nil
}

// MakeContiguous returns a C-contiguous array with a's contents: a itself
// with a new reference when it already is, otherwise a fresh copy made with
// the GIL released. ctx must hold the GIL.
func (rt *Runtime) MakeContiguous(ctx context.Context, a *Array) (*Array, error) {
	if a.Released() {
		return nil, ErrReleased
	}
	if a.IsContiguous() {
		rt.IncRef(ctx, a)
		return a, nil
	}

	dst, err := rt.AllocateContiguous(ctx, a.shape, a.code)
	if err != nil {
		return nil, err
	}

	restore := rt.gil.AllowThreads(ctx)
	defer restore()
	copyInto(dst, a)
	return dst, nil
}

// copyInto gathers src's elements in C order into the contiguous dst.
func copyInto(dst, src *Array) {
	es := src.code.Size()
	n := 0
	out := dst.Bytes()
	src.forEachElement(func(off int) {
		copy(out[n:n+es], src.buf.data[off:off+es])
		n += es
	})
}

// castInto converts src's elements in C order into the contiguous dst.
func castInto(dst, src *Array) {
	des := dst.code.Size()
	n := 0
	out := dst.Bytes()
	src.forEachElement(func(off int) {
		store(dst.code, out[n:], load(src.code, src.buf.data[off:]))
		n += des
	})
}
