// Package bridge shares buffers between the array runtime and the matrix
// library. Bridge is a matrix allocator whose storage records keep array
// objects alive; Converter builds on it to convert in both directions,
// sharing memory whenever the layouts are compatible and copying exactly
// once otherwise.
package bridge

import (
	"context"
	"fmt"

	"github.com/born-ml/ndbridge/internal/layout"
	"github.com/born-ml/ndbridge/internal/mat"
	"github.com/born-ml/ndbridge/internal/ndarray"
	"go.uber.org/zap"
)

// Bridge implements mat.Allocator on top of an array runtime.
//
// Records it creates are ForeignBacked: they hold exactly one reference to
// an array and drop it, under the runtime's GIL, when the last matrix
// referencing them is released. Matrices allocated through the Bridge are
// therefore backed by fresh arrays that can be handed back to the runtime
// without copying.
type Bridge struct {
	rt *ndarray.Runtime
}

// New creates a bridge over rt. A process normally constructs one bridge
// at startup and passes it to everything that converts.
func New(rt *ndarray.Runtime) *Bridge {
	return &Bridge{rt: rt}
}

// Runtime returns the array runtime.
func (b *Bridge) Runtime() *ndarray.Runtime {
	return b.rt
}

// Bind creates a record viewing a's memory under desc, adding one
// reference to a. desc must fit inside a's buffer.
func (b *Bridge) Bind(ctx context.Context, a *ndarray.Array, desc layout.Descriptor) (*mat.Storage, error) {
	if a.Released() {
		return nil, fmt.Errorf("bind: %w", ndarray.ErrReleased)
	}
	if span := desc.Span(); span > len(a.Bytes()) {
		return nil, fmt.Errorf("bind: descriptor spans %d bytes, array has %d", span, len(a.Bytes()))
	}

	ctx, release := b.rt.GIL().Acquire(ctx)
	defer release()

	b.rt.IncRef(ctx, a)
	return b.wrap(a), nil
}

// wrap creates a record that takes over a reference to a the caller holds.
func (b *Bridge) wrap(a *ndarray.Array) *mat.Storage {
	return mat.NewStorage(b, mat.ForeignBacked, a.Bytes(), a)
}

// Allocate implements mat.Allocator by creating a new array shaped like
// the matrix, with any channels as a trailing axis. The array's initial
// reference belongs to the returned record.
func (b *Bridge) Allocate(ctx context.Context, sizes []int, typ mat.Type) (*mat.Storage, []int, error) {
	if len(sizes) == 0 {
		return nil, nil, &Error{Op: "allocate", Kind: ErrAllocationFailed, Detail: "no dimensions"}
	}
	code, ok := layout.ArrayType(typ.Depth())
	if !ok {
		return nil, nil, &Error{Op: "allocate", Kind: ErrUnsupportedType, Detail: typ.String()}
	}
	shape := layout.ArrayShape(sizes, typ)

	ctx, release := b.rt.GIL().Acquire(ctx)
	defer release()

	a, err := b.rt.AllocateContiguous(ctx, shape, code)
	if err != nil {
		return nil, nil, &Error{
			Op:     "allocate",
			Kind:   ErrAllocationFailed,
			Detail: fmt.Sprintf("array of type %s, shape %v", code, shape),
			Err:    err,
		}
	}

	steps := append([]int(nil), a.Strides()[:len(sizes)]...)
	steps[len(sizes)-1] = typ.ElemSize()

	Logger().Debug("materialized array for matrix",
		zap.Ints("shape", shape),
		zap.Stringer("type", code))
	return b.wrap(a), steps, nil
}

// Deallocate implements mat.Allocator. The record's ownership tag selects
// the single release action.
func (b *Bridge) Deallocate(ctx context.Context, u *mat.Storage) {
	if u == nil {
		return
	}

	switch u.Ownership() {
	case mat.ForeignBacked:
		a, _ := u.Handle().(*ndarray.Array)
		if a == nil {
			return
		}
		ctx, release := b.rt.GIL().Acquire(ctx)
		defer release()
		b.rt.DecRef(ctx, a)
	case mat.SelfOwned:
		// Heap records go back to the allocator that counted them.
		if alloc := u.Allocator(); alloc != nil && alloc != mat.Allocator(b) {
			alloc.Deallocate(ctx, u)
		}
	case mat.Unbound:
	}
}

// Owns reports whether u was created by this bridge.
func (b *Bridge) Owns(u *mat.Storage) bool {
	return u != nil && u.Allocator() == mat.Allocator(b)
}

// ArrayOf returns the array behind a record this bridge created.
func (b *Bridge) ArrayOf(u *mat.Storage) (*ndarray.Array, bool) {
	if !b.Owns(u) || u.Ownership() != mat.ForeignBacked {
		return nil, false
	}
	a, ok := u.Handle().(*ndarray.Array)
	return a, ok && a != nil
}
