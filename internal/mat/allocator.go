package mat

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrAllocationFailed is returned when an allocator cannot provide storage.
var ErrAllocationFailed = errors.New("allocation failed")

// Allocator creates and destroys matrix storage.
type Allocator interface {
	// Allocate returns a record with one reference for a buffer holding the
	// given sizes and type, together with the byte step of every axis.
	Allocate(ctx context.Context, sizes []int, typ Type) (*Storage, []int, error)

	// Deallocate performs the release action of a record whose last
	// reference is gone. It is called at most once per record.
	Deallocate(ctx context.Context, u *Storage)
}

// HeapAllocator allocates SelfOwned storage from the Go heap.
type HeapAllocator struct {
	limit int64 // Maximum bytes live at once, 0 for unlimited
	used  atomic.Int64
}

// NewHeapAllocator creates a heap allocator; limit 0 means unlimited.
func NewHeapAllocator(limit int64) *HeapAllocator {
	return &HeapAllocator{limit: limit}
}

var defaultAllocator = NewHeapAllocator(0)

// DefaultAllocator returns the shared unlimited heap allocator.
func DefaultAllocator() Allocator {
	return defaultAllocator
}

// Allocate implements Allocator.
func (h *HeapAllocator) Allocate(_ context.Context, sizes []int, typ Type) (*Storage, []int, error) {
	steps := ContinuousSteps(sizes, typ.ElemSize())
	size := total(sizes) * typ.ElemSize()
	if used := h.used.Add(int64(size)); h.limit > 0 && used > h.limit {
		h.used.Add(-int64(size))
		return nil, nil, fmt.Errorf("%w: %d bytes exceeds heap limit %d", ErrAllocationFailed, size, h.limit)
	}
	return NewStorage(h, SelfOwned, make([]byte, size), nil), steps, nil
}

// Deallocate implements Allocator.
func (h *HeapAllocator) Deallocate(_ context.Context, u *Storage) {
	if u == nil || u.owner != SelfOwned {
		return
	}
	h.used.Add(-int64(len(u.data)))
	u.data = nil
}

// Used returns the number of bytes currently allocated.
func (h *HeapAllocator) Used() int64 {
	return h.used.Load()
}

// ContinuousSteps returns the byte steps of a densely packed row-major
// buffer.
func ContinuousSteps(sizes []int, elemSize int) []int {
	steps := make([]int, len(sizes))
	if len(sizes) == 0 {
		return steps
	}
	steps[len(sizes)-1] = elemSize
	for i := len(sizes) - 2; i >= 0; i-- {
		steps[i] = steps[i+1] * sizes[i+1]
	}
	return steps
}

func total(sizes []int) int {
	n := 1
	for _, s := range sizes {
		n *= s
	}
	return n
}
