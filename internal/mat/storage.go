package mat

import (
	"context"
	"sync/atomic"
)

// Ownership says which release action a Storage performs when its last
// reference goes away.
type Ownership uint8

const (
	// Unbound storage owns nothing; releasing it is a no-op.
	Unbound Ownership = iota
	// SelfOwned storage owns its bytes; releasing frees them.
	SelfOwned
	// ForeignBacked storage borrows bytes from a foreign object it holds a
	// reference to; releasing drops that reference.
	ForeignBacked
)

// String returns the ownership name.
func (o Ownership) String() string {
	switch o {
	case Unbound:
		return "unbound"
	case SelfOwned:
		return "self-owned"
	case ForeignBacked:
		return "foreign-backed"
	default:
		return "unknown"
	}
}

// Storage is the reference-counted record behind a matrix buffer. Exactly
// one Storage exists per buffer; matrices sharing the buffer share the
// record. When the last reference is released the allocator that created
// it is asked to deallocate it, exactly once.
type Storage struct {
	allocator Allocator // Creator; not owned
	owner     Ownership
	data      []byte
	handle    any // Foreign object for ForeignBacked records
	refCount  atomic.Int32
}

// NewStorage creates a record with one reference owned by the caller.
// handle is opaque to this package and only meaningful to alloc.
func NewStorage(alloc Allocator, owner Ownership, data []byte, handle any) *Storage {
	u := &Storage{
		allocator: alloc,
		owner:     owner,
		data:      data,
		handle:    handle,
	}
	u.refCount.Store(1)
	return u
}

// Allocator returns the allocator that created the record.
func (u *Storage) Allocator() Allocator {
	return u.allocator
}

// Ownership returns the record's release tag.
func (u *Storage) Ownership() Ownership {
	return u.owner
}

// Data returns the buffer bytes.
func (u *Storage) Data() []byte {
	return u.data
}

// Size returns the buffer size in bytes.
func (u *Storage) Size() int {
	return len(u.data)
}

// Handle returns the foreign object of a ForeignBacked record.
func (u *Storage) Handle() any {
	return u.handle
}

// RefCount returns the number of live references.
func (u *Storage) RefCount() int {
	return int(u.refCount.Load())
}

// AddRef adds one reference.
func (u *Storage) AddRef() {
	if u.refCount.Add(1) <= 1 {
		panic("mat: AddRef on released storage")
	}
}

// Release drops one reference. The last one hands the record to its
// allocator for deallocation and leaves it Unbound.
func (u *Storage) Release(ctx context.Context) {
	n := u.refCount.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic("mat: storage released too many times")
	}

	if u.allocator != nil {
		u.allocator.Deallocate(ctx, u)
	}
	u.owner = Unbound
	u.data = nil
	u.handle = nil
}
