//go:build unix

package ndarray

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mmapMemory serves allocations of at least threshold bytes from anonymous
// private mappings and smaller ones from the heap. Unmapping on free makes a
// stale view fault instead of silently reading recycled memory.
type mmapMemory struct {
	threshold int
	heap      heapMemory
}

func newMmapMemory(threshold int) memory {
	return &mmapMemory{threshold: threshold}
}

func (m *mmapMemory) alloc(size int) (*buffer, error) {
	if size < m.threshold {
		return m.heap.alloc(size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %d bytes: %v", ErrOutOfMemory, size, err)
	}
	return &buffer{data: data, mapped: true}, nil
}

func (m *mmapMemory) free(b *buffer) error {
	if !b.mapped {
		return m.heap.free(b)
	}
	data := b.data
	b.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
