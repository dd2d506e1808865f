package ndarray

// buffer is one block of array memory. Views share the buffer of their base.
type buffer struct {
	data   []byte
	mapped bool // Obtained from mmap; must be unmapped on free
}

// memory is the backing store the runtime allocates array data from.
type memory interface {
	alloc(size int) (*buffer, error)
	free(b *buffer) error
}

// heapMemory allocates from the Go heap.
type heapMemory struct{}

func (heapMemory) alloc(size int) (*buffer, error) {
	return &buffer{data: make([]byte, size)}, nil
}

func (heapMemory) free(b *buffer) error {
	b.data = nil
	return nil
}
