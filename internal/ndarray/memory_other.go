//go:build !unix

package ndarray

// newMmapMemory falls back to the heap where anonymous mappings are not
// available.
func newMmapMemory(_ int) memory {
	return heapMemory{}
}
