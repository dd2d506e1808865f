package mat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingAllocator wraps a heap allocator and records deallocations.
type countingAllocator struct {
	heap        *HeapAllocator
	deallocated int
}

func (c *countingAllocator) Allocate(ctx context.Context, sizes []int, typ Type) (*Storage, []int, error) {
	u, steps, err := c.heap.Allocate(ctx, sizes, typ)
	if err != nil {
		return nil, nil, err
	}
	return NewStorage(c, u.Ownership(), u.Data(), nil), steps, nil
}

func (c *countingAllocator) Deallocate(_ context.Context, _ *Storage) {
	c.deallocated++
}

func TestType(t *testing.T) {
	typ := MakeType(Depth8U, 3)
	assert.Equal(t, Depth8U, typ.Depth())
	assert.Equal(t, 3, typ.Channels())
	assert.Equal(t, 1, typ.ElemSize1())
	assert.Equal(t, 3, typ.ElemSize())
	assert.Equal(t, "8UC3", typ.String())

	wide := MakeType(Depth64F, CNMax)
	assert.Equal(t, Depth64F, wide.Depth())
	assert.Equal(t, CNMax, wide.Channels())
	assert.Equal(t, 8*CNMax, wide.ElemSize())

	assert.Panics(t, func() { MakeType(Depth32F, CNMax+1) })
	assert.Panics(t, func() { MakeType(Depth32F, 0) })
}

func TestNewContinuous(t *testing.T) {
	m, err := New(context.Background(), []int{3, 4}, MakeType(Depth32F, 2), nil)
	require.NoError(t, err)
	defer m.Release()

	assert.Equal(t, []int{32, 8}, m.Steps())
	assert.True(t, m.IsContinuous())
	assert.Equal(t, 12, m.Total())
	assert.Equal(t, SelfOwned, m.Storage().Ownership())
	assert.Equal(t, 1, m.Storage().RefCount())
}

func TestNewRejectsBadSizes(t *testing.T) {
	_, err := New(context.Background(), nil, MakeType(Depth8U, 1), nil)
	assert.ErrorIs(t, err, ErrInvalidSizes)

	_, err = New(context.Background(), []int{2, -1}, MakeType(Depth8U, 1), nil)
	assert.ErrorIs(t, err, ErrInvalidSizes)

	_, err = New(context.Background(), make([]int, MaxDim+1), MakeType(Depth8U, 1), nil)
	assert.ErrorIs(t, err, ErrInvalidSizes)
}

func TestHeapAllocatorLimit(t *testing.T) {
	heap := NewHeapAllocator(16)
	m, err := New(context.Background(), []int{4}, MakeType(Depth32F, 1), heap)
	require.NoError(t, err)
	assert.Equal(t, int64(16), heap.Used())

	_, err = New(context.Background(), []int{1}, MakeType(Depth8U, 1), heap)
	assert.ErrorIs(t, err, ErrAllocationFailed)

	m.Release()
	assert.Equal(t, int64(0), heap.Used())
}

func TestSharedStorageReleasedOnce(t *testing.T) {
	alloc := &countingAllocator{heap: NewHeapAllocator(0)}
	m, err := New(context.Background(), []int{2, 2}, MakeType(Depth8U, 1), alloc)
	require.NoError(t, err)

	s := m.Share()
	rows, err := m.RowRange(1, 2)
	require.NoError(t, err)
	u := m.Storage()
	assert.Equal(t, 3, u.RefCount())

	m.Release()
	m.Release() // second release of the same header is a no-op
	s.Release()
	assert.Equal(t, 0, alloc.deallocated)

	rows.Release()
	assert.Equal(t, 1, alloc.deallocated)
	assert.Equal(t, Unbound, u.Ownership())
	assert.Panics(t, func() { u.Release(context.Background()) })
}

func TestRowRangeSharesData(t *testing.T) {
	m, err := New(context.Background(), []int{3, 2}, MakeType(Depth16S, 1), nil)
	require.NoError(t, err)
	defer m.Release()

	Set[int16](m, 42, 0, 2, 1)
	rows, err := m.RowRange(2, 3)
	require.NoError(t, err)
	defer rows.Release()

	assert.Equal(t, []int{1, 2}, rows.Sizes())
	assert.Equal(t, int16(42), At[int16](rows, 0, 0, 1))

	_, err = m.RowRange(2, 2)
	assert.ErrorIs(t, err, ErrInvalidSizes)
}

func TestNewHeaderBounds(t *testing.T) {
	data := make([]byte, 24)
	m, err := NewHeader([]int{2, 3}, MakeType(Depth32S, 1), data, []int{12, 4})
	require.NoError(t, err)
	assert.Nil(t, m.Storage())
	m.Release()

	_, err = NewHeader([]int{3, 3}, MakeType(Depth32S, 1), data, []int{12, 4})
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestCopyToStrided(t *testing.T) {
	// A 2x3 int32 header with padded rows.
	data := make([]byte, 2*16)
	src, err := NewHeader([]int{2, 3}, MakeType(Depth32S, 1), data, []int{16, 4})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			Set[int32](src, int32(10*i+j), 0, i, j)
		}
	}
	assert.False(t, src.IsContinuous())

	dst, err := src.Clone(context.Background(), nil)
	require.NoError(t, err)
	defer dst.Release()

	assert.True(t, dst.IsContinuous())
	assert.Equal(t, []int32{0, 1, 2, 10, 11, 12}, ToSlice[int32](dst))
}

func TestCopyToMismatch(t *testing.T) {
	ctx := context.Background()
	a, _ := New(ctx, []int{2, 2}, MakeType(Depth8U, 1), nil)
	b, _ := New(ctx, []int{2, 3}, MakeType(Depth8U, 1), nil)
	defer a.Release()
	defer b.Release()

	assert.ErrorIs(t, a.CopyTo(b), ErrMismatch)
}

func TestTransposeInto(t *testing.T) {
	ctx := context.Background()
	src, err := New(ctx, []int{2, 3}, MakeType(Depth8U, 2), nil)
	require.NoError(t, err)
	defer src.Release()

	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			Set[uint8](src, uint8(10*i+j), 0, i, j)
			Set[uint8](src, uint8(100+10*i+j), 1, i, j)
		}
	}

	dst, err := New(ctx, []int{3, 2}, src.Type(), nil)
	require.NoError(t, err)
	defer dst.Release()

	require.NoError(t, src.TransposeInto(dst))
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, At[uint8](src, 0, i, j), At[uint8](dst, 0, j, i))
			assert.Equal(t, At[uint8](src, 1, i, j), At[uint8](dst, 1, j, i))
		}
	}

	assert.ErrorIs(t, src.TransposeInto(src), ErrMismatch)
}

func TestEmpty(t *testing.T) {
	m := NewEmpty(nil)
	assert.True(t, m.Empty())
	assert.Equal(t, 0, m.Total())
	assert.Nil(t, m.DataPtr())
	m.Release()

	var nilMat *Mat
	assert.True(t, nilMat.Empty())
}
