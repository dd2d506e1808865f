package layout

import (
	"testing"

	"github.com/born-ml/ndbridge/internal/mat"
	"github.com/born-ml/ndbridge/internal/ndarray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupTable(t *testing.T) {
	tests := []struct {
		code  ndarray.TypeCode
		depth mat.Depth
		cast  bool
		ok    bool
	}{
		{ndarray.Bool, 0, false, false},
		{ndarray.Int8, mat.Depth8S, false, true},
		{ndarray.Uint8, mat.Depth8U, false, true},
		{ndarray.Int16, mat.Depth16S, false, true},
		{ndarray.Uint16, mat.Depth16U, false, true},
		{ndarray.Int32, mat.Depth32S, false, true},
		{ndarray.Uint32, mat.Depth32S, true, true},
		{ndarray.Int64, mat.Depth32S, true, true},
		{ndarray.Uint64, mat.Depth32S, true, true},
		{ndarray.Float32, mat.Depth32F, false, true},
		{ndarray.Float64, mat.Depth64F, false, true},
	}

	require.Len(t, typeTable, len(tests), "every type code needs a table entry")
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			m, ok := Lookup(tt.code)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.depth, m.Depth)
			assert.Equal(t, tt.cast, m.Cast)
			if m.Cast {
				assert.Equal(t, ndarray.Int32, m.CastTo)
			} else {
				assert.Equal(t, tt.code, m.CastTo)
			}
		})
	}

	_, ok := Lookup(ndarray.TypeCode(-1))
	assert.False(t, ok)
	_, ok = Lookup(ndarray.TypeCode(100))
	assert.False(t, ok)
}

func TestArrayTypeRoundTrip(t *testing.T) {
	for d := mat.Depth8U; d <= mat.Depth64F; d++ {
		code, ok := ArrayType(d)
		require.True(t, ok, d.String())
		m, ok := Lookup(code)
		require.True(t, ok)
		assert.Equal(t, d, m.Depth)
		assert.False(t, m.Cast)
	}
	_, ok := ArrayType(mat.Depth(7))
	assert.False(t, ok)
}

func TestArrayShape(t *testing.T) {
	assert.Equal(t, ndarray.Shape{4, 5}, ArrayShape([]int{4, 5}, mat.MakeType(mat.Depth8U, 1)))
	assert.Equal(t, ndarray.Shape{4, 5, 3}, ArrayShape([]int{4, 5}, mat.MakeType(mat.Depth8U, 3)))
}

func contiguousStrides(shape ndarray.Shape, code ndarray.TypeCode) []int {
	return ndarray.ContiguousStrides(shape, code.Size())
}

func TestAnalyzeContiguous(t *testing.T) {
	shape := ndarray.Shape{2, 3, 4, 5}
	plan, err := Analyze(shape, contiguousStrides(shape, ndarray.Float32), ndarray.Float32)
	require.NoError(t, err)

	assert.False(t, plan.CopyNeeded)
	assert.False(t, plan.CastNeeded)
	assert.False(t, plan.Transposed)
	assert.False(t, plan.Multichannel)
	assert.Equal(t, []int{2, 3, 4, 5}, plan.Descriptor.Sizes)
	assert.Equal(t, []int{240, 80, 20, 4}, plan.Descriptor.Steps)
	assert.Equal(t, mat.MakeType(mat.Depth32F, 1), plan.Descriptor.Type)
	assert.Equal(t, 480, plan.Descriptor.Span())
}

func TestAnalyzeRank(t *testing.T) {
	shape := make(ndarray.Shape, mat.MaxDim)
	for i := range shape {
		shape[i] = 1
	}
	_, err := Analyze(shape, contiguousStrides(shape, ndarray.Uint8), ndarray.Uint8)
	assert.NoError(t, err)

	shape = append(shape, 1)
	_, err = Analyze(shape, contiguousStrides(shape, ndarray.Uint8), ndarray.Uint8)
	assert.ErrorIs(t, err, ErrUnsupportedRank)
}

func TestAnalyzeUnsupportedType(t *testing.T) {
	_, err := Analyze(ndarray.Shape{3}, []int{1}, ndarray.Bool)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestAnalyzeStrideMismatch(t *testing.T) {
	_, err := Analyze(ndarray.Shape{3, 3}, []int{1}, ndarray.Uint8)
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestAnalyzeCast(t *testing.T) {
	for _, code := range []ndarray.TypeCode{ndarray.Int64, ndarray.Uint64, ndarray.Uint32} {
		shape := ndarray.Shape{4}
		plan, err := Analyze(shape, contiguousStrides(shape, code), code)
		require.NoError(t, err)
		assert.True(t, plan.CastNeeded, code.String())
		assert.True(t, plan.CopyNeeded, code.String())
		assert.Equal(t, ndarray.Int32, plan.CastTo)
	}
}

func TestAnalyzeScalar(t *testing.T) {
	plan, err := Analyze(ndarray.Shape{}, nil, ndarray.Float64)
	require.NoError(t, err)
	assert.False(t, plan.CopyNeeded)
	assert.Equal(t, []int{1}, plan.Descriptor.Sizes)
	assert.Equal(t, []int{8}, plan.Descriptor.Steps)
}

func TestAnalyzeMultichannel(t *testing.T) {
	shape := ndarray.Shape{480, 640, 3}
	plan, err := Analyze(shape, contiguousStrides(shape, ndarray.Uint8), ndarray.Uint8)
	require.NoError(t, err)

	assert.True(t, plan.Multichannel)
	assert.False(t, plan.CopyNeeded)
	assert.Equal(t, []int{480, 640}, plan.Descriptor.Sizes)
	assert.Equal(t, []int{1920, 3}, plan.Descriptor.Steps)
	assert.Equal(t, mat.MakeType(mat.Depth8U, 3), plan.Descriptor.Type)
	assert.Equal(t, 3, plan.Descriptor.Channels)
}

func TestAnalyzeMultichannelPaddedPixels(t *testing.T) {
	// Contiguity holds (strides never increase outward) but pixels are
	// four bytes apart with three channels, so folding is invalid.
	plan, err := Analyze(ndarray.Shape{4, 4, 3}, []int{16, 4, 1}, ndarray.Uint8)
	require.NoError(t, err)
	assert.True(t, plan.Multichannel)
	assert.True(t, plan.CopyNeeded)
}

func TestAnalyzeTooManyChannels(t *testing.T) {
	shape := ndarray.Shape{2, 2, mat.CNMax + 1}
	plan, err := Analyze(shape, contiguousStrides(shape, ndarray.Uint8), ndarray.Uint8)
	require.NoError(t, err)
	assert.False(t, plan.Multichannel)
	assert.Equal(t, []int{2, 2, mat.CNMax + 1}, plan.Descriptor.Sizes)
}

func TestAnalyzeRejectsBadExtents(t *testing.T) {
	tests := []struct {
		name  string
		shape ndarray.Shape
	}{
		{"negative", ndarray.Shape{4, -1}},
		{"zero", ndarray.Shape{0, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(tt.shape, []int{4, 4}, ndarray.Float32)
			assert.ErrorIs(t, err, ErrInvalidLayout)
		})
	}
}

func TestAnalyzeNonContiguous(t *testing.T) {
	tests := []struct {
		name    string
		shape   ndarray.Shape
		strides []int
	}{
		{"negative outer stride", ndarray.Shape{3, 4}, []int{-16, 4}},
		{"negative inner stride", ndarray.Shape{4}, []int{-4}},
		{"strided inner axis", ndarray.Shape{3, 4}, []int{32, 8}},
		{"increasing outward", ndarray.Shape{2, 3, 4}, []int{16, 32, 4}},
		{"transposed 3d", ndarray.Shape{4, 3, 2}, []int{4, 16, 48}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Analyze(tt.shape, tt.strides, ndarray.Float32)
			require.NoError(t, err)
			assert.True(t, plan.CopyNeeded)
			assert.False(t, plan.Transposed)
			assert.Nil(t, plan.Descriptor.Sizes)
		})
	}
}

func TestAnalyzeFortranOrder(t *testing.T) {
	// Column-major 3x5 float64: axis 0 is packed.
	plan, err := Analyze(ndarray.Shape{3, 5}, []int{8, 24}, ndarray.Float64)
	require.NoError(t, err)

	assert.False(t, plan.CopyNeeded)
	assert.True(t, plan.Transposed)
	assert.Equal(t, []int{5, 3}, plan.Descriptor.Sizes)
	assert.Equal(t, []int{24, 8}, plan.Descriptor.Steps)
}
