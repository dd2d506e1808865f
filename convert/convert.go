// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package convert

import (
	"context"

	"github.com/born-ml/ndbridge/internal/bridge"
	"github.com/born-ml/ndbridge/internal/layout"
	"github.com/born-ml/ndbridge/internal/mat"
	"github.com/born-ml/ndbridge/internal/ndarray"
	"go.uber.org/zap"
)

// Array runtime types.
type (
	// Runtime owns array memory and reference counts.
	Runtime = ndarray.Runtime

	// RuntimeOption configures a Runtime.
	RuntimeOption = ndarray.Option

	// Array is a reference-counted strided array.
	Array = ndarray.Array

	// Shape is the extents of an array, outermost axis first.
	Shape = ndarray.Shape

	// TypeCode identifies an array element type.
	TypeCode = ndarray.TypeCode

	// DType is a constraint for array element types.
	DType = ndarray.DType

	// GIL is the runtime's reentrant interpreter lock.
	GIL = ndarray.GIL
)

// Array element types.
const (
	Bool    TypeCode = ndarray.Bool
	Int8    TypeCode = ndarray.Int8
	Uint8   TypeCode = ndarray.Uint8
	Int16   TypeCode = ndarray.Int16
	Uint16  TypeCode = ndarray.Uint16
	Int32   TypeCode = ndarray.Int32
	Uint32  TypeCode = ndarray.Uint32
	Int64   TypeCode = ndarray.Int64
	Uint64  TypeCode = ndarray.Uint64
	Float32 TypeCode = ndarray.Float32
	Float64 TypeCode = ndarray.Float64
)

// Matrix types.
type (
	// Mat is an n-dimensional matrix header over shared storage.
	Mat = mat.Mat

	// MatType is a channel depth plus a channel count.
	MatType = mat.Type

	// Depth is the element type of one matrix channel.
	Depth = mat.Depth

	// Storage is the reference-counted record behind a matrix's data.
	Storage = mat.Storage

	// Allocator creates and destroys storage records.
	Allocator = mat.Allocator
)

// Matrix channel depths.
const (
	Depth8U  Depth = mat.Depth8U
	Depth8S  Depth = mat.Depth8S
	Depth16U Depth = mat.Depth16U
	Depth16S Depth = mat.Depth16S
	Depth32S Depth = mat.Depth32S
	Depth32F Depth = mat.Depth32F
	Depth64F Depth = mat.Depth64F
)

// Matrix limits.
const (
	MaxDim = mat.MaxDim
	CNMax  = mat.CNMax
)

// Conversion types.
type (
	// Converter converts between arrays and matrices.
	Converter = bridge.Converter

	// Bridge is the allocator whose storage keeps arrays alive.
	Bridge = bridge.Bridge

	// Options tune conversion behaviour.
	Options = bridge.Options

	// Error describes a failed conversion.
	Error = bridge.Error

	// Plan is the outcome of analysing an array layout.
	Plan = layout.Plan
)

// Conversion error kinds.
var (
	ErrUnsupportedRank  = bridge.ErrUnsupportedRank
	ErrUnsupportedType  = bridge.ErrUnsupportedType
	ErrAllocationFailed = bridge.ErrAllocationFailed
	ErrNotAnArray       = bridge.ErrNotAnArray
)

// NewRuntime creates an array runtime.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	return ndarray.NewRuntime(opts...)
}

// WithMemoryLimit caps the bytes of live array memory.
func WithMemoryLimit(limit int64) RuntimeOption {
	return ndarray.WithMemoryLimit(limit)
}

// WithMmapThreshold serves large arrays from anonymous memory mappings.
func WithMmapThreshold(threshold int) RuntimeOption {
	return ndarray.WithMmapThreshold(threshold)
}

// DefaultOptions returns strict casting with n-dimensional matrices allowed.
func DefaultOptions() Options {
	return bridge.DefaultOptions()
}

// New creates a converter with its own bridge over rt.
func New(rt *Runtime, opts Options) *Converter {
	return bridge.NewConverter(bridge.New(rt), opts)
}

// Analyze reports how an array with the given layout converts, without
// touching any memory.
func Analyze(shape Shape, strides []int, code TypeCode) (Plan, error) {
	return layout.Analyze(shape, strides, code)
}

// FromSlice creates a contiguous array holding a copy of data.
// ctx must hold the runtime's GIL.
func FromSlice[T DType](ctx context.Context, rt *Runtime, data []T, shape Shape) (*Array, error) {
	return ndarray.FromSlice(ctx, rt, data, shape)
}

// ToSlice gathers an array's elements in C order.
func ToSlice[T DType](a *Array) ([]T, error) {
	return ndarray.ToSlice[T](a)
}

// MakeType combines a depth and a channel count.
func MakeType(d Depth, channels int) MatType {
	return mat.MakeType(d, channels)
}

// NewMat allocates a matrix through alloc, or the default heap allocator if
// alloc is nil.
func NewMat(ctx context.Context, sizes []int, typ MatType, alloc Allocator) (*Mat, error) {
	return mat.New(ctx, sizes, typ, alloc)
}

// SetLogger sets the logger used for conversion diagnostics.
func SetLogger(l *zap.Logger) {
	bridge.SetLogger(l)
}
