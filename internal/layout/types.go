// Package layout decides whether an array can be viewed in place as a
// matrix and computes the equivalent matrix descriptor. It performs no
// allocation and touches no reference counts.
package layout

import (
	"github.com/born-ml/ndbridge/internal/mat"
	"github.com/born-ml/ndbridge/internal/ndarray"
)

// Mapping describes how an array type code is represented on the matrix
// side.
type Mapping struct {
	Depth  mat.Depth        // Channel depth of the matrix
	Cast   bool             // Elements must be converted before viewing
	CastTo ndarray.TypeCode // Array type to convert to when Cast is set
}

type typeEntry struct {
	Mapping
	ok bool
}

// typeTable is indexed by ndarray.TypeCode. 64-bit integers and uint32
// have no matrix depth and go through the nearest safe 32-bit type.
var typeTable = [...]typeEntry{
	ndarray.Bool:    {},
	ndarray.Int8:    {Mapping{Depth: mat.Depth8S, CastTo: ndarray.Int8}, true},
	ndarray.Uint8:   {Mapping{Depth: mat.Depth8U, CastTo: ndarray.Uint8}, true},
	ndarray.Int16:   {Mapping{Depth: mat.Depth16S, CastTo: ndarray.Int16}, true},
	ndarray.Uint16:  {Mapping{Depth: mat.Depth16U, CastTo: ndarray.Uint16}, true},
	ndarray.Int32:   {Mapping{Depth: mat.Depth32S, CastTo: ndarray.Int32}, true},
	ndarray.Uint32:  {Mapping{Depth: mat.Depth32S, Cast: true, CastTo: ndarray.Int32}, true},
	ndarray.Int64:   {Mapping{Depth: mat.Depth32S, Cast: true, CastTo: ndarray.Int32}, true},
	ndarray.Uint64:  {Mapping{Depth: mat.Depth32S, Cast: true, CastTo: ndarray.Int32}, true},
	ndarray.Float32: {Mapping{Depth: mat.Depth32F, CastTo: ndarray.Float32}, true},
	ndarray.Float64: {Mapping{Depth: mat.Depth64F, CastTo: ndarray.Float64}, true},
}

// Lookup returns the matrix mapping of an array type code.
func Lookup(code ndarray.TypeCode) (Mapping, bool) {
	if code < 0 || int(code) >= len(typeTable) {
		return Mapping{}, false
	}
	e := typeTable[code]
	return e.Mapping, e.ok
}

// depthTable is indexed by mat.Depth.
var depthTable = [...]ndarray.TypeCode{
	mat.Depth8U:  ndarray.Uint8,
	mat.Depth8S:  ndarray.Int8,
	mat.Depth16U: ndarray.Uint16,
	mat.Depth16S: ndarray.Int16,
	mat.Depth32S: ndarray.Int32,
	mat.Depth32F: ndarray.Float32,
	mat.Depth64F: ndarray.Float64,
}

// ArrayType returns the array type code that stores a matrix depth.
func ArrayType(d mat.Depth) (ndarray.TypeCode, bool) {
	if !d.Valid() {
		return 0, false
	}
	return depthTable[d], true
}

// ArrayShape returns the array shape holding a matrix of the given sizes
// and type: a multi-channel type gets its channels back as a trailing axis.
func ArrayShape(sizes []int, typ mat.Type) ndarray.Shape {
	shape := make(ndarray.Shape, len(sizes), len(sizes)+1)
	copy(shape, sizes)
	if cn := typ.Channels(); cn > 1 {
		shape = append(shape, cn)
	}
	return shape
}
