// Package mat provides the dense matrix type used by the numerics side of
// the bridge: an n-dimensional header over byte storage whose element type
// packs up to CNMax channels, with a pluggable allocator behind an
// intrusively reference-counted storage record.
package mat

import "fmt"

// Fixed limits of the matrix representation.
const (
	MaxDim = 32  // Maximum number of dimensions
	CNMax  = 512 // Maximum number of channels per element
)

// Depth is the scalar type of one channel.
type Depth int

// Supported channel depths.
const (
	Depth8U Depth = iota
	Depth8S
	Depth16U
	Depth16S
	Depth32S
	Depth32F
	Depth64F
)

const (
	depthBits = 3
	depthMask = 1<<depthBits - 1
)

// Size returns the byte size of one channel.
func (d Depth) Size() int {
	switch d {
	case Depth8U, Depth8S:
		return 1
	case Depth16U, Depth16S:
		return 2
	case Depth32S, Depth32F:
		return 4
	case Depth64F:
		return 8
	default:
		panic("unknown depth")
	}
}

// Valid reports whether d is a defined depth.
func (d Depth) Valid() bool {
	return d >= Depth8U && d <= Depth64F
}

// String returns the conventional short name of the depth.
func (d Depth) String() string {
	switch d {
	case Depth8U:
		return "8U"
	case Depth8S:
		return "8S"
	case Depth16U:
		return "16U"
	case Depth16S:
		return "16S"
	case Depth32S:
		return "32S"
	case Depth32F:
		return "32F"
	case Depth64F:
		return "64F"
	default:
		return "unknown"
	}
}

// Type is an element type: a depth plus a channel count.
type Type int

// MakeType combines a depth and a channel count in [1, CNMax].
func MakeType(d Depth, channels int) Type {
	if channels < 1 || channels > CNMax {
		panic(fmt.Sprintf("channel count %d out of range [1, %d]", channels, CNMax))
	}
	return Type(int(d) | (channels-1)<<depthBits)
}

// Depth returns the channel depth.
func (t Type) Depth() Depth {
	return Depth(int(t) & depthMask)
}

// Channels returns the number of channels per element.
func (t Type) Channels() int {
	return int(t)>>depthBits + 1
}

// ElemSize1 returns the byte size of one channel.
func (t Type) ElemSize1() int {
	return t.Depth().Size()
}

// ElemSize returns the byte size of one element, all channels included.
func (t Type) ElemSize() int {
	return t.ElemSize1() * t.Channels()
}

// String returns names such as "8UC3".
func (t Type) String() string {
	return fmt.Sprintf("%sC%d", t.Depth(), t.Channels())
}
