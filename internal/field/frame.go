// Package field defines the fixed-shape snapshot frame exchanged between
// the simulation engine and the snapshot store.
//
// A Frame is a dense [x, y, z, channel] array with fixed channel semantics:
//   - ChannelType: categorical cell type at the site (0 = medium)
//   - ChannelCellID: unique cell instance id occupying the site
//   - ChannelValue: continuous field value (e.g. chemoattractant concentration)
//
// Planar simulations use NZ = 1.
package field

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Channel indices within a frame. The channel dimension is fixed; adding a
// channel is a format change, not a per-run option.
const (
	ChannelType   = 0
	ChannelCellID = 1
	ChannelValue  = 2

	// NumChannels is the size of the channel dimension.
	NumChannels = 3
)

// Frame is one time step's snapshot of the simulation lattice.
//
// Data is laid out x-major: index = ((x*NY+y)*NZ+z)*NumChannels + c.
// The x-major layout matters: the store splits frames into chunks of
// contiguous x planes, so a chunk is a contiguous slice of Data.
type Frame struct {
	NX, NY, NZ int
	Data       []float64
}

// New allocates a zeroed frame with the given lattice dimensions.
func New(nx, ny, nz int) *Frame {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		panic(fmt.Sprintf("field: invalid frame shape %dx%dx%d", nx, ny, nz))
	}
	return &Frame{
		NX:   nx,
		NY:   ny,
		NZ:   nz,
		Data: make([]float64, nx*ny*nz*NumChannels),
	}
}

// PlaneSize returns the number of float64 values in one x plane.
func (f *Frame) PlaneSize() int {
	return f.NY * f.NZ * NumChannels
}

func (f *Frame) index(x, y, z, c int) int {
	return ((x*f.NY+y)*f.NZ+z)*NumChannels + c
}

// At returns the value at (x, y, z, channel). Bounds are the caller's
// responsibility; out-of-range indices panic like slice access.
func (f *Frame) At(x, y, z, c int) float64 {
	return f.Data[f.index(x, y, z, c)]
}

// Set stores a value at (x, y, z, channel).
func (f *Frame) Set(x, y, z, c int, v float64) {
	f.Data[f.index(x, y, z, c)] = v
}

// Slab returns the contiguous values for x planes [x0, x0+nx).
// The returned slice aliases Data.
func (f *Frame) Slab(x0, nx int) []float64 {
	ps := f.PlaneSize()
	return f.Data[x0*ps : (x0+nx)*ps]
}

// EncodeSlab serializes a slab of values as little-endian IEEE 754 doubles.
func EncodeSlab(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeSlab deserializes a slab previously produced by EncodeSlab into dst.
// The byte length must be exactly 8*len(dst).
func DecodeSlab(buf []byte, dst []float64) error {
	if len(buf) != 8*len(dst) {
		return fmt.Errorf("field: slab length %d does not match %d values", len(buf), len(dst))
	}
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return nil
}
