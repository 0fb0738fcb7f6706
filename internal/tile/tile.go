// Package tile defines the pixel buffer and region-of-interest types shared
// by the bilateral, heal, and wavelet engines.
package tile

import "fmt"

// Channels is the fixed channel count of every buffer the core operates on:
// (L-or-Y, a-or-U, b-or-V, alpha/mask).
const Channels = 4

// ROI describes a rectangular region of interest together with the ratio of
// its resolution to the authoring resolution of any spatial parameter
// (brush radii, shape anchors, ...).
type ROI struct {
	X, Y          int
	Width, Height int
	Scale         float64 // (0, 1]
}

// Valid reports whether the ROI has a usable, positive extent and an
// in-range scale.
func (r ROI) Valid() bool {
	return r.Width > 0 && r.Height > 0 && r.Scale > 0 && r.Scale <= 1
}

// Buffer is a caller-owned, row-major, unpadded float image with Channels
// interleaved channels per pixel. Pitch is always Channels*Width floats.
type Buffer struct {
	Pix           []float32
	Width, Height int
}

// NewBuffer allocates a zeroed buffer for the given dimensions.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		Pix:    make([]float32, width*height*Channels),
		Width:  width,
		Height: height,
	}
}

// CloneBuffer allocates a new buffer and copies b's contents into it.
func CloneBuffer(b *Buffer) *Buffer {
	out := &Buffer{
		Pix:    make([]float32, len(b.Pix)),
		Width:  b.Width,
		Height: b.Height,
	}
	copy(out.Pix, b.Pix)
	return out
}

// Offset returns the index of channel 0 at pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * Channels
}

// At returns the four channel values at (x, y).
func (b *Buffer) At(x, y int) [Channels]float32 {
	i := b.Offset(x, y)
	return [Channels]float32{b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]}
}

// Set writes the four channel values at (x, y).
func (b *Buffer) Set(x, y int, v [Channels]float32) {
	i := b.Offset(x, y)
	b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3] = v[0], v[1], v[2], v[3]
}

// SameShape reports whether a and b have identical dimensions.
func SameShape(a, b *Buffer) bool {
	return a.Width == b.Width && a.Height == b.Height
}

// CheckSameShape returns a descriptive error if a and b differ in shape.
func CheckSameShape(name string, a, b *Buffer) error {
	if !SameShape(a, b) {
		return fmt.Errorf("%s: shape mismatch %dx%d vs %dx%d", name, a.Width, a.Height, b.Width, b.Height)
	}
	return nil
}

// Rect is an integer bounding box in some pixel coordinate system (either
// pre-scale "authoring" space or pipeline space, depending on context).
type Rect struct {
	X, Y, W, H int
}

// Clip intersects r with the [0, width) x [0, height) tile bounds.
func (r Rect) Clip(width, height int) Rect {
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.W, width), min(r.Y+r.H, height)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}
