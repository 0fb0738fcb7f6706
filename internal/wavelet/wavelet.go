// Package wavelet implements the à-trous decompose/recompose pyramid and the
// per-scale retouch driver that applies mask-gated shape operations to each
// detail band.
package wavelet

import (
	"runtime"
	"sync"

	"github.com/darktable-go/tonecore/internal/tile"
)

// signalChannels is the number of leading channels the pyramid carries.
// The trailing alpha channel holds GUI-only mask-display overlay state, not
// image signal, and is tracked separately by the driver rather than
// decomposed and recomposed (see driver.go).
const signalChannels = 3

// kernel5 is the normalized [1 4 6 4 1]/16 low-pass stencil, dilated by the
// hole size at each wavelet level.
var kernel5 = [5]float64{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// Decompose à-trous decomposes in into numScales detail bands plus a coarse
// residual. Scale s (1-indexed) holds detail at
// spatial frequency 2^(s-1): details[s-1] = L_{s-1} - L_s, where L_0 is in
// and L_s is L_{s-1} convolved with the dilated kernel at hole size
// 2^(s-1). With numScales ==
// 0, there is no detail and the residual is just a copy of in.
func Decompose(in *tile.Buffer, numScales int) (details []*tile.Buffer, residual *tile.Buffer) {
	if numScales == 0 {
		return nil, tile.CloneBuffer(in)
	}

	details = make([]*tile.Buffer, numScales)
	low := in
	for s := 1; s <= numScales; s++ {
		hole := 1 << (s - 1)
		next := lowPass(low, hole)
		details[s-1] = difference(low, next)
		low = next
	}
	residual = low
	return details, residual
}

// Recompose sums the detail bands and the residual, reproducing the
// original tile within float rounding when the bands are unedited. The
// alpha channel of the result is copied from residual: zero when residual
// came from Decompose with numScales > 0 (the low-pass bands carry no
// alpha). The driver carries the real alpha plane separately.
func Recompose(details []*tile.Buffer, residual *tile.Buffer) *tile.Buffer {
	out := tile.CloneBuffer(residual)
	for _, d := range details {
		for i := 0; i < len(out.Pix); i += tile.Channels {
			for c := 0; c < signalChannels; c++ {
				out.Pix[i+c] += d.Pix[i+c]
			}
		}
	}
	return out
}

// difference computes a - b over the signal channels only.
func difference(a, b *tile.Buffer) *tile.Buffer {
	out := tile.NewBuffer(a.Width, a.Height)
	for i := 0; i < len(out.Pix); i += tile.Channels {
		for c := 0; c < signalChannels; c++ {
			out.Pix[i+c] = a.Pix[i+c] - b.Pix[i+c]
		}
	}
	return out
}

// lowPass convolves in with the dilated 5-tap kernel, separably, with
// mirror-at-boundary. Detail construction is parallel over rows per level.
func lowPass(in *tile.Buffer, hole int) *tile.Buffer {
	w, h := in.Width, in.Height

	horiz := tile.NewBuffer(w, h)
	parallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				oi := horiz.Offset(x, y)
				for c := 0; c < signalChannels; c++ {
					var sum float64
					for t := -2; t <= 2; t++ {
						xi := mirror(x+t*hole, w)
						sum += kernel5[t+2] * float64(in.Pix[in.Offset(xi, y)+c])
					}
					horiz.Pix[oi+c] = float32(sum)
				}
			}
		}
	})

	out := tile.NewBuffer(w, h)
	parallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				oi := out.Offset(x, y)
				for c := 0; c < signalChannels; c++ {
					var sum float64
					for t := -2; t <= 2; t++ {
						yi := mirror(y+t*hole, h)
						sum += kernel5[t+2] * float64(horiz.Pix[horiz.Offset(x, yi)+c])
					}
					out.Pix[oi+c] = float32(sum)
				}
			}
		}
	})

	return out
}

// mirror reflects an out-of-range index back into [0, size), matching the
// bilateral engine's boundary handling for the same dilated-stencil shape.
func mirror(i, size int) int {
	if size == 1 {
		return 0
	}
	for i < 0 || i >= size {
		if i < 0 {
			i = -i - 1
		}
		if i >= size {
			i = 2*size - i - 1
		}
	}
	return i
}

// workerCount bounds GOMAXPROCS to the number of rows available.
func workerCount(height int) int {
	n := runtime.GOMAXPROCS(0)
	if n > height {
		n = height
	}
	if n < 1 {
		n = 1
	}
	return n
}

// parallelRows splits [0, height) into GOMAXPROCS-sized contiguous chunks
// and runs fn on each concurrently, joining before returning.
func parallelRows(height int, fn func(y0, y1 int)) {
	numWorkers := workerCount(height)
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		y0 := w * rowsPerWorker
		y1 := min(y0+rowsPerWorker, height)
		if y0 >= y1 {
			continue
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(y0, y1)
	}
	wg.Wait()
}
