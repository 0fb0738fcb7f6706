package wavelet

import (
	"math"

	"github.com/darktable-go/tonecore/internal/tile"
)

// gaussianKernel builds a normalized, odd-length discrete Gaussian with
// standard deviation sigma, truncated at radius = ceil(3*sigma) taps each
// side.
func gaussianKernel(sigma float64) []float64 {
	if sigma < 1e-6 {
		return []float64{1}
	}
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	k := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// gaussianBlur runs a separable, reflect-at-boundary Gaussian blur over the
// signal channels of buf and returns a new buffer; the alpha channel is
// copied through unchanged.
func gaussianBlur(buf *tile.Buffer, sigma float64) *tile.Buffer {
	kernel := gaussianKernel(sigma)
	radius := (len(kernel) - 1) / 2
	w, h := buf.Width, buf.Height

	horiz := tile.NewBuffer(w, h)
	parallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				oi := horiz.Offset(x, y)
				for c := 0; c < signalChannels; c++ {
					var sum float64
					for t := -radius; t <= radius; t++ {
						xi := mirror(x+t, w)
						sum += kernel[t+radius] * float64(buf.Pix[buf.Offset(xi, y)+c])
					}
					horiz.Pix[oi+c] = float32(sum)
				}
				horiz.Pix[oi+3] = buf.Pix[buf.Offset(x, y)+3]
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
					for t := -radius; t <= radius; t++ {
						yi := mirror(y+t, h)
						sum += kernel[t+radius] * float64(horiz.Pix[horiz.Offset(x, yi)+c])
					}
					out.Pix[oi+c] = float32(sum)
				}
				out.Pix[oi+3] = horiz.Pix[horiz.Offset(x, y)+3]
			}
		}
	})

	return out
}
