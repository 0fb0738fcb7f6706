// Package heal implements Poisson image editing (seamless cloning) via a
// checkerboard Gauss-Seidel solver with successive over-relaxation.
package heal

import (
	"log/slog"
	"math"

	"github.com/darktable-go/tonecore/internal/alloc"
	"github.com/darktable-go/tonecore/internal/tile"
)

const (
	maxIterations = 1000
	epsilon       = 0.1 / 255
	// solvedChannels is the number of leading channels the solver touches;
	// the trailing alpha channel is left untouched.
	solvedChannels = 3
)

// Heal reconstructs dst in place inside mask so that dst-src's Laplacian
// matches zero (Dirichlet boundary at the mask outline, implicit Neumann at
// the tile edge), then adds the solution back onto src. mask is
// width*height long, one float per pixel, nonzero selects the interior to
// solve.
//
// On allocation failure dst is left unmodified and a warning is logged
// once.
func Heal(src, dst *tile.Buffer, mask []float32, width, height int) {
	if err := tile.CheckSameShape("heal.Heal", src, dst); err != nil {
		panic(err)
	}
	if len(mask) != width*height {
		panic("heal.Heal: mask length does not match width*height")
	}

	// pixels holds the per-pixel difference dst-src for all four channels,
	// plus one sentinel pixel (always zero) used as the "neighbor" for
	// off-tile references.
	pixels, err := alloc.Float64s((width*height+1)*tile.Channels, alloc.DefaultAlignment)
	if err != nil {
		slog.Warn("heal: allocation failure, leaving destination unmodified", "error", err)
		return
	}
	for i := range width * height * tile.Channels {
		pixels[i] = float64(dst.Pix[i]) - float64(src.Pix[i])
	}
	sentinel := width * height * tile.Channels

	aidx, adiag, nmask, nmaskRed, err := buildSystem(mask, width, height, sentinel)
	if err != nil {
		slog.Warn("heal: allocation failure, leaving destination unmodified", "error", err)
		return
	}

	if nmask > 0 {
		w := (2 - 1/(0.1575*math.Sqrt(float64(nmask))+0.8)) / 4
		errExit := epsilon * epsilon * w * w

		for iter := 0; iter < maxIterations; iter++ {
			errSq := iterate(pixels, adiag, aidx, w, 0, nmaskRed)
			errSq += iterate(pixels, adiag, aidx, w, nmaskRed, nmask)
			if errSq < errExit {
				break
			}
		}
	}

	for i := range width * height * tile.Channels {
		dst.Pix[i] = float32(pixels[i] + float64(src.Pix[i]))
	}
}

// buildSystem enumerates masked pixels in checkerboard (red-then-black)
// order and records, for each, the flat pixel-channel-0 offsets of its
// center/E/S/W/N neighbors (redirecting any off-tile neighbor to the
// sentinel offset) and its diagonal coefficient.
func buildSystem(mask []float32, width, height, sentinel int) (aidx []int, adiag []float64, nmask, nmaskRed int, err error) {
	// The neighbor-index table only needs normal Go slice semantics (it is
	// never handed to a vectorized loop); the two buffers that do need
	// aligned, SIMD-friendly storage are the diagonal coefficients and the
	// pixel/diff array allocated in Heal.
	aidx = make([]int, 5*width*height)
	adiag, err = alloc.Float64s(width*height, alloc.DefaultAlignment)
	if err != nil {
		return nil, nil, 0, 0, err
	}

	neighbor := func(i, j, di, dj int) int {
		if (dj < 0 && j == 0) || (dj > 0 && j == width-1) || (di < 0 && i == 0) || (di > 0 && i == height-1) {
			return sentinel
		}
		return ((i+di)*width + (j + dj)) * tile.Channels
	}

	for parity := 0; parity < 2; parity++ {
		if parity == 1 {
			nmaskRed = nmask
		}
		for i := 0; i < height; i++ {
			start := (i & 1) ^ parity
			for j := start; j < width; j += 2 {
				if mask[j+i*width] == 0 {
					continue
				}
				o := nmask * 5
				aidx[o+0] = neighbor(i, j, 0, 0)
				aidx[o+1] = neighbor(i, j, 0, 1)  // E
				aidx[o+2] = neighbor(i, j, 1, 0)  // S
				aidx[o+3] = neighbor(i, j, 0, -1) // W
				aidx[o+4] = neighbor(i, j, -1, 0) // N
				b2i := func(b bool) float64 {
					if b {
						return 1
					}
					return 0
				}
				adiag[nmask] = 4 - b2i(i == 0) - b2i(j == 0) - b2i(i == height-1) - b2i(j == width-1)
				nmask++
			}
		}
	}
	return aidx, adiag, nmask, nmaskRed, nil
}

// iterate performs one Gauss-Seidel SOR sweep over masked pixels
// [from, to) and returns the accumulated squared residual.
func iterate(pixels []float64, adiag []float64, aidx []int, w float64, from, to int) float64 {
	var errSq float64
	for i := from; i < to; i++ {
		j0 := aidx[i*5+0]
		j1 := aidx[i*5+1]
		j2 := aidx[i*5+2]
		j3 := aidx[i*5+3]
		j4 := aidx[i*5+4]
		a := adiag[i]

		for k := 0; k < solvedChannels; k++ {
			d := w * (a*pixels[j0+k] - (pixels[j1+k] + pixels[j2+k] + pixels[j3+k] + pixels[j4+k]))
			pixels[j0+k] -= d
			errSq += d * d
		}
	}
	return errSq
}
