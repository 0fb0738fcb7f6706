package bilateral

import (
	"runtime"
	"sync"

	"github.com/darktable-go/tonecore/internal/tile"
)

// Slice recovers an edge-preserving value for channel 0 of in at every
// pixel and writes it to out in "filter" mode: out.L = in.L + sampled.
// Chroma channels and alpha are copied unchanged. detail=0 reproduces the
// input exactly (within float rounding) because the sampled term is then
// zero.
func (g *Grid) Slice(in, out *tile.Buffer, detail float64) {
	g.slice(in, out, detail, false)
}

// SliceToOutput is the additive/detail-injection variant: out.L is updated
// in place as max(0, out.L + sampled), so out must already hold the caller's
// current working value.
func (g *Grid) SliceToOutput(in, out *tile.Buffer, detail float64) {
	g.slice(in, out, detail, true)
}

func (g *Grid) slice(in, out *tile.Buffer, detail float64, accumulate bool) {
	if in.Width != g.width || in.Height != g.height {
		panic("bilateral: Slice called with tile dimensions that do not match the grid")
	}
	if err := tile.CheckSameShape("bilateral.Slice", in, out); err != nil {
		panic(err)
	}

	scale := -detail * g.SigmaR * 0.04

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > in.Height {
		numWorkers = in.Height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	rowsPerWorker := (in.Height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		y0 := w * rowsPerWorker
		y1 := min(y0+rowsPerWorker, in.Height)
		if y0 >= y1 {
			continue
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for j := y0; j < y1; j++ {
				for i := 0; i < in.Width; i++ {
					inOff := in.Offset(i, j)
					l := in.Pix[inOff]
					sampled := float32(scale) * g.sampleTrilinear(i, j, l)

					outOff := out.Offset(i, j)
					if accumulate {
						v := out.Pix[outOff] + sampled
						if v < 0 {
							v = 0
						}
						out.Pix[outOff] = v
					} else {
						out.Pix[outOff] = l + sampled
					}
					// Chroma passes through unchanged, alpha is preserved.
					out.Pix[outOff+1] = in.Pix[inOff+1]
					out.Pix[outOff+2] = in.Pix[inOff+2]
					out.Pix[outOff+3] = in.Pix[inOff+3]
				}
			}
		}(y0, y1)
	}
	wg.Wait()
}

// sliceBase writes the grid's direct sampled luminance to out (no input
// term, no detail scaling), for callers that want a smoothing pass rather
// than a contrast adjustment. Chroma and alpha pass through unchanged.
func (g *Grid) sliceBase(in, out *tile.Buffer) {
	if in.Width != g.width || in.Height != g.height {
		panic("bilateral: sliceBase called with tile dimensions that do not match the grid")
	}
	if err := tile.CheckSameShape("bilateral.sliceBase", in, out); err != nil {
		panic(err)
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > in.Height {
		numWorkers = in.Height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	rowsPerWorker := (in.Height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		y0 := w * rowsPerWorker
		y1 := min(y0+rowsPerWorker, in.Height)
		if y0 >= y1 {
			continue
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for j := y0; j < y1; j++ {
				for i := 0; i < in.Width; i++ {
					inOff := in.Offset(i, j)
					outOff := out.Offset(i, j)
					out.Pix[outOff] = g.sampleTrilinear(i, j, in.Pix[inOff])
					out.Pix[outOff+1] = in.Pix[inOff+1]
					out.Pix[outOff+2] = in.Pix[inOff+2]
					out.Pix[outOff+3] = in.Pix[inOff+3]
				}
			}
		}(y0, y1)
	}
	wg.Wait()
}

// sampleTrilinear reads the (blurred) grid at the continuous coordinate
// derived from (i, j, l) using trilinear interpolation over the 8
// neighboring cells.
func (g *Grid) sampleTrilinear(i, j int, l float32) float32 {
	x, y, z := g.gridCoord(i, j, l)
	xi := clamp(int(x), 0, g.SizeX-2)
	yi := clamp(int(y), 0, g.SizeY-2)
	zi := clamp(int(z), 0, g.SizeZ-2)
	xf, yf, zf := x-float64(xi), y-float64(yi), z-float64(zi)

	var sum float64
	for dz := 0; dz <= 1; dz++ {
		wz := oneMinusOr(zf, dz)
		for dy := 0; dy <= 1; dy++ {
			wy := oneMinusOr(yf, dy)
			for dx := 0; dx <= 1; dx++ {
				wx := oneMinusOr(xf, dx)
				sum += wx * wy * wz * float64(g.Data[g.index(xi+dx, yi+dy, zi+dz)])
			}
		}
	}
	return float32(sum)
}
