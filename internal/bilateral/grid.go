// Package bilateral implements the approximate edge-preserving blur built on
// a 3-D (x, y, luminance) grid: splat, separable blur, and trilinear slice.
package bilateral

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/darktable-go/tonecore/internal/alloc"
	"github.com/darktable-go/tonecore/internal/tile"
)

const (
	minXY = 4
	maxXY = 6000
	minZ  = 4
	maxZ  = 50

	// shadowGridBudget bounds how much memory per-goroutine shadow grids
	// may consume in total before splat falls back to atomic-CAS updates
	// on a single shared grid (design note: "prefer per-thread shadow
	// grids + a parallel reduction ... falling back to atomics only when
	// grid size exceeds cache budgets").
	shadowGridBudget = 256 << 20 // 256 MiB
)

// ErrInvalidParameter is returned when sigmas or dimensions are out of their
// documented ranges.
var ErrInvalidParameter = errors.New("bilateral: invalid parameter")

// Grid is the 3-D splat/blur/slice accumulator. A Grid is scoped to a single
// engine invocation and must be released with Free when the caller is done.
type Grid struct {
	Data                   []float32
	SizeX, SizeY, SizeZ    int
	SigmaS, SigmaR         float64 // effective sigmas, recomputed from chosen sizes
	width, height          int
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Init allocates a zeroed grid sized from (W, H, sigmaS, sigmaR) and
// computes the effective sigmas the engine will actually use.
func Init(width, height int, sigmaS, sigmaR float64) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: non-positive image dimensions %dx%d", ErrInvalidParameter, width, height)
	}
	if sigmaS < 0.1 {
		return nil, fmt.Errorf("%w: sigma_s %g below minimum 0.1", ErrInvalidParameter, sigmaS)
	}
	if sigmaR <= 0 {
		return nil, fmt.Errorf("%w: sigma_r %g must be positive", ErrInvalidParameter, sigmaR)
	}

	rx := int(math.Round(float64(width) / sigmaS))
	ry := int(math.Round(float64(height) / sigmaS))
	rz := int(math.Round(100 / sigmaR))

	sizeX := clamp(rx, minXY, maxXY) + 1
	sizeY := clamp(ry, minXY, maxXY) + 1
	sizeZ := clamp(rz, minZ, maxZ) + 1

	data, err := alloc.Float32s(sizeX*sizeY*sizeZ, alloc.DefaultAlignment)
	if err != nil {
		return nil, fmt.Errorf("bilateral: grid allocation: %w", err)
	}

	g := &Grid{
		Data:   data,
		SizeX:  sizeX,
		SizeY:  sizeY,
		SizeZ:  sizeZ,
		width:  width,
		height: height,
	}
	g.SigmaS = math.Max(float64(height)/float64(sizeY-1), float64(width)/float64(sizeX-1))
	g.SigmaR = 100 / float64(sizeZ-1)
	return g, nil
}

// Free releases the grid's storage. It is safe to call on an already-freed
// grid.
func (g *Grid) Free() {
	g.Data = nil
}

// MemoryUse returns the grid byte size for (W, H, sigmaS, sigmaR) without
// allocating, so the host pipeline can budget tiles.
func MemoryUse(width, height int, sigmaS, sigmaR float64) (uint64, error) {
	if sigmaS < 0.1 {
		return 0, fmt.Errorf("%w: sigma_s %g below minimum 0.1", ErrInvalidParameter, sigmaS)
	}
	if sigmaR <= 0 {
		return 0, fmt.Errorf("%w: sigma_r %g must be positive", ErrInvalidParameter, sigmaR)
	}
	rx := int(math.Round(float64(width) / sigmaS))
	ry := int(math.Round(float64(height) / sigmaS))
	rz := int(math.Round(100 / sigmaR))
	sizeX := clamp(rx, minXY, maxXY) + 1
	sizeY := clamp(ry, minXY, maxXY) + 1
	sizeZ := clamp(rz, minZ, maxZ) + 1
	return uint64(sizeX) * uint64(sizeY) * uint64(sizeZ) * 4, nil
}

func (g *Grid) index(xi, yi, zi int) int {
	return (zi*g.SizeY+yi)*g.SizeX + xi
}

// gridCoord maps an image-space (i, j, L) sample to continuous grid
// coordinates, clamped to the grid's valid range.
func (g *Grid) gridCoord(i, j int, l float32) (x, y, z float64) {
	x = clampF(float64(i)/g.SigmaS, 0, float64(g.SizeX-1))
	y = clampF(float64(j)/g.SigmaS, 0, float64(g.SizeY-1))
	z = clampF(float64(l)/g.SigmaR, 0, float64(g.SizeZ-1))
	return
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Splat accumulates the luminance channel (channel 0) of in into the grid
// with trilinear splatting. The result is deterministic regardless of
// goroutine count: it is always the sum of per-pixel contributions.
func (g *Grid) Splat(in *tile.Buffer) {
	if in.Width != g.width || in.Height != g.height {
		panic(fmt.Sprintf("bilateral: Splat called with %dx%d tile, grid was Init'd for %dx%d", in.Width, in.Height, g.width, g.height))
	}
	weight := 100 / (g.SigmaS * g.SigmaS)

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > in.Height {
		numWorkers = in.Height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	gridBytes := uint64(len(g.Data)) * 4
	if numWorkers > 1 && gridBytes*uint64(numWorkers) > shadowGridBudget {
		g.splatAtomic(in, weight, numWorkers)
		return
	}
	g.splatShadow(in, weight, numWorkers)
}

// splatShadow gives each worker a private grid for its row range, then
// reduces (sums) all shadow grids into g.Data. Preferred: no contention, and
// the reduction order is fixed so results are bit-reproducible across runs.
func (g *Grid) splatShadow(in *tile.Buffer, weight float64, numWorkers int) {
	shadows := make([][]float32, numWorkers)
	for w := range shadows {
		shadows[w] = make([]float32, len(g.Data))
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
		go func(shadow []float32, y0, y1 int) {
			defer wg.Done()
			for j := y0; j < y1; j++ {
				for i := 0; i < in.Width; i++ {
					l := in.Pix[in.Offset(i, j)]
					g.splatPixelInto(shadow, i, j, l, weight)
				}
			}
		}(shadows[w], y0, y1)
	}
	wg.Wait()

	for _, shadow := range shadows {
		for i, v := range shadow {
			g.Data[i] += v
		}
	}
}

// splatAtomic splats directly into a shared bit-array using CAS-based
// float32 add, avoiding the O(numWorkers) memory multiplier of shadow
// grids when the grid itself is already large.
func (g *Grid) splatAtomic(in *tile.Buffer, weight float64, numWorkers int) {
	bits := make([]atomic.Uint32, len(g.Data))
	for i, v := range g.Data {
		bits[i].Store(math.Float32bits(v))
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
					l := in.Pix[in.Offset(i, j)]
					g.splatPixelAtomic(bits, i, j, l, weight)
				}
			}
		}(y0, y1)
	}
	wg.Wait()

	for i := range g.Data {
		g.Data[i] = math.Float32frombits(bits[i].Load())
	}
}

// splatPixelInto distributes one pixel's trilinear contribution into dst,
// which may be the real grid or a per-worker shadow.
func (g *Grid) splatPixelInto(dst []float32, i, j int, l float32, weight float64) {
	x, y, z := g.gridCoord(i, j, l)
	xi := clamp(int(x), 0, g.SizeX-2)
	yi := clamp(int(y), 0, g.SizeY-2)
	zi := clamp(int(z), 0, g.SizeZ-2)
	xf, yf, zf := x-float64(xi), y-float64(yi), z-float64(zi)

	for dz := 0; dz <= 1; dz++ {
		wz := oneMinusOr(zf, dz)
		for dy := 0; dy <= 1; dy++ {
			wy := oneMinusOr(yf, dy)
			for dx := 0; dx <= 1; dx++ {
				wx := oneMinusOr(xf, dx)
				idx := g.index(xi+dx, yi+dy, zi+dz)
				dst[idx] += float32(weight * wx * wy * wz)
			}
		}
	}
}

func (g *Grid) splatPixelAtomic(bits []atomic.Uint32, i, j int, l float32, weight float64) {
	x, y, z := g.gridCoord(i, j, l)
	xi := clamp(int(x), 0, g.SizeX-2)
	yi := clamp(int(y), 0, g.SizeY-2)
	zi := clamp(int(z), 0, g.SizeZ-2)
	xf, yf, zf := x-float64(xi), y-float64(yi), z-float64(zi)

	for dz := 0; dz <= 1; dz++ {
		wz := oneMinusOr(zf, dz)
		for dy := 0; dy <= 1; dy++ {
			wy := oneMinusOr(yf, dy)
			for dx := 0; dx <= 1; dx++ {
				wx := oneMinusOr(xf, dx)
				idx := g.index(xi+dx, yi+dy, zi+dz)
				addFloat32Atomic(&bits[idx], float32(weight*wx*wy*wz))
			}
		}
	}
}

func addFloat32Atomic(a *atomic.Uint32, delta float32) {
	for {
		old := a.Load()
		newV := math.Float32bits(math.Float32frombits(old) + delta)
		if a.CompareAndSwap(old, newV) {
			return
		}
	}
}

func oneMinusOr(frac float64, take int) float64 {
	if take == 0 {
		return 1 - frac
	}
	return frac
}
