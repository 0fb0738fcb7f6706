package bilateral

import "sync"

// binomial5 is the normalized [1 4 6 4 1]/16 kernel used on the x and y grid
// axes.
var binomial5 = [5]float64{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// derivative5 is the centered finite-difference approximation of the first
// derivative of a Gaussian used on the z (luminance) axis: the stencil
// [w2 w1 0 -w1 -w2] (w1 = 4/16, w2 = 2/16) in convolution order. blurAxis
// multiplies tap t with cell k+t, so the taps are stored reversed, giving
// out[k] = w1*(d[k+1]-d[k-1]) + w2*(d[k+2]-d[k-2]).
var derivative5 = [5]float64{-2.0 / 16, -4.0 / 16, 0, 4.0 / 16, 2.0 / 16}

// Blur runs the three-axis separable stencil in place on the grid. Rows
// along each axis are independent, so each pass is parallelized over the
// outer two indices.
func (g *Grid) Blur() {
	g.blurAxis(binomial5, axisX)
	g.blurAxis(binomial5, axisY)
	g.blurAxis(derivative5, axisZ)
}

type axis int

const (
	axisX axis = iota
	axisY
	axisZ
)

// blurAxis convolves the grid along one axis with a reflect-at-boundary
// 5-tap stencil, using a full output copy so within-line feedback never
// occurs (two-buffer scheme).
func (g *Grid) blurAxis(kernel [5]float64, a axis) {
	out := make([]float32, len(g.Data))

	var size, outerA, outerB int
	switch a {
	case axisX:
		size, outerA, outerB = g.SizeX, g.SizeZ, g.SizeY
	case axisY:
		size, outerA, outerB = g.SizeY, g.SizeZ, g.SizeX
	case axisZ:
		size, outerA, outerB = g.SizeZ, g.SizeY, g.SizeX
	}

	var wg sync.WaitGroup
	for oa := 0; oa < outerA; oa++ {
		wg.Add(1)
		go func(oa int) {
			defer wg.Done()
			for ob := 0; ob < outerB; ob++ {
				for k := 0; k < size; k++ {
					var sum float64
					for t := -2; t <= 2; t++ {
						idx := reflect(k+t, size)
						sum += kernel[t+2] * float64(g.Data[g.axisIndex(a, idx, oa, ob)])
					}
					out[g.axisIndex(a, k, oa, ob)] = float32(sum)
				}
			}
		}(oa)
	}
	wg.Wait()
	g.Data = out
}

// axisIndex maps (axis position k, outer-A, outer-B) back to a flat grid
// index, where outer-A/outer-B follow the (Z, Y)/(Z, X)/(Y, X) pairing used
// by blurAxis for x/y/z respectively.
func (g *Grid) axisIndex(a axis, k, outerA, outerB int) int {
	switch a {
	case axisX:
		// outerA=z, outerB=y, k=x
		return g.index(k, outerB, outerA)
	case axisY:
		// outerA=z, outerB=x, k=y
		return g.index(outerB, k, outerA)
	default: // axisZ
		// outerA=y, outerB=x, k=z
		return g.index(outerB, outerA, k)
	}
}

// reflect maps an out-of-range index back into [0, size) by mirroring at
// the boundary (reflect-at-boundary, not wrap-around).
func reflect(i, size int) int {
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
