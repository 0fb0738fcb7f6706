// Package tilesize reports the per-engine memory/tiling requirement a host
// pipeline needs to decide how to split an image that does not fit in
// device memory in one pass. Each engine's Requirement names a per-pixel
// buffer multiplier, the size of one buffer at the requested geometry, and
// the halo (in pixels) that a tile boundary must overlap its neighbor by so
// the engine's support window sees real data instead of a tile edge.
package tilesize

import (
	"math"

	"github.com/darktable-go/tonecore/internal/bilateral"
	"github.com/darktable-go/tonecore/internal/tile"
)

// Requirement is a (per_pixel_factor, single_buffer_size, halo_pixels)
// triple, plus the tile alignment every engine shares.
type Requirement struct {
	// PerPixelFactor is the number of single_buffer_size-sized allocations
	// the engine needs concurrently, expressed as a multiplier so the host
	// can scale it by whatever buffer size it actually uses.
	PerPixelFactor float64
	// SingleBufferSize is the byte size of one tile.Channels-interleaved
	// float32 buffer at the requested width/height.
	SingleBufferSize uint64
	// HaloPixels is the number of pixels a tile must overlap its neighbors
	// by in each direction so the engine's support window never reads past
	// a tile edge into undefined data.
	HaloPixels int
	// TileAlignment is the coordinate granularity a tile boundary must
	// land on; 1 pixel for every engine.
	TileAlignment int
}

func bufferBytes(width, height int) uint64 {
	return uint64(width) * uint64(height) * uint64(tile.Channels) * 4
}

// ForBilateral reports the requirement for the bilateral grid engine: one
// buffer for input, one for output, plus the grid itself sized relative to
// a tile_bytes-sized buffer.
func ForBilateral(width, height int, sigmaS, sigmaR float64) (Requirement, error) {
	tileBytes := bufferBytes(width, height)
	gridBytes, err := bilateral.MemoryUse(width, height, sigmaS, sigmaR)
	if err != nil {
		return Requirement{}, err
	}
	factor := 2 + float64(gridBytes)/float64(tileBytes)
	return Requirement{
		PerPixelFactor:   factor,
		SingleBufferSize: tileBytes,
		HaloPixels:       int(math.Ceil(4 * sigmaS)),
		TileAlignment:    1,
	}, nil
}

// ForGaussian reports the requirement for a plain separable Gaussian pass:
// input, output, and one extra working tile for the horizontal/vertical
// separable pass.
func ForGaussian(width, height int, sigmaS float64) Requirement {
	tileBytes := bufferBytes(width, height)
	return Requirement{
		PerPixelFactor:   3,
		SingleBufferSize: tileBytes,
		HaloPixels:       int(math.Ceil(4 * sigmaS)),
		TileAlignment:    1,
	}
}

// ForWavelet reports the requirement for the à-trous retouch pyramid:
// input/output plus, approximately, one extra pyramid-level-sized tile held
// live during the scale loop. The halo is the full support of an N-level
// à-trous decomposition, 2·(2^N − 1) pixels.
func ForWavelet(width, height, numScales int) Requirement {
	tileBytes := bufferBytes(width, height)
	halo := 0
	if numScales > 0 {
		halo = 2 * ((1 << uint(numScales)) - 1)
	}
	return Requirement{
		PerPixelFactor:   3,
		SingleBufferSize: tileBytes,
		HaloPixels:       halo,
		TileAlignment:    1,
	}
}
