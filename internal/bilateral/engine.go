package bilateral

import (
	"log/slog"

	"github.com/darktable-go/tonecore/internal/tile"
)

// Process runs the full splat -> blur -> slice pipeline and writes the
// edge-preserving result to out: detail=0 reproduces in, detail<0 reduces
// local contrast, detail>0 boosts it. Only channel 0 is touched by the
// filter; other channels are copied from in.
//
// On allocation failure the grid cannot be built; out is filled with a
// pass-through copy of in and a single warning is logged.
func Process(in *tile.Buffer, sigmaS, sigmaR, detail float64) *tile.Buffer {
	out := tile.NewBuffer(in.Width, in.Height)

	grid, err := Init(in.Width, in.Height, sigmaS, sigmaR)
	if err != nil {
		slog.Warn("bilateral: falling back to pass-through", "error", err)
		copy(out.Pix, in.Pix)
		return out
	}
	defer grid.Free()

	grid.Splat(in)
	grid.Blur()
	grid.Slice(in, out, detail)
	return out
}

// ProcessAdditive is like Process but composites into an existing out
// buffer via SliceToOutput (non-negative clamp, detail-injection mode),
// used by callers layering bilateral detail on top of prior processing.
func ProcessAdditive(in, out *tile.Buffer, sigmaS, sigmaR, detail float64) {
	grid, err := Init(in.Width, in.Height, sigmaS, sigmaR)
	if err != nil {
		slog.Warn("bilateral: falling back to pass-through", "error", err)
		copy(out.Pix, in.Pix)
		return
	}
	defer grid.Free()

	grid.Splat(in)
	grid.Blur()
	grid.SliceToOutput(in, out, detail)
}

// BaseBlur returns the grid's direct trilinearly-sliced luminance (the
// smoothed base layer itself, as opposed to Process's "input plus
// detail-scaled residual" framing), with chroma and alpha copied through
// unchanged. Callers that want genuine smoothing rather than a contrast
// adjustment — e.g. the wavelet retouch driver's bilateral-mode Blur shape
// operator — use this instead of Process.
func BaseBlur(in *tile.Buffer, sigmaS, sigmaR float64) *tile.Buffer {
	out := tile.NewBuffer(in.Width, in.Height)

	grid, err := Init(in.Width, in.Height, sigmaS, sigmaR)
	if err != nil {
		slog.Warn("bilateral: falling back to pass-through", "error", err)
		copy(out.Pix, in.Pix)
		return out
	}
	defer grid.Free()

	grid.Splat(in)
	grid.Blur()
	grid.sliceBase(in, out)
	return out
}
