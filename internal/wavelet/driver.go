package wavelet

import (
	"errors"
	"fmt"

	"github.com/darktable-go/tonecore/internal/shape"
	"github.com/darktable-go/tonecore/internal/tile"
)

// ErrInvalidParameter is returned when a Params field falls outside its
// documented range. Process does not execute and out is left untouched.
var ErrInvalidParameter = errors.New("wavelet: invalid parameter")

// Params bundles the per-invocation configuration for Process.
// Shape.ScaleIndex is 0-based: values in [0, NumScales) address detail
// bands 0-indexed, and NumScales addresses the residual. This differs from
// CurrScale, whose pyramid-scale numbering is 1-based.
type Params struct {
	Shapes []*shape.Shape

	NumScales      int // [0, 15]
	CurrScale      int // [0, NumScales+1]; 0 = off (recompose), s = display pyramid scale s (1..NumScales detail, NumScales+1 residual)
	MergeFromScale int // [0, NumScales]

	Levels Levels

	SuppressMask bool
	AutoLevels   bool // single-shot; Process clears it after computing

	Rasterizer shape.Rasterizer
}

// Result is what Process returns.
type Result struct {
	Out *tile.Buffer
	// AutoLevels is non-nil only when Params.AutoLevels was set and a
	// display scale was active.
	AutoLevels *AutoLevelsStats
}

// Process runs the full decompose / per-scale shape dispatch / recompose
// (or display-scale preview) pipeline.
func Process(roi tile.ROI, in *tile.Buffer, params *Params) (*Result, error) {
	if err := validate(params); err != nil {
		return nil, err
	}

	n := params.NumScales
	working := tile.CloneBuffer(in)

	var details []*tile.Buffer
	var residual *tile.Buffer
	if n == 0 {
		residual = tile.CloneBuffer(working)
	} else {
		details, residual = Decompose(working, n)
	}
	mergeBands(details, params.MergeFromScale)

	for s := 1; s <= n+1; s++ {
		band := bandAt(details, residual, n, s)
		shapeScale := s - 1
		for _, sh := range params.Shapes {
			if sh.ScaleIndex != shapeScale {
				continue
			}
			dispatchShape(band, working, roi, sh, params)
		}
	}

	var autoLevels *AutoLevelsStats
	if params.AutoLevels && params.CurrScale > 0 {
		stats := ComputeAutoLevels(bandAt(details, residual, n, params.CurrScale))
		autoLevels = &stats
		params.AutoLevels = false
	}

	var out *tile.Buffer
	if params.CurrScale > 0 {
		out = renderDisplayScale(in, working, bandAt(details, residual, n, params.CurrScale), params.Levels)
	} else {
		out = Recompose(details, residual)
		for i := 0; i < in.Width*in.Height; i++ {
			out.Pix[i*tile.Channels+3] = working.Pix[i*tile.Channels+3]
		}
	}

	return &Result{Out: out, AutoLevels: autoLevels}, nil
}

func validate(params *Params) error {
	if params.NumScales < 0 || params.NumScales > 15 {
		return fmt.Errorf("%w: num_scales %d out of [0,15]", ErrInvalidParameter, params.NumScales)
	}
	if params.CurrScale < 0 || params.CurrScale > params.NumScales+1 {
		return fmt.Errorf("%w: curr_scale %d out of [0,%d]", ErrInvalidParameter, params.CurrScale, params.NumScales+1)
	}
	if params.MergeFromScale < 0 || params.MergeFromScale > params.NumScales {
		return fmt.Errorf("%w: merge_from_scale %d out of [0,%d]", ErrInvalidParameter, params.MergeFromScale, params.NumScales)
	}
	if !params.Levels.Valid() {
		return fmt.Errorf("%w: preview levels %+v out of range or out of order", ErrInvalidParameter, params.Levels)
	}
	return nil
}

// bandAt returns the pyramid band at 1-based pyramid scale s (1..n detail,
// n+1 residual).
func bandAt(details []*tile.Buffer, residual *tile.Buffer, n, s int) *tile.Buffer {
	if s <= n {
		return details[s-1]
	}
	return residual
}

// mergeBands implements merge_from_scale: detail bands below
// the threshold are summed into the band immediately below the threshold
// and then zeroed, so shapes still addressing the now-empty finer bands are
// harmless no-ops and the combined detail lives at index mergeFromScale-1.
// mergeFromScale == 0 (the default) is a no-op.
func mergeBands(details []*tile.Buffer, mergeFromScale int) {
	if mergeFromScale <= 0 || mergeFromScale > len(details) {
		return
	}
	merged := tile.NewBuffer(details[0].Width, details[0].Height)
	for idx := 0; idx < mergeFromScale; idx++ {
		d := details[idx]
		for i := 0; i < len(merged.Pix); i += tile.Channels {
			for c := 0; c < signalChannels; c++ {
				merged.Pix[i+c] += d.Pix[i+c]
			}
		}
		if idx < mergeFromScale-1 {
			clear(d.Pix)
		}
	}
	details[mergeFromScale-1] = merged
}

func dispatchShape(band, working *tile.Buffer, roi tile.ROI, sh *shape.Shape, params *Params) {
	if params.Rasterizer == nil {
		return
	}
	mask, ok := params.Rasterizer.GetMask(sh)
	if !ok {
		return
	}

	switch sh.Algorithm {
	case shape.AlgorithmClone:
		dx, dy := params.Rasterizer.GetDelta(sh, roi.Scale)
		applyClone(band, roi, mask, sh.Opacity, dx, dy)
	case shape.AlgorithmHeal:
		dx, dy := params.Rasterizer.GetDelta(sh, roi.Scale)
		applyHeal(band, roi, mask, sh.Opacity, dx, dy)
	case shape.AlgorithmBlur:
		applyBlur(band, roi, mask, sh.Opacity, sh.Blur)
	case shape.AlgorithmFill:
		applyFill(band, roi, mask, sh.Opacity, sh.Fill)
	}

	if sh.MaskDisplay && !params.SuppressMask {
		orMaskIntoAlpha(working, roi, mask, sh.Opacity)
	}
}

// renderDisplayScale maps the requested band's channel 0 through the levels
// curve, carrying chroma and alpha through from working.
func renderDisplayScale(in, working, band *tile.Buffer, levels Levels) *tile.Buffer {
	out := tile.NewBuffer(in.Width, in.Height)
	for i := 0; i < in.Width*in.Height; i++ {
		base := i * tile.Channels
		out.Pix[base] = float32(levels.Curve(float64(band.Pix[base])))
		out.Pix[base+1] = working.Pix[base+1]
		out.Pix[base+2] = working.Pix[base+2]
		out.Pix[base+3] = working.Pix[base+3]
	}
	return out
}
