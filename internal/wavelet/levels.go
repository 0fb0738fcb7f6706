package wavelet

import (
	"math"

	"github.com/darktable-go/tonecore/internal/tile"
)

// Levels is the three-point preview-levels triple used to remap a displayed
// detail scale's luminance into a human-viewable [0, 100] range.
type Levels struct {
	Left, Middle, Right float64
}

// DefaultLevels is the documented default levels triple.
var DefaultLevels = Levels{Left: -3, Middle: 0, Right: 3}

// Valid reports whether the triple is in range and strictly ordered.
func (l Levels) Valid() bool {
	return l.Left >= -3 && l.Right <= 3 && l.Left < l.Middle && l.Middle < l.Right
}

// Curve maps v through the display-scale levels curve: outside
// [Left, Right] it clamps to 0 or 100;
// inside, it applies a gamma power curve chosen so Left maps to 0 and Right
// to 100 exactly. Middle lands at exactly 50 when the triple is symmetric
// around its center; for an off-center Middle the curve is the same
// slider-gamma approximation upstream tools use, not an exact anchor.
func (l Levels) Curve(v float64) float64 {
	if v <= l.Left {
		return 0
	}
	if v >= l.Right {
		return 100
	}
	t := (v - l.Left) / (l.Right - l.Left)
	center := (l.Left + l.Right) / 2
	half := (l.Right - l.Left) / 2
	gamma := math.Pow(10, (l.Middle-center)/half)
	return 100 * math.Pow(t, gamma)
}

// AutoLevelsStats reports the min/mean/max luminance of a displayed detail
// scale, for the GUI to optionally adopt as a new levels triple.
type AutoLevelsStats struct {
	Min, Mean, Max float64
}

// ComputeAutoLevels scans channel 0 of band for its luminance range.
func ComputeAutoLevels(band *tile.Buffer) AutoLevelsStats {
	n := band.Width * band.Height
	if n == 0 {
		return AutoLevelsStats{}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(band.Pix[i*tile.Channels])
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
	}
	return AutoLevelsStats{Min: lo, Mean: sum / float64(n), Max: hi}
}
