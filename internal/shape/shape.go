// Package shape defines the closed tagged variant of retouch shapes and the
// rasterizer contract the wavelet driver consumes. The source's vtable over
// void* is replaced with a single Kind enum plus a shared field set, so that
// every engine in this module sees one capability set and never branches on
// the caller's concrete shape type.
package shape

// Algorithm is the per-scale operation a shape applies.
type Algorithm int

const (
	AlgorithmClone Algorithm = iota
	AlgorithmHeal
	AlgorithmBlur
	AlgorithmFill
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmClone:
		return "clone"
	case AlgorithmHeal:
		return "heal"
	case AlgorithmBlur:
		return "blur"
	case AlgorithmFill:
		return "fill"
	default:
		return "unknown"
	}
}

// Kind is the closed set of rasterizable forms.
type Kind int

const (
	KindCircle Kind = iota
	KindEllipse
	KindPath
	KindBrush
)

// BlurType selects which engine a Blur shape uses.
type BlurType int

const (
	BlurGaussian BlurType = iota
	BlurBilateral
)

// FillMode selects whether Fill paints a constant color or erases to a
// constant luminance.
type FillMode int

const (
	FillColor FillMode = iota
	FillErase
)

// BlurParams holds the parameters for AlgorithmBlur.
type BlurParams struct {
	Type   BlurType
	Radius float64 // [0.1, 200], authoring-resolution pixels
}

// FillParams holds the parameters for AlgorithmFill.
type FillParams struct {
	Mode       FillMode
	Color      [3]float32 // used when Mode == FillColor
	Brightness float32    // [-1, 1], added to Color or used alone in FillErase
}

// Shape is a single retouch form: a rasterizable mask tagged with the scale
// it is live on, the algorithm to apply, and that algorithm's parameters.
type Shape struct {
	ID         int
	Kind       Kind
	ScaleIndex int // shape is only processed when the driver is on this scale
	Algorithm  Algorithm
	Opacity    float64 // [0, 1]

	Blur BlurParams
	Fill FillParams

	// MaskDisplay, when set, asks the driver to OR mask*opacity into the
	// working buffer's alpha channel as a coverage overlay.
	MaskDisplay bool
}

// Rect is an integer bounding box in the shape's native (pre-scale,
// authoring-resolution) coordinate system.
type Rect struct {
	X, Y, W, H int
}

// Mask is a dense per-pixel coverage buffer in [0, 1] plus the bounding box
// it was rasterized at, both in authoring-resolution (pre-scale) space.
type Mask struct {
	Data          []float32
	Width, Height int
	Box           Rect
}

// At returns the mask coverage at local coordinates (x, y) within the mask's
// own Width x Height buffer, or 0 if out of range.
func (m *Mask) At(x, y int) float32 {
	if m == nil || x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Data[y*m.Width+x]
}

// Rasterizer is the external contract the core consumes but does not own
// (§4.4). The GUI-side shape registry implements it; engines never know a
// shape's concrete geometry beyond what this interface exposes.
type Rasterizer interface {
	// GetMask returns a dense [0,1] mask for shape at authoring resolution
	// plus its bounding box. ok is false if the shape currently rasterizes
	// to nothing (e.g. a degenerate path) — callers must skip the shape
	// silently per §7 "Shape rasterizer returns no mask".
	GetMask(shape *Shape) (mask *Mask, ok bool)

	// GetSourceArea returns the pre-scale source bounding box for
	// clone/heal shapes.
	GetSourceArea(shape *Shape) Rect

	// GetDelta returns the integer pixel offset from source to destination
	// for shape at the given ROI's scale.
	GetDelta(shape *Shape, roiScale float64) (dx, dy int)
}
