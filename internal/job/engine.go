package job

import (
	"fmt"
	"image"
	"os"

	"github.com/darktable-go/tonecore/internal/bilateral"
	"github.com/darktable-go/tonecore/internal/heal"
	"github.com/darktable-go/tonecore/internal/shape"
	"github.com/darktable-go/tonecore/internal/tile"
	"github.com/darktable-go/tonecore/internal/wavelet"
)

// runEngine dispatches cfg.Engine against the decoded input buffer and
// returns the processed result. Each engine here is a pure function of its
// input, run once per job rather than iterated toward a cost minimum.
func runEngine(cfg Config, in *tile.Buffer) (*tile.Buffer, error) {
	switch cfg.Engine {
	case "bilateral":
		return bilateral.Process(in, cfg.SigmaS, cfg.SigmaR, cfg.Detail), nil
	case "heal":
		return runHeal(cfg, in)
	case "wavelet":
		return runWavelet(cfg, in)
	default:
		return nil, fmt.Errorf("job: unknown engine %q", cfg.Engine)
	}
}

// runHeal loads cfg.MaskPath as a grayscale coverage mask and heals the
// masked region of in using a copy of in offset by (OffsetX, OffsetY) as
// the clone source.
func runHeal(cfg Config, in *tile.Buffer) (*tile.Buffer, error) {
	mask, err := loadMask(cfg.MaskPath, in.Width, in.Height)
	if err != nil {
		return nil, fmt.Errorf("job: loading heal mask: %w", err)
	}

	source := tile.NewBuffer(in.Width, in.Height)
	for y := 0; y < in.Height; y++ {
		for x := 0; x < in.Width; x++ {
			sx, sy := x-cfg.OffsetX, y-cfg.OffsetY
			if sx < 0 || sy < 0 || sx >= in.Width || sy >= in.Height {
				source.Set(x, y, in.At(x, y))
				continue
			}
			source.Set(x, y, in.At(sx, sy))
		}
	}

	dst := tile.CloneBuffer(in)
	heal.Heal(source, dst, mask, in.Width, in.Height)
	return dst, nil
}

// runWavelet builds a single shape.Shape from cfg's algorithm fields and
// runs it through the full decompose/dispatch/recompose driver at full
// resolution (ROI covering the whole image, scale 1).
func runWavelet(cfg Config, in *tile.Buffer) (*tile.Buffer, error) {
	var mask *shape.Mask
	if cfg.MaskPath != "" {
		data, err := loadMask(cfg.MaskPath, in.Width, in.Height)
		if err != nil {
			return nil, fmt.Errorf("job: loading wavelet mask: %w", err)
		}
		mask = &shape.Mask{Data: data, Width: in.Width, Height: in.Height,
			Box: shape.Rect{X: 0, Y: 0, W: in.Width, H: in.Height}}
	} else {
		data := make([]float32, in.Width*in.Height)
		for i := range data {
			data[i] = 1
		}
		mask = &shape.Mask{Data: data, Width: in.Width, Height: in.Height,
			Box: shape.Rect{X: 0, Y: 0, W: in.Width, H: in.Height}}
	}

	algo, err := algorithmFromString(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	sh := &shape.Shape{
		ID:         1,
		Kind:       shape.KindBrush,
		ScaleIndex: cfg.ShapeScaleIndex,
		Algorithm:  algo,
		Opacity:    opacityOrDefault(cfg.Opacity),
		Blur: shape.BlurParams{
			Type:   blurTypeFromString(cfg.BlurType),
			Radius: cfg.BlurRadius,
		},
		Fill: shape.FillParams{
			Mode:       fillModeFromString(cfg.FillMode),
			Color:      cfg.FillColor,
			Brightness: cfg.FillBrightness,
		},
	}

	rasterizer := &fixedRasterizer{mask: mask, dx: cfg.OffsetX, dy: cfg.OffsetY}

	levels := wavelet.Levels{Left: cfg.LevelsLeft, Middle: cfg.LevelsMiddle, Right: cfg.LevelsRight}
	if levels == (wavelet.Levels{}) {
		levels = wavelet.DefaultLevels
	}

	params := &wavelet.Params{
		Shapes:         []*shape.Shape{sh},
		NumScales:      cfg.NumScales,
		CurrScale:      cfg.CurrScale,
		MergeFromScale: cfg.MergeFromScale,
		Levels:         levels,
		AutoLevels:     cfg.AutoLevels,
		Rasterizer:     rasterizer,
	}

	roi := tile.ROI{X: 0, Y: 0, Width: in.Width, Height: in.Height, Scale: 1}
	result, err := wavelet.Process(roi, in, params)
	if err != nil {
		return nil, fmt.Errorf("job: wavelet.Process: %w", err)
	}
	return result.Out, nil
}

func opacityOrDefault(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

func algorithmFromString(s string) (shape.Algorithm, error) {
	switch s {
	case "", "clone":
		return shape.AlgorithmClone, nil
	case "heal":
		return shape.AlgorithmHeal, nil
	case "blur":
		return shape.AlgorithmBlur, nil
	case "fill":
		return shape.AlgorithmFill, nil
	default:
		return 0, fmt.Errorf("job: unknown shape algorithm %q", s)
	}
}

func blurTypeFromString(s string) shape.BlurType {
	if s == "bilateral" {
		return shape.BlurBilateral
	}
	return shape.BlurGaussian
}

func fillModeFromString(s string) shape.FillMode {
	if s == "erase" {
		return shape.FillErase
	}
	return shape.FillColor
}

// fixedRasterizer is a minimal shape.Rasterizer over a single pre-rasterized
// mask and a constant clone/heal delta, for jobs driven by a single mask
// file rather than a full GUI shape registry.
type fixedRasterizer struct {
	mask   *shape.Mask
	dx, dy int
}

func (r *fixedRasterizer) GetMask(*shape.Shape) (*shape.Mask, bool) { return r.mask, true }
func (r *fixedRasterizer) GetSourceArea(*shape.Shape) shape.Rect    { return r.mask.Box }
func (r *fixedRasterizer) GetDelta(*shape.Shape, float64) (int, int) {
	return r.dx, r.dy
}

// loadMask decodes path as an image and returns its luma channel as a
// [0,1] coverage mask the size of width x height.
func loadMask(path string, width, height int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mask: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding mask: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		return nil, fmt.Errorf("mask dimensions %dx%d do not match image %dx%d",
			bounds.Dx(), bounds.Dy(), width, height)
	}

	mask := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			lum := 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
			mask[y*width+x] = float32(lum / 65535)
		}
	}
	return mask, nil
}
