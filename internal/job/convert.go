package job

import (
	"image"
	"image/color"
	"math"

	"github.com/darktable-go/tonecore/internal/tile"
)

// bufferToImage and imageToBuffer convert between the core's Lab+alpha
// tile.Buffer and the standard library's image.NRGBA, so job inputs/outputs
// can be ordinary PNGs. No colorspace library is wired for this: the
// conversion is a small, self-contained sRGB<->CIELAB
// transform, not a concern any example repo's dependency owns.

// imageToBuffer converts img to a tile.Buffer in CIELAB + alpha.
func imageToBuffer(img image.Image) *tile.Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	buf := tile.NewBuffer(w, h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			l, aa, bb := srgbToLab(float64(r)/65535, float64(g)/65535, float64(b)/65535)
			buf.Set(x, y, [tile.Channels]float32{
				float32(l), float32(aa), float32(bb), float32(a) / 65535,
			})
		}
	}
	return buf
}

// bufferToImage converts buf (CIELAB + alpha) back to an image.NRGBA.
func bufferToImage(buf *tile.Buffer) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			v := buf.At(x, y)
			r, g, b := labToSRGB(float64(v[0]), float64(v[1]), float64(v[2]))
			out.SetNRGBA(x, y, color.NRGBA{
				R: clamp8(r), G: clamp8(g), B: clamp8(b), A: clamp8(float64(v[3])),
			})
		}
	}
	return out
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// srgbToLab converts gamma-encoded sRGB in [0,1] to CIELAB (D65 white),
// linearizing each channel first.
func srgbToLab(r, g, b float64) (l, a, bb float64) {
	lr, lg, lb := srgbInverseGamma(r), srgbInverseGamma(g), srgbInverseGamma(b)

	// sRGB -> XYZ (D65)
	x := lr*0.4124564 + lg*0.3575761 + lb*0.1804375
	y := lr*0.2126729 + lg*0.7151522 + lb*0.0721750
	z := lr*0.0193339 + lg*0.1191920 + lb*0.9503041

	const xn, yn, zn = 0.95047, 1.0, 1.08883
	fx, fy, fz := labF(x/xn), labF(y/yn), labF(z/zn)

	l = 116*fy - 16
	a = 500 * (fx - fy)
	bb = 200 * (fy - fz)
	return l, a, bb
}

// labToSRGB converts CIELAB back to gamma-encoded sRGB in [0,1].
func labToSRGB(l, a, b float64) (r, g, bl float64) {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := fy - b/200

	const xn, yn, zn = 0.95047, 1.0, 1.08883
	x := xn * labFInv(fx)
	y := yn * labFInv(fy)
	z := zn * labFInv(fz)

	lr := x*3.2404542 + y*(-1.5371385) + z*(-0.4985314)
	lg := x*(-0.9692660) + y*1.8760108 + z*0.0415560
	lb := x*0.0556434 + y*(-0.2040259) + z*1.0572252

	return srgbGamma(lr), srgbGamma(lg), srgbGamma(lb)
}

func srgbInverseGamma(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func srgbGamma(c float64) float64 {
	if c <= 0 {
		return 0
	}
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

func labF(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta*delta*delta {
		return math.Cbrt(t)
	}
	return t/(3*delta*delta) + 4.0/29.0
}

func labFInv(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta {
		return t * t * t
	}
	return 3 * delta * delta * (t - 4.0/29.0)
}
