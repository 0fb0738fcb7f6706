package wavelet

import (
	"math"

	"github.com/darktable-go/tonecore/internal/bilateral"
	"github.com/darktable-go/tonecore/internal/heal"
	"github.com/darktable-go/tonecore/internal/shape"
	"github.com/darktable-go/tonecore/internal/tile"
)

// maskValueAt samples a shape's mask at a pipeline-resolution pixel, using
// nearest-pixel indexing: (i/roi.scale - rect.x, j/roi.scale - rect.y).
// tileX/tileY are tile-local coordinates; roi.X/roi.Y place the tile in the
// pipeline-resolution frame.
func maskValueAt(m *shape.Mask, roi tile.ROI, tileX, tileY int) float32 {
	gx := float64(roi.X + tileX)
	gy := float64(roi.Y + tileY)
	mx := int(gx/roi.Scale) - m.Box.X
	my := int(gy/roi.Scale) - m.Box.Y
	return m.At(mx, my)
}

// shapeTileRect bounds the tile-local footprint a mask can touch, with a
// 1-pixel safety margin for the rounding in the authoring/pipeline
// coordinate conversion, clipped to the tile.
func shapeTileRect(m *shape.Mask, roi tile.ROI, tileW, tileH int) tile.Rect {
	x0 := int(math.Floor(float64(m.Box.X)*roi.Scale)) - roi.X - 1
	y0 := int(math.Floor(float64(m.Box.Y)*roi.Scale)) - roi.Y - 1
	x1 := int(math.Ceil(float64(m.Box.X+m.Box.W)*roi.Scale)) - roi.X + 1
	y1 := int(math.Ceil(float64(m.Box.Y+m.Box.H)*roi.Scale)) - roi.Y + 1
	return tile.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}.Clip(tileW, tileH)
}

// extractRegion copies a sub-rectangle of band into a freshly allocated
// buffer of the region's size.
func extractRegion(band *tile.Buffer, region tile.Rect) *tile.Buffer {
	out := tile.NewBuffer(region.W, region.H)
	for y := 0; y < region.H; y++ {
		for x := 0; x < region.W; x++ {
			out.Set(x, y, band.At(region.X+x, region.Y+y))
		}
	}
	return out
}

// clampedAt reads band at (x, y), clamping out-of-range coordinates to the
// nearest edge pixel, for source reads that may fall off-tile.
func clampedAt(band *tile.Buffer, x, y int) [tile.Channels]float32 {
	x = clampInt(x, 0, band.Width-1)
	y = clampInt(y, 0, band.Height-1)
	return band.At(x, y)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// applyClone reads from a temporary copy of band at dst+delta, then blends
// into band at dst by mask*opacity. The temporary avoids self-intersection
// artifacts when source and destination footprints overlap.
func applyClone(band *tile.Buffer, roi tile.ROI, m *shape.Mask, opacity float64, dx, dy int) {
	rect := shapeTileRect(m, roi, band.Width, band.Height)
	if rect.Empty() {
		return
	}
	source := tile.CloneBuffer(band)

	for y := rect.Y; y < rect.Y+rect.H; y++ {
		for x := rect.X; x < rect.X+rect.W; x++ {
			a := float64(maskValueAt(m, roi, x, y)) * opacity
			if a <= 0 {
				continue
			}
			src := clampedAt(source, x+dx, y+dy)
			di := band.Offset(x, y)
			for c := 0; c < signalChannels; c++ {
				band.Pix[di+c] = float32((1-a)*float64(band.Pix[di+c]) + a*float64(src[c]))
			}
		}
	}
}

// applyHeal extracts a 1-pixel-padded source and destination tile plus
// scaled mask, runs the Poisson solver, and blends its output back through
// the mask at opacity.
func applyHeal(band *tile.Buffer, roi tile.ROI, m *shape.Mask, opacity float64, dx, dy int) {
	inner := shapeTileRect(m, roi, band.Width, band.Height)
	if inner.Empty() {
		return
	}
	region := tile.Rect{X: inner.X - 1, Y: inner.Y - 1, W: inner.W + 2, H: inner.H + 2}.Clip(band.Width, band.Height)
	if region.Empty() {
		return
	}
	w, h := region.W, region.H

	srcBuf := tile.NewBuffer(w, h)
	dstBuf := tile.NewBuffer(w, h)
	mask := make([]float32, w*h)
	for ly := 0; ly < h; ly++ {
		for lx := 0; lx < w; lx++ {
			gx, gy := region.X+lx, region.Y+ly
			srcBuf.Set(lx, ly, clampedAt(band, gx+dx, gy+dy))
			dstBuf.Set(lx, ly, band.At(gx, gy))
			mask[ly*w+lx] = maskValueAt(m, roi, gx, gy)
		}
	}

	heal.Heal(srcBuf, dstBuf, mask, w, h)

	for ly := 0; ly < h; ly++ {
		for lx := 0; lx < w; lx++ {
			gx, gy := region.X+lx, region.Y+ly
			a := float64(maskValueAt(m, roi, gx, gy)) * opacity
			if a <= 0 {
				continue
			}
			di := band.Offset(gx, gy)
			hi := dstBuf.Offset(lx, ly)
			for c := 0; c < signalChannels; c++ {
				band.Pix[di+c] = float32((1-a)*float64(band.Pix[di+c]) + a*float64(dstBuf.Pix[hi+c]))
			}
		}
	}
}

// toLab and fromLab bracket the bilateral-mode blur: convert the tile to Lab
// before and back after. This driver's tiles are already carried in the (L,
// a, b, alpha) layout, so the round trip is the identity; the hooks stay in
// place as the seam a non-Lab color tile would need.
func toLab(b *tile.Buffer) *tile.Buffer   { return b }
func fromLab(b *tile.Buffer) *tile.Buffer { return b }

// applyBlur smooths a padded copy of the masked region with either a
// separable reflecting-edge Gaussian or the bilateral engine's base layer,
// then blends through mask*opacity.
func applyBlur(band *tile.Buffer, roi tile.ROI, m *shape.Mask, opacity float64, p shape.BlurParams) {
	rect := shapeTileRect(m, roi, band.Width, band.Height)
	if rect.Empty() {
		return
	}
	sigma := p.Radius * roi.Scale
	halo := int(math.Ceil(4*sigma)) + 1
	region := tile.Rect{X: rect.X - halo, Y: rect.Y - halo, W: rect.W + 2*halo, H: rect.H + 2*halo}.Clip(band.Width, band.Height)
	if region.Empty() {
		return
	}
	sub := extractRegion(band, region)

	var blurred *tile.Buffer
	switch p.Type {
	case shape.BlurBilateral:
		blurred = fromLab(bilateral.BaseBlur(toLab(sub), sigma, 100))
	default:
		blurred = gaussianBlur(sub, sigma)
	}

	for y := rect.Y; y < rect.Y+rect.H; y++ {
		for x := rect.X; x < rect.X+rect.W; x++ {
			a := float64(maskValueAt(m, roi, x, y)) * opacity
			if a <= 0 {
				continue
			}
			lx, ly := x-region.X, y-region.Y
			di := band.Offset(x, y)
			si := blurred.Offset(lx, ly)
			for c := 0; c < signalChannels; c++ {
				band.Pix[di+c] = float32((1-a)*float64(band.Pix[di+c]) + a*float64(blurred.Pix[si+c]))
			}
		}
	}
}

// applyFill blends a constant color (or a constant luminance in erase mode)
// into band through mask*opacity.
func applyFill(band *tile.Buffer, roi tile.ROI, m *shape.Mask, opacity float64, p shape.FillParams) {
	rect := shapeTileRect(m, roi, band.Width, band.Height)
	if rect.Empty() {
		return
	}

	var target [signalChannels]float32
	if p.Mode == shape.FillColor {
		target = [signalChannels]float32{p.Color[0] + p.Brightness, p.Color[1] + p.Brightness, p.Color[2] + p.Brightness}
	} else {
		target = [signalChannels]float32{p.Brightness, p.Brightness, p.Brightness}
	}

	for y := rect.Y; y < rect.Y+rect.H; y++ {
		for x := rect.X; x < rect.X+rect.W; x++ {
			a := float64(maskValueAt(m, roi, x, y)) * opacity
			if a <= 0 {
				continue
			}
			di := band.Offset(x, y)
			for c := 0; c < signalChannels; c++ {
				band.Pix[di+c] = float32((1-a)*float64(band.Pix[di+c]) + a*float64(target[c]))
			}
		}
	}
}

// orMaskIntoAlpha ORs mask*opacity into the working buffer's alpha channel
// so a caller can overlay shape coverage as a mask-display flag.
func orMaskIntoAlpha(working *tile.Buffer, roi tile.ROI, m *shape.Mask, opacity float64) {
	rect := shapeTileRect(m, roi, working.Width, working.Height)
	if rect.Empty() {
		return
	}
	for y := rect.Y; y < rect.Y+rect.H; y++ {
		for x := rect.X; x < rect.X+rect.W; x++ {
			a := float32(float64(maskValueAt(m, roi, x, y)) * opacity)
			i := working.Offset(x, y) + 3
			if a > working.Pix[i] {
				working.Pix[i] = a
			}
		}
	}
}
