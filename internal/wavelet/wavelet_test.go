package wavelet

import (
	"math"
	"math/rand"
	"testing"

	"github.com/darktable-go/tonecore/internal/tile"
)

func randomBuffer(w, h int, seed int64) *tile.Buffer {
	r := rand.New(rand.NewSource(seed))
	b := tile.NewBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := b.Offset(x, y)
			b.Pix[i] = float32(r.Float64() * 100)
			b.Pix[i+1] = float32(r.Float64()*2 - 1)
			b.Pix[i+2] = float32(r.Float64()*2 - 1)
			b.Pix[i+3] = 1
		}
	}
	return b
}

// Property 6: perfect reconstruction.
func TestDecomposeRecomposeReconstructs(t *testing.T) {
	in := randomBuffer(48, 37, 7)
	details, residual := Decompose(in, 5)
	out := Recompose(details, residual)

	var maxDiff float64
	for i := 0; i < len(out.Pix); i += tile.Channels {
		for c := 0; c < signalChannels; c++ {
			d := math.Abs(float64(out.Pix[i+c] - in.Pix[i+c]))
			maxDiff = math.Max(maxDiff, d)
		}
	}
	if maxDiff >= 1e-4 {
		t.Fatalf("reconstruction error %v >= 1e-4", maxDiff)
	}
}

func TestDecomposeZeroScalesIsResidualOnly(t *testing.T) {
	in := randomBuffer(10, 10, 3)
	details, residual := Decompose(in, 0)
	if details != nil {
		t.Fatalf("expected no detail bands, got %d", len(details))
	}
	for i := range in.Pix {
		if residual.Pix[i] != in.Pix[i] {
			t.Fatalf("residual diverges from input at %d: %v vs %v", i, residual.Pix[i], in.Pix[i])
		}
	}
}

func TestDecomposeBandCountAndSize(t *testing.T) {
	in := randomBuffer(20, 15, 9)
	details, residual := Decompose(in, 4)
	if len(details) != 4 {
		t.Fatalf("expected 4 detail bands, got %d", len(details))
	}
	for _, d := range details {
		if d.Width != in.Width || d.Height != in.Height {
			t.Fatalf("detail band has wrong shape %dx%d", d.Width, d.Height)
		}
	}
	if residual.Width != in.Width || residual.Height != in.Height {
		t.Fatalf("residual has wrong shape")
	}
}
