package tilesize

import "testing"

func TestForBilateralHaloAndFactor(t *testing.T) {
	req, err := ForBilateral(512, 512, 8, 16)
	if err != nil {
		t.Fatalf("ForBilateral: %v", err)
	}
	if req.HaloPixels != 32 { // ceil(4*8)
		t.Errorf("HaloPixels = %d, want 32", req.HaloPixels)
	}
	if req.PerPixelFactor <= 2 {
		t.Errorf("PerPixelFactor = %v, want > 2 (includes grid term)", req.PerPixelFactor)
	}
	if req.TileAlignment != 1 {
		t.Errorf("TileAlignment = %d, want 1", req.TileAlignment)
	}
}

func TestForGaussianHalo(t *testing.T) {
	req := ForGaussian(256, 256, 3.2)
	if req.HaloPixels != 13 { // ceil(4*3.2) = 13
		t.Errorf("HaloPixels = %d, want 13", req.HaloPixels)
	}
	if req.PerPixelFactor != 3 {
		t.Errorf("PerPixelFactor = %v, want 3", req.PerPixelFactor)
	}
}

func TestForWaveletHaloGrowsWithScales(t *testing.T) {
	req0 := ForWavelet(128, 128, 0)
	if req0.HaloPixels != 0 {
		t.Errorf("0-scale halo = %d, want 0", req0.HaloPixels)
	}
	req3 := ForWavelet(128, 128, 3)
	want := 2 * ((1 << 3) - 1) // 14
	if req3.HaloPixels != want {
		t.Errorf("3-scale halo = %d, want %d", req3.HaloPixels, want)
	}
	req4 := ForWavelet(128, 128, 4)
	if req4.HaloPixels <= req3.HaloPixels {
		t.Errorf("halo should grow monotonically with scale count: %d vs %d", req4.HaloPixels, req3.HaloPixels)
	}
}

func TestSingleBufferSizeMatchesGeometry(t *testing.T) {
	req := ForGaussian(100, 50, 1)
	want := uint64(100 * 50 * 4 * 4) // width*height*channels*bytesPerFloat32
	if req.SingleBufferSize != want {
		t.Errorf("SingleBufferSize = %d, want %d", req.SingleBufferSize, want)
	}
}
