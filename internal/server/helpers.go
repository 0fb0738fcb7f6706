package server

import (
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"net/http"
	"os"
)

// handleGetOutputImage handles GET /api/v1/jobs/:id/output.png
func (s *Server) handleGetOutputImage(w http.ResponseWriter, r *http.Request, jobID string) {
	j, exists := s.mgr.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if j.OutputPath == "" {
		http.Error(w, "No output yet", http.StatusNotFound)
		return
	}
	serveImageFile(w, j.OutputPath)
}

// handleGetInputImage handles GET /api/v1/jobs/:id/input.png
func (s *Server) handleGetInputImage(w http.ResponseWriter, r *http.Request, jobID string) {
	j, exists := s.mgr.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	serveImageFile(w, j.Config.InputPath)
}

// handleGetDiffImage handles GET /api/v1/jobs/:id/diff.png, a false-color
// visualization of how far the output drifted from the input.
func (s *Server) handleGetDiffImage(w http.ResponseWriter, r *http.Request, jobID string) {
	j, exists := s.mgr.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if j.OutputPath == "" {
		http.Error(w, "No output yet", http.StatusNotFound)
		return
	}

	in, err := loadPNG(j.Config.InputPath)
	if err != nil {
		http.Error(w, "Failed to load input: "+err.Error(), http.StatusInternalServerError)
		return
	}
	out, err := loadPNG(j.OutputPath)
	if err != nil {
		http.Error(w, "Failed to load output: "+err.Error(), http.StatusInternalServerError)
		return
	}

	diff := computeDiffImage(in, out)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := png.Encode(w, diff); err != nil {
		slog.Error("Failed to encode PNG", "error", err)
	}
}

// loadPNG decodes an image file and normalizes it to NRGBA.
func loadPNG(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	nrgba := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			nrgba.Set(x, y, img.At(x, y))
		}
	}
	return nrgba, nil
}

// serveImageFile streams an image file from disk as a PNG response.
func serveImageFile(w http.ResponseWriter, path string) {
	img, err := loadPNG(path)
	if err != nil {
		http.Error(w, "Failed to load image: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := png.Encode(w, img); err != nil {
		slog.Error("Failed to encode PNG", "error", err)
	}
}

// computeDiffImage creates a false-color difference image between two
// same-sized images: black where they match, red where they diverge.
func computeDiffImage(a, b *image.NRGBA) *image.NRGBA {
	bounds := a.Bounds()
	diff := image.NewNRGBA(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, _ := a.At(x, y).RGBA()
			r2, g2, b2, _ := b.At(x, y).RGBA()

			dr := int(r1) - int(r2)
			dg := int(g1) - int(g2)
			db := int(b1) - int(b2)

			diffMag := math.Sqrt(float64(dr*dr + dg*dg + db*db))
			normalized := uint8(math.Min(255, diffMag/443.0))

			diff.Set(x, y, color.NRGBA{R: normalized, G: 0, B: 0, A: 255})
		}
	}

	return diff
}
