package cmd

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/darktable-go/tonecore/internal/job"
	"github.com/darktable-go/tonecore/internal/tilesize"
	"github.com/darktable-go/tonecore/internal/tonebackend"
	"github.com/spf13/cobra"
)

var (
	inputPath  string
	outPath    string
	engine     string
	backend    string
	sigmaS     float64
	sigmaR     float64
	detail     float64
	maskPath   string
	offsetX    int
	offsetY    int
	algorithm  string
	opacity    float64
	numScales  int
	currScale  int
	dataDir    string
	cpuProfile string
	memProfile string
)

var runCmd = &cobra.Command{
	Use:   "process",
	Short: "Run a single-shot tone job",
	Long:  `Runs a bilateral/heal/wavelet job against an input image and writes the output.`,
	RunE:  runProcess,
}

func init() {
	runCmd.Flags().StringVar(&inputPath, "in", "", "Input image path (required)")
	runCmd.Flags().StringVar(&outPath, "out", "out.png", "Output image path")
	runCmd.Flags().StringVar(&engine, "engine", "bilateral", "Engine: bilateral, heal, wavelet")
	runCmd.Flags().StringVar(&backend, "backend", "auto", "Execution backend: auto, scalar, simd")

	runCmd.Flags().Float64Var(&sigmaS, "sigma-s", 8, "Bilateral: spatial sigma")
	runCmd.Flags().Float64Var(&sigmaR, "sigma-r", 0.1, "Bilateral: range sigma")
	runCmd.Flags().Float64Var(&detail, "detail", 0, "Bilateral: detail boost (additive strength)")

	runCmd.Flags().StringVar(&maskPath, "mask", "", "Heal/wavelet: grayscale coverage mask path")
	runCmd.Flags().IntVar(&offsetX, "offset-x", 0, "Heal: clone/heal source offset X")
	runCmd.Flags().IntVar(&offsetY, "offset-y", 0, "Heal: clone/heal source offset Y")

	runCmd.Flags().StringVar(&algorithm, "algorithm", "clone", "Wavelet: clone, heal, blur, fill")
	runCmd.Flags().Float64Var(&opacity, "opacity", 1, "Wavelet: shape opacity")
	runCmd.Flags().IntVar(&numScales, "num-scales", 4, "Wavelet: number of detail bands")
	runCmd.Flags().IntVar(&currScale, "curr-scale", 0, "Wavelet: display scale (0 = full recompose)")

	runCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for job traces and output staging")

	runCmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	runCmd.Flags().StringVar(&memProfile, "memprofile", "", "Write memory profile to file")

	runCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(runCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		slog.Info("CPU profiling enabled", "output", cpuProfile)
	}

	level, err := tonebackend.Resolve(backend)
	if err != nil {
		return fmt.Errorf("resolving backend: %w", err)
	}
	slog.Info("Execution backend resolved", "requested", backend, "level", level)

	width, height, err := decodeBounds(inputPath)
	if err != nil {
		return fmt.Errorf("inspecting input: %w", err)
	}
	if err := reportTileSize(engine, width, height); err != nil {
		slog.Warn("Could not estimate tile requirement", "error", err)
	}

	config := job.Config{
		InputPath: inputPath,
		Engine:    engine,
		SigmaS:    sigmaS,
		SigmaR:    sigmaR,
		Detail:    detail,
		MaskPath:  maskPath,
		OffsetX:   offsetX,
		OffsetY:   offsetY,
		Algorithm: algorithm,
		Opacity:   opacity,
		NumScales: numScales,
		CurrScale: currScale,
	}

	mgr := job.NewManager()
	j := mgr.CreateJob(config)

	start := time.Now()
	if err := job.Run(context.Background(), mgr, nil, dataDir, j.ID); err != nil {
		return fmt.Errorf("job failed: %w", err)
	}
	elapsed := time.Since(start)

	finished, _ := mgr.GetJob(j.ID)

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := copyFile(finished.OutputPath, outPath); err != nil {
		return fmt.Errorf("copying output to %s: %w", outPath, err)
	}

	slog.Info("Job complete", "engine", engine, "elapsed", elapsed, "output", outPath)
	fmt.Printf("Wrote %s (%s, %s)\n", outPath, engine, elapsed.Round(time.Millisecond))

	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			return fmt.Errorf("failed to create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
		slog.Info("Memory profile written", "output", memProfile)
	}

	return nil
}

func decodeBounds(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func reportTileSize(engine string, width, height int) error {
	switch engine {
	case "bilateral":
		req, err := tilesize.ForBilateral(width, height, sigmaS, sigmaR)
		if err != nil {
			return err
		}
		slog.Info("Tile requirement", "engine", engine, "factor", req.PerPixelFactor, "halo", req.HaloPixels)
	case "wavelet":
		req := tilesize.ForWavelet(width, height, numScales)
		slog.Info("Tile requirement", "engine", engine, "factor", req.PerPixelFactor, "halo", req.HaloPixels)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = out.ReadFrom(in)
	return err
}
