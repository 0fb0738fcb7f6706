package job

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/darktable-go/tonecore/internal/store"
)

func writeInputPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 100, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating input file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encoding input file: %v", err)
	}
}

func TestRun_BilateralCompletesAndCheckpoints(t *testing.T) {
	baseDir := t.TempDir()
	inputPath := filepath.Join(baseDir, "input.png")
	writeInputPNG(t, inputPath, 16, 16)

	fsStore, err := store.NewFSStore(baseDir)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	mgr := NewManager()
	j := mgr.CreateJob(Config{InputPath: inputPath, Engine: "bilateral", SigmaS: 8, SigmaR: 16, Detail: 1})

	if err := Run(context.Background(), mgr, fsStore, baseDir, j.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	finished, _ := mgr.GetJob(j.ID)
	if finished.State != StateCompleted {
		t.Fatalf("expected state completed, got %s", finished.State)
	}
	if finished.Stage != StageDone {
		t.Fatalf("expected stage done, got %s", finished.Stage)
	}
	if _, err := os.Stat(finished.OutputPath); err != nil {
		t.Fatalf("output file missing: %v", err)
	}

	checkpoint, err := fsStore.LoadCheckpoint(j.ID)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if checkpoint.OutputPath != finished.OutputPath {
		t.Errorf("checkpoint output path mismatch: %s vs %s", checkpoint.OutputPath, finished.OutputPath)
	}
}

func TestRun_UnknownEngineMarksFailed(t *testing.T) {
	baseDir := t.TempDir()
	inputPath := filepath.Join(baseDir, "input.png")
	writeInputPNG(t, inputPath, 8, 8)

	mgr := NewManager()
	j := mgr.CreateJob(Config{InputPath: inputPath, Engine: "optimizer"})

	err := Run(context.Background(), mgr, nil, baseDir, j.ID)
	if err == nil {
		t.Fatal("expected error for unknown engine")
	}

	finished, _ := mgr.GetJob(j.ID)
	if finished.State != StateFailed {
		t.Fatalf("expected state failed, got %s", finished.State)
	}
	if finished.Error == "" {
		t.Error("expected error message to be recorded")
	}
}

func TestRun_MissingInputMarksFailed(t *testing.T) {
	baseDir := t.TempDir()

	mgr := NewManager()
	j := mgr.CreateJob(Config{InputPath: filepath.Join(baseDir, "nonexistent.png"), Engine: "bilateral"})

	err := Run(context.Background(), mgr, nil, baseDir, j.ID)
	if err == nil {
		t.Fatal("expected error for missing input")
	}

	finished, _ := mgr.GetJob(j.ID)
	if finished.State != StateFailed {
		t.Fatalf("expected state failed, got %s", finished.State)
	}
}

func TestRun_CancelledBeforeProcessing(t *testing.T) {
	baseDir := t.TempDir()
	inputPath := filepath.Join(baseDir, "input.png")
	writeInputPNG(t, inputPath, 8, 8)

	mgr := NewManager()
	j := mgr.CreateJob(Config{InputPath: inputPath, Engine: "bilateral"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, mgr, nil, baseDir, j.ID)
	if err == nil {
		t.Fatal("expected cancellation error")
	}

	finished, _ := mgr.GetJob(j.ID)
	if finished.State != StateCancelled {
		t.Fatalf("expected state cancelled, got %s", finished.State)
	}
}

func TestRun_NoCheckpointStoreSkipsCheckpointing(t *testing.T) {
	baseDir := t.TempDir()
	inputPath := filepath.Join(baseDir, "input.png")
	writeInputPNG(t, inputPath, 8, 8)

	mgr := NewManager()
	j := mgr.CreateJob(Config{InputPath: inputPath, Engine: "bilateral", SigmaS: 4, SigmaR: 8})

	if err := Run(context.Background(), mgr, nil, baseDir, j.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	finished, _ := mgr.GetJob(j.ID)
	if finished.State != StateCompleted {
		t.Fatalf("expected state completed, got %s", finished.State)
	}
}
