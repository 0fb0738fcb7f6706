package job

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/darktable-go/tonecore/internal/store"
	"github.com/darktable-go/tonecore/internal/tile"
)

// Run executes a single job's pipeline: load input, run the configured
// engine, encode the output, optionally checkpoint, and record each
// transition to baseDir's trace log. There is no iteration count to poll —
// each stage fires exactly once, so progress is reported as discrete stage
// transitions rather than a ticker sampling an evolving cost.
func Run(ctx context.Context, mgr *Manager, checkpointStore store.Store, baseDir, jobID string) error {
	j, exists := mgr.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := mgr.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "engine", j.Config.Engine, "input", j.Config.InputPath)

	traceWriter, err := store.NewTraceWriter(baseDir, jobID, false)
	if err != nil {
		slog.Warn("Failed to create trace writer", "job_id", jobID, "error", err)
	} else {
		defer func() {
			if err := traceWriter.Close(); err != nil {
				slog.Warn("Failed to close trace writer", "job_id", jobID, "error", err)
			}
		}()
	}

	if err := advance(ctx, mgr, traceWriter, jobID, StageLoading, ""); err != nil {
		return failOrCancel(mgr, jobID, err)
	}

	in, err := loadInput(j.Config.InputPath)
	if err != nil {
		return markFailed(mgr, jobID, fmt.Errorf("loading input: %w", err))
	}

	select {
	case <-ctx.Done():
		return markCancelled(mgr, jobID)
	default:
	}

	if err := advance(ctx, mgr, traceWriter, jobID, StageProcessing, ""); err != nil {
		return failOrCancel(mgr, jobID, err)
	}

	out, err := runEngine(j.Config, in)
	if err != nil {
		return markFailed(mgr, jobID, fmt.Errorf("running engine %q: %w", j.Config.Engine, err))
	}

	select {
	case <-ctx.Done():
		return markCancelled(mgr, jobID)
	default:
	}

	if err := advance(ctx, mgr, traceWriter, jobID, StageEncoding, ""); err != nil {
		return failOrCancel(mgr, jobID, err)
	}

	outputPath := filepath.Join(baseDir, "jobs", jobID, "output.png")
	if err := encodeOutput(outputPath, out); err != nil {
		return markFailed(mgr, jobID, fmt.Errorf("encoding output: %w", err))
	}

	if checkpointStore != nil {
		if err := advance(ctx, mgr, traceWriter, jobID, StageCheckpoint, ""); err != nil {
			return failOrCancel(mgr, jobID, err)
		}
		checkpoint := store.NewCheckpoint(jobID, string(StageCheckpoint), outputPath, j.Config)
		if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
			slog.Warn("Failed to save checkpoint", "job_id", jobID, "error", err)
		}
	}

	endTime := time.Now()
	if err := mgr.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Stage = StageDone
		j.OutputPath = outputPath
		j.EndTime = &endTime
	}); err != nil {
		return err
	}

	if traceWriter != nil {
		traceWriter.Write(store.TraceEntry{Stage: string(StageDone), Timestamp: endTime})
		traceWriter.Flush()
	}

	mgr.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCompleted,
		Stage:     StageDone,
		Timestamp: endTime,
	})

	slog.Info("Job completed", "job_id", jobID, "output", outputPath)
	return nil
}

// advance moves a job to the given stage, records it to the trace, and
// broadcasts a progress event.
func advance(ctx context.Context, mgr *Manager, tw *store.TraceWriter, jobID string, stage Stage, detail string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := mgr.UpdateJob(jobID, func(j *Job) { j.Stage = stage }); err != nil {
		return err
	}

	if tw != nil {
		if err := tw.Write(store.TraceEntry{Stage: string(stage), Timestamp: time.Now(), Detail: detail}); err != nil {
			slog.Warn("Failed to write trace entry", "job_id", jobID, "stage", stage, "error", err)
		}
	}

	j, _ := mgr.GetJob(jobID)
	mgr.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     j.State,
		Stage:     stage,
		Timestamp: time.Now(),
	})
	return nil
}

// failOrCancel routes a stage-transition error to the cancelled path when
// it originates from context cancellation, and to the failed path
// otherwise.
func failOrCancel(mgr *Manager, jobID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return markCancelled(mgr, jobID)
	}
	return markFailed(mgr, jobID, err)
}

func markFailed(mgr *Manager, jobID string, cause error) error {
	endTime := time.Now()
	mgr.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = cause.Error()
		j.EndTime = &endTime
	})
	mgr.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateFailed, Stage: StageDone, Timestamp: endTime})
	slog.Error("Job failed", "job_id", jobID, "error", cause)
	return cause
}

func markCancelled(mgr *Manager, jobID string) error {
	endTime := time.Now()
	mgr.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	mgr.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateCancelled, Stage: StageDone, Timestamp: endTime})
	slog.Info("Job cancelled", "job_id", jobID)
	return context.Canceled
}

func loadInput(path string) (*tile.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return imageToBuffer(img), nil
}

func encodeOutput(path string, buf *tile.Buffer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, bufferToImage(buf))
}
