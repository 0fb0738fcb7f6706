package store

import (
	"fmt"
	"time"
)

// JobConfig holds configuration for a retouch/heal job (checkpoint copy).
// This avoids an import cycle with the job package.
type JobConfig struct {
	InputPath string `json:"inputPath"`
	Engine    string `json:"engine"` // bilateral, heal, wavelet

	// Bilateral / Gaussian
	SigmaS float64 `json:"sigmaS,omitempty"`
	SigmaR float64 `json:"sigmaR,omitempty"`
	Detail float64 `json:"detail,omitempty"`

	// Heal
	MaskPath string `json:"maskPath,omitempty"`
	OffsetX  int    `json:"offsetX,omitempty"`
	OffsetY  int    `json:"offsetY,omitempty"`

	// Wavelet
	NumScales      int     `json:"numScales,omitempty"`
	CurrScale      int     `json:"currScale,omitempty"`
	MergeFromScale int     `json:"mergeFromScale,omitempty"`
	LevelsLeft     float64 `json:"levelsLeft,omitempty"`
	LevelsMiddle   float64 `json:"levelsMiddle,omitempty"`
	LevelsRight    float64 `json:"levelsRight,omitempty"`
	AutoLevels     bool    `json:"autoLevels,omitempty"`

	// Wavelet: the single retouch shape applied by this job. Algorithm
	// selects clone/heal/blur/fill; ShapeScaleIndex picks the 0-based band
	// it lives on (see shape.Shape.ScaleIndex).
	Algorithm       string  `json:"algorithm,omitempty"` // clone, heal, blur, fill
	ShapeScaleIndex int     `json:"shapeScaleIndex,omitempty"`
	Opacity         float64 `json:"opacity,omitempty"`

	// Blur algorithm
	BlurType   string  `json:"blurType,omitempty"` // gaussian, bilateral
	BlurRadius float64 `json:"blurRadius,omitempty"`

	// Fill algorithm
	FillMode       string     `json:"fillMode,omitempty"` // color, erase
	FillColor      [3]float32 `json:"fillColor,omitempty"`
	FillBrightness float32    `json:"fillBrightness,omitempty"`

	CheckpointInterval int `json:"checkpointInterval,omitempty"` // checkpoint every N seconds (0 = disabled)
}

// Checkpoint is a persisted record of a completed (or in-flight) job. It is
// read back by `tonecore resume`, which replays the recorded Config as a new
// job under a fresh ID: a job's engines are pure functions of their input,
// so a checkpoint need only record that the output was produced and where,
// not any internal solver state to continue from.
type Checkpoint struct {
	JobID string `json:"jobId"`

	// OutputPath is where the processed image was written; empty if the
	// job had not completed when this checkpoint was taken.
	OutputPath string `json:"outputPath,omitempty"`

	// Stage records the last pipeline stage reached when this checkpoint
	// was taken (see job.Stage).
	Stage string `json:"stage"`

	Timestamp time.Time `json:"timestamp"`

	Config JobConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without loading the
// full record; used for listing checkpoints cheaply.
type CheckpointInfo struct {
	JobID      string    `json:"jobId"`
	Stage      string    `json:"stage"`
	Timestamp  time.Time `json:"timestamp"`
	Engine     string    `json:"engine"`
	InputPath  string    `json:"inputPath"`
	OutputPath string    `json:"outputPath,omitempty"`
}

// NewCheckpoint creates a checkpoint from job state.
func NewCheckpoint(jobID, stage, outputPath string, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:      jobID,
		OutputPath: outputPath,
		Stage:      stage,
		Timestamp:  time.Now(),
		Config:     config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:      c.JobID,
		Stage:      c.Stage,
		Timestamp:  c.Timestamp,
		Engine:     c.Config.Engine,
		InputPath:  c.Config.InputPath,
		OutputPath: c.OutputPath,
	}
}

// Validate checks that the checkpoint has the minimum data required to be
// useful; returns an error naming the first invalid field.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if c.Stage == "" {
		return &ValidationError{Field: "Stage", Reason: "cannot be empty"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.InputPath == "" {
		return &ValidationError{Field: "Config.InputPath", Reason: "cannot be empty"}
	}
	switch c.Config.Engine {
	case "bilateral", "heal", "wavelet":
	default:
		return &ValidationError{Field: "Config.Engine", Reason: fmt.Sprintf("unknown engine %q", c.Config.Engine)}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be reused for the given config
// (same input and engine): a checkpoint from a different engine or image is
// not a valid substitute for re-running the job.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.InputPath != config.InputPath {
		return &CompatibilityError{Field: "InputPath", Expected: c.Config.InputPath, Actual: config.InputPath}
	}
	if c.Config.Engine != config.Engine {
		return &CompatibilityError{Field: "Engine", Expected: c.Config.Engine, Actual: config.Engine}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
