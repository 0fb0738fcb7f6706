package store

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCheckpoint_JSONSerialization(t *testing.T) {
	original := &Checkpoint{
		JobID:      "test-job-123",
		OutputPath: "./data/jobs/test-job-123/output.png",
		Stage:      "completed",
		Timestamp:  time.Date(2025, 10, 23, 10, 30, 0, 0, time.UTC),
		Config: JobConfig{
			InputPath: "assets/test.png",
			Engine:    "wavelet",
			NumScales: 4,
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal checkpoint: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshaled JSON is empty")
	}

	var restored Checkpoint
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal checkpoint: %v", err)
	}

	if restored.JobID != original.JobID {
		t.Errorf("JobID mismatch: expected %s, got %s", original.JobID, restored.JobID)
	}
	if restored.OutputPath != original.OutputPath {
		t.Errorf("OutputPath mismatch: expected %s, got %s", original.OutputPath, restored.OutputPath)
	}
	if restored.Stage != original.Stage {
		t.Errorf("Stage mismatch: expected %s, got %s", original.Stage, restored.Stage)
	}
	if !restored.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp mismatch: expected %v, got %v", original.Timestamp, restored.Timestamp)
	}
	if restored.Config.InputPath != original.Config.InputPath {
		t.Errorf("Config.InputPath mismatch: expected %s, got %s", original.Config.InputPath, restored.Config.InputPath)
	}
	if restored.Config.Engine != original.Config.Engine {
		t.Errorf("Config.Engine mismatch: expected %s, got %s", original.Config.Engine, restored.Config.Engine)
	}
	if restored.Config.NumScales != original.Config.NumScales {
		t.Errorf("Config.NumScales mismatch: expected %d, got %d", original.Config.NumScales, restored.Config.NumScales)
	}
}

func TestCheckpoint_JSONIndented(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:     "test-job",
		Stage:     "running",
		Timestamp: time.Now(),
		Config:    JobConfig{InputPath: "test.png", Engine: "bilateral", SigmaS: 8, SigmaR: 16},
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal with indent: %v", err)
	}

	var restored Checkpoint
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal indented JSON: %v", err)
	}
	if restored.JobID != checkpoint.JobID {
		t.Errorf("JobID mismatch after indented serialization")
	}
}

func TestCheckpoint_Validate_Valid(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:     "valid-job",
		Stage:     "running",
		Timestamp: time.Now(),
		Config:    JobConfig{InputPath: "test.png", Engine: "heal"},
	}
	if err := checkpoint.Validate(); err != nil {
		t.Errorf("Valid checkpoint should not have validation error: %v", err)
	}
}

func TestCheckpoint_Validate_EmptyJobID(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:     "",
		Stage:     "running",
		Timestamp: time.Now(),
		Config:    JobConfig{InputPath: "test.png", Engine: "heal"},
	}
	err := checkpoint.Validate()
	if err == nil {
		t.Fatal("Expected validation error for empty JobID")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("Expected ValidationError, got %T", err)
	}
}

func TestCheckpoint_Validate_EmptyStage(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:     "test",
		Stage:     "",
		Timestamp: time.Now(),
		Config:    JobConfig{InputPath: "test.png", Engine: "heal"},
	}
	if err := checkpoint.Validate(); err == nil {
		t.Fatal("Expected validation error for empty Stage")
	}
}

func TestCheckpoint_Validate_ZeroTimestamp(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:     "test",
		Stage:     "running",
		Timestamp: time.Time{},
		Config:    JobConfig{InputPath: "test.png", Engine: "heal"},
	}
	if err := checkpoint.Validate(); err == nil {
		t.Fatal("Expected validation error for zero timestamp")
	}
}

func TestCheckpoint_Validate_InvalidConfig(t *testing.T) {
	testCases := []struct {
		name   string
		config JobConfig
	}{
		{"empty inputPath", JobConfig{InputPath: "", Engine: "heal"}},
		{"unknown engine", JobConfig{InputPath: "test.png", Engine: "optimizer"}},
		{"empty engine", JobConfig{InputPath: "test.png", Engine: ""}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			checkpoint := &Checkpoint{JobID: "test", Stage: "running", Timestamp: time.Now(), Config: tc.config}
			if err := checkpoint.Validate(); err == nil {
				t.Fatalf("Expected validation error for %s", tc.name)
			}
		})
	}
}

func TestCheckpoint_IsCompatible_Compatible(t *testing.T) {
	checkpoint := &Checkpoint{Config: JobConfig{InputPath: "test.png", Engine: "wavelet"}}
	config := JobConfig{InputPath: "test.png", Engine: "wavelet"}
	if err := checkpoint.IsCompatible(config); err != nil {
		t.Errorf("Compatible configs should not return error: %v", err)
	}
}

func TestCheckpoint_IsCompatible_DifferentInputPath(t *testing.T) {
	checkpoint := &Checkpoint{Config: JobConfig{InputPath: "test1.png", Engine: "wavelet"}}
	config := JobConfig{InputPath: "test2.png", Engine: "wavelet"}
	err := checkpoint.IsCompatible(config)
	if err == nil {
		t.Fatal("Expected compatibility error for different InputPath")
	}
	if _, ok := err.(*CompatibilityError); !ok {
		t.Errorf("Expected CompatibilityError, got %T", err)
	}
}

func TestCheckpoint_IsCompatible_DifferentEngine(t *testing.T) {
	checkpoint := &Checkpoint{Config: JobConfig{InputPath: "test.png", Engine: "wavelet"}}
	config := JobConfig{InputPath: "test.png", Engine: "bilateral"}
	if err := checkpoint.IsCompatible(config); err == nil {
		t.Fatal("Expected compatibility error for different Engine")
	}
}

func TestCheckpointInfo_FromCheckpoint(t *testing.T) {
	checkpoint := &Checkpoint{
		JobID:      "test-job",
		OutputPath: "out.png",
		Stage:      "completed",
		Timestamp:  time.Now(),
		Config:     JobConfig{InputPath: "test.png", Engine: "wavelet"},
	}
	info := checkpoint.ToInfo()

	if info.JobID != checkpoint.JobID {
		t.Errorf("JobID mismatch: expected %s, got %s", checkpoint.JobID, info.JobID)
	}
	if info.Stage != checkpoint.Stage {
		t.Errorf("Stage mismatch: expected %s, got %s", checkpoint.Stage, info.Stage)
	}
	if !info.Timestamp.Equal(checkpoint.Timestamp) {
		t.Errorf("Timestamp mismatch")
	}
	if info.Engine != checkpoint.Config.Engine {
		t.Errorf("Engine mismatch: expected %s, got %s", checkpoint.Config.Engine, info.Engine)
	}
	if info.InputPath != checkpoint.Config.InputPath {
		t.Errorf("InputPath mismatch: expected %s, got %s", checkpoint.Config.InputPath, info.InputPath)
	}
	if info.OutputPath != checkpoint.OutputPath {
		t.Errorf("OutputPath mismatch: expected %s, got %s", checkpoint.OutputPath, info.OutputPath)
	}
}

func TestNewCheckpoint(t *testing.T) {
	jobID := "test-job"
	config := JobConfig{InputPath: "test.png", Engine: "wavelet", NumScales: 3}

	checkpoint := NewCheckpoint(jobID, "completed", "out.png", config)

	if checkpoint.JobID != jobID {
		t.Errorf("JobID mismatch: expected %s, got %s", jobID, checkpoint.JobID)
	}
	if checkpoint.Stage != "completed" {
		t.Errorf("Stage mismatch: expected completed, got %s", checkpoint.Stage)
	}
	if checkpoint.OutputPath != "out.png" {
		t.Errorf("OutputPath mismatch: expected out.png, got %s", checkpoint.OutputPath)
	}
	if checkpoint.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
}
