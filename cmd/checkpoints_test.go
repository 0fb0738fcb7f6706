package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/darktable-go/tonecore/internal/store"
)

func TestSelectCheckpointsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", Timestamp: now.AddDate(0, 0, -10)}, // 10 days old
		{JobID: "job2", Timestamp: now.AddDate(0, 0, -5)},  // 5 days old
		{JobID: "job3", Timestamp: now.AddDate(0, 0, -1)},  // 1 day old
		{JobID: "job4", Timestamp: now.AddDate(0, 0, -30)}, // 30 days old
	}

	// Delete checkpoints older than 7 days
	toDelete := selectCheckpointsForDeletion(infos, 0, 7)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}

	found10 := false
	found30 := false
	for _, info := range toDelete {
		if info.JobID == "job1" {
			found10 = true
		}
		if info.JobID == "job4" {
			found30 = true
		}
	}

	if !found10 || !found30 {
		t.Error("Expected job1 and job4 to be selected for deletion")
	}
}

func TestSelectCheckpointsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", Timestamp: now.AddDate(0, 0, -10)},
		{JobID: "job2", Timestamp: now.AddDate(0, 0, -5)},
		{JobID: "job3", Timestamp: now.AddDate(0, 0, -1)},
		{JobID: "job4", Timestamp: now.AddDate(0, 0, -30)},
	}

	// Keep only last 2 checkpoints
	toDelete := selectCheckpointsForDeletion(infos, 2, 0)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}

	found30 := false
	found10 := false
	for _, info := range toDelete {
		if info.JobID == "job4" {
			found30 = true
		}
		if info.JobID == "job1" {
			found10 = true
		}
	}

	if !found30 || !found10 {
		t.Error("Expected job4 and job1 to be selected for deletion (oldest)")
	}
}

func TestSelectCheckpointsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", Timestamp: now.AddDate(0, 0, -10)},
		{JobID: "job2", Timestamp: now.AddDate(0, 0, -5)},
		{JobID: "job3", Timestamp: now.AddDate(0, 0, -1)},
		{JobID: "job4", Timestamp: now.AddDate(0, 0, -30)},
		{JobID: "job5", Timestamp: now.AddDate(0, 0, -2)},
	}

	// Delete older than 7 days AND keep only last 3
	toDelete := selectCheckpointsForDeletion(infos, 3, 7)

	if len(toDelete) < 2 {
		t.Errorf("Expected at least 2 checkpoints to delete, got %d", len(toDelete))
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("Hello, World!")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}

	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

func TestCheckpointsListCommand_NoCheckpoints(t *testing.T) {
	tmpDir := t.TempDir()

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	err := runListCheckpoints(nil, nil)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestCheckpointsListCommand_WithCheckpoints(t *testing.T) {
	tmpDir := t.TempDir()

	checkpointStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	config := store.JobConfig{InputPath: "test.png", Engine: "bilateral", SigmaS: 8, SigmaR: 16}
	checkpoint := store.NewCheckpoint("test-job-id", "done", "test-out.png", config)

	if err := checkpointStore.SaveCheckpoint("test-job-id", checkpoint); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	if err := runListCheckpoints(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestCheckpointsCleanCommand_NoFlags(t *testing.T) {
	tmpDir := t.TempDir()

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	keepLast = 0
	olderThanDays = 0

	err := runCleanCheckpoints(nil, nil)
	if err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestCheckpointsCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()

	checkpointStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	config := store.JobConfig{InputPath: "test.png", Engine: "bilateral", SigmaS: 8, SigmaR: 16}
	checkpoint := store.NewCheckpoint("old-job", "done", "old-out.png", config)
	checkpoint.Timestamp = time.Now().AddDate(0, 0, -30)

	if err := checkpointStore.SaveCheckpoint("old-job", checkpoint); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	keepLast = 0
	olderThanDays = 7
	forceClean = true

	if err := runCleanCheckpoints(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if _, err := checkpointStore.LoadCheckpoint("old-job"); err == nil {
		t.Error("Expected checkpoint to be deleted")
	}
}
