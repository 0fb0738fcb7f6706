package job

import (
	"testing"
	"time"
)

func TestManager_CreateJob(t *testing.T) {
	mgr := NewManager()

	config := Config{
		InputPath: "test.png",
		Engine:    "bilateral",
		SigmaS:    8,
		SigmaR:    16,
	}

	j := mgr.CreateJob(config)

	if j.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if j.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", j.State)
	}
	if j.Stage != StageLoading {
		t.Errorf("Initial stage should be loading, got %s", j.Stage)
	}
	if j.Config.InputPath != "test.png" {
		t.Errorf("Config not set correctly")
	}
}

func TestManager_GetJob(t *testing.T) {
	mgr := NewManager()

	j := mgr.CreateJob(Config{InputPath: "test.png", Engine: "bilateral"})

	retrieved, exists := mgr.GetJob(j.ID)
	if !exists {
		t.Error("Job should exist")
	}
	if retrieved.ID != j.ID {
		t.Error("Retrieved wrong job")
	}

	_, exists = mgr.GetJob("nonexistent")
	if exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestManager_ListJobs(t *testing.T) {
	mgr := NewManager()

	if len(mgr.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	mgr.CreateJob(Config{InputPath: "test1.png", Engine: "bilateral"})
	mgr.CreateJob(Config{InputPath: "test2.png", Engine: "heal"})

	jobs := mgr.ListJobs()
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestManager_UpdateJob(t *testing.T) {
	mgr := NewManager()

	j := mgr.CreateJob(Config{InputPath: "test.png", Engine: "bilateral"})

	err := mgr.UpdateJob(j.ID, func(j *Job) {
		j.State = StateRunning
		j.Stage = StageProcessing
	})
	if err != nil {
		t.Errorf("Update should succeed: %v", err)
	}

	updated, _ := mgr.GetJob(j.ID)
	if updated.State != StateRunning {
		t.Error("State should be updated")
	}
	if updated.Stage != StageProcessing {
		t.Error("Stage should be updated")
	}

	err = mgr.UpdateJob("nonexistent", func(j *Job) {})
	if err == nil {
		t.Error("Update of nonexistent job should fail")
	}
}

func TestManager_GetRunningJobs(t *testing.T) {
	mgr := NewManager()

	j1 := mgr.CreateJob(Config{InputPath: "a.png", Engine: "bilateral"})
	mgr.CreateJob(Config{InputPath: "b.png", Engine: "heal"})

	mgr.UpdateJob(j1.ID, func(j *Job) { j.State = StateRunning })

	running := mgr.GetRunningJobs()
	if len(running) != 1 {
		t.Fatalf("Expected 1 running job, got %d", len(running))
	}
	if running[0].ID != j1.ID {
		t.Error("Wrong job marked running")
	}
}

func TestManager_ThreadSafety(t *testing.T) {
	mgr := NewManager()

	j := mgr.CreateJob(Config{InputPath: "test.png", Engine: "bilateral"})

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(iteration int) {
			mgr.UpdateJob(j.ID, func(j *Job) {
				j.Stage = StageProcessing
				time.Sleep(1 * time.Millisecond)
			})
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	_, exists := mgr.GetJob(j.ID)
	if !exists {
		t.Error("Job should still exist after concurrent updates")
	}
}
