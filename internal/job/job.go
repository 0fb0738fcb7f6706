// Package job manages the lifecycle of long-running retouch/heal jobs: a
// job manager holding in-memory state, an SSE event broadcaster, and the
// worker that drives one job through its pipeline stages.
package job

import (
	"fmt"
	"sync"
	"time"

	"github.com/darktable-go/tonecore/internal/store"
	"github.com/google/uuid"
)

// State represents the current state of a job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Stage names a pipeline step within a running job. These engines are pure
// single-shot functions, so progress is reported as stage transitions
// rather than an evolving cost.
type Stage string

const (
	StageLoading    Stage = "loading"
	StageProcessing Stage = "engine-processing"
	StageEncoding   Stage = "encoding"
	StageCheckpoint Stage = "checkpointing"
	StageDone       Stage = "done"
)

// Config is an alias to avoid duplication with store.JobConfig.
type Config = store.JobConfig

// Job represents a single retouch/heal/bilateral processing job.
type Job struct {
	ID         string     `json:"id"`
	State      State      `json:"state"`
	Stage      Stage      `json:"stage"`
	Config     Config     `json:"config"`
	OutputPath string     `json:"outputPath,omitempty"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Manager manages the lifecycle of jobs.
type Manager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewManager creates a new Manager.
func NewManager() *Manager {
	return &Manager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new job with the given configuration.
func (m *Manager) CreateJob(config Config) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	j := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Stage:     StageLoading,
		Config:    config,
		StartTime: time.Now(),
	}

	m.jobs[j.ID] = j
	return j
}

// GetJob retrieves a job by ID.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	return j, ok
}

// ListJobs returns all jobs.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	return jobs
}

// UpdateJob atomically updates a job using the provided function.
func (m *Manager) UpdateJob(id string, updateFn func(*Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(j)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state.
func (m *Manager) GetRunningJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	running := make([]*Job, 0)
	for _, j := range m.jobs {
		if j.State == StateRunning {
			running = append(running, j)
		}
	}
	return running
}
