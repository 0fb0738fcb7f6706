package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/darktable-go/tonecore/internal/job"
	"github.com/darktable-go/tonecore/internal/store"
	"github.com/spf13/cobra"
)

var (
	resumeServerURL string
	resumeLocalMode bool
	resumeDataDir   string
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Re-run a job from its saved checkpoint config",
	Long: `Re-runs a job using the configuration recorded in its checkpoint. Since
every engine is a pure single-shot function, there is no partial solver
state to resume from — this just replays the job's original config as a
fresh run, either against a server or locally.

Examples:
  # Resume via server
  tonecore resume abc123 --server-url http://localhost:8080

  # Resume locally
  tonecore resume abc123 --local --data-dir ./data`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeServerURL, "server-url", "http://localhost:8080", "Server URL for remote resume")
	resumeCmd.Flags().BoolVar(&resumeLocalMode, "local", false, "Run resume locally instead of via server")
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for checkpoints and job output")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	checkpointID := args[0]

	if resumeLocalMode {
		return runResumeLocal(checkpointID)
	}
	return runResumeServer(checkpointID)
}

// runResumeServer loads the checkpoint's config locally and submits it as a
// new job on the server.
func runResumeServer(checkpointID string) error {
	checkpointStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	checkpoint, err := checkpointStore.LoadCheckpoint(checkpointID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	body, err := json.Marshal(checkpoint.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/jobs", resumeServerURL)
	slog.Info("Resuming job via server", "checkpoint_id", checkpointID, "url", url)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var created job.Job
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Job resumed as new job %s (state %s)\n", created.ID, created.State)
	fmt.Printf("Use 'tonecore status %s' to monitor progress\n", created.ID)
	return nil
}

// runResumeLocal loads the checkpoint's config and reruns the job pipeline
// locally under a fresh job ID.
func runResumeLocal(checkpointID string) error {
	checkpointStore, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	checkpoint, err := checkpointStore.LoadCheckpoint(checkpointID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := checkpoint.Validate(); err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}

	fmt.Printf("Loaded checkpoint:\n")
	fmt.Printf("  Job ID: %s\n", checkpoint.JobID)
	fmt.Printf("  Stage: %s\n", checkpoint.Stage)
	fmt.Printf("  Engine: %s\n", checkpoint.Config.Engine)
	fmt.Printf("  Checkpoint time: %s\n\n", checkpoint.Timestamp.Format(time.RFC3339))

	mgr := job.NewManager()
	j := mgr.CreateJob(checkpoint.Config)

	fmt.Printf("Resuming as job %s...\n", j.ID)
	start := time.Now()
	if err := job.Run(context.Background(), mgr, checkpointStore, resumeDataDir, j.ID); err != nil {
		return fmt.Errorf("resume run failed: %w", err)
	}
	elapsed := time.Since(start)

	finished, _ := mgr.GetJob(j.ID)
	fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Output: %s\n", finished.OutputPath)
	return nil
}
