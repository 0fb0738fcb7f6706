package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/darktable-go/tonecore/internal/job"
	"github.com/darktable-go/tonecore/internal/store"
)

// Server is the HTTP+SSE front end over a job.Manager. It exposes a JSON
// API for submitting and polling retouch/heal/bilateral jobs, a progress
// stream per job, and a small HTML dashboard.
type Server struct {
	mgr     *job.Manager
	store   store.Store
	baseDir string
	addr    string
	server  *http.Server
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewServer creates a new HTTP server. baseDir is where job input/output
// files and trace logs live; if checkpointStore is nil, checkpointing is
// disabled for jobs run through this server.
func NewServer(addr, baseDir string, checkpointStore store.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		mgr:     job.NewManager(),
		store:   checkpointStore,
		baseDir: baseDir,
		addr:    addr,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/jobs/", s.handleJobDetail)
	mux.HandleFunc("/create", s.handleCreatePage)

	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	handler := s.loggingMiddleware(s.corsMiddleware(mux))

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: handler,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server, cancelling any in-flight jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")

	s.cancel()

	if running := s.mgr.GetRunningJobs(); len(running) > 0 {
		slog.Warn("Shutting down with jobs still running", "count", len(running))
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	switch {
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetJobStatus(w, r, jobID)
	case parts[1] == "output.png":
		s.handleGetOutputImage(w, r, jobID)
	case parts[1] == "diff.png":
		s.handleGetDiffImage(w, r, jobID)
	case parts[1] == "input.png":
		s.handleGetInputImage(w, r, jobID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config job.Config
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if config.InputPath == "" {
		http.Error(w, "inputPath is required", http.StatusBadRequest)
		return
	}
	if config.Engine == "" {
		http.Error(w, "engine is required", http.StatusBadRequest)
		return
	}

	j := s.mgr.CreateJob(config)

	go func() {
		if err := job.Run(s.ctx, s.mgr, s.store, s.baseDir, j.ID); err != nil {
			slog.Debug("job run returned error", "job_id", j.ID, "error", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(j)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.mgr.ListJobs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	j, exists := s.mgr.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if j.EndTime != nil {
		elapsed = j.EndTime.Sub(j.StartTime)
	} else {
		elapsed = time.Since(j.StartTime)
	}

	response := map[string]interface{}{
		"id":         j.ID,
		"state":      j.State,
		"stage":      j.Stage,
		"config":     j.Config,
		"outputPath": j.OutputPath,
		"elapsed":    elapsed.Seconds(),
		"startTime":  j.StartTime,
		"endTime":    j.EndTime,
		"error":      j.Error,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleJobStream handles GET /api/v1/jobs/:id/stream
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request, jobID string) {
	s.mgr.HandleStream(w, r, jobID)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
