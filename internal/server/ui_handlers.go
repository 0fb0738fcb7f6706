package server

import (
	"html/template"
	"net/http"
	"time"

	"github.com/darktable-go/tonecore/internal/job"
)

// Job-list/job-detail/create-form pages rendered with the standard
// library's html/template.

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><title>tonecore jobs</title></head>
<body>
<h1>Jobs</h1>
<p><a href="/create">New job</a></p>
<table border="1" cellpadding="4">
<tr><th>ID</th><th>Engine</th><th>State</th><th>Stage</th><th>Started</th></tr>
{{range .}}
<tr>
<td><a href="/jobs/{{.ID}}">{{.ID}}</a></td>
<td>{{.Config.Engine}}</td>
<td>{{.State}}</td>
<td>{{.Stage}}</td>
<td>{{.StartTime.Format "2006-01-02 15:04:05"}}</td>
</tr>
{{end}}
</table>
</body></html>`))

var jobDetailTmpl = template.Must(template.New("jobDetail").Parse(`<!DOCTYPE html>
<html><head><title>job {{.ID}}</title></head>
<body>
<h1>Job {{.ID}}</h1>
<p>Engine: {{.Config.Engine}}</p>
<p>State: {{.State}}</p>
<p>Stage: {{.Stage}}</p>
<p>Input: {{.Config.InputPath}}</p>
<p>Elapsed: {{.ElapsedSec}}s</p>
{{if .Error}}<p style="color:red">Error: {{.Error}}</p>{{end}}
{{if eq (print .State) "completed"}}
<img src="/api/v1/jobs/{{.ID}}/output.png" alt="output" style="max-width:512px">
{{end}}
<p><a href="/api/v1/jobs/{{.ID}}/stream">progress stream</a></p>
</body></html>`))

var jobNotFoundTmpl = template.Must(template.New("jobNotFound").Parse(`<!DOCTYPE html>
<html><body><h1>Job not found: {{.}}</h1></body></html>`))

var createJobTmpl = template.Must(template.New("createJob").Parse(`<!DOCTYPE html>
<html><head><title>new job</title></head>
<body>
<h1>New job</h1>
{{if .}}<p style="color:red">{{.}}</p>{{end}}
<form method="POST" action="/create">
<label>Input path: <input type="text" name="inputPath"></label><br>
<label>Engine:
<select name="engine">
<option value="bilateral">bilateral</option>
<option value="heal">heal</option>
<option value="wavelet">wavelet</option>
</select>
</label><br>
<label>Sigma S: <input type="text" name="sigmaS" value="8"></label><br>
<label>Sigma R: <input type="text" name="sigmaR" value="16"></label><br>
<label>Detail: <input type="text" name="detail" value="0"></label><br>
<label>Mask path: <input type="text" name="maskPath"></label><br>
<label>Offset X: <input type="text" name="offsetX" value="0"></label><br>
<label>Offset Y: <input type="text" name="offsetY" value="0"></label><br>
<button type="submit">Create</button>
</form>
</body></html>`))

// jobDetailView adds derived fields the template needs that aren't on
// job.Job directly.
type jobDetailView struct {
	*job.Job
	ElapsedSec float64
}

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	jobs := s.mgr.ListJobs()
	if err := indexTmpl.Execute(w, jobs); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// handleJobDetail handles GET /jobs/:id
func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Path[len("/jobs/"):]

	j, exists := s.mgr.GetJob(jobID)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !exists {
		if err := jobNotFoundTmpl.Execute(w, jobID); err != nil {
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
		}
		return
	}

	var elapsed float64
	if j.EndTime != nil {
		elapsed = j.EndTime.Sub(j.StartTime).Seconds()
	} else {
		elapsed = time.Since(j.StartTime).Seconds()
	}

	view := jobDetailView{Job: j, ElapsedSec: elapsed}
	if err := jobDetailTmpl.Execute(w, view); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// handleCreatePage handles GET /create and POST /create
func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleCreatePageGet(w, r)
	case http.MethodPost:
		s.handleCreatePagePost(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreatePageGet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	createJobTmpl.Execute(w, "")
}

// handleCreatePagePost processes the job creation form submission
func (s *Server) handleCreatePagePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		createJobTmpl.Execute(w, "Failed to parse form data")
		return
	}

	inputPath := r.FormValue("inputPath")
	engine := r.FormValue("engine")

	if inputPath == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		createJobTmpl.Execute(w, "Input path is required")
		return
	}
	if engine == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		createJobTmpl.Execute(w, "Engine is required")
		return
	}

	config := job.Config{
		InputPath: inputPath,
		Engine:    engine,
		SigmaS:    parseFloatOr(r.FormValue("sigmaS"), 8),
		SigmaR:    parseFloatOr(r.FormValue("sigmaR"), 16),
		Detail:    parseFloatOr(r.FormValue("detail"), 0),
		MaskPath:  r.FormValue("maskPath"),
		OffsetX:   parseIntOr(r.FormValue("offsetX"), 0),
		OffsetY:   parseIntOr(r.FormValue("offsetY"), 0),
	}

	j := s.mgr.CreateJob(config)

	go func() {
		if err := job.Run(s.ctx, s.mgr, s.store, s.baseDir, j.ID); err != nil {
			// already recorded on the job itself; nothing more to do here
			_ = err
		}
	}()

	http.Redirect(w, r, "/jobs/"+j.ID, http.StatusSeeOther)
}
