package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/jaimetur/photomigrator-web/app/config"
	"github.com/jaimetur/photomigrator-web/app/engine"
	"github.com/jaimetur/photomigrator-web/app/service"
	"github.com/jaimetur/photomigrator-web/app/store"
)

// GoogleTakeoutRequest is the typed body for google-takeout submissions.
// Booleans are parsed once here, the engine gets string-typed parameters.
type GoogleTakeoutRequest struct {
	TakeoutFolder     string `json:"takeout_folder"`
	OutputFolder      string `json:"output_folder,omitempty"`
	AlbumsStructure   string `json:"google_albums_folders_structure,omitempty"`
	NoAlbumsStructure string `json:"google_no_albums_folders_structure,omitempty"`
	SkipGpthTool      bool   `json:"google_skip_gpth_tool,omitempty"`
	KeepTakeoutFolder bool   `json:"google_keep_takeout_folder,omitempty"`
	RemoveDuplicates  bool   `json:"google_remove_duplicates_files,omitempty"`
}

func (r GoogleTakeoutRequest) validate() error {
	if r.TakeoutFolder == "" {
		return fmt.Errorf("takeout_folder is required")
	}
	return nil
}

func (r GoogleTakeoutRequest) params() map[string]string {
	res := map[string]string{
		"google-takeout":             r.TakeoutFolder,
		"google-skip-gpth-tool":      strconv.FormatBool(r.SkipGpthTool),
		"google-keep-takeout-folder": strconv.FormatBool(r.KeepTakeoutFolder),
	}
	if r.OutputFolder != "" {
		res["output-folder"] = r.OutputFolder
	}
	if r.AlbumsStructure != "" {
		res["google-albums-folders-structure"] = r.AlbumsStructure
	}
	if r.NoAlbumsStructure != "" {
		res["google-no-albums-folders-structure"] = r.NoAlbumsStructure
	}
	if r.RemoveDuplicates {
		res["google-remove-duplicates-files"] = "true"
	}
	return res
}

// AutomaticMigrationRequest is the typed body for automatic-migration
// submissions, source and target are service identifiers or paths
// (e.g. immich-1, synology-2, /photos/export).
type AutomaticMigrationRequest struct {
	Source            string `json:"source"`
	Target            string `json:"target"`
	MoveAssets        bool   `json:"move_assets,omitempty"`
	ParallelMigration *bool  `json:"parallel_migration,omitempty"` // defaults to true
}

func (r AutomaticMigrationRequest) validate() error {
	if r.Source == "" || r.Target == "" {
		return fmt.Errorf("source and target are required")
	}
	return nil
}

func (r AutomaticMigrationRequest) params() map[string]string {
	parallel := true
	if r.ParallelMigration != nil {
		parallel = *r.ParallelMigration
	}
	return map[string]string{
		"source":             r.Source,
		"target":             r.Target,
		"move-assets":        strconv.FormatBool(r.MoveAssets),
		"parallel-migration": strconv.FormatBool(parallel),
	}
}

// APIJob is a job in JSON API responses
type APIJob struct {
	ID            string    `json:"id"`
	Mode          string    `json:"mode"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LogLinesCount int       `json:"log_lines_count"`
	Error         string    `json:"error,omitempty"`
	ResultSummary string    `json:"result_summary,omitempty"`
}

func toAPIJob(job store.Job) APIJob {
	return APIJob{
		ID:            job.ID,
		Mode:          job.Mode,
		Status:        string(job.Status),
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
		LogLinesCount: len(job.LogLines),
		Error:         job.Error,
		ResultSummary: job.ResultSummary,
	}
}

// handleAPISubmit accepts a JSON execution request for the mode in the
// path, creates a pending job and enqueues it
func (s *Server) handleAPISubmit(w http.ResponseWriter, r *http.Request) {
	mode := r.PathValue("mode")
	params, err := decodeSubmission(mode, r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.submitJob(w, r, mode, params, false)
}

// decodeSubmission parses the mode-specific typed request body
func decodeSubmission(mode string, r *http.Request) (map[string]string, error) {
	switch mode {
	case engine.ModeGoogleTakeout:
		var req GoogleTakeoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		if err := req.validate(); err != nil {
			return nil, err
		}
		return req.params(), nil
	case engine.ModeAutomaticMigration:
		var req AutomaticMigrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		if err := req.validate(); err != nil {
			return nil, err
		}
		return req.params(), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// submitJob creates the job record and enqueues the execution request.
// With redirect set the response is a see-other to the job page (form
// flow), otherwise a JSON {job_id}. A failed enqueue backs the record
// out: job state past pending is owned by the worker alone.
func (s *Server) submitJob(w http.ResponseWriter, r *http.Request, mode string, params map[string]string, redirect bool) {
	job := s.store.Create(mode)
	if err := s.worker.Enqueue(service.Request{JobID: job.ID, Mode: mode, Params: params}); err != nil {
		log.Printf("[WARN] can't enqueue job %s: %v", job.ID, err)
		s.store.Remove(job.ID)
		s.writeJSONError(w, http.StatusServiceUnavailable, "job queue unavailable")
		return
	}
	if redirect {
		http.Redirect(w, r, "/job/"+job.ID, http.StatusSeeOther)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"job_id": job.ID})
}

// handleAPIList returns recent jobs, most recent first
func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	jobs := s.store.List(limit)
	res := make([]APIJob, 0, len(jobs))
	for _, job := range jobs {
		res = append(res, toAPIJob(job))
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleAPIJob returns a single job summary
func (s *Server) handleAPIJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, toAPIJob(job))
}

// handleAPIJobLogs returns the full ordered log line sequence, for polling
func (s *Server) handleAPIJobLogs(w http.ResponseWriter, r *http.Request) {
	job, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job_id": job.ID, "lines": job.LogLines})
}

// APIConfigOption is a config key in JSON responses, sensitive values masked
type APIConfigOption struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Sensitive bool   `json:"sensitive"`
	Hint      string `json:"hint,omitempty"`
}

// APIConfigSection is a config section in JSON responses
type APIConfigSection struct {
	Name    string            `json:"name"`
	Hint    string            `json:"hint,omitempty"`
	Options []APIConfigOption `json:"options"`
}

// handleAPIConfig returns the merged, registry-ordered config view.
// Sensitive values are never sent over the JSON API.
func (s *Server) handleAPIConfig(w http.ResponseWriter, _ *http.Request) {
	sections := s.cfgFile.Sections()
	res := make([]APIConfigSection, 0, len(sections))
	for _, sect := range sections {
		apiSect := APIConfigSection{Name: sect.Name, Hint: sect.Hint, Options: []APIConfigOption{}}
		for _, opt := range sect.Options {
			value := opt.Value
			sensitive := config.IsSensitive(opt.Key)
			if sensitive && value != "" {
				value = "*****"
			}
			apiSect.Options = append(apiSect.Options, APIConfigOption{
				Key: opt.Key, Value: value, Sensitive: sensitive, Hint: opt.Hint})
		}
		res = append(res, apiSect)
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleAPIConfigSave replaces the config file from a JSON map of form
// fields ("v||Section||KEY" -> value)
func (s *Server) handleAPIConfigSave(w http.ResponseWriter, r *http.Request) {
	var form map[string]string
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.cfgFile.Save(form); err != nil {
		log.Printf("[WARN] config save failed: %v", err)
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Printf("[WARN] failed to encode JSON error response: %v", err)
	}
}
