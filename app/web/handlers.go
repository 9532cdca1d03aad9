package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/jaimetur/photomigrator-web/app/config"
	"github.com/jaimetur/photomigrator-web/app/engine"
	"github.com/jaimetur/photomigrator-web/app/store"
)

// indexData holds data for the dashboard template
type indexData struct {
	Jobs        []store.Job
	Hostname    string
	Version     string
	CurrentYear int
}

// handleIndex renders the dashboard with submission forms and recent jobs
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.render(w, "index.html", indexData{
		Jobs:        s.store.List(20),
		Hostname:    s.hostname,
		Version:     s.version,
		CurrentYear: time.Now().Year(),
	})
}

// jobData holds data for the job detail template
type jobData struct {
	Job      store.Job
	Hostname string
	Version  string
}

// handleJobPage renders the job detail page with the polling log viewer
func (s *Server) handleJobPage(w http.ResponseWriter, r *http.Request) {
	job, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	s.render(w, "job.html", jobData{Job: job, Hostname: s.hostname, Version: s.version})
}

// handleFormSubmit handles HTML form job submissions and redirects to the
// job page. Checkbox values are parsed once here, absent means false.
func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	mode := r.PathValue("mode")
	switch mode {
	case engine.ModeGoogleTakeout:
		req := GoogleTakeoutRequest{
			TakeoutFolder:     strings.TrimSpace(r.FormValue("takeout_folder")),
			OutputFolder:      strings.TrimSpace(r.FormValue("output_folder")),
			SkipGpthTool:      formBool(r, "google_skip_gpth_tool"),
			KeepTakeoutFolder: formBool(r, "google_keep_takeout_folder"),
			RemoveDuplicates:  formBool(r, "google_remove_duplicates_files"),
		}
		if err := req.validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.submitJob(w, r, mode, req.params(), true)
	case engine.ModeAutomaticMigration:
		parallel := formBool(r, "parallel_migration")
		req := AutomaticMigrationRequest{
			Source:            strings.TrimSpace(r.FormValue("source")),
			Target:            strings.TrimSpace(r.FormValue("target")),
			MoveAssets:        formBool(r, "move_assets"),
			ParallelMigration: &parallel,
		}
		if err := req.validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.submitJob(w, r, mode, req.params(), true)
	default:
		http.Error(w, "Unknown mode", http.StatusNotFound)
	}
}

// formBool parses a checkbox-style form value, absent or unparsable is false
func formBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.FormValue(key))
	return err == nil && v
}

// configData holds data for the config page template
type configData struct {
	Sections   []config.Section
	ConfigPath string
	Writable   bool
	Saved      bool
	Hostname   string
	Version    string
}

// handleConfigPage renders the merged configuration as an editable form
func (s *Server) handleConfigPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "config.html", configData{
		Sections:   s.cfgFile.Sections(),
		ConfigPath: s.cfgFile.Path,
		Writable:   s.cfgFile.Writable(),
		Saved:      r.URL.Query().Get("saved") == "1",
		Hostname:   s.hostname,
		Version:    s.version,
	})
}

// handleConfigSave rebuilds the config file from the posted form fields
func (s *Server) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	form := map[string]string{}
	for key, values := range r.PostForm {
		if !strings.HasPrefix(key, "v"+config.FormDelim) || len(values) == 0 {
			continue
		}
		form[key] = values[0]
	}

	if err := s.cfgFile.Save(form); err != nil {
		log.Printf("[WARN] config save failed: %v", err)
		http.Error(w, "Cannot write config: "+err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/config?saved=1", http.StatusSeeOther)
}
