// Package web implements the http server for the migrator: JSON API and
// HTML pages for submitting jobs, polling their logs and editing the
// configuration file.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v8"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/jaimetur/photomigrator-web/app/config"
	"github.com/jaimetur/photomigrator-web/app/service"
	"github.com/jaimetur/photomigrator-web/app/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// rate limit for job submissions, per remote address
var submitLimiter = tollbooth.NewLimiter(2, nil)

// Enqueuer accepts execution requests for the background worker
type Enqueuer interface {
	Enqueue(req service.Request) error
}

// Server represents the web server
type Server struct {
	store     *store.Jobs
	worker    Enqueuer
	cfgFile   *config.File
	templates *template.Template
	version   string
	hostname  string
}

// Config holds server configuration
type Config struct {
	Store      *store.Jobs
	Worker     Enqueuer
	ConfigFile *config.File
	Version    string
	Hostname   string
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil || cfg.Worker == nil || cfg.ConfigFile == nil {
		return nil, fmt.Errorf("web server initialization failed: store, worker and config file are required")
	}

	s := &Server{
		store:    cfg.Store,
		worker:   cfg.Worker,
		cfgFile:  cfg.ConfigFile,
		version:  cfg.Version,
		hostname: cfg.Hostname,
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"humanTime": humanTime,
		"fieldName": config.FieldName,
		"sensitive": config.IsSensitive,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: can't parse templates: %w", err)
	}
	s.templates = tmpl
	return s, nil
}

// Run starts the web server, blocking until ctx is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	// global middleware - applied to all routes
	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("photomigrator-web", "jaimetur", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(64*1024), // 64KB max request size
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	// HTML pages
	router.HandleFunc("GET /", s.handleIndex)
	router.HandleFunc("GET /job/{id}", s.handleJobPage)
	router.HandleFunc("GET /config", s.handleConfigPage)
	router.HandleFunc("POST /config", s.handleConfigSave)
	router.With(tollbooth.HTTPMiddleware(submitLimiter)).HandleFunc("POST /jobs/{mode}", s.handleFormSubmit)

	// JSON API
	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.With(tollbooth.HTTPMiddleware(submitLimiter)).HandleFunc("POST /jobs/{mode}", s.handleAPISubmit)
		api.HandleFunc("GET /jobs", s.handleAPIList)
		api.HandleFunc("GET /jobs/{id}", s.handleAPIJob)
		api.HandleFunc("GET /jobs/{id}/logs", s.handleAPIJobLogs)
		api.HandleFunc("GET /config", s.handleAPIConfig)
		api.HandleFunc("POST /config", s.handleAPIConfigSave)
	})

	// static files
	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		router.Handle("GET /static/", http.FileServer(http.FS(staticFS)))
	} else {
		router.HandleFiles("/static/", http.FS(fsys))
	}

	return router
}

// render executes a template into a buffer first so a template fault
// never produces a half-written page
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	buf := new(bytes.Buffer)
	if err := s.templates.ExecuteTemplate(buf, name, data); err != nil {
		log.Printf("[WARN] failed to execute template %s: %v", name, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

func humanTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2, 15:04:05")
}
