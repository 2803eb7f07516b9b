// Package web implements the web UI and JSON API for the technicians roster
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/techbe/app/roster"
	"github.com/umputun/techbe/app/web/enums"
	"github.com/umputun/techbe/app/web/persistence"
)

//go:embed templates/*.html templates/partials/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// login attempts limited per client ip
var loginLimiter = newLoginLimiter()

// Server represents the web server
type Server struct {
	editor         *roster.Editor
	history        History // nil if history is disabled
	historyKeep    int
	templates      map[string]*template.Template
	rosterFile     string // roster file location, shown in the footer
	baseURL        string // base URL path for reverse proxy (e.g., /techbe), empty for root
	hostname       string // hostname to display in UI
	version        string
	passwordHash   string                      // bcrypt hash for basic auth
	csrfProtection *http.CrossOriginProtection // csrf protection for POST endpoints
}

// History defines storage operations for roster change journal
type History interface {
	Record(ctx context.Context, change persistence.ChangeInfo) error
	Changes(ctx context.Context, limit int) ([]persistence.ChangeInfo, error)
	Cleanup(ctx context.Context, keep int) error
	Close() error
}

// Config holds server configuration
type Config struct {
	Editor        *roster.Editor
	RosterFile    string
	HistoryDBPath string // sqlite file for change history, empty to disable
	HistoryKeep   int    // max history records to keep, 0 keeps all
	BaseURL       string
	Hostname      string
	Version       string
	PasswordHash  string // bcrypt hash for basic auth (empty to disable)
}

// TemplateData holds data for templates
type TemplateData struct {
	Technicians    []roster.Entry // display order
	Form           FormData
	Warning        string   // recoverable problem with the submitted form
	MissingFields  []string // json names of required fields left empty
	Error          string   // failed operation, i.e. roster not saved
	Changes        []persistence.ChangeInfo
	TotalCount     int
	ActiveCount    int
	CurrentYear    int
	BaseURL        string
	Hostname       string
	RosterFile     string
	Theme          enums.Theme
	AuthEnabled    bool
	HistoryEnabled bool
	Version        string
}

// FormData is the state of the technician form
type FormData struct {
	EditID    string // id of the technician being edited, empty in create mode
	Nom       string
	Prenom    string
	Email     string
	Telephone string
	Actif     bool
}

// IsEdit returns true if the form edits an existing technician
func (f FormData) IsEdit() bool { return f.EditID != "" }

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Editor == nil {
		return nil, fmt.Errorf("web server initialization failed: roster editor is required")
	}

	s := &Server{
		editor:         cfg.Editor,
		historyKeep:    cfg.HistoryKeep,
		rosterFile:     cfg.RosterFile,
		baseURL:        cfg.BaseURL,
		hostname:       cfg.Hostname,
		version:        cfg.Version,
		passwordHash:   cfg.PasswordHash,
		csrfProtection: http.NewCrossOriginProtection(),
	}

	if cfg.HistoryDBPath != "" {
		store, err := persistence.NewSQLiteStore(cfg.HistoryDBPath)
		if err != nil {
			return nil, fmt.Errorf("web server initialization failed: failed to create SQLite store at %q: %w", cfg.HistoryDBPath, err)
		}
		s.history = store
	}

	templates, err := s.parseTemplates()
	if err != nil {
		if closeErr := s.Close(); closeErr != nil {
			return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w (also failed to close store: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w", err)
	}
	s.templates = templates

	return s, nil
}

// Run starts the web server and blocks until ctx is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	defer func() {
		if err := s.Close(); err != nil {
			log.Printf("[WARN] failed to close history store: %v", err)
		}
	}()

	server := &http.Server{
		Addr:              address,
		Handler:           s.handler(),
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

// Close closes history store if enabled
func (s *Server) Close() error {
	if s.history == nil {
		return nil
	}
	return s.history.Close()
}

// handler returns the http.Handler with base URL wrapping applied
func (s *Server) handler() http.Handler {
	routes := s.routes()
	if s.baseURL == "" {
		return routes
	}

	mux := http.NewServeMux()
	// handle base URL without trailing slash - redirect to with trailing slash
	mux.HandleFunc(s.baseURL, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.baseURL+"/", http.StatusMovedPermanently)
	})
	mux.Handle(s.baseURL+"/", http.StripPrefix(s.baseURL, routes))
	return mux
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	// global middleware - applied to all routes
	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("techbe", "umputun", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(64*1024), // 64KB max request size
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	// must be done before any routes are defined
	if s.passwordHash != "" {
		log.Printf("[INFO] authentication enabled for web UI")
		router.Use(s.authMiddleware)
		router.HandleFunc("GET /login", s.handleLoginForm)
		router.With(s.csrfProtection.Handler, tollbooth.HTTPMiddleware(loginLimiter)).HandleFunc("POST /login", s.handleLogin)
		router.HandleFunc("GET /logout", s.handleLogout)
	}

	router.HandleFunc("GET /{$}", s.handleDashboard)
	router.HandleFunc("GET /history", s.handleHistory)

	// form actions
	router.Group().Route(func(form *routegroup.Bundle) {
		form.Use(s.csrfProtection.Handler)
		form.HandleFunc("POST /technicians", s.handleSubmit)
		form.HandleFunc("POST /technicians/{id}/select", s.handleSelect)
		form.HandleFunc("POST /cancel", s.handleCancel)
		form.HandleFunc("POST /theme", s.handleThemeToggle)
	})

	// JSON API for CLI/programmatic access
	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.Use(s.csrfProtection.Handler)
		api.HandleFunc("GET /technicians", s.handleAPIList)
		api.HandleFunc("GET /technicians/lookup", s.handleAPILookup)
		api.HandleFunc("GET /technicians/{id}", s.handleAPIGet)
		api.HandleFunc("POST /technicians", s.handleAPICreate)
		api.HandleFunc("PUT /technicians/{id}", s.handleAPIUpdate)
		api.HandleFunc("GET /export.yaml", s.handleAPIExportYAML)
		api.HandleFunc("GET /schema", s.handleAPISchema)
		api.HandleFunc("GET /history", s.handleAPIHistory)
	})

	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		router.Handle("GET /static/", http.FileServer(http.FS(staticFS)))
	} else {
		router.HandleFiles("/static/", http.FS(fsys))
	}

	return router
}

// render renders a template with 200 status
func (s *Server) render(w http.ResponseWriter, page, tmplName string, data any) {
	s.renderStatus(w, http.StatusOK, page, tmplName, data)
}

// renderStatus renders a template with given status
func (s *Server) renderStatus(w http.ResponseWriter, status int, page, tmplName string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Printf("[WARN] template %s not found", page)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, tmplName, data); err != nil {
		log.Printf("[WARN] failed to execute template: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// parseTemplates parses all templates
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)

	funcMap := template.FuncMap{
		"humanTime": s.humanTime,
		"url":       s.url,
		"missing":   missing,
	}

	dashboard, err := template.New("base.html").Funcs(funcMap).ParseFS(templatesFS,
		"templates/base.html", "templates/dashboard.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}
	templates["dashboard"] = dashboard

	history, err := template.New("base.html").Funcs(funcMap).ParseFS(templatesFS,
		"templates/base.html", "templates/history.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse history template: %w", err)
	}
	templates["history"] = history

	// login template is standalone, doesn't use base
	login, err := template.New("login.html").Funcs(funcMap).ParseFS(templatesFS, "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse login template: %w", err)
	}
	templates["login"] = login

	return templates, nil
}

// newTemplateData creates a TemplateData with common fields populated from request
func (s *Server) newTemplateData(r *http.Request) TemplateData {
	return TemplateData{
		CurrentYear:    time.Now().Year(),
		BaseURL:        s.baseURL,
		Hostname:       s.hostname,
		RosterFile:     s.rosterFile,
		Theme:          s.getTheme(r),
		AuthEnabled:    s.passwordHash != "",
		HistoryEnabled: s.history != nil,
		Version:        shortVersion(s.version),
	}
}

func (s *Server) getTheme(r *http.Request) enums.Theme {
	cookie, err := r.Cookie("theme")
	if err != nil {
		return enums.ThemeLight // default when no cookie
	}
	theme, err := enums.ParseTheme(cookie.Value)
	if err != nil {
		log.Printf("[WARN] invalid theme %q: %v", cookie.Value, err)
		return enums.ThemeLight
	}
	return theme
}

// template helper functions

func (s *Server) humanTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006 15:04:05")
}

// url prepends the base URL to a path for reverse proxy support
func (s *Server) url(path string) string {
	return s.baseURL + path
}

// cookiePath returns the cookie path with base URL support
func (s *Server) cookiePath() string {
	if s.baseURL == "" {
		return "/"
	}
	return s.baseURL + "/"
}

// missing checks if the field is in the list of missing fields
func missing(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

// shortVersion extracts a short version string from full version
// for version like "v1.7.0-abc1234-20241225", returns "v1.7.0"
func shortVersion(fullVer string) string {
	if fullVer == "" || fullVer == "unknown" {
		return fullVer
	}
	if idx := strings.Index(fullVer, "-"); idx > 0 {
		return fullVer[:idx]
	}
	return fullVer
}

func newLoginLimiter() *limiter.Limiter {
	lmt := tollbooth.NewLimiter(1, &limiter.ExpirableOptions{DefaultExpirationTTL: 10 * time.Minute})
	lmt.SetBurst(5)
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})
	lmt.SetMessage("Too many login attempts, try again later")
	return lmt
}
