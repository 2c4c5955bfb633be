// Package api exposes the analysis platform over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/refacto-hq/refacto/internal/config"
	"github.com/refacto-hq/refacto/internal/db"
	"github.com/refacto-hq/refacto/internal/githost"
	"github.com/refacto-hq/refacto/internal/jobs"
	refactonats "github.com/refacto-hq/refacto/internal/nats"
	"github.com/refacto-hq/refacto/internal/report"
)

// JobRepository is the job persistence surface the handlers need.
// *jobs.Repository satisfies it; tests substitute a mock.
type JobRepository interface {
	Create(ctx context.Context, job *jobs.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*jobs.Job, error)
	ListByStatus(ctx context.Context, status jobs.JobStatus, limit int) ([]*jobs.Job, error)
	ListPendingByType(ctx context.Context, jobType jobs.JobType, limit int) ([]*jobs.Job, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*jobs.Job, error)
	Cancel(ctx context.Context, jobID uuid.UUID) error
	Retry(ctx context.Context, jobID uuid.UUID) error
}

// Server represents the API server
type Server struct {
	cfg      *config.Config
	router   *chi.Mux
	store    *db.Store
	jobRepo  JobRepository
	pipeline *jobs.Pipeline
	nats     *refactonats.Client
	pr       *githost.PRService
	reports  *report.Registry
}

// ServerConfig wires the server's dependencies. Store, JobRepo, Pipeline,
// NATS, and PR may be nil; the routes that need them respond 503.
type ServerConfig struct {
	Config   *config.Config
	Store    *db.Store
	JobRepo  JobRepository
	Pipeline *jobs.Pipeline
	NATS     *refactonats.Client
	PR       *githost.PRService
}

// NewServer creates a new API server
func NewServer(cfg ServerConfig) (*Server, error) {
	s := &Server{
		cfg:      cfg.Config,
		router:   chi.NewRouter(),
		store:    cfg.Store,
		jobRepo:  cfg.JobRepo,
		pipeline: cfg.Pipeline,
		nats:     cfg.NATS,
		pr:       cfg.PR,
		reports:  report.NewRegistry(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	// API v1
	s.router.Route("/api/v1", func(r chi.Router) {
		// Projects
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.createProject)
			r.Get("/", s.listProjects)
			r.Get("/{projectID}", s.getProject)
			r.Delete("/{projectID}", s.deleteProject)
			r.Post("/{projectID}/analyze", s.analyzeProject)
			r.Get("/{projectID}/issues", s.listProjectIssues)
			r.Get("/{projectID}/duplicates", s.listProjectDuplicates)
			r.Get("/{projectID}/runs", s.listProjectRuns)
			r.Get("/{projectID}/jobs", s.listProjectJobs)
			r.Get("/{projectID}/report", s.projectReport)
		})

		// Issues
		r.Route("/issues", func(r chi.Router) {
			r.Get("/{issueID}", s.getIssue)
			r.Post("/{issueID}/suggest", s.suggestRefactoring)
			r.Get("/{issueID}/suggestions", s.listIssueSuggestions)
		})

		// Suggestions
		r.Route("/suggestions", func(r chi.Router) {
			r.Get("/{suggestionID}", s.getSuggestion)
			r.Post("/{suggestionID}/accept", s.acceptSuggestion)
			r.Post("/{suggestionID}/reject", s.rejectSuggestion)
			r.Post("/{suggestionID}/pr", s.createSuggestionPR)
		})

		// Jobs
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.createJob)
			r.Get("/", s.listJobs)
			r.Get("/{jobID}", s.getJob)
			r.Post("/{jobID}/cancel", s.cancelJob)
			r.Post("/{jobID}/retry", s.retryJob)
		})
	})
}

// Health check handlers
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database not ready")
			return
		}
	}
	if s.nats != nil {
		if err := s.nats.HealthCheck(); err != nil {
			respondError(w, http.StatusServiceUnavailable, "message bus not ready")
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// Helper functions
func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
