package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/refacto-hq/refacto/internal/db"
	"github.com/refacto-hq/refacto/internal/githost"
	"github.com/refacto-hq/refacto/internal/jobs"
	"github.com/refacto-hq/refacto/internal/report"
	"github.com/refacto-hq/refacto/pkg/model"
)

// CreateProjectRequest is the request body for registering a project
type CreateProjectRequest struct {
	URL    string `json:"url"`
	Name   string `json:"name,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// ProjectResponse pairs a project with the analysis job enqueued for it
type ProjectResponse struct {
	Project *db.Project  `json:"project"`
	Job     *JobResponse `json:"job,omitempty"`
}

// createProject registers a repository and enqueues its first analysis
// POST /api/v1/projects
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "storage not available")
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	info, err := githost.ParseRepoURL(req.URL)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid repository URL")
		return
	}

	existing, err := s.store.GetProjectByURL(r.Context(), req.URL)
	if err != nil {
		log.Error().Err(err).Msg("failed to check existing project")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "project already registered")
		return
	}

	name := req.Name
	if name == "" {
		name = info.Name
	}
	branch := req.Branch
	if branch == "" {
		branch = info.Branch
	}

	project := &db.Project{
		URL:           req.URL,
		Name:          name,
		DefaultBranch: branch,
	}

	if err := s.store.CreateProject(r.Context(), project); err != nil {
		log.Error().Err(err).Msg("failed to create project")
		respondError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	log.Info().
		Str("project_id", project.ID.String()).
		Str("url", project.URL).
		Msg("project registered")

	resp := &ProjectResponse{Project: project}
	if s.pipeline != nil {
		job, err := s.pipeline.StartAnalysis(r.Context(), jobs.AnalysisPayload{
			ProjectID:     project.ID,
			RepositoryURL: project.URL,
			Branch:        branch,
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to enqueue analysis")
		} else {
			resp.Job = jobToResponse(job)
		}
	}

	respondJSON(w, http.StatusCreated, resp)
}

// listProjects returns registered projects
// GET /api/v1/projects
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "storage not available")
		return
	}

	limit, offset := pageParams(r)

	projects, err := s.store.ListProjects(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list projects")
		respondError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	respondJSON(w, http.StatusOK, projects)
}

// getProject returns one project
// GET /api/v1/projects/{projectID}
func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// deleteProject removes a project and its runs
// DELETE /api/v1/projects/{projectID}
func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteProject(r.Context(), project.ID); err != nil {
		log.Error().Err(err).Msg("failed to delete project")
		respondError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}

	log.Info().Str("project_id", project.ID.String()).Msg("project deleted")
	w.WriteHeader(http.StatusNoContent)
}

// analyzeProject enqueues a fresh analysis run
// POST /api/v1/projects/{projectID}/analyze
func (s *Server) analyzeProject(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, "job system not available")
		return
	}

	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}

	job, err := s.pipeline.StartAnalysis(r.Context(), jobs.AnalysisPayload{
		ProjectID:     project.ID,
		RepositoryURL: project.URL,
		Branch:        project.DefaultBranch,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to enqueue analysis")
		respondError(w, http.StatusInternalServerError, "failed to enqueue analysis")
		return
	}

	respondJSON(w, http.StatusAccepted, jobToResponse(job))
}

// listProjectIssues returns a project's issues, optionally filtered
// GET /api/v1/projects/{projectID}/issues?type=&severity=
func (s *Server) listProjectIssues(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r)
	filter := db.IssueFilter{
		Type:     model.IssueType(r.URL.Query().Get("type")),
		Severity: model.Severity(r.URL.Query().Get("severity")),
		Limit:    limit,
		Offset:   offset,
	}

	issues, err := s.store.ListIssuesByProject(r.Context(), project.ID, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to list issues")
		respondError(w, http.StatusInternalServerError, "failed to list issues")
		return
	}

	respondJSON(w, http.StatusOK, issues)
}

// listProjectDuplicates returns a project's duplicate groups
// GET /api/v1/projects/{projectID}/duplicates
func (s *Server) listProjectDuplicates(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}

	groups, err := s.store.ListDuplicateGroupsByProject(r.Context(), project.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list duplicate groups")
		respondError(w, http.StatusInternalServerError, "failed to list duplicate groups")
		return
	}

	respondJSON(w, http.StatusOK, groups)
}

// listProjectRuns returns a project's analysis runs, newest first
// GET /api/v1/projects/{projectID}/runs
func (s *Server) listProjectRuns(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r)

	runs, err := s.store.ListRunsByProject(r.Context(), project.ID, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list runs")
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, runs)
}

// projectReport renders the project's latest findings in an exchange format
// GET /api/v1/projects/{projectID}/report?format=sarif|json
func (s *Server) projectReport(w http.ResponseWriter, r *http.Request) {
	project, ok := s.loadProject(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	emitter, err := s.reports.Get(format)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unknown report format")
		return
	}

	issues, err := s.store.ListIssuesByProject(r.Context(), project.ID, db.IssueFilter{})
	if err != nil {
		log.Error().Err(err).Msg("failed to load issues for report")
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	groups, err := s.store.ListDuplicateGroupsByProject(r.Context(), project.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load duplicate groups for report")
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	in := &report.Input{
		ProjectName: project.Name,
		RepoURL:     project.URL,
		Summary:     model.Summarize(issues, groups, nil),
		Issues:      issues,
		Groups:      groups,
	}
	if project.LastCommitSHA != nil {
		in.CommitSHA = *project.LastCommitSHA
	}

	w.Header().Set("Content-Type", "application/json")
	if err := emitter.Emit(w, in); err != nil {
		log.Error().Err(err).Msg("failed to emit report")
	}
}

// loadProject resolves the projectID URL param against the store, writing
// the error response itself when resolution fails.
func (s *Server) loadProject(w http.ResponseWriter, r *http.Request) (*db.Project, bool) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project ID")
		return nil, false
	}

	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "storage not available")
		return nil, false
	}

	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		log.Error().Err(err).Msg("failed to get project")
		respondError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if project == nil {
		respondError(w, http.StatusNotFound, "project not found")
		return nil, false
	}

	return project, true
}

// pageParams reads limit/offset query params with sane bounds
func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
