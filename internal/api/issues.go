package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/refacto-hq/refacto/internal/jobs"
	"github.com/refacto-hq/refacto/pkg/model"
)

// IssueResponse annotates an issue with the project and run it belongs to
type IssueResponse struct {
	Issue     *model.Issue `json:"issue"`
	ProjectID uuid.UUID    `json:"project_id"`
	RunID     uuid.UUID    `json:"run_id"`
}

// SuggestRequest is the request body for enqueueing a verification job
type SuggestRequest struct {
	LLMTier int `json:"llm_tier,omitempty"` // 1=fast, 2=balanced, 3=thorough
}

// getIssue returns one issue
// GET /api/v1/issues/{issueID}
func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, projectID, runID, ok := s.loadIssue(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, &IssueResponse{
		Issue:     issue,
		ProjectID: projectID,
		RunID:     runID,
	})
}

// suggestRefactoring enqueues candidate generation + verification for an issue
// POST /api/v1/issues/{issueID}/suggest
func (s *Server) suggestRefactoring(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, "job system not available")
		return
	}

	issue, projectID, _, ok := s.loadIssue(w, r)
	if !ok {
		return
	}

	var req SuggestRequest
	if r.ContentLength > 0 {
		// Body is optional; tier defaults per issue type in the worker
		_ = decodeBody(r, &req)
	}
	if req.LLMTier < 0 || req.LLMTier > 3 {
		respondError(w, http.StatusBadRequest, "llm_tier must be between 1 and 3")
		return
	}

	job, err := s.pipeline.StartVerification(r.Context(), jobs.VerificationPayload{
		ProjectID: projectID,
		IssueID:   issue.ID,
		LLMTier:   req.LLMTier,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to enqueue verification")
		respondError(w, http.StatusInternalServerError, "failed to enqueue verification")
		return
	}

	respondJSON(w, http.StatusAccepted, jobToResponse(job))
}

// listIssueSuggestions returns the suggestions generated for an issue
// GET /api/v1/issues/{issueID}/suggestions
func (s *Server) listIssueSuggestions(w http.ResponseWriter, r *http.Request) {
	issue, _, _, ok := s.loadIssue(w, r)
	if !ok {
		return
	}

	suggestions, err := s.store.ListSuggestionsByIssue(r.Context(), issue.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list suggestions")
		respondError(w, http.StatusInternalServerError, "failed to list suggestions")
		return
	}

	respondJSON(w, http.StatusOK, suggestions)
}

// loadIssue resolves the issueID URL param against the store, writing the
// error response itself when resolution fails.
func (s *Server) loadIssue(w http.ResponseWriter, r *http.Request) (*model.Issue, uuid.UUID, uuid.UUID, bool) {
	issueID, err := uuid.Parse(chi.URLParam(r, "issueID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid issue ID")
		return nil, uuid.Nil, uuid.Nil, false
	}

	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "storage not available")
		return nil, uuid.Nil, uuid.Nil, false
	}

	issue, projectID, runID, err := s.store.GetIssue(r.Context(), issueID)
	if err != nil {
		log.Error().Err(err).Msg("failed to get issue")
		respondError(w, http.StatusInternalServerError, "internal error")
		return nil, uuid.Nil, uuid.Nil, false
	}
	if issue == nil {
		respondError(w, http.StatusNotFound, "issue not found")
		return nil, uuid.Nil, uuid.Nil, false
	}

	return issue, projectID, runID, true
}
