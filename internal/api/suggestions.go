package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/refacto-hq/refacto/internal/githost"
	"github.com/refacto-hq/refacto/pkg/model"
)

// SuggestionResponse annotates a suggestion with its project
type SuggestionResponse struct {
	Suggestion *model.RefactoringSuggestion `json:"suggestion"`
	ProjectID  uuid.UUID                    `json:"project_id"`
}

// PRCreatedResponse is returned after opening a pull request for a suggestion
type PRCreatedResponse struct {
	URL    string `json:"url"`
	Number int    `json:"number"`
	State  string `json:"state"`
}

// getSuggestion returns one suggestion with its verification record
// GET /api/v1/suggestions/{suggestionID}
func (s *Server) getSuggestion(w http.ResponseWriter, r *http.Request) {
	sug, projectID, ok := s.loadSuggestion(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, &SuggestionResponse{
		Suggestion: sug,
		ProjectID:  projectID,
	})
}

// acceptSuggestion marks a suggestion accepted
// POST /api/v1/suggestions/{suggestionID}/accept
func (s *Server) acceptSuggestion(w http.ResponseWriter, r *http.Request) {
	s.reviewSuggestion(w, r, model.SuggestionAccepted)
}

// rejectSuggestion marks a suggestion rejected
// POST /api/v1/suggestions/{suggestionID}/reject
func (s *Server) rejectSuggestion(w http.ResponseWriter, r *http.Request) {
	s.reviewSuggestion(w, r, model.SuggestionRejected)
}

func (s *Server) reviewSuggestion(w http.ResponseWriter, r *http.Request, status model.SuggestionStatus) {
	sug, _, ok := s.loadSuggestion(w, r)
	if !ok {
		return
	}

	if err := s.store.UpdateSuggestionStatus(r.Context(), sug.ID, status); err != nil {
		log.Error().Err(err).Msg("failed to update suggestion status")
		respondError(w, http.StatusInternalServerError, "failed to update suggestion")
		return
	}
	sug.Status = status

	log.Info().
		Str("suggestion_id", sug.ID.String()).
		Str("status", string(status)).
		Msg("suggestion reviewed")

	respondJSON(w, http.StatusOK, sug)
}

// createSuggestionPR opens a pull request applying a verified suggestion
// POST /api/v1/suggestions/{suggestionID}/pr
func (s *Server) createSuggestionPR(w http.ResponseWriter, r *http.Request) {
	if s.pr == nil {
		respondError(w, http.StatusServiceUnavailable, "pull request service not available")
		return
	}

	sug, projectID, ok := s.loadSuggestion(w, r)
	if !ok {
		return
	}

	// Only verified work leaves the system
	if !sug.IsVerified {
		respondError(w, http.StatusConflict, "suggestion is not verified")
		return
	}

	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil || project == nil {
		respondError(w, http.StatusNotFound, "project not found")
		return
	}

	info, err := githost.ParseRepoURL(project.URL)
	if err != nil {
		respondError(w, http.StatusBadRequest, "project URL is not a supported repository")
		return
	}
	info.Branch = project.DefaultBranch

	pr, err := s.pr.ApplySuggestion(r.Context(), info, sug)
	if err != nil {
		log.Error().Err(err).Str("suggestion_id", sug.ID.String()).Msg("failed to open pull request")
		respondError(w, http.StatusBadGateway, "failed to open pull request")
		return
	}

	log.Info().
		Str("suggestion_id", sug.ID.String()).
		Str("pr_url", pr.HTMLURL).
		Msg("pull request opened")

	respondJSON(w, http.StatusCreated, &PRCreatedResponse{
		URL:    pr.HTMLURL,
		Number: pr.Number,
		State:  pr.State,
	})
}

// loadSuggestion resolves the suggestionID URL param against the store,
// writing the error response itself when resolution fails.
func (s *Server) loadSuggestion(w http.ResponseWriter, r *http.Request) (*model.RefactoringSuggestion, uuid.UUID, bool) {
	suggestionID, err := uuid.Parse(chi.URLParam(r, "suggestionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid suggestion ID")
		return nil, uuid.Nil, false
	}

	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "storage not available")
		return nil, uuid.Nil, false
	}

	sug, projectID, err := s.store.GetSuggestion(r.Context(), suggestionID)
	if err != nil {
		log.Error().Err(err).Msg("failed to get suggestion")
		respondError(w, http.StatusInternalServerError, "internal error")
		return nil, uuid.Nil, false
	}
	if sug == nil {
		respondError(w, http.StatusNotFound, "suggestion not found")
		return nil, uuid.Nil, false
	}

	return sug, projectID, true
}
