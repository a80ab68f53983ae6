package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	tallyerrors "agora/contexts/participation/tally-engine/domain/errors"
	tallyhttp "agora/contexts/participation/tally-engine/transport/http"
)

func (s *Server) handleCreateVote(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeTallyError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req tallyhttp.CreateVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTallyError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.tally.Handler.CreateVoteHandler(r.Context(), req)
	if err != nil {
		writeTallyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetVote(w http.ResponseWriter, r *http.Request) {
	voteID := r.PathValue("vote_id")
	resp, err := s.tally.Handler.GetVoteHandler(r.Context(), voteID)
	if err != nil {
		writeTallyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	voteID := r.PathValue("vote_id")
	resp, err := s.tally.Handler.GetResultsHandler(r.Context(), voteID)
	if err != nil {
		writeTallyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastBallot(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeTallyError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req tallyhttp.CastBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeTallyError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	voteID := r.PathValue("vote_id")
	resp, err := s.tally.Handler.CastBallotHandler(r.Context(), voteID, userID, req)
	if err != nil {
		writeTallyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeTallyDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tallyerrors.ErrVoteNotFound):
		writeTallyError(w, http.StatusNotFound, "vote_not_found", err.Error())
	case errors.Is(err, tallyerrors.ErrVoteNotOpen):
		writeTallyError(w, http.StatusConflict, "vote_not_open", err.Error())
	case errors.Is(err, tallyerrors.ErrNoTopicAccess):
		writeTallyError(w, http.StatusForbidden, "no_topic_access", err.Error())
	case errors.Is(err, tallyerrors.ErrHardAuthRequired):
		writeTallyError(w, http.StatusForbidden, "hard_auth_required", err.Error())
	case errors.Is(err, tallyerrors.ErrTooFewOptions),
		errors.Is(err, tallyerrors.ErrOptionsTooSimilar),
		errors.Is(err, tallyerrors.ErrInvalidOptionValue),
		errors.Is(err, tallyerrors.ErrInvalidChoiceCount),
		errors.Is(err, tallyerrors.ErrUnknownOption),
		errors.Is(err, tallyerrors.ErrInvalidVoteInput):
		writeTallyError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, tallyerrors.ErrTallyIntegrity):
		// Results are withheld, never silently wrong.
		writeTallyError(w, http.StatusInternalServerError, "data_integrity", err.Error())
	default:
		writeTallyError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeTallyError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, tallyhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
