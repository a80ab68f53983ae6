package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	delegationerrors "agora/contexts/participation/delegation-graph/domain/errors"
	delegationhttp "agora/contexts/participation/delegation-graph/transport/http"
)

func (s *Server) handleSetDelegation(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeDelegationError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req delegationhttp.SetDelegationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDelegationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	voteID := r.PathValue("vote_id")
	resp, err := s.delegations.Handler.SetDelegationHandler(r.Context(), voteID, userID, req)
	if err != nil {
		writeDelegationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteDelegation(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeDelegationError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	voteID := r.PathValue("vote_id")
	if err := s.delegations.Handler.DeleteDelegationHandler(r.Context(), voteID, userID); err != nil {
		writeDelegationDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDelegations(w http.ResponseWriter, r *http.Request) {
	voteID := r.PathValue("vote_id")
	resp, err := s.delegations.Handler.ListDelegationsHandler(r.Context(), voteID)
	if err != nil {
		writeDelegationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeDelegationDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, delegationerrors.ErrSelfDelegation):
		writeDelegationError(w, http.StatusBadRequest, "self_delegation", err.Error())
	case errors.Is(err, delegationerrors.ErrCyclicDelegation):
		writeDelegationError(w, http.StatusBadRequest, "cyclic_delegation", err.Error())
	case errors.Is(err, delegationerrors.ErrInvalidDelegationInput):
		writeDelegationError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, delegationerrors.ErrDelegateNoAccess):
		writeDelegationError(w, http.StatusForbidden, "delegate_no_access", err.Error())
	case errors.Is(err, delegationerrors.ErrDelegationNotAllowed):
		writeDelegationError(w, http.StatusForbidden, "delegation_not_allowed", err.Error())
	case errors.Is(err, delegationerrors.ErrVoteNotFound),
		errors.Is(err, delegationerrors.ErrDelegationNotFound):
		writeDelegationError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, delegationerrors.ErrVoteNotOpen):
		writeDelegationError(w, http.StatusConflict, "vote_not_open", err.Error())
	case errors.Is(err, delegationerrors.ErrDelegationDepthExceeded):
		writeDelegationError(w, http.StatusInternalServerError, "data_integrity", err.Error())
	default:
		writeDelegationError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeDelegationError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, delegationhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
