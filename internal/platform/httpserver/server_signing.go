package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	signingerrors "agora/contexts/participation/signing-orchestrator/domain/errors"
	signinghttp "agora/contexts/participation/signing-orchestrator/transport/http"
)

func (s *Server) handleInitIDCard(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeSigningError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req signinghttp.InitIDCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSigningError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	voteID := r.PathValue("vote_id")
	s.logger.Info("idcard signing init received",
		"event", "http_signing_idcard_init",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"vote_id", voteID,
		"client_ip", resolveClientIP(r),
	)
	resp, err := s.signing.Handler.InitIDCardHandler(r.Context(), voteID, userID, req)
	if err != nil {
		writeSigningDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompleteIDCard(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeSigningError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req signinghttp.CompleteIDCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSigningError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	voteID := r.PathValue("vote_id")
	resp, err := s.signing.Handler.CompleteIDCardHandler(r.Context(), voteID, userID, req)
	if err != nil {
		writeSigningDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInitMobileID(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeSigningError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req signinghttp.InitMobileIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSigningError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	voteID := r.PathValue("vote_id")
	resp, err := s.signing.Handler.InitMobileIDHandler(r.Context(), voteID, userID, req)
	if err != nil {
		writeSigningDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePollStatus is deliberately unauthenticated: the opaque token is the
// credential, so device polling flows work without a session.
func (s *Server) handlePollStatus(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeSigningError(w, http.StatusBadRequest, "missing_token", "token query parameter is required")
		return
	}

	pending, complete, err := s.signing.Handler.PollStatusHandler(r.Context(), token)
	if err != nil {
		writeSigningDomainError(w, err)
		return
	}
	if pending != nil {
		writeJSON(w, http.StatusOK, pending)
		return
	}
	writeJSON(w, http.StatusOK, complete)
}

func writeSigningDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, signingerrors.ErrInvalidSigningInput),
		errors.Is(err, signingerrors.ErrNotMobileIDClient):
		writeSigningError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, signingerrors.ErrVoteNotFound),
		errors.Is(err, signingerrors.ErrSessionNotFound):
		writeSigningError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, signingerrors.ErrVoteNotOpen),
		errors.Is(err, signingerrors.ErrInvalidSessionState):
		writeSigningError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, signingerrors.ErrSessionSuperseded):
		writeSigningError(w, http.StatusConflict, "session_superseded", err.Error())
	case errors.Is(err, signingerrors.ErrNoTopicAccess),
		errors.Is(err, signingerrors.ErrHardAuthNotRequired):
		writeSigningError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, signingerrors.ErrPidAlreadyLinked):
		writeSigningError(w, http.StatusConflict, "pid_already_linked", err.Error())
	case errors.Is(err, signingerrors.ErrAccountAlreadyLinked):
		writeSigningError(w, http.StatusConflict, "account_already_linked", err.Error())
	case errors.Is(err, signingerrors.ErrCertificateRevoked):
		writeSigningError(w, http.StatusForbidden, "certificate_revoked", err.Error())
	case errors.Is(err, signingerrors.ErrCertificateNotActive):
		writeSigningError(w, http.StatusForbidden, "certificate_not_activated", err.Error())
	case errors.Is(err, signingerrors.ErrCertificateSuspended):
		writeSigningError(w, http.StatusForbidden, "certificate_suspended", err.Error())
	case errors.Is(err, signingerrors.ErrCertificateExpired):
		writeSigningError(w, http.StatusForbidden, "certificate_expired", err.Error())
	case errors.Is(err, signingerrors.ErrSignatureInvalid):
		writeSigningError(w, http.StatusBadRequest, "signature_invalid", err.Error())
	case errors.Is(err, signingerrors.ErrSigningTimeout):
		writeSigningError(w, http.StatusGone, "signing_timeout", err.Error())
	case errors.Is(err, signingerrors.ErrProviderFailure):
		writeSigningError(w, http.StatusBadGateway, "provider_failure", err.Error())
	default:
		writeSigningError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSigningError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, signinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
