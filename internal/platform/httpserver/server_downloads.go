package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	containererrors "agora/contexts/participation/container-builder/domain/errors"
)

// handleDownloadContainer serves a signed container against a scoped
// download token; no session authentication is involved.
func (s *Server) handleDownloadContainer(w http.ResponseWriter, r *http.Request) {
	containerRef := r.PathValue("container_ref")
	query := r.URL.Query()
	token := query.Get("token")
	if token == "" {
		http.Error(w, "token query parameter is required", http.StatusBadRequest)
		return
	}
	expires, err := strconv.ParseInt(query.Get("expires"), 10, 64)
	if err != nil {
		http.Error(w, "expires query parameter must be a unix timestamp", http.StatusBadRequest)
		return
	}

	container, err := s.containers.Builder.Download(r.Context(), containerRef, token, expires)
	if err != nil {
		writeContainerDomainError(w, err)
		return
	}

	s.logger.Info("signed container downloaded",
		"event", "http_container_downloaded",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"container_ref", containerRef,
		"client_ip", resolveClientIP(r),
	)
	w.Header().Set("Content-Type", container.MimeType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+container.FileName+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(container.Payload)
}

func writeContainerDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, containererrors.ErrContainerNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, containererrors.ErrDownloadTokenExpired):
		http.Error(w, err.Error(), http.StatusGone)
	case errors.Is(err, containererrors.ErrDownloadTokenInvalid):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, containererrors.ErrInvalidContainerInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
