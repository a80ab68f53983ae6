package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	containerbuilder "agora/contexts/participation/container-builder"
	delegationgraph "agora/contexts/participation/delegation-graph"
	signingorchestrator "agora/contexts/participation/signing-orchestrator"
	tallyengine "agora/contexts/participation/tally-engine"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "agora/internal/platform/httpserver/docs"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	addr        string
	tally       tallyengine.Module
	delegations delegationgraph.Module
	signing     signingorchestrator.Module
	containers  containerbuilder.Module
}

func New(
	tally tallyengine.Module,
	delegations delegationgraph.Module,
	signing signingorchestrator.Module,
	containers containerbuilder.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		addr:        addr,
		tally:       tally,
		delegations: delegations,
		signing:     signing,
		containers:  containers,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/votes", s.handleCreateVote)
	s.mux.HandleFunc("GET /api/votes/{vote_id}", s.handleGetVote)
	s.mux.HandleFunc("GET /api/votes/{vote_id}/results", s.handleGetResults)
	s.mux.HandleFunc("POST /api/votes/{vote_id}/ballots", s.handleCastBallot)

	s.mux.HandleFunc("PUT /api/votes/{vote_id}/delegations", s.handleSetDelegation)
	s.mux.HandleFunc("DELETE /api/votes/{vote_id}/delegations", s.handleDeleteDelegation)
	s.mux.HandleFunc("GET /api/votes/{vote_id}/delegations", s.handleListDelegations)

	s.mux.HandleFunc("POST /api/votes/{vote_id}/sign/idcard/init", s.handleInitIDCard)
	s.mux.HandleFunc("POST /api/votes/{vote_id}/sign/idcard/complete", s.handleCompleteIDCard)
	s.mux.HandleFunc("POST /api/votes/{vote_id}/sign/mobileid/init", s.handleInitMobileID)
	s.mux.HandleFunc("GET /api/signing/status", s.handlePollStatus)

	s.mux.HandleFunc("GET /api/downloads/{container_ref}", s.handleDownloadContainer)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}
