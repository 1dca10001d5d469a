// Package server exposes the extraction pipeline and artifact registry over
// HTTP. The basic-auth username is the owning principal for every artifact
// operation.
package server

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/HikariJones/Inclusive-AI-UMKM/internal/pipeline"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/repository"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/storage"
)

// Credentials is one accepted basic-auth principal.
type Credentials struct {
	Username string
	Password string
}

// Server handles HTTP requests for extractions and artifacts.
type Server struct {
	processor *pipeline.Processor
	registry  repository.ArtifactRegistry
	store     storage.Storage
	creds     []Credentials
	mux       *http.ServeMux
	logger    *slog.Logger
}

// New creates a Server with a default mux.
func New(proc *pipeline.Processor, reg repository.ArtifactRegistry, store storage.Storage, creds []Credentials, logger *slog.Logger) *Server {
	return NewWithMux(proc, reg, store, creds, logger, http.NewServeMux())
}

// NewWithMux creates a Server with a custom mux for testing.
func NewWithMux(proc *pipeline.Processor, reg repository.ArtifactRegistry, store storage.Storage, creds []Credentials, logger *slog.Logger, mux *http.ServeMux) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		processor: proc,
		registry:  reg,
		store:     store,
		creds:     creds,
		mux:       mux,
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/extractions", s.requireAuth(s.handleSubmit))
	s.mux.HandleFunc("GET /api/artifacts/{id}", s.requireAuth(s.handleGetArtifact))
	s.mux.HandleFunc("GET /api/artifacts", s.requireAuth(s.handleListArtifacts))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("OPTIONS /", s.handlePreflight)
}

// principal returns the authenticated basic-auth username, or "" when the
// credentials do not match any configured principal.
func (s *Server) principal(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return ""
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return ""
	}
	for _, c := range s.creds {
		if parts[0] == c.Username && parts[1] == c.Password {
			return c.Username
		}
	}
	return ""
}

type authedHandler func(w http.ResponseWriter, r *http.Request, owner string)

func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		owner := s.principal(r)
		if owner == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="Laporan"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, owner)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}
