// Package server exposes a context graph over a JSON HTTP API.
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/model"
	"github.com/lazypower/contextgraph/internal/scoring"
	"go.uber.org/zap"
)

// Options configures a Server.
type Options struct {
	Version     string
	Backend     string
	CORSOrigins []string
	Logger      *zap.Logger
}

// Server is the contextgraph HTTP API server. The facade is built for a
// single writer, so mutating handlers take an exclusive lock and read-only
// handlers a shared one.
type Server struct {
	mu      sync.RWMutex
	graph   *graph.Graph
	router  chi.Router
	metrics *metrics
	log     *zap.Logger
	version string
	backend string
	started time.Time
}

// New creates a Server serving g.
func New(g *graph.Graph, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		graph:   g,
		metrics: newMetrics(),
		log:     log,
		version: opts.Version,
		backend: opts.Backend,
		started: time.Now(),
	}
	s.routes(opts.CORSOrigins)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetScoringConfig swaps the scoring config between requests.
func (s *Server) SetScoringConfig(cfg scoring.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.SetScoringConfig(cfg)
}

func (s *Server) routes(corsOrigins []string) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(s.metrics.instrument)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Handle("/metrics", s.metrics.handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", s.handleListNodes)
			r.Post("/", s.handleCreateNode)
			r.Get("/{nodeID}", s.handleGetNode)
			r.Patch("/{nodeID}", s.handlePatchNode)
			r.Delete("/{nodeID}", s.handleDeleteNode)
			r.Get("/{nodeID}/edges", s.handleNodeEdges)
			r.Get("/{nodeID}/related", s.handleRelated)
		})

		r.Route("/edges", func(r chi.Router) {
			r.Get("/", s.handleListEdges)
			r.Post("/", s.handleCreateEdge)
			r.Get("/{edgeID}", s.handleGetEdge)
			r.Patch("/{edgeID}", s.handlePatchEdge)
			r.Delete("/{edgeID}", s.handleDeleteEdge)
		})

		r.Post("/similar", s.handleSimilar)
		r.Get("/snapshot", s.handleSnapshot)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	nodes, err := s.graph.Nodes(model.NodeFilter{})
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"backend": s.backend,
		"uptime":  time.Since(s.started).Seconds(),
		"storage": err == nil,
		"nodes":   len(nodes),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case model.IsValidation(err):
		status = http.StatusBadRequest
	case model.IsNotFound(err):
		status = http.StatusNotFound
	case model.IsIntegrity(err):
		status = http.StatusConflict
	default:
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("requestID", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
