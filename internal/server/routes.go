package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/model"
	"github.com/lazypower/contextgraph/internal/snapshot"
)

func badRequest(field, reason string) error {
	return &model.ValidationError{Field: field, Reason: reason}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("body", "invalid json")
	}
	return nil
}

// --- nodes ---

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	filter := model.NodeFilter{
		Type:   r.URL.Query().Get("type"),
		Source: r.URL.Query().Get("source"),
	}
	for _, raw := range r.URL.Query()["signal"] {
		k, v, ok := strings.Cut(raw, ":")
		if !ok || k == "" {
			s.writeError(w, r, badRequest("signal", "want key:value, got "+strconv.Quote(raw)))
			return
		}
		if filter.Signals == nil {
			filter.Signals = map[string]string{}
		}
		filter.Signals[k] = v
	}

	s.mu.RLock()
	nodes, err := s.graph.Nodes(filter)
	s.mu.RUnlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID              string            `json:"id"`
		Type            string            `json:"type"`
		Content         string            `json:"content"`
		Source          string            `json:"source"`
		Signals         map[string]string `json:"signals"`
		ConfidenceScore *float64          `json:"confidence_score"`
		CreatedAt       time.Time         `json:"created_at"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	n := model.NewNode(req.Type, req.Content)
	n.ID = req.ID
	n.Source = req.Source
	n.CreatedAt = req.CreatedAt
	if req.Signals != nil {
		n.Signals = req.Signals
	}
	if req.ConfidenceScore != nil {
		n.ConfidenceScore = *req.ConfidenceScore
	}

	s.mu.Lock()
	created, err := s.graph.AddNode(n)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.mutated("add_node")
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	s.mu.RLock()
	n, err := s.graph.GetNode(id)
	s.mu.RUnlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if n == nil {
		s.writeError(w, r, model.NodeNotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handlePatchNode(w http.ResponseWriter, r *http.Request) {
	var patch model.NodePatch
	if err := decode(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.mu.Lock()
	n, err := s.graph.UpdateNode(chi.URLParam(r, "nodeID"), patch)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.mutated("update_node")
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	s.mu.Lock()
	removed, err := s.graph.DeleteNode(id)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !removed {
		s.writeError(w, r, model.NodeNotFound(id))
		return
	}
	s.metrics.mutated("delete_node")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNodeEdges(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	dir, err := model.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.graph.GetNode(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if n == nil {
		s.writeError(w, r, model.NodeNotFound(id))
		return
	}
	edges, err := s.graph.EdgesFor(id, dir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"edges": edges})
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, err := model.ParseDirection(q.Get("direction"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := graph.RelatedOpts{Relation: q.Get("relation"), Direction: dir}
	if raw := q.Get("depth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, badRequest("depth", "must be an integer"))
			return
		}
		opts.MaxDepth = depth
	}

	s.mu.RLock()
	nodes, err := s.graph.GetRelated(chi.URLParam(r, "nodeID"), opts)
	s.mu.RUnlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

// --- edges ---

func (s *Server) handleListEdges(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	edges, err := s.graph.Edges()
	s.mu.RUnlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"edges": edges})
}

func (s *Server) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID        string    `json:"id"`
		SourceID  string    `json:"source_id"`
		TargetID  string    `json:"target_id"`
		Relation  string    `json:"relation"`
		Weight    *float64  `json:"weight"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e := model.NewEdge(req.SourceID, req.TargetID, req.Relation)
	e.ID = req.ID
	e.CreatedAt = req.CreatedAt
	if req.Weight != nil {
		e.Weight = *req.Weight
	}

	s.mu.Lock()
	created, err := s.graph.AddEdge(e)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.mutated("add_edge")
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetEdge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "edgeID")
	s.mu.RLock()
	e, err := s.graph.GetEdge(id)
	s.mu.RUnlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if e == nil {
		s.writeError(w, r, model.EdgeNotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handlePatchEdge(w http.ResponseWriter, r *http.Request) {
	var patch model.EdgePatch
	if err := decode(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.mu.Lock()
	e, err := s.graph.UpdateEdge(chi.URLParam(r, "edgeID"), patch)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.mutated("update_edge")
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "edgeID")
	s.mu.Lock()
	removed, err := s.graph.DeleteEdge(id)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !removed {
		s.writeError(w, r, model.EdgeNotFound(id))
		return
	}
	s.metrics.mutated("delete_edge")
	w.WriteHeader(http.StatusNoContent)
}

// --- queries ---

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signals  map[string]string `json:"signals"`
		Limit    int               `json:"limit"`
		Type     string            `json:"type"`
		MinScore float64           `json:"min_score"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Limit < 0 {
		s.writeError(w, r, badRequest("limit", "must be >= 0"))
		return
	}

	s.mu.RLock()
	matches, err := s.graph.SimilarContext(req.Signals, graph.SimilarOpts{
		Limit:    req.Limit,
		Type:     req.Type,
		MinScore: req.MinScore,
	})
	s.mu.RUnlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.results.Observe(float64(len(matches)))
	writeJSON(w, http.StatusOK, map[string]any{"results": matches})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	doc, err := snapshot.Capture(s.graph)
	s.mu.RUnlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
