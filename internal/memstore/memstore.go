// Package memstore is the in-process Storage backend. Nothing survives the
// process; use it for tests, scratch graphs, and short-lived tooling.
package memstore

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/model"
)

var _ graph.Storage = (*Store)(nil)

// Store keeps nodes and edges in maps plus insertion-order id lists.
type Store struct {
	mu        sync.RWMutex
	nodes     map[string]model.Node
	nodeOrder []string
	edges     map[string]model.Edge
	edgeOrder []string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nodes: map[string]model.Node{},
		edges: map[string]model.Edge{},
	}
}

// CreateNode stores a copy of n.
func (s *Store) CreateNode(n model.Node) (model.Node, error) {
	if err := model.ValidateNode(n); err != nil {
		return model.Node{}, err
	}
	n = n.Clone()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = model.Timestamp(stamp(n.CreatedAt))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.nodes[n.ID]; dup {
		return model.Node{}, &model.IntegrityError{Reason: fmt.Sprintf("node %q already exists", n.ID)}
	}
	s.nodes[n.ID] = n
	s.nodeOrder = append(s.nodeOrder, n.ID)
	return n.Clone(), nil
}

// GetNode returns a copy of node id, or nil.
func (s *Store) GetNode(id string) (*model.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	c := n.Clone()
	return &c, nil
}

// UpdateNode applies patch to node id.
func (s *Store) UpdateNode(id string, patch model.NodePatch) (model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.nodes[id]
	if !ok {
		return model.Node{}, model.NodeNotFound(id)
	}
	next := patch.Apply(cur)
	if err := model.ValidateNode(next); err != nil {
		return model.Node{}, err
	}
	s.nodes[id] = next
	return next.Clone(), nil
}

// DeleteNode removes node id and every edge touching it.
func (s *Store) DeleteNode(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return false, nil
	}
	delete(s.nodes, id)
	s.nodeOrder = slices.DeleteFunc(s.nodeOrder, func(x string) bool { return x == id })

	s.edgeOrder = slices.DeleteFunc(s.edgeOrder, func(eid string) bool {
		if s.edges[eid].Touches(id) {
			delete(s.edges, eid)
			return true
		}
		return false
	})
	return true, nil
}

// ListNodes returns nodes matching filter in insertion order.
func (s *Store) ListNodes(filter model.NodeFilter) ([]model.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Node{}
	for _, id := range s.nodeOrder {
		n := s.nodes[id]
		if filter.Match(n) {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

// CreateEdge stores e after checking both endpoints exist.
func (s *Store) CreateEdge(e model.Edge) (model.Edge, error) {
	if err := model.ValidateEdge(e); err != nil {
		return model.Edge{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = model.Timestamp(stamp(e.CreatedAt))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireNodes(e); err != nil {
		return model.Edge{}, err
	}
	if _, dup := s.edges[e.ID]; dup {
		return model.Edge{}, &model.IntegrityError{Reason: fmt.Sprintf("edge %q already exists", e.ID)}
	}
	s.edges[e.ID] = e
	s.edgeOrder = append(s.edgeOrder, e.ID)
	return e, nil
}

// GetEdge returns a copy of edge id, or nil.
func (s *Store) GetEdge(id string) (*model.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// UpdateEdge applies patch to edge id.
func (s *Store) UpdateEdge(id string, patch model.EdgePatch) (model.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.edges[id]
	if !ok {
		return model.Edge{}, model.EdgeNotFound(id)
	}
	next := patch.Apply(cur)
	if err := model.ValidateEdge(next); err != nil {
		return model.Edge{}, err
	}
	if err := s.requireNodes(next); err != nil {
		return model.Edge{}, err
	}
	s.edges[id] = next
	return next, nil
}

// DeleteEdge removes edge id.
func (s *Store) DeleteEdge(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edges[id]; !ok {
		return false, nil
	}
	delete(s.edges, id)
	s.edgeOrder = slices.DeleteFunc(s.edgeOrder, func(x string) bool { return x == id })
	return true, nil
}

// EdgesFor returns edges attached to nodeID in direction dir.
func (s *Store) EdgesFor(nodeID string, dir model.Direction) ([]model.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Edge{}
	for _, id := range s.edgeOrder {
		e := s.edges[id]
		if dir.Matches(e, nodeID) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListEdges returns every edge in insertion order.
func (s *Store) ListEdges() ([]model.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Edge, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		out = append(out, s.edges[id])
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) requireNodes(e model.Edge) error {
	if _, ok := s.nodes[e.SourceID]; !ok {
		return model.NodeNotFound(e.SourceID)
	}
	if _, ok := s.nodes[e.TargetID]; !ok {
		return model.NodeNotFound(e.TargetID)
	}
	return nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
