// Package graph is the public face of the context graph: it validates
// mutations, enforces referential integrity, and ranks stored knowledge
// against a query with the scoring engine.
package graph

import (
	"fmt"
	"time"

	"github.com/lazypower/contextgraph/internal/model"
	"github.com/lazypower/contextgraph/internal/scoring"
	"go.uber.org/zap"
)

// Graph orchestrates a Storage backend and the scoring engine.
// It is built for a single writer: callers that share a Graph across
// goroutines must serialize mutations themselves.
type Graph struct {
	store   Storage
	cfg     scoring.Config
	scoreFn scoring.Func
	clock   func() time.Time
	log     *zap.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithScoringConfig overrides the default scoring knobs.
func WithScoringConfig(cfg scoring.Config) Option {
	return func(g *Graph) { g.cfg = cfg }
}

// WithScoreFunc replaces the built-in scoring formula.
func WithScoreFunc(fn scoring.Func) Option {
	return func(g *Graph) { g.scoreFn = fn }
}

// WithClock sets the time source used for creation timestamps and as the
// default "now" of SimilarContext.
func WithClock(clock func() time.Time) Option {
	return func(g *Graph) { g.clock = clock }
}

// WithLogger attaches a logger. Mutations are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(g *Graph) { g.log = l }
}

// New wraps store in a Graph. It fails if the scoring config is invalid.
func New(store Storage, opts ...Option) (*Graph, error) {
	g := &Graph{
		store:   store,
		cfg:     scoring.DefaultConfig(),
		scoreFn: scoring.Score,
		clock:   time.Now,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	if err := g.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}
	return g, nil
}

// ScoringConfig returns the active scoring config.
func (g *Graph) ScoringConfig() scoring.Config { return g.cfg }

// SetScoringConfig swaps the scoring config after validating it.
func (g *Graph) SetScoringConfig(cfg scoring.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}
	g.cfg = cfg
	return nil
}

// Close releases the underlying storage.
func (g *Graph) Close() error { return g.store.Close() }

// --- nodes ---

// AddNode validates n and persists it. Storage assigns the id when empty;
// a zero CreatedAt is stamped from the graph clock.
func (g *Graph) AddNode(n model.Node) (model.Node, error) {
	if err := model.ValidateNode(n); err != nil {
		return model.Node{}, err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = g.clock()
	}
	stored, err := g.store.CreateNode(n)
	if err != nil {
		return model.Node{}, err
	}
	g.log.Debug("node added", zap.String("id", stored.ID), zap.String("type", stored.Type))
	return stored, nil
}

// GetNode returns the node with id, or nil if there is none.
func (g *Graph) GetNode(id string) (*model.Node, error) {
	return g.store.GetNode(id)
}

// Nodes lists nodes matching filter in insertion order.
func (g *Graph) Nodes(filter model.NodeFilter) ([]model.Node, error) {
	return g.store.ListNodes(filter)
}

// UpdateNode applies patch to node id after validating the result.
func (g *Graph) UpdateNode(id string, patch model.NodePatch) (model.Node, error) {
	cur, err := g.store.GetNode(id)
	if err != nil {
		return model.Node{}, err
	}
	if cur == nil {
		return model.Node{}, model.NodeNotFound(id)
	}
	if err := model.ValidateNode(patch.Apply(*cur)); err != nil {
		return model.Node{}, err
	}
	updated, err := g.store.UpdateNode(id, patch)
	if err != nil {
		return model.Node{}, err
	}
	g.log.Debug("node updated", zap.String("id", id))
	return updated, nil
}

// UpdateConfidence sets the confidence of node id.
func (g *Graph) UpdateConfidence(id string, score float64) (model.Node, error) {
	if err := model.ValidateConfidence(score); err != nil {
		return model.Node{}, err
	}
	return g.UpdateNode(id, model.NodePatch{ConfidenceScore: &score})
}

// DeleteNode removes node id together with every edge touching it.
func (g *Graph) DeleteNode(id string) (bool, error) {
	removed, err := g.store.DeleteNode(id)
	if err != nil {
		return false, err
	}
	if removed {
		g.log.Debug("node deleted", zap.String("id", id))
	}
	return removed, nil
}

// --- edges ---

// AddEdge validates e, checks that both endpoints exist, and persists it.
func (g *Graph) AddEdge(e model.Edge) (model.Edge, error) {
	if err := model.ValidateEdge(e); err != nil {
		return model.Edge{}, err
	}
	if err := g.requireEndpoints(e.SourceID, e.TargetID); err != nil {
		return model.Edge{}, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = g.clock()
	}
	stored, err := g.store.CreateEdge(e)
	if model.IsNotFound(err) {
		return model.Edge{}, &model.IntegrityError{Reason: err.Error()}
	}
	if err != nil {
		return model.Edge{}, err
	}
	g.log.Debug("edge added",
		zap.String("id", stored.ID),
		zap.String("source", stored.SourceID),
		zap.String("target", stored.TargetID),
		zap.String("relation", stored.Relation))
	return stored, nil
}

// GetEdge returns the edge with id, or nil if there is none.
func (g *Graph) GetEdge(id string) (*model.Edge, error) {
	return g.store.GetEdge(id)
}

// Edges lists every edge in insertion order.
func (g *Graph) Edges() ([]model.Edge, error) {
	return g.store.ListEdges()
}

// EdgesFor lists the edges attached to node id in direction dir.
func (g *Graph) EdgesFor(id string, dir model.Direction) ([]model.Edge, error) {
	if !dir.Valid() {
		return nil, &model.ValidationError{Field: "direction", Reason: "must be one of outgoing, incoming, both"}
	}
	return g.store.EdgesFor(id, dir)
}

// UpdateEdge applies patch to edge id. Moving an endpoint to a node that
// does not exist is an integrity error.
func (g *Graph) UpdateEdge(id string, patch model.EdgePatch) (model.Edge, error) {
	cur, err := g.store.GetEdge(id)
	if err != nil {
		return model.Edge{}, err
	}
	if cur == nil {
		return model.Edge{}, model.EdgeNotFound(id)
	}
	next := patch.Apply(*cur)
	if err := model.ValidateEdge(next); err != nil {
		return model.Edge{}, err
	}
	if patch.MovesEndpoints(*cur) {
		if err := g.requireEndpoints(next.SourceID, next.TargetID); err != nil {
			return model.Edge{}, err
		}
	}
	updated, err := g.store.UpdateEdge(id, patch)
	if err != nil {
		return model.Edge{}, err
	}
	g.log.Debug("edge updated", zap.String("id", id))
	return updated, nil
}

// DeleteEdge removes edge id.
func (g *Graph) DeleteEdge(id string) (bool, error) {
	removed, err := g.store.DeleteEdge(id)
	if err != nil {
		return false, err
	}
	if removed {
		g.log.Debug("edge deleted", zap.String("id", id))
	}
	return removed, nil
}

func (g *Graph) requireEndpoints(sourceID, targetID string) error {
	for _, end := range []struct{ role, id string }{{"source", sourceID}, {"target", targetID}} {
		n, err := g.store.GetNode(end.id)
		if err != nil {
			return fmt.Errorf("check %s node: %w", end.role, err)
		}
		if n == nil {
			return &model.IntegrityError{Reason: fmt.Sprintf("%s node %q does not exist", end.role, end.id)}
		}
	}
	return nil
}
