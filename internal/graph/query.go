package graph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lazypower/contextgraph/internal/model"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// DefaultLimit caps SimilarContext results when no limit is given.
const DefaultLimit = 10

// RelatedOpts controls GetRelated. The zero value follows edges of any
// relation in both directions, one hop out.
type RelatedOpts struct {
	Relation  string
	Direction model.Direction
	MaxDepth  int
}

// SimilarOpts controls SimilarContext.
type SimilarOpts struct {
	// Limit caps the result count. Zero or less means DefaultLimit.
	Limit int
	// Type restricts candidates to one node type.
	Type string
	// MinScore drops candidates scoring below it.
	MinScore float64
	// Now overrides the graph clock for decay.
	Now time.Time
}

// Match is a ranked SimilarContext result.
type Match struct {
	Node  model.Node `json:"node"`
	Score float64    `json:"score"`
}

// GetRelated walks the graph breadth-first from id and returns every node
// reachable within opts.MaxDepth hops, in discovery order. The start node
// is never part of the result and each node appears once, so cycles are
// safe.
func (g *Graph) GetRelated(id string, opts RelatedOpts) ([]model.Node, error) {
	start, err := g.store.GetNode(id)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return nil, model.NodeNotFound(id)
	}

	dir := opts.Direction
	if dir == "" {
		dir = model.Both
	}
	if !dir.Valid() {
		return nil, &model.ValidationError{Field: "direction", Reason: "must be one of outgoing, incoming, both"}
	}
	depth := opts.MaxDepth
	if depth <= 0 {
		depth = 1
	}

	found := orderedmap.New[string, model.Node]()
	frontier := []string{id}
	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []string
		for _, cur := range frontier {
			edges, err := g.store.EdgesFor(cur, dir)
			if err != nil {
				return nil, fmt.Errorf("edges for %q: %w", cur, err)
			}
			for _, e := range edges {
				if opts.Relation != "" && e.Relation != opts.Relation {
					continue
				}
				nb := e.Other(cur)
				if nb == id {
					continue
				}
				if _, seen := found.Get(nb); seen {
					continue
				}
				n, err := g.store.GetNode(nb)
				if err != nil {
					return nil, err
				}
				if n == nil {
					continue
				}
				found.Set(nb, *n)
				next = append(next, nb)
			}
		}
		frontier = next
	}

	out := make([]model.Node, 0, found.Len())
	for p := found.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value)
	}
	return out, nil
}

// SimilarContext ranks nodes against query. Scores are rounded to the
// configured precision; ties break by newer CreatedAt, then by id.
func (g *Graph) SimilarContext(query map[string]string, opts SimilarOpts) ([]Match, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	now := opts.Now
	if now.IsZero() {
		now = g.clock()
	}

	candidates, err := g.store.ListNodes(model.NodeFilter{Type: opts.Type})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	matches := make([]Match, 0, len(candidates))
	for _, n := range candidates {
		edges, err := g.store.EdgesFor(n.ID, model.Both)
		if err != nil {
			return nil, fmt.Errorf("edges for %q: %w", n.ID, err)
		}
		score := g.cfg.Round(g.scoreFn(n, query, now, edges, g.cfg))
		if score < opts.MinScore {
			continue
		}
		matches = append(matches, Match{Node: n, Score: score})
	}

	slices.SortFunc(matches, compareMatches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	g.log.Debug("similar context",
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(matches)))
	return matches, nil
}

func compareMatches(a, b Match) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := b.Node.CreatedAt.Compare(a.Node.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.Node.ID, b.Node.ID)
}
