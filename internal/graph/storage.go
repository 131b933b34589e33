package graph

import "github.com/lazypower/contextgraph/internal/model"

// Storage is the capability set every backend implements. The facade relies
// on these guarantees, which each backend must uphold identically:
//
//   - read-after-write visibility within one instance
//   - DeleteNode removes every incident edge in the same mutation
//   - CreateEdge and UpdateEdge reject endpoints that do not exist
//   - returned values are snapshots; mutating them never changes storage
//   - ListNodes, ListEdges and EdgesFor return entities in insertion order
//
// Getters return nil, nil for an unknown id. Mutations on an unknown id
// return a *model.NotFoundError.
type Storage interface {
	// CreateNode assigns an id and timestamp when absent, validates and
	// persists the node, and returns its stored form. A duplicate id is a
	// *model.IntegrityError.
	CreateNode(n model.Node) (model.Node, error)
	GetNode(id string) (*model.Node, error)
	UpdateNode(id string, patch model.NodePatch) (model.Node, error)
	// DeleteNode reports whether a node was removed.
	DeleteNode(id string) (bool, error)
	ListNodes(filter model.NodeFilter) ([]model.Node, error)

	CreateEdge(e model.Edge) (model.Edge, error)
	GetEdge(id string) (*model.Edge, error)
	UpdateEdge(id string, patch model.EdgePatch) (model.Edge, error)
	DeleteEdge(id string) (bool, error)
	// EdgesFor returns the edges attached to nodeID in direction dir.
	// A self-loop is returned once.
	EdgesFor(nodeID string, dir model.Direction) ([]model.Edge, error)
	ListEdges() ([]model.Edge, error)

	Close() error
}
