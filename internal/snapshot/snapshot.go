// Package snapshot dumps a graph to a portable JSON document and loads it
// back into any storage backend.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/model"
)

// Version is the document format written by Dump.
const Version = "1"

// Document is the on-disk shape of a snapshot. Field order fixes key order.
type Document struct {
	Version string       `json:"version"`
	Nodes   []model.Node `json:"nodes"`
	Edges   []model.Edge `json:"edges"`
}

// wireDocument is the decoding side of Document. Pointer numbers tell an
// absent confidence or weight apart from an explicit zero.
type wireDocument struct {
	Version string     `json:"version"`
	Nodes   []wireNode `json:"nodes"`
	Edges   []wireEdge `json:"edges"`
}

type wireNode struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Content         string            `json:"content"`
	Source          string            `json:"source"`
	Signals         map[string]string `json:"signals"`
	ConfidenceScore *float64          `json:"confidence_score"`
	CreatedAt       time.Time         `json:"created_at"`
}

type wireEdge struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Relation  string    `json:"relation"`
	Weight    *float64  `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

// document applies the defaults of model.NewNode and model.NewEdge to
// entries that leave confidence_score or weight out.
func (w wireDocument) document() Document {
	doc := Document{
		Version: w.Version,
		Nodes:   make([]model.Node, 0, len(w.Nodes)),
		Edges:   make([]model.Edge, 0, len(w.Edges)),
	}
	for _, wn := range w.Nodes {
		n := model.NewNode(wn.Type, wn.Content)
		n.ID = wn.ID
		n.Source = wn.Source
		if wn.Signals != nil {
			n.Signals = wn.Signals
		}
		if wn.ConfidenceScore != nil {
			n.ConfidenceScore = *wn.ConfidenceScore
		}
		n.CreatedAt = wn.CreatedAt
		doc.Nodes = append(doc.Nodes, n)
	}
	for _, we := range w.Edges {
		e := model.NewEdge(we.SourceID, we.TargetID, we.Relation)
		e.ID = we.ID
		if we.Weight != nil {
			e.Weight = *we.Weight
		}
		e.CreatedAt = we.CreatedAt
		doc.Edges = append(doc.Edges, e)
	}
	return doc
}

// Capture reads every node and edge of g in insertion order.
func Capture(g *graph.Graph) (Document, error) {
	nodes, err := g.Nodes(model.NodeFilter{})
	if err != nil {
		return Document{}, fmt.Errorf("list nodes: %w", err)
	}
	edges, err := g.Edges()
	if err != nil {
		return Document{}, fmt.Errorf("list edges: %w", err)
	}
	if nodes == nil {
		nodes = []model.Node{}
	}
	if edges == nil {
		edges = []model.Edge{}
	}
	return Document{Version: Version, Nodes: nodes, Edges: edges}, nil
}

// Dump writes g to w as an indented JSON document.
func Dump(g *graph.Graph, w io.Writer) error {
	doc, err := Capture(g)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// DumpFile writes g to path, replacing it atomically.
func DumpFile(g *graph.Graph, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Dump(g, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load decodes a document from r and replays it into store through a new
// facade, nodes first, preserving ids and timestamps. A node without
// confidence_score gets 1.0 and an edge without weight gets 1.0. The facade
// is returned ready for use.
func Load(r io.Reader, store graph.Storage, opts ...graph.Option) (*graph.Graph, error) {
	var wire wireDocument
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, &model.ValidationError{Field: "snapshot", Reason: fmt.Sprintf("malformed document: %v", err)}
	}
	doc := wire.document()
	g, err := graph.New(store, opts...)
	if err != nil {
		return nil, err
	}
	if err := Restore(g, doc); err != nil {
		return nil, err
	}
	return g, nil
}

// Restore replays doc into g.
func Restore(g *graph.Graph, doc Document) error {
	if doc.Version != Version {
		return &model.ValidationError{Field: "version", Reason: fmt.Sprintf("unsupported snapshot version %q", doc.Version)}
	}
	for i, n := range doc.Nodes {
		if _, err := g.AddNode(n); err != nil {
			return fmt.Errorf("node %d (%s): %w", i, n.ID, err)
		}
	}
	for i, e := range doc.Edges {
		if _, err := g.AddEdge(e); err != nil {
			return fmt.Errorf("edge %d (%s): %w", i, e.ID, err)
		}
	}
	return nil
}

// LoadFile is Load reading from path.
func LoadFile(path string, store graph.Storage, opts ...graph.Option) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Load(f, store, opts...)
}
