// Package model defines the node and edge value types of the context graph,
// their validation rules, and the error taxonomy shared by every backend.
package model

import (
	"maps"
	"time"
)

// Node is a typed, timestamped unit of institutional knowledge. Source is
// optional provenance such as "jira", "slack" or "manual".
type Node struct {
	ID              string            `json:"id" validate:"utf8"`
	Type            string            `json:"type" validate:"required,utf8"`
	Content         string            `json:"content" validate:"required,utf8"`
	Source          string            `json:"source,omitempty" validate:"utf8"`
	Signals         map[string]string `json:"signals"`
	ConfidenceScore float64           `json:"confidence_score" validate:"gte=0,lte=1"`
	CreatedAt       time.Time         `json:"created_at"`
}

// NewNode returns a node with an empty signal set and full confidence.
func NewNode(nodeType, content string) Node {
	return Node{
		Type:            nodeType,
		Content:         content,
		Signals:         map[string]string{},
		ConfidenceScore: 1.0,
	}
}

// WithSignal returns a copy of n with key set to value.
func (n Node) WithSignal(key, value string) Node {
	c := n.Clone()
	if c.Signals == nil {
		c.Signals = map[string]string{}
	}
	c.Signals[key] = value
	return c
}

// Clone returns a deep copy, so callers can never alias stored signal maps.
func (n Node) Clone() Node {
	c := n
	if n.Signals != nil {
		c.Signals = maps.Clone(n.Signals)
	} else {
		c.Signals = map[string]string{}
	}
	return c
}

// Edge is a directed, weighted, labeled relation between two nodes.
// Self-loops and parallel edges with the same relation are allowed.
type Edge struct {
	ID        string    `json:"id" validate:"utf8"`
	SourceID  string    `json:"source_id" validate:"required,utf8"`
	TargetID  string    `json:"target_id" validate:"required,utf8"`
	Relation  string    `json:"relation" validate:"required,utf8"`
	Weight    float64   `json:"weight" validate:"gte=0"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEdge returns an edge with the default weight of 1.0.
func NewEdge(sourceID, targetID, relation string) Edge {
	return Edge{
		SourceID: sourceID,
		TargetID: targetID,
		Relation: relation,
		Weight:   1.0,
	}
}

// Touches reports whether the edge has id as source or target.
func (e Edge) Touches(id string) bool {
	return e.SourceID == id || e.TargetID == id
}

// Other returns the endpoint opposite to id.
func (e Edge) Other(id string) string {
	if e.SourceID == id {
		return e.TargetID
	}
	return e.SourceID
}

// Direction selects which edges of a node to consider.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	Both     Direction = "both"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	switch d {
	case Outgoing, Incoming, Both:
		return true
	}
	return false
}

// Matches reports whether edge e is attached to nodeID in direction d.
func (d Direction) Matches(e Edge, nodeID string) bool {
	switch d {
	case Outgoing:
		return e.SourceID == nodeID
	case Incoming:
		return e.TargetID == nodeID
	default:
		return e.Touches(nodeID)
	}
}

// ParseDirection maps an empty string to Both and rejects unknown values.
func ParseDirection(s string) (Direction, error) {
	if s == "" {
		return Both, nil
	}
	d := Direction(s)
	if !d.Valid() {
		return "", &ValidationError{Field: "direction", Reason: "must be one of outgoing, incoming, both"}
	}
	return d, nil
}

// NodeFilter narrows ListNodes. Every filter signal must be present on the
// node with an equal value.
type NodeFilter struct {
	Type    string
	Source  string
	Signals map[string]string
}

// Match reports whether n passes the filter.
func (f NodeFilter) Match(n Node) bool {
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.Source != "" && n.Source != f.Source {
		return false
	}
	for k, v := range f.Signals {
		if got, ok := n.Signals[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// NodePatch lists node fields to change. Nil fields are left alone; a
// non-nil Signals map, even an empty one, replaces the whole set.
type NodePatch struct {
	Type            *string           `json:"type,omitempty"`
	Content         *string           `json:"content,omitempty"`
	Source          *string           `json:"source,omitempty"`
	Signals         map[string]string `json:"signals,omitempty"`
	ConfidenceScore *float64          `json:"confidence_score,omitempty"`
}

// Apply returns a copy of n with the patch applied. The result is not
// validated.
func (p NodePatch) Apply(n Node) Node {
	c := n.Clone()
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.Source != nil {
		c.Source = *p.Source
	}
	if p.Signals != nil {
		c.Signals = maps.Clone(p.Signals)
	}
	if p.ConfidenceScore != nil {
		c.ConfidenceScore = *p.ConfidenceScore
	}
	return c
}

// EdgePatch lists edge fields to change. Nil fields are left alone.
type EdgePatch struct {
	SourceID *string  `json:"source_id,omitempty"`
	TargetID *string  `json:"target_id,omitempty"`
	Relation *string  `json:"relation,omitempty"`
	Weight   *float64 `json:"weight,omitempty"`
}

// Apply returns a copy of e with the patch applied.
func (p EdgePatch) Apply(e Edge) Edge {
	if p.SourceID != nil {
		e.SourceID = *p.SourceID
	}
	if p.TargetID != nil {
		e.TargetID = *p.TargetID
	}
	if p.Relation != nil {
		e.Relation = *p.Relation
	}
	if p.Weight != nil {
		e.Weight = *p.Weight
	}
	return e
}

// MovesEndpoints reports whether the patch changes either endpoint of e.
func (p EdgePatch) MovesEndpoints(e Edge) bool {
	return (p.SourceID != nil && *p.SourceID != e.SourceID) ||
		(p.TargetID != nil && *p.TargetID != e.TargetID)
}

// Timestamp canonicalizes t for storage: UTC, monotonic reading stripped.
// Both backends keep nanosecond precision so scores survive a backend swap.
func Timestamp(t time.Time) time.Time {
	return t.Round(0).UTC()
}
