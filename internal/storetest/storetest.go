// Package storetest is the conformance suite every graph.Storage backend
// must pass. Backends call Run from their own tests.
package storetest

import (
	"testing"
	"time"

	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns a fresh, empty backend. It should register its own cleanup.
type Opener func(t *testing.T) graph.Storage

var t0 = time.Date(2025, 3, 14, 15, 9, 26, 535897932, time.UTC)

// Run exercises the full Storage contract against backends built by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(*testing.T, graph.Storage)
	}{
		{"CreateAssignsIDAndTimestamp", testCreateAssigns},
		{"CreateKeepsGivenIDAndTimestamp", testCreateKeeps},
		{"DuplicateNodeID", testDuplicateNode},
		{"CreateValidates", testCreateValidates},
		{"GetMissing", testGetMissing},
		{"ReturnedValuesAreCopies", testCopies},
		{"UpdateNode", testUpdateNode},
		{"UpdateMissing", testUpdateMissing},
		{"ListNodesOrderAndFilter", testListNodes},
		{"EdgeEndpointsMustExist", testEdgeEndpoints},
		{"EdgesForDirections", testEdgesFor},
		{"SelfLoopAndParallelEdges", testSelfLoop},
		{"UpdateEdge", testUpdateEdge},
		{"DeleteEdge", testDeleteEdge},
		{"DeleteNodeCascades", testCascade},
		{"DeleteMissingNode", testDeleteMissing},
		{"TimestampRange", testTimestampRange},
		{"TextMustBeUTF8", testUTF8},
		{"SourceRoundTripAndFilter", testSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

func mustNode(t *testing.T, s graph.Storage, id string, signals map[string]string) model.Node {
	t.Helper()
	n := model.NewNode("event", "content of "+id)
	n.ID = id
	n.Signals = signals
	n.CreatedAt = t0
	stored, err := s.CreateNode(n)
	require.NoError(t, err)
	return stored
}

func mustEdge(t *testing.T, s graph.Storage, src, tgt, rel string) model.Edge {
	t.Helper()
	e := model.NewEdge(src, tgt, rel)
	e.CreatedAt = t0
	stored, err := s.CreateEdge(e)
	require.NoError(t, err)
	return stored
}

func ids[T interface{ model.Node | model.Edge }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := any(it).(type) {
		case model.Node:
			out = append(out, v.ID)
		case model.Edge:
			out = append(out, v.ID)
		}
	}
	return out
}

func testCreateAssigns(t *testing.T, s graph.Storage) {
	before := time.Now().Add(-time.Second)
	n, err := s.CreateNode(model.NewNode("decision", "Migrated to K8s"))
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.Before(before), "created_at %v before %v", n.CreatedAt, before)

	got, err := s.GetNode(n.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Migrated to K8s", got.Content)
	assert.True(t, got.CreatedAt.Equal(n.CreatedAt))

	e, err := s.CreateEdge(model.NewEdge(n.ID, n.ID, "relates_to"))
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func testCreateKeeps(t *testing.T, s graph.Storage) {
	n := mustNode(t, s, "n1", map[string]string{"service": "x"})
	assert.Equal(t, "n1", n.ID)
	assert.True(t, n.CreatedAt.Equal(t0))

	got, err := s.GetNode("n1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CreatedAt.Equal(t0), "nanoseconds survive storage: %v", got.CreatedAt)
	assert.Equal(t, map[string]string{"service": "x"}, got.Signals)
	assert.Equal(t, 1.0, got.ConfidenceScore)
}

func testDuplicateNode(t *testing.T, s graph.Storage) {
	mustNode(t, s, "dup", nil)
	_, err := s.CreateNode(model.Node{ID: "dup", Type: "event", Content: "again", ConfidenceScore: 1})
	assert.True(t, model.IsIntegrity(err), "want integrity error, got %v", err)

	all, err := s.ListNodes(model.NodeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testCreateValidates(t *testing.T, s graph.Storage) {
	_, err := s.CreateNode(model.Node{Type: "event", Content: "x", ConfidenceScore: 1.5})
	assert.True(t, model.IsValidation(err), "got %v", err)

	mustNode(t, s, "a", nil)
	_, err = s.CreateEdge(model.Edge{SourceID: "a", TargetID: "a", Relation: "", Weight: 1})
	assert.True(t, model.IsValidation(err), "got %v", err)

	all, err := s.ListNodes(model.NodeFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testGetMissing(t *testing.T, s graph.Storage) {
	n, err := s.GetNode("nope")
	require.NoError(t, err)
	assert.Nil(t, n)

	e, err := s.GetEdge("nope")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func testCopies(t *testing.T, s graph.Storage) {
	mustNode(t, s, "a", map[string]string{"k": "v"})
	got, err := s.GetNode("a")
	require.NoError(t, err)
	got.Signals["k"] = "changed"
	got.Content = "changed"

	again, err := s.GetNode("a")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Signals["k"])
	assert.Equal(t, "content of a", again.Content)

	list, err := s.ListNodes(model.NodeFilter{})
	require.NoError(t, err)
	list[0].Signals["k"] = "changed"
	again, err = s.GetNode("a")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Signals["k"])
}

func testUpdateNode(t *testing.T, s graph.Storage) {
	mustNode(t, s, "a", map[string]string{"k": "v"})
	content := "rewritten"
	conf := 0.4
	updated, err := s.UpdateNode("a", model.NodePatch{Content: &content, ConfidenceScore: &conf})
	require.NoError(t, err)
	assert.Equal(t, "rewritten", updated.Content)
	assert.Equal(t, 0.4, updated.ConfidenceScore)
	assert.Equal(t, "v", updated.Signals["k"])
	assert.True(t, updated.CreatedAt.Equal(t0), "created_at is immutable")

	got, err := s.GetNode("a")
	require.NoError(t, err)
	assert.Equal(t, "rewritten", got.Content)

	bad := 7.0
	_, err = s.UpdateNode("a", model.NodePatch{ConfidenceScore: &bad})
	assert.True(t, model.IsValidation(err), "got %v", err)
	got, err = s.GetNode("a")
	require.NoError(t, err)
	assert.Equal(t, 0.4, got.ConfidenceScore, "failed update leaves node unchanged")
}

func testUpdateMissing(t *testing.T, s graph.Storage) {
	content := "x"
	_, err := s.UpdateNode("ghost", model.NodePatch{Content: &content})
	assert.True(t, model.IsNotFound(err), "got %v", err)

	rel := "r"
	_, err = s.UpdateEdge("ghost", model.EdgePatch{Relation: &rel})
	assert.True(t, model.IsNotFound(err), "got %v", err)
}

func testListNodes(t *testing.T, s graph.Storage) {
	for _, id := range []string{"c", "a", "b"} {
		mustNode(t, s, id, map[string]string{"team": "core", "name": id})
	}
	d := model.NewNode("decision", "pick one")
	d.ID = "d"
	_, err := s.CreateNode(d)
	require.NoError(t, err)

	all, err := s.ListNodes(model.NodeFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(all), "insertion order")

	events, err := s.ListNodes(model.NodeFilter{Type: "event"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(events))

	bySignal, err := s.ListNodes(model.NodeFilter{Signals: map[string]string{"name": "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(bySignal))

	none, err := s.ListNodes(model.NodeFilter{Type: "missing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testEdgeEndpoints(t *testing.T, s graph.Storage) {
	mustNode(t, s, "a", nil)
	_, err := s.CreateEdge(model.NewEdge("a", "ghost", "r"))
	assert.True(t, model.IsNotFound(err), "got %v", err)
	_, err = s.CreateEdge(model.NewEdge("ghost", "a", "r"))
	assert.True(t, model.IsNotFound(err), "got %v", err)

	edges, err := s.ListEdges()
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func testEdgesFor(t *testing.T, s graph.Storage) {
	for _, id := range []string{"a", "b", "c"} {
		mustNode(t, s, id, nil)
	}
	ab := mustEdge(t, s, "a", "b", "r")
	ca := mustEdge(t, s, "c", "a", "r")
	bc := mustEdge(t, s, "b", "c", "r")

	out, err := s.EdgesFor("a", model.Outgoing)
	require.NoError(t, err)
	assert.Equal(t, []string{ab.ID}, ids(out))

	in, err := s.EdgesFor("a", model.Incoming)
	require.NoError(t, err)
	assert.Equal(t, []string{ca.ID}, ids(in))

	both, err := s.EdgesFor("a", model.Both)
	require.NoError(t, err)
	assert.Equal(t, []string{ab.ID, ca.ID}, ids(both))

	all, err := s.ListEdges()
	require.NoError(t, err)
	assert.Equal(t, []string{ab.ID, ca.ID, bc.ID}, ids(all))

	none, err := s.EdgesFor("ghost", model.Both)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testSelfLoop(t *testing.T, s graph.Storage) {
	mustNode(t, s, "a", nil)
	mustNode(t, s, "b", nil)
	loop := mustEdge(t, s, "a", "a", "refines")
	p1 := mustEdge(t, s, "a", "b", "related_to")
	p2 := mustEdge(t, s, "a", "b", "related_to")
	assert.NotEqual(t, p1.ID, p2.ID)

	both, err := s.EdgesFor("a", model.Both)
	require.NoError(t, err)
	assert.Equal(t, []string{loop.ID, p1.ID, p2.ID}, ids(both), "self-loop listed once")

	out, err := s.EdgesFor("a", model.Outgoing)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	in, err := s.EdgesFor("a", model.Incoming)
	require.NoError(t, err)
	assert.Equal(t, []string{loop.ID}, ids(in))
}

func testUpdateEdge(t *testing.T, s graph.Storage) {
	mustNode(t, s, "a", nil)
	mustNode(t, s, "b", nil)
	mustNode(t, s, "c", nil)
	e := mustEdge(t, s, "a", "b", "r")

	w := 0.25
	target := "c"
	updated, err := s.UpdateEdge(e.ID, model.EdgePatch{Weight: &w, TargetID: &target})
	require.NoError(t, err)
	assert.Equal(t, 0.25, updated.Weight)
	assert.Equal(t, "c", updated.TargetID)
	assert.True(t, updated.CreatedAt.Equal(t0))

	ghost := "ghost"
	_, err = s.UpdateEdge(e.ID, model.EdgePatch{SourceID: &ghost})
	assert.True(t, model.IsNotFound(err), "got %v", err)

	neg := -1.0
	_, err = s.UpdateEdge(e.ID, model.EdgePatch{Weight: &neg})
	assert.True(t, model.IsValidation(err), "got %v", err)

	got, err := s.GetEdge(e.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.SourceID)
	assert.Equal(t, "c", got.TargetID)
	assert.Equal(t, 0.25, got.Weight)
}

func testDeleteEdge(t *testing.T, s graph.Storage) {
	mustNode(t, s, "a", nil)
	mustNode(t, s, "b", nil)
	e := mustEdge(t, s, "a", "b", "r")

	removed, err := s.DeleteEdge(e.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteEdge(e.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	nodes, err := s.ListNodes(model.NodeFilter{})
	require.NoError(t, err)
	assert.Len(t, nodes, 2, "deleting an edge leaves its endpoints")
}

func testCascade(t *testing.T, s graph.Storage) {
	for _, id := range []string{"a", "b", "c"} {
		mustNode(t, s, id, nil)
	}
	mustEdge(t, s, "a", "b", "r")
	mustEdge(t, s, "c", "a", "r")
	mustEdge(t, s, "a", "a", "self")
	bc := mustEdge(t, s, "b", "c", "r")

	removed, err := s.DeleteNode("a")
	require.NoError(t, err)
	assert.True(t, removed)

	n, err := s.GetNode("a")
	require.NoError(t, err)
	assert.Nil(t, n)

	edges, err := s.ListEdges()
	require.NoError(t, err)
	assert.Equal(t, []string{bc.ID}, ids(edges))
	for _, e := range edges {
		assert.False(t, e.Touches("a"))
	}
}

func testDeleteMissing(t *testing.T, s graph.Storage) {
	removed, err := s.DeleteNode("ghost")
	require.NoError(t, err)
	assert.False(t, removed)
}

func testTimestampRange(t *testing.T, s graph.Storage) {
	for _, ts := range []time.Time{model.MinTime, model.MaxTime} {
		n := model.NewNode("event", "edge of time")
		n.CreatedAt = ts
		created, err := s.CreateNode(n)
		require.NoError(t, err)
		got, err := s.GetNode(created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, ts.Equal(got.CreatedAt), "stored %v, want %v", got.CreatedAt, ts)
	}

	old := model.NewNode("event", "before the epoch range")
	old.ID = "old"
	old.CreatedAt = time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.CreateNode(old)
	assert.True(t, model.IsValidation(err), "got %v", err)
	got, err := s.GetNode("old")
	require.NoError(t, err)
	assert.Nil(t, got)

	mustNode(t, s, "a", nil)
	e := model.NewEdge("a", "a", "loops")
	e.CreatedAt = time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.CreateEdge(e)
	assert.True(t, model.IsValidation(err), "got %v", err)
}

func testUTF8(t *testing.T, s graph.Storage) {
	bad := model.NewNode("event", "x").WithSignal("k", "\xffx")
	_, err := s.CreateNode(bad)
	assert.True(t, model.IsValidation(err), "got %v", err)

	good := mustNode(t, s, "a", map[string]string{"région": "Île-de-France ✓"})
	got, err := s.GetNode(good.ID)
	require.NoError(t, err)
	assert.Equal(t, "Île-de-France ✓", got.Signals["région"])

	content := "bad \xc3"
	_, err = s.UpdateNode("a", model.NodePatch{Content: &content})
	assert.True(t, model.IsValidation(err), "got %v", err)
}

func testSource(t *testing.T, s graph.Storage) {
	n := model.NewNode("event", "ticket filed")
	n.ID = "j"
	n.Source = "jira"
	_, err := s.CreateNode(n)
	require.NoError(t, err)
	mustNode(t, s, "m", nil)

	got, err := s.GetNode("j")
	require.NoError(t, err)
	assert.Equal(t, "jira", got.Source)

	list, err := s.ListNodes(model.NodeFilter{Source: "jira"})
	require.NoError(t, err)
	assert.Equal(t, []string{"j"}, ids(list))

	slack := "slack"
	updated, err := s.UpdateNode("m", model.NodePatch{Source: &slack})
	require.NoError(t, err)
	assert.Equal(t, "slack", updated.Source)

	list, err = s.ListNodes(model.NodeFilter{Type: "event", Source: "slack"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, ids(list))
}
