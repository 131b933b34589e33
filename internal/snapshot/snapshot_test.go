package snapshot

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/memstore"
	"github.com/lazypower/contextgraph/internal/model"
	"github.com/lazypower/contextgraph/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)

func clock() time.Time { return now }

func sample(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(memstore.New(), graph.WithClock(clock))
	require.NoError(t, err)

	nodes := []model.Node{
		{ID: "k8s", Type: "decision", Content: "Migrated to K8s", Source: "jira", Signals: map[string]string{"service": "api"}, ConfidenceScore: 0.9, CreatedAt: now.Add(-72 * time.Hour)},
		{ID: "deploy", Type: "event", Content: "Deploy failed", Signals: map[string]string{"service": "api", "env": "prod"}, ConfidenceScore: 1, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "note", Type: "signal", Content: "disk 91%", Signals: map[string]string{}, ConfidenceScore: 0.1, CreatedAt: now.Add(-time.Nanosecond)},
	}
	for _, n := range nodes {
		_, err := g.AddNode(n)
		require.NoError(t, err)
	}
	for _, e := range []model.Edge{
		{ID: "e1", SourceID: "deploy", TargetID: "k8s", Relation: "caused_by", Weight: 0.75},
		{ID: "e2", SourceID: "note", TargetID: "note", Relation: "refines", Weight: 0.1},
	} {
		_, err := g.AddEdge(e)
		require.NoError(t, err)
	}
	return g
}

func TestDumpFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dump(sample(t), &buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "{\n  \"version\": \"1\",\n  \"nodes\": ["), out)
	nodeKeys := []string{`"id"`, `"type"`, `"content"`, `"source": "jira"`, `"signals"`, `"confidence_score"`, `"created_at"`}
	assertOrdered(t, out[strings.Index(out, `"k8s"`)-6:], nodeKeys)
	edgeKeys := []string{`"id": "e1"`, `"source_id"`, `"target_id"`, `"relation"`, `"weight"`, `"created_at"`}
	assertOrdered(t, out, edgeKeys)
	assert.Contains(t, out, `"created_at": "2025-06-01T12:00:00.123456788Z"`, "nanosecond RFC 3339")
	assert.Contains(t, out, `"weight": 0.75`)
}

func assertOrdered(t *testing.T, s string, keys []string) {
	t.Helper()
	pos := 0
	for _, k := range keys {
		i := strings.Index(s[pos:], k)
		require.GreaterOrEqual(t, i, 0, "key %s missing after offset %d", k, pos)
		pos += i + len(k)
	}
}

func TestDumpEmptyGraph(t *testing.T) {
	g, err := graph.New(memstore.New())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Dump(g, &buf))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, []any{}, doc["nodes"])
	assert.Equal(t, []any{}, doc["edges"])
}

func TestRoundTripPreservesRanking(t *testing.T) {
	src := sample(t)
	var buf bytes.Buffer
	require.NoError(t, Dump(src, &buf))

	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	targets := map[string]graph.Storage{"memory": memstore.New(), "sqlite": db}
	for name, target := range targets {
		t.Run(name, func(t *testing.T) {
			dst, err := Load(bytes.NewReader(buf.Bytes()), target, graph.WithClock(clock))
			require.NoError(t, err)

			wantDoc, err := Capture(src)
			require.NoError(t, err)
			gotDoc, err := Capture(dst)
			require.NoError(t, err)
			if diff := cmp.Diff(wantDoc, gotDoc); diff != "" {
				t.Errorf("document mismatch (-want +got):\n%s", diff)
			}

			for _, q := range []map[string]string{nil, {"service": "api"}, {"env": "prod"}} {
				want, err := src.SimilarContext(q, graph.SimilarOpts{})
				require.NoError(t, err)
				got, err := dst.SimilarContext(q, graph.SimilarOpts{})
				require.NoError(t, err)
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("query %v ranking mismatch (-want +got):\n%s", q, diff)
				}
			}
		})
	}
}

func TestLoadRejectsVersion(t *testing.T) {
	_, err := Load(strings.NewReader(`{"version":"0.1.0","nodes":[],"edges":[]}`), memstore.New())
	assert.True(t, model.IsValidation(err), "got %v", err)
}

func TestLoadRejectsMalformed(t *testing.T) {
	_, err := Load(strings.NewReader(`{"version":`), memstore.New())
	assert.True(t, model.IsValidation(err), "got %v", err)
}

func TestLoadDanglingEdge(t *testing.T) {
	doc := `{"version":"1","nodes":[{"id":"a","type":"event","content":"x","signals":{},"confidence_score":1,"created_at":"2025-01-01T00:00:00Z"}],
		"edges":[{"id":"e","source_id":"a","target_id":"b","relation":"r","weight":1,"created_at":"2025-01-01T00:00:00Z"}]}`
	_, err := Load(strings.NewReader(doc), memstore.New())
	assert.True(t, model.IsIntegrity(err), "got %v", err)
}

func TestLoadDefaultsMissingNumbers(t *testing.T) {
	doc := `{"version":"1",
		"nodes":[
			{"id":"a","type":"event","content":"no confidence","created_at":"2025-01-01T00:00:00Z"},
			{"id":"b","type":"event","content":"explicit zero","confidence_score":0,"created_at":"2025-01-01T00:00:00Z"}],
		"edges":[
			{"id":"ab","source_id":"a","target_id":"b","relation":"r"},
			{"id":"ba","source_id":"b","target_id":"a","relation":"r","weight":0}]}`
	g, err := Load(strings.NewReader(doc), memstore.New())
	require.NoError(t, err)

	a, err := g.GetNode("a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.ConfidenceScore, "absent confidence_score defaults to 1.0")
	assert.NotNil(t, a.Signals)
	b, err := g.GetNode("b")
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.ConfidenceScore)

	ab, err := g.GetEdge("ab")
	require.NoError(t, err)
	assert.Equal(t, 1.0, ab.Weight, "absent weight defaults to 1.0")
	assert.False(t, ab.CreatedAt.IsZero(), "absent created_at is stamped")
	ba, err := g.GetEdge("ba")
	require.NoError(t, err)
	assert.Equal(t, 0.0, ba.Weight)
}

func TestLoadRejectsOutOfRangeTimestamp(t *testing.T) {
	doc := `{"version":"1","nodes":[{"id":"a","type":"event","content":"x","created_at":"1600-01-01T00:00:00Z"}],"edges":[]}`
	_, err := Load(strings.NewReader(doc), memstore.New())
	assert.True(t, model.IsValidation(err), "got %v", err)
}

func TestDumpFileLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	src := sample(t)
	require.NoError(t, DumpFile(src, path))

	dst, err := LoadFile(path, memstore.New(), graph.WithClock(clock))
	require.NoError(t, err)
	nodes, err := dst.Nodes(model.NodeFilter{})
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"), memstore.New())
	assert.Error(t, err)
}
