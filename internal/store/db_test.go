package store

import (
	"path/filepath"
	"testing"

	"github.com/lazypower/contextgraph/internal/model"
)

func TestOpenMemory(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"schema_versions", "nodes", "edges"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestSchemaConstraints(t *testing.T) {
	db := testDB(t)

	_, err := db.Exec(`
		INSERT INTO nodes (id, type, content, confidence_score, created_at)
		VALUES ('n1', 'event', 'x', 0.5, 1000)
	`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO nodes (id, type, content, confidence_score, created_at)
		VALUES ('n2', 'event', 'x', 1.5, 1000)
	`)
	if err == nil {
		t.Error("expected error for confidence above 1, got nil")
	}

	_, err = db.Exec(`
		INSERT INTO edges (id, source_id, target_id, relation, weight, created_at)
		VALUES ('e1', 'n1', 'missing', 'r', 1.0, 1000)
	`)
	if err == nil {
		t.Error("expected foreign key error for dangling edge, got nil")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, _ := db.SchemaVersion()
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "graph.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a, err := db.CreateNode(model.NewNode("decision", "Migrated to K8s").WithSignal("service", "x"))
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	b, err := db.CreateNode(model.NewNode("event", "Deploy failed"))
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if _, err := db.CreateEdge(model.NewEdge(b.ID, a.ID, "caused_by")); err != nil {
		t.Fatalf("CreateEdge: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	got, err := db.GetNode(a.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got == nil {
		t.Fatal("node lost across reopen")
	}
	if !got.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, a.CreatedAt)
	}
	if got.Signals["service"] != "x" {
		t.Errorf("signals = %v, want service=x", got.Signals)
	}

	nodes, err := db.ListNodes(model.NodeFilter{})
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 2 || nodes[0].ID != a.ID || nodes[1].ID != b.ID {
		t.Errorf("ListNodes order = %v, want [%s %s]", nodes, a.ID, b.ID)
	}

	edges, err := db.EdgesFor(a.ID, model.Incoming)
	if err != nil {
		t.Fatalf("EdgesFor: %v", err)
	}
	if len(edges) != 1 || edges[0].Relation != "caused_by" {
		t.Errorf("edges = %v, want one caused_by", edges)
	}
}
