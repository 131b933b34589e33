package store

import (
	"testing"

	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/model"
	"github.com/lazypower/contextgraph/internal/storetest"
)

func TestStorageContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) graph.Storage {
		return testDB(t)
	})
}

func TestSignalsStoredAsJSON(t *testing.T) {
	db := testDB(t)

	n := model.NewNode("event", "deploy").WithSignal("service", "x")
	n.ID = "n1"
	if _, err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	var raw string
	if err := db.QueryRow(`SELECT signals FROM nodes WHERE id = 'n1'`).Scan(&raw); err != nil {
		t.Fatalf("select signals: %v", err)
	}
	if raw != `{"service":"x"}` {
		t.Errorf("signals = %s, want {\"service\":\"x\"}", raw)
	}
}

func TestDeleteNodeRemovesEdgeRows(t *testing.T) {
	db := testDB(t)

	a, _ := db.CreateNode(model.NewNode("event", "a"))
	b, _ := db.CreateNode(model.NewNode("event", "b"))
	if _, err := db.CreateEdge(model.NewEdge(a.ID, b.ID, "r")); err != nil {
		t.Fatalf("CreateEdge: %v", err)
	}

	if _, err := db.DeleteNode(b.ID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&count); err != nil {
		t.Fatalf("count edges: %v", err)
	}
	if count != 0 {
		t.Errorf("edge rows = %d, want 0", count)
	}
}

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
