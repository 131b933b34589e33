package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/contextgraph/internal/model"
)

const edgeColumns = `id, source_id, target_id, relation, weight, created_at`

// CreateEdge inserts e. Both endpoints must exist.
func (db *DB) CreateEdge(e model.Edge) (model.Edge, error) {
	if err := model.ValidateEdge(e); err != nil {
		return model.Edge{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = model.Timestamp(e.CreatedAt)

	err := db.withTx(func(tx *sql.Tx) error {
		if err := requireNodes(tx, e); err != nil {
			return err
		}
		existing, err := getEdge(tx, e.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &model.IntegrityError{Reason: fmt.Sprintf("edge %q already exists", e.ID)}
		}
		_, err = tx.Exec(`
			INSERT INTO edges (id, source_id, target_id, relation, weight, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.ID, e.SourceID, e.TargetID, e.Relation, e.Weight, e.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("create edge: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Edge{}, err
	}
	return e, nil
}

// GetEdge returns an edge by id, or nil if not found.
func (db *DB) GetEdge(id string) (*model.Edge, error) {
	return getEdge(db.DB, id)
}

func getEdge(q queryer, id string) (*model.Edge, error) {
	e, err := scanEdge(q.QueryRow(`SELECT `+edgeColumns+` FROM edges WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get edge: %w", err)
	}
	return &e, nil
}

// UpdateEdge applies patch to edge id.
func (db *DB) UpdateEdge(id string, patch model.EdgePatch) (model.Edge, error) {
	var updated model.Edge
	err := db.withTx(func(tx *sql.Tx) error {
		cur, err := getEdge(tx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return model.EdgeNotFound(id)
		}
		next := patch.Apply(*cur)
		if err := model.ValidateEdge(next); err != nil {
			return err
		}
		if err := requireNodes(tx, next); err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE edges SET source_id = ?, target_id = ?, relation = ?, weight = ?
			WHERE id = ?
		`, next.SourceID, next.TargetID, next.Relation, next.Weight, id)
		if err != nil {
			return fmt.Errorf("update edge: %w", err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return model.Edge{}, err
	}
	return updated, nil
}

// DeleteEdge removes edge id.
func (db *DB) DeleteEdge(id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM edges WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete edge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete edge: %w", err)
	}
	return n > 0, nil
}

// EdgesFor returns the edges attached to nodeID in direction dir, in
// insertion order. A self-loop matches once.
func (db *DB) EdgesFor(nodeID string, dir model.Direction) ([]model.Edge, error) {
	var where string
	args := []any{nodeID}
	switch dir {
	case model.Outgoing:
		where = `source_id = ?`
	case model.Incoming:
		where = `target_id = ?`
	default:
		where = `source_id = ? OR target_id = ?`
		args = append(args, nodeID)
	}
	rows, err := db.Query(`SELECT `+edgeColumns+` FROM edges WHERE `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("edges for node: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// ListEdges returns every edge in insertion order.
func (db *DB) ListEdges() ([]model.Edge, error) {
	rows, err := db.Query(`SELECT ` + edgeColumns + ` FROM edges ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

func requireNodes(q queryer, e model.Edge) error {
	for _, id := range []string{e.SourceID, e.TargetID} {
		n, err := getNode(q, id)
		if err != nil {
			return err
		}
		if n == nil {
			return model.NodeNotFound(id)
		}
	}
	return nil
}

func scanEdge(s scanner) (model.Edge, error) {
	var e model.Edge
	var createdAt int64
	if err := s.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight, &createdAt); err != nil {
		return model.Edge{}, err
	}
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	return e, nil
}

func scanEdges(rows *sql.Rows) ([]model.Edge, error) {
	edges := []model.Edge{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
