package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/contextgraph/internal/model"
)

const nodeColumns = `id, type, content, source, signals, confidence_score, created_at`

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// CreateNode inserts n, assigning an id and timestamp when absent.
func (db *DB) CreateNode(n model.Node) (model.Node, error) {
	if err := model.ValidateNode(n); err != nil {
		return model.Node{}, err
	}
	n = n.Clone()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.CreatedAt = model.Timestamp(n.CreatedAt)

	signals, err := json.Marshal(n.Signals)
	if err != nil {
		return model.Node{}, fmt.Errorf("encode signals: %w", err)
	}

	err = db.withTx(func(tx *sql.Tx) error {
		existing, err := getNode(tx, n.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &model.IntegrityError{Reason: fmt.Sprintf("node %q already exists", n.ID)}
		}
		_, err = tx.Exec(`
			INSERT INTO nodes (id, type, content, source, signals, confidence_score, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, n.ID, n.Type, n.Content, n.Source, string(signals), n.ConfidenceScore, n.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("create node: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Node{}, err
	}
	return n, nil
}

// GetNode returns a node by id, or nil if not found.
func (db *DB) GetNode(id string) (*model.Node, error) {
	return getNode(db.DB, id)
}

func getNode(q queryer, id string) (*model.Node, error) {
	n, err := scanNode(q.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return &n, nil
}

// UpdateNode applies patch to node id.
func (db *DB) UpdateNode(id string, patch model.NodePatch) (model.Node, error) {
	var updated model.Node
	err := db.withTx(func(tx *sql.Tx) error {
		cur, err := getNode(tx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return model.NodeNotFound(id)
		}
		next := patch.Apply(*cur)
		if err := model.ValidateNode(next); err != nil {
			return err
		}
		signals, err := json.Marshal(next.Signals)
		if err != nil {
			return fmt.Errorf("encode signals: %w", err)
		}
		_, err = tx.Exec(`
			UPDATE nodes SET type = ?, content = ?, source = ?, signals = ?, confidence_score = ?
			WHERE id = ?
		`, next.Type, next.Content, next.Source, string(signals), next.ConfidenceScore, id)
		if err != nil {
			return fmt.Errorf("update node: %w", err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return model.Node{}, err
	}
	return updated, nil
}

// DeleteNode removes node id and its incident edges in one transaction.
func (db *DB) DeleteNode(id string) (bool, error) {
	var removed bool
	err := db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM edges WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
			return fmt.Errorf("delete incident edges: %w", err)
		}
		res, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete node: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete node: %w", err)
		}
		removed = n > 0
		return nil
	})
	return removed, err
}

// ListNodes returns nodes matching filter in insertion order. Type and
// source are filtered in SQL; signals are matched after decoding.
func (db *DB) ListNodes(filter model.NodeFilter) ([]model.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes`
	var where []string
	var args []any
	if filter.Type != "" {
		where = append(where, `type = ?`)
		args = append(args, filter.Type)
	}
	if filter.Source != "" {
		where = append(where, `source = ?`)
		args = append(args, filter.Source)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY seq`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	all, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}
	out := make([]model.Node, 0, len(all))
	for _, n := range all {
		if filter.Match(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func scanNode(s scanner) (model.Node, error) {
	var n model.Node
	var signals string
	var createdAt int64
	if err := s.Scan(&n.ID, &n.Type, &n.Content, &n.Source, &signals, &n.ConfidenceScore, &createdAt); err != nil {
		return model.Node{}, err
	}
	n.Signals = map[string]string{}
	if err := json.Unmarshal([]byte(signals), &n.Signals); err != nil {
		return model.Node{}, fmt.Errorf("decode signals of node %q: %w", n.ID, err)
	}
	n.CreatedAt = time.Unix(0, createdAt).UTC()
	return n, nil
}

func scanNodes(rows *sql.Rows) ([]model.Node, error) {
	var nodes []model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
