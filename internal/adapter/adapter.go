// Package adapter converts records from external systems into graph nodes
// and back. A Source streams raw records; an Adapter maps each one.
package adapter

import (
	"errors"
	"fmt"
	"io"

	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/model"
	"go.uber.org/zap"
)

// Record is one raw item from an external system.
type Record map[string]any

// Adapter maps records to nodes and nodes to records. Normalize must return
// a node that passes model.ValidateNode or an error.
type Adapter interface {
	Normalize(r Record) (model.Node, error)
	Emit(n model.Node) (Record, error)
}

// Source yields records until it returns io.EOF.
type Source interface {
	Next() (Record, error)
}

// ImportStats counts the outcome of an Import. Failures holds one error per
// skipped record, in input order.
type ImportStats struct {
	Read     int
	Added    int
	Skipped  int
	Failures []error
}

// Err joins the per-record failures, or returns nil when nothing was
// skipped.
func (s ImportStats) Err() error {
	return errors.Join(s.Failures...)
}

// Import drains src, normalizes each record with a, and adds the result to
// g. Records that fail validation or collide with an existing id are
// logged, recorded in ImportStats.Failures and skipped; any other error
// stops the import.
func Import(g *graph.Graph, src Source, a Adapter, log *zap.Logger) (ImportStats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var stats ImportStats
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			if model.IsValidation(err) {
				stats.Skipped++
				stats.Failures = append(stats.Failures, err)
				log.Warn("skipping unreadable record", zap.Error(err))
				continue
			}
			return stats, fmt.Errorf("read record: %w", err)
		}
		stats.Read++

		n, err := a.Normalize(rec)
		if err == nil {
			_, err = g.AddNode(n)
		}
		if model.IsValidation(err) || model.IsIntegrity(err) {
			stats.Skipped++
			stats.Failures = append(stats.Failures, fmt.Errorf("record %d: %w", stats.Read, err))
			log.Warn("skipping record", zap.Int("record", stats.Read), zap.Error(err))
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("record %d: %w", stats.Read, err)
		}
		stats.Added++
	}
}
