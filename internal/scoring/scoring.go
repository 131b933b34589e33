// Package scoring computes the effective relevance of a node for a query:
//
//	effective = base_confidence * time_decay * signal_boost * edge_boost
//
//   - base_confidence: the node's confidence, clamped to [0,1]
//   - time_decay:      exp(-decay_rate * age_hours), age clamped to >= 0
//   - signal_boost:    matched query signals / max(|query|, 1); 1 for an empty query
//   - edge_boost:      1 + ln(1 + edge_count) * edge_weight_factor
//
// Every function here is pure. The current time is always an argument, and
// nothing depends on map iteration order, so identical inputs always produce
// the identical float.
package scoring

import (
	"math"
	"slices"
	"time"

	"github.com/lazypower/contextgraph/internal/model"
)

// Config holds the tunable knobs of the formula.
type Config struct {
	DecayRate        float64         `yaml:"decay_rate" json:"decay_rate"`
	EdgeWeightFactor float64         `yaml:"edge_weight_factor" json:"edge_weight_factor"`
	EdgeDirection    model.Direction `yaml:"edge_direction" json:"edge_direction"`
	// WeightedEdges counts each edge by its weight instead of as 1.
	WeightedEdges bool `yaml:"weighted_edges" json:"weighted_edges"`
	// Precision is the number of decimal places scores are rounded to
	// before ranking. Zero or less disables rounding.
	Precision int `yaml:"precision" json:"precision"`
}

// DefaultConfig returns the stock tuning: slow hourly decay, a mild edge
// boost counted in both directions.
func DefaultConfig() Config {
	return Config{
		DecayRate:        0.001,
		EdgeWeightFactor: 0.1,
		EdgeDirection:    model.Both,
		Precision:        9,
	}
}

// Validate rejects negative rates and unknown directions.
func (c Config) Validate() error {
	if c.DecayRate < 0 || math.IsNaN(c.DecayRate) {
		return &model.ValidationError{Field: "decay_rate", Reason: "must be >= 0"}
	}
	if c.EdgeWeightFactor < 0 || math.IsNaN(c.EdgeWeightFactor) {
		return &model.ValidationError{Field: "edge_weight_factor", Reason: "must be >= 0"}
	}
	if !c.EdgeDirection.Valid() {
		return &model.ValidationError{Field: "edge_direction", Reason: "must be one of outgoing, incoming, both"}
	}
	return nil
}

// Func is the signature of a scoring function. Score satisfies it; callers
// may inject their own through the graph facade.
type Func func(node model.Node, query map[string]string, now time.Time, edges []model.Edge, cfg Config) float64

// Score computes the effective score of node for query at now.
// edges are the edges attached to node; only those matching
// cfg.EdgeDirection are counted.
func Score(node model.Node, query map[string]string, now time.Time, edges []model.Edge, cfg Config) float64 {
	return BaseConfidence(node.ConfidenceScore) *
		TimeDecay(node.CreatedAt, now, cfg.DecayRate) *
		SignalBoost(node.Signals, query) *
		EdgeBoost(EdgeCount(node.ID, edges, cfg), cfg.EdgeWeightFactor)
}

// BaseConfidence clamps a confidence into [0,1]. NaN scores zero.
func BaseConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// AgeHours is the non-negative age of createdAt at now, in hours.
// A timestamp in the future has age zero.
func AgeHours(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt).Hours()
	if age < 0 {
		return 0
	}
	return age
}

// TimeDecay is exp(-rate * age_hours).
func TimeDecay(createdAt, now time.Time, rate float64) float64 {
	return math.Exp(-rate * AgeHours(createdAt, now))
}

// SignalBoost is the fraction of query pairs present on the node with an
// equal value. An empty query does not penalize.
func SignalBoost(nodeSignals, query map[string]string) float64 {
	if len(query) == 0 {
		return 1
	}
	matched := 0
	for k, v := range query {
		if got, ok := nodeSignals[k]; ok && got == v {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

// EdgeCount counts the edges attached to nodeID in cfg.EdgeDirection.
// Each edge counts once, self-loops included. With WeightedEdges the
// weights are summed in ascending order so the total does not depend on
// the order storage returned them in.
func EdgeCount(nodeID string, edges []model.Edge, cfg Config) float64 {
	dir := cfg.EdgeDirection
	if dir == "" {
		dir = model.Both
	}
	var weights []float64
	count := 0
	for _, e := range edges {
		if !dir.Matches(e, nodeID) {
			continue
		}
		count++
		if cfg.WeightedEdges {
			weights = append(weights, e.Weight)
		}
	}
	if !cfg.WeightedEdges {
		return float64(count)
	}
	slices.Sort(weights)
	total := 0.0
	for _, w := range weights {
		total += w
	}
	return total
}

// EdgeBoost is 1 + ln(1 + count) * factor. Zero edges are neutral.
func EdgeBoost(count, factor float64) float64 {
	if count <= 0 {
		return 1
	}
	return 1 + math.Log1p(count)*factor
}

// Round rounds score to the configured number of decimal places.
func (c Config) Round(score float64) float64 {
	if c.Precision <= 0 {
		return score
	}
	p := math.Pow(10, float64(c.Precision))
	return math.Round(score*p) / p
}
