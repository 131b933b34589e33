package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/lazypower/contextgraph/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func node(id string, confidence float64, created time.Time, signals map[string]string) model.Node {
	return model.Node{
		ID:              id,
		Type:            "event",
		Content:         id,
		Signals:         signals,
		ConfidenceScore: confidence,
		CreatedAt:       created,
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, model.Both, cfg.EdgeDirection)
	assert.Greater(t, cfg.DecayRate, 0.0)
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{DecayRate: -1, EdgeDirection: model.Both},
		{EdgeWeightFactor: -0.5, EdgeDirection: model.Both},
		{EdgeDirection: "up"},
		{DecayRate: math.NaN(), EdgeDirection: model.Both},
	}
	for _, c := range bad {
		assert.True(t, model.IsValidation(c.Validate()), "config %+v", c)
	}
}

func TestTimeDecay(t *testing.T) {
	assert.Equal(t, 1.0, TimeDecay(t0, t0, 0.01))
	assert.InDelta(t, math.Exp(-0.48), TimeDecay(t0, t0.Add(48*time.Hour), 0.01), 1e-12)
	assert.Equal(t, 1.0, TimeDecay(t0, t0.Add(1000*time.Hour), 0), "zero rate never decays")
}

func TestTimeDecayFutureTimestampClamped(t *testing.T) {
	future := t0.Add(10 * time.Hour)
	assert.Equal(t, 1.0, TimeDecay(future, t0, 0.5))
	assert.Equal(t, 0.0, AgeHours(future, t0))
}

func TestTimeDecayStrictlyDecreasing(t *testing.T) {
	prev := TimeDecay(t0, t0, 0.01)
	for h := 1; h <= 200; h += 7 {
		cur := TimeDecay(t0, t0.Add(time.Duration(h)*time.Hour), 0.01)
		assert.Less(t, cur, prev, "age %dh", h)
		prev = cur
	}
}

func TestSignalBoost(t *testing.T) {
	signals := map[string]string{"service": "x", "env": "prod"}
	tests := []struct {
		name  string
		query map[string]string
		want  float64
	}{
		{"empty query", nil, 1},
		{"full match", map[string]string{"service": "x"}, 1},
		{"half match", map[string]string{"service": "x", "env": "dev"}, 0.5},
		{"key match value mismatch", map[string]string{"service": "y"}, 0},
		{"unknown key", map[string]string{"team": "core"}, 0},
		{"one of three", map[string]string{"service": "x", "a": "1", "b": "2"}, 1.0 / 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SignalBoost(signals, tt.query))
		})
	}
}

func TestEdgeBoost(t *testing.T) {
	assert.Equal(t, 1.0, EdgeBoost(0, 0.5))
	assert.InDelta(t, 1+math.Log(4)*0.1, EdgeBoost(3, 0.1), 1e-15)
	assert.Equal(t, 1.0, EdgeBoost(7, 0))
}

func TestEdgeBoostMonotonicInFactor(t *testing.T) {
	prev := EdgeBoost(5, 0)
	for f := 0.1; f < 3; f += 0.1 {
		cur := EdgeBoost(5, f)
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestEdgeCountDirection(t *testing.T) {
	edges := []model.Edge{
		{ID: "e1", SourceID: "a", TargetID: "b", Relation: "r", Weight: 2},
		{ID: "e2", SourceID: "c", TargetID: "a", Relation: "r", Weight: 0.5},
		{ID: "e3", SourceID: "a", TargetID: "a", Relation: "self", Weight: 1},
		{ID: "e4", SourceID: "b", TargetID: "c", Relation: "r", Weight: 9},
	}
	tests := []struct {
		dir      model.Direction
		weighted bool
		want     float64
	}{
		{model.Outgoing, false, 2},
		{model.Incoming, false, 2},
		{model.Both, false, 3},
		{"", false, 3},
		{model.Outgoing, true, 3},
		{model.Both, true, 3.5},
	}
	for _, tt := range tests {
		cfg := Config{EdgeDirection: tt.dir, WeightedEdges: tt.weighted}
		assert.Equal(t, tt.want, EdgeCount("a", edges, cfg), "dir=%q weighted=%v", tt.dir, tt.weighted)
	}
}

func TestEdgeCountWeightedOrderIndependent(t *testing.T) {
	a := []model.Edge{
		{SourceID: "n", TargetID: "x", Weight: 0.1},
		{SourceID: "n", TargetID: "y", Weight: 0.2},
		{SourceID: "n", TargetID: "z", Weight: 0.3},
	}
	b := []model.Edge{a[2], a[0], a[1]}
	cfg := Config{EdgeDirection: model.Both, WeightedEdges: true}
	assert.Equal(t, EdgeCount("n", a, cfg), EdgeCount("n", b, cfg))
}

func TestScoreZeroConfidence(t *testing.T) {
	n := node("a", 0, t0, map[string]string{"service": "x"})
	edges := []model.Edge{{SourceID: "a", TargetID: "b"}, {SourceID: "b", TargetID: "a"}}
	cfg := Config{DecayRate: 0, EdgeWeightFactor: 5, EdgeDirection: model.Both}
	assert.Equal(t, 0.0, Score(n, map[string]string{"service": "x"}, t0, edges, cfg))
}

func TestScoreExampleRecencyWins(t *testing.T) {
	cfg := Config{DecayRate: 0.01, EdgeWeightFactor: 0.1, EdgeDirection: model.Both}
	q := map[string]string{"service": "x"}
	a := node("a", 1, t0, map[string]string{"service": "x"})
	b := node("b", 1, t0.Add(-48*time.Hour), map[string]string{"service": "x"})

	sa := Score(a, q, t0, nil, cfg)
	sb := Score(b, q, t0, nil, cfg)
	assert.Equal(t, 1.0, sa)
	assert.InDelta(t, 0.6188, sb, 1e-4)
	assert.Greater(t, sa, sb)
}

func TestScoreProduct(t *testing.T) {
	cfg := Config{DecayRate: 0.02, EdgeWeightFactor: 0.3, EdgeDirection: model.Both}
	n := node("a", 0.8, t0.Add(-10*time.Hour), map[string]string{"k": "v"})
	edges := []model.Edge{{SourceID: "a", TargetID: "b"}}
	q := map[string]string{"k": "v", "z": "1"}

	want := 0.8 * math.Exp(-0.2) * 0.5 * (1 + math.Log(2)*0.3)
	assert.InDelta(t, want, Score(n, q, t0, edges, cfg), 1e-15)
}

func TestScoreDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WeightedEdges = true
	n := node("a", 0.7, t0.Add(-3*time.Hour), map[string]string{"a": "1", "b": "2", "c": "3"})
	q := map[string]string{"a": "1", "b": "x", "c": "3", "d": "4"}
	edges := []model.Edge{{SourceID: "a", TargetID: "b", Weight: 0.3}, {SourceID: "c", TargetID: "a", Weight: 0.7}}

	first := Score(n, q, t0, edges, cfg)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, Score(n, q, t0, edges, cfg))
	}
}

func TestBaseConfidenceClamp(t *testing.T) {
	assert.Equal(t, 0.0, BaseConfidence(-1))
	assert.Equal(t, 1.0, BaseConfidence(3))
	assert.Equal(t, 0.0, BaseConfidence(math.NaN()))
	assert.Equal(t, 0.25, BaseConfidence(0.25))
}

func TestRound(t *testing.T) {
	cfg := Config{Precision: 3}
	assert.Equal(t, 0.123, cfg.Round(0.12345))
	assert.Equal(t, cfg.Round(0.5000001), cfg.Round(0.5000002))
	assert.Equal(t, 0.12345, Config{}.Round(0.12345))
}
