package adapter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/lazypower/contextgraph/internal/model"
)

// JSONL maps flat JSON objects onto nodes through a field mapping.
type JSONL struct {
	IDField         string
	TypeField       string
	ContentField    string
	ConfidenceField string
	// SourceField holds the provenance, e.g. "jira". Empty disables it.
	SourceField string
	// SignalFields lists the fields copied into signals. When empty, every
	// other scalar field becomes a signal.
	SignalFields []string
	// DefaultType is used when the record carries no type.
	DefaultType string
}

// DefaultJSONL maps the fields id, type, content, confidence and source;
// the rest of each record becomes signals.
func DefaultJSONL() JSONL {
	return JSONL{
		IDField:         "id",
		TypeField:       "type",
		ContentField:    "content",
		ConfidenceField: "confidence",
		SourceField:     "source",
		DefaultType:     "event",
	}
}

var _ Adapter = JSONL{}

// Normalize builds a validated node from r.
func (j JSONL) Normalize(r Record) (model.Node, error) {
	n := model.NewNode(j.DefaultType, "")

	if v, ok := r[j.TypeField].(string); ok && v != "" {
		n.Type = v
	}
	content, ok := r[j.ContentField].(string)
	if !ok {
		return model.Node{}, &model.ValidationError{Field: j.ContentField, Reason: "must be a string"}
	}
	n.Content = content

	if j.IDField != "" {
		if v, ok := r[j.IDField].(string); ok {
			n.ID = v
		}
	}
	if j.SourceField != "" {
		if v, ok := r[j.SourceField].(string); ok {
			n.Source = v
		}
	}
	if raw, present := r[j.ConfidenceField]; present && j.ConfidenceField != "" {
		c, ok := raw.(float64)
		if !ok {
			return model.Node{}, &model.ValidationError{Field: j.ConfidenceField, Reason: "must be a number"}
		}
		n.ConfidenceScore = c
	}

	for _, k := range j.signalKeys(r) {
		if s, ok := scalar(r[k]); ok {
			n.Signals[k] = s
		}
	}

	if err := model.ValidateNode(n); err != nil {
		return model.Node{}, err
	}
	return n, nil
}

// Emit renders n with the same field mapping Normalize reads.
func (j JSONL) Emit(n model.Node) (Record, error) {
	r := Record{}
	for k, v := range n.Signals {
		r[k] = v
	}
	if j.IDField != "" {
		r[j.IDField] = n.ID
	}
	r[j.TypeField] = n.Type
	r[j.ContentField] = n.Content
	if j.ConfidenceField != "" {
		r[j.ConfidenceField] = n.ConfidenceScore
	}
	if j.SourceField != "" && n.Source != "" {
		r[j.SourceField] = n.Source
	}
	return r, nil
}

func (j JSONL) signalKeys(r Record) []string {
	if len(j.SignalFields) > 0 {
		return j.SignalFields
	}
	reserved := []string{j.IDField, j.TypeField, j.ContentField, j.ConfidenceField, j.SourceField}
	var keys []string
	for k := range r {
		if !slices.Contains(reserved, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// scalar renders strings, numbers and booleans as signal values. Nested
// objects, arrays and nulls are not signals.
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

// JSONLSource reads one JSON object per line. Blank lines are skipped.
type JSONLSource struct {
	scanner *bufio.Scanner
	line    int
}

// NewJSONLSource streams records from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB line buffer
	return &JSONLSource{scanner: scanner}
}

// Next returns the next record, io.EOF at the end of input, or a
// *model.ValidationError for a line that is not a JSON object.
func (s *JSONLSource) Next() (Record, error) {
	for s.scanner.Scan() {
		s.line++
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec == nil {
			return nil, &model.ValidationError{Field: fmt.Sprintf("line %d", s.line), Reason: "not a JSON object"}
		}
		return rec, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan jsonl: %w", err)
	}
	return nil, io.EOF
}

// WriteJSONL emits every node through a as one JSON line each.
func WriteJSONL(w io.Writer, a Adapter, nodes []model.Node) error {
	enc := json.NewEncoder(w)
	for _, n := range nodes {
		rec, err := a.Emit(n)
		if err != nil {
			return fmt.Errorf("emit node %s: %w", n.ID, err)
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode node %s: %w", n.ID, err)
		}
	}
	return nil
}
