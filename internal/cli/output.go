package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/model"
)

const contentWidth = 60

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatSignals renders signals as sorted k=v pairs.
func formatSignals(signals map[string]string) string {
	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + signals[k]
	}
	return strings.Join(parts, ",")
}

func printNodes(w io.Writer, nodes []model.Node) error {
	if len(nodes) == 0 {
		fmt.Fprintln(w, "No nodes found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSOURCE\tCONF\tCREATED\tSIGNALS\tCONTENT")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			n.ID, n.Type, n.Source, n.ConfidenceScore, humanize.Time(n.CreatedAt),
			formatSignals(n.Signals), truncate(n.Content, contentWidth))
	}
	return tw.Flush()
}

func printEdges(w io.Writer, edges []model.Edge) error {
	if len(edges) == 0 {
		fmt.Fprintln(w, "No edges found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tRELATION\tTARGET\tWEIGHT\tCREATED")
	for _, e := range edges {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g\t%s\n",
			e.ID, e.SourceID, e.Relation, e.TargetID, e.Weight, humanize.Time(e.CreatedAt))
	}
	return tw.Flush()
}

func printMatches(w io.Writer, matches []graph.Match) error {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}
	for i, m := range matches {
		fmt.Fprintf(w, "%d. [%.4f] %s (%s, %s)\n", i+1, m.Score, m.Node.ID, m.Node.Type, humanize.Time(m.Node.CreatedAt))
		fmt.Fprintf(w, "   %s\n", truncate(m.Node.Content, 200))
		if len(m.Node.Signals) > 0 {
			fmt.Fprintf(w, "   %s\n", formatSignals(m.Node.Signals))
		}
	}
	return nil
}

// parseSignals turns k=v arguments into a signal map.
func parseSignals(args []string) (map[string]string, error) {
	signals := map[string]string{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, &model.ValidationError{Field: "signal", Reason: fmt.Sprintf("want key=value, got %q", arg)}
		}
		signals[k] = v
	}
	return signals, nil
}
