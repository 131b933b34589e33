package cli

import (
	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/model"
	"github.com/spf13/cobra"
)

func newRelatedCmd(a *app) *cobra.Command {
	var (
		relation  string
		direction string
		depth     int
	)
	cmd := &cobra.Command{
		Use:   "related <id>",
		Short: "List nodes reachable from a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := model.ParseDirection(direction)
			if err != nil {
				return err
			}
			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			nodes, err := g.GetRelated(args[0], graph.RelatedOpts{
				Relation:  relation,
				Direction: dir,
				MaxDepth:  depth,
			})
			if err != nil {
				return err
			}
			return printNodes(cmd.OutOrStdout(), nodes)
		},
	}
	cmd.Flags().StringVarP(&relation, "relation", "r", "", "follow only edges with this relation")
	cmd.Flags().StringVarP(&direction, "direction", "d", "", "outgoing, incoming or both (default both)")
	cmd.Flags().IntVar(&depth, "depth", 1, "maximum number of hops")
	return cmd
}

func newSimilarCmd(a *app) *cobra.Command {
	var (
		nodeType string
		limit    int
		minScore float64
	)
	cmd := &cobra.Command{
		Use:   "similar [key=value...]",
		Short: "Rank nodes against a set of signals",
		Long: "Rank nodes by confidence, recency, signal overlap and connectivity.\n" +
			"With no signals every node is ranked without a signal penalty.",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseSignals(args)
			if err != nil {
				return err
			}
			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			matches, err := g.SimilarContext(query, graph.SimilarOpts{
				Limit:    limit,
				Type:     nodeType,
				MinScore: minScore,
			})
			if err != nil {
				return err
			}
			return printMatches(cmd.OutOrStdout(), matches)
		},
	}
	cmd.Flags().StringVarP(&nodeType, "type", "t", "", "only rank nodes of this type")
	cmd.Flags().IntVarP(&limit, "limit", "n", graph.DefaultLimit, "maximum number of results")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "drop results scoring below this")
	return cmd
}
