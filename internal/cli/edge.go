package cli

import (
	"fmt"

	"github.com/lazypower/contextgraph/internal/model"
	"github.com/spf13/cobra"
)

func newEdgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Add, inspect and remove edges",
	}
	cmd.AddCommand(
		newEdgeAddCmd(a),
		newEdgeGetCmd(a),
		newEdgeDeleteCmd(a),
		newEdgeListCmd(a),
	)
	return cmd
}

func newEdgeAddCmd(a *app) *cobra.Command {
	var (
		id     string
		weight float64
	)
	cmd := &cobra.Command{
		Use:   "add <source> <target> <relation>",
		Short: "Link two existing nodes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			e := model.NewEdge(args[0], args[1], args[2])
			e.ID = id
			e.Weight = weight
			created, err := g.AddEdge(e)
			if err != nil {
				return fmt.Errorf("add edge: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "edge id (generated when empty)")
	cmd.Flags().Float64VarP(&weight, "weight", "w", 1.0, "edge weight (>= 0)")
	return cmd
}

func newEdgeGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			e, err := g.GetEdge(args[0])
			if err != nil {
				return err
			}
			if e == nil {
				return model.EdgeNotFound(args[0])
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}
}

func newEdgeDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			removed, err := g.DeleteEdge(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return model.EdgeNotFound(args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted edge %s\n", args[0])
			return nil
		},
	}
}

func newEdgeListCmd(a *app) *cobra.Command {
	var (
		nodeID    string
		direction string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List edges, optionally those of one node",
		Args:  cobra.NoArgs,
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

			var edges []model.Edge
			if nodeID != "" {
				edges, err = g.EdgesFor(nodeID, dir)
			} else {
				edges, err = g.Edges()
			}
			if err != nil {
				return err
			}
			return printEdges(cmd.OutOrStdout(), edges)
		},
	}
	cmd.Flags().StringVarP(&nodeID, "node", "n", "", "only edges attached to this node")
	cmd.Flags().StringVarP(&direction, "direction", "d", "", "outgoing, incoming or both (with --node)")
	return cmd
}
