package cli

import (
	"fmt"

	"github.com/lazypower/contextgraph/internal/model"
	"github.com/spf13/cobra"
)

func newNodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Add, inspect, update and remove nodes",
	}
	cmd.AddCommand(
		newNodeAddCmd(a),
		newNodeGetCmd(a),
		newNodeUpdateCmd(a),
		newNodeDeleteCmd(a),
		newNodeListCmd(a),
	)
	return cmd
}

func newNodeAddCmd(a *app) *cobra.Command {
	var (
		id         string
		nodeType   string
		content    string
		source     string
		confidence float64
		signals    map[string]string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			n := model.NewNode(nodeType, content)
			n.ID = id
			n.Source = source
			n.ConfidenceScore = confidence
			for k, v := range signals {
				n.Signals[k] = v
			}
			created, err := g.AddNode(n)
			if err != nil {
				return fmt.Errorf("add node: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "node id (generated when empty)")
	f.StringVarP(&nodeType, "type", "t", "", "node type, e.g. decision, event, signal")
	f.StringVarP(&content, "content", "c", "", "node content")
	f.StringVar(&source, "source", "", "provenance, e.g. jira, slack, manual")
	f.Float64Var(&confidence, "confidence", 1.0, "confidence score in [0,1]")
	f.StringToStringVarP(&signals, "signal", "s", nil, "signal key=value (repeatable)")
	return cmd
}

func newNodeGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			n, err := g.GetNode(args[0])
			if err != nil {
				return err
			}
			if n == nil {
				return model.NodeNotFound(args[0])
			}
			return printJSON(cmd.OutOrStdout(), n)
		},
	}
}

func newNodeUpdateCmd(a *app) *cobra.Command {
	var (
		nodeType   string
		content    string
		source     string
		confidence float64
		signals    map[string]string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a node",
		Long:  "Change fields of a node. Only flags that are given are applied; --signal replaces the whole signal set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.NodePatch
			f := cmd.Flags()
			if f.Changed("type") {
				patch.Type = &nodeType
			}
			if f.Changed("content") {
				patch.Content = &content
			}
			if f.Changed("source") {
				patch.Source = &source
			}
			if f.Changed("confidence") {
				patch.ConfidenceScore = &confidence
			}
			if f.Changed("signal") {
				patch.Signals = signals
			}

			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			n, err := g.UpdateNode(args[0], patch)
			if err != nil {
				return fmt.Errorf("update node: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), n)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&nodeType, "type", "t", "", "new node type")
	f.StringVarP(&content, "content", "c", "", "new content")
	f.StringVar(&source, "source", "", "new provenance")
	f.Float64Var(&confidence, "confidence", 0, "new confidence score in [0,1]")
	f.StringToStringVarP(&signals, "signal", "s", nil, "replacement signal key=value (repeatable)")
	return cmd
}

func newNodeDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a node and every edge touching it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			removed, err := g.DeleteNode(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return model.NodeNotFound(args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted node %s\n", args[0])
			return nil
		},
	}
}

func newNodeListCmd(a *app) *cobra.Command {
	var (
		nodeType string
		source   string
		signals  map[string]string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List nodes in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			nodes, err := g.Nodes(model.NodeFilter{Type: nodeType, Source: source, Signals: signals})
			if err != nil {
				return err
			}
			return printNodes(cmd.OutOrStdout(), nodes)
		},
	}
	cmd.Flags().StringVarP(&nodeType, "type", "t", "", "only nodes of this type")
	cmd.Flags().StringVar(&source, "source", "", "only nodes from this source")
	cmd.Flags().StringToStringVarP(&signals, "signal", "s", nil, "only nodes carrying signal key=value (repeatable)")
	return cmd
}
