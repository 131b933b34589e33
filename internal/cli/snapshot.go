package cli

import (
	"fmt"

	"github.com/lazypower/contextgraph/internal/model"
	"github.com/lazypower/contextgraph/internal/snapshot"
	"github.com/spf13/cobra"
)

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump [file]",
		Short: "Write the graph as a JSON snapshot",
		Long:  "Write the graph as a JSON snapshot to file, or to stdout when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			if len(args) == 0 {
				return snapshot.Dump(g, cmd.OutOrStdout())
			}
			if err := snapshot.DumpFile(g, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", args[0])
			return nil
		},
	}
}

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Replay a JSON snapshot into the configured storage",
		Long: "Replay a JSON snapshot into the configured storage, keeping ids and timestamps.\n" +
			"Loading into a graph that already holds the same ids fails.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.openStorage()
			if err != nil {
				return err
			}
			g, err := snapshot.LoadFile(args[0], s, a.graphOptions()...)
			if err != nil {
				s.Close()
				return err
			}
			defer g.Close()

			nodes, err := g.Nodes(model.NodeFilter{})
			if err != nil {
				return err
			}
			edges, err := g.Edges()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d nodes, %d edges\n", len(nodes), len(edges))
			return nil
		},
	}
}
