package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/lazypower/contextgraph/internal/adapter"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	mapping := adapter.DefaultJSONL()
	cmd := &cobra.Command{
		Use:   "import <file.jsonl|->",
		Short: "Import nodes from JSON lines",
		Long: "Import one node per JSON object line. Field names are configurable; by default\n" +
			"id, type, content, confidence and source are read and every other scalar field\n" +
			"becomes a signal. Records that fail validation are skipped and listed on stderr.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			g, err := a.openGraph()
			if err != nil {
				return err
			}
			defer g.Close()

			stats, err := adapter.Import(g, adapter.NewJSONLSource(in), mapping, a.log)
			if err != nil {
				return err
			}
			for _, f := range stats.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %v\n", f)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d records (%d skipped)\n", stats.Added, stats.Read, stats.Skipped)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&mapping.IDField, "id-field", mapping.IDField, "record field holding the node id")
	f.StringVar(&mapping.TypeField, "type-field", mapping.TypeField, "record field holding the node type")
	f.StringVar(&mapping.ContentField, "content-field", mapping.ContentField, "record field holding the content")
	f.StringVar(&mapping.ConfidenceField, "confidence-field", mapping.ConfidenceField, "record field holding the confidence")
	f.StringVar(&mapping.SourceField, "source-field", mapping.SourceField, "record field holding the provenance")
	f.StringSliceVar(&mapping.SignalFields, "signal-fields", nil, "fields copied into signals (default: all other scalar fields)")
	f.StringVar(&mapping.DefaultType, "default-type", mapping.DefaultType, "type for records without one")
	return cmd
}
