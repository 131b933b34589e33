// Package cli implements the contextgraph command line.
package cli

import (
	"fmt"

	"github.com/lazypower/contextgraph/internal/config"
	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/memstore"
	"github.com/lazypower/contextgraph/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries the resolved configuration shared by every subcommand.
type app struct {
	configPath string
	dbPath     string
	backend    string
	logLevel   string

	cfg config.Config
	log *zap.Logger
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	root := &cobra.Command{
		Use:   "contextgraph",
		Short: "Typed, scored knowledge graph for operational context",
		Long: "contextgraph records decisions, events and signals as typed nodes, links them\n" +
			"with weighted relations, and ranks them by confidence, recency, signal\n" +
			"overlap and connectivity.",
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
		PersistentPostRun: func(cmd *cobra.Command, args []string) { a.log.Sync() },
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.dbPath, "db", "", "SQLite database path (overrides config and "+config.EnvDB+")")
	pf.StringVar(&a.backend, "backend", "", "storage backend: sqlite or memory")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newVersionCmd(),
		newServeCmd(a),
		newNodeCmd(a),
		newEdgeCmd(a),
		newRelatedCmd(a),
		newSimilarCmd(a),
		newDumpCmd(a),
		newLoadCmd(a),
		newImportCmd(a),
	)
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.backend != "" {
		cfg.Database.Backend = a.backend
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// openStorage opens the configured backend.
func (a *app) openStorage() (graph.Storage, string, error) {
	if a.cfg.Database.Backend == config.BackendMemory {
		return memstore.New(), ":memory:", nil
	}
	dbPath := a.cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = config.DefaultDBPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	return db, dbPath, nil
}

// graphOptions are the facade options derived from config.
func (a *app) graphOptions() []graph.Option {
	return []graph.Option{
		graph.WithScoringConfig(a.cfg.Scoring),
		graph.WithLogger(a.log),
	}
}

// openGraph opens the configured backend behind a facade. Callers close it.
func (a *app) openGraph() (*graph.Graph, error) {
	s, _, err := a.openStorage()
	if err != nil {
		return nil, err
	}
	g, err := graph.New(s, a.graphOptions()...)
	if err != nil {
		s.Close()
		return nil, err
	}
	return g, nil
}
