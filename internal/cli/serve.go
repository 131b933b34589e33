package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/contextgraph/internal/config"
	"github.com/lazypower/contextgraph/internal/graph"
	"github.com/lazypower/contextgraph/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe()
		},
	}
}

func (a *app) runServe() error {
	s, location, err := a.openStorage()
	if err != nil {
		return err
	}
	g, err := graph.New(s, a.graphOptions()...)
	if err != nil {
		s.Close()
		return err
	}
	defer g.Close()

	srv := server.New(g, server.Options{
		Version:     VersionString(),
		Backend:     a.cfg.Database.Backend,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		Logger:      a.log,
	})

	if a.configPath != "" {
		w, err := config.Watch(a.configPath, a.log, func(c config.Config) {
			if err := srv.SetScoringConfig(c.Scoring); err != nil {
				a.log.Error("apply scoring config", zap.Error(err))
				return
			}
			a.log.Info("scoring config applied",
				zap.Float64("decay_rate", c.Scoring.DecayRate),
				zap.Float64("edge_weight_factor", c.Scoring.EdgeWeightFactor))
		})
		if err != nil {
			a.log.Warn("config hot reload disabled", zap.Error(err))
		} else {
			defer w.Close()
		}
	}

	addr := a.cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("contextgraph serving",
			zap.String("addr", addr),
			zap.String("backend", a.cfg.Database.Backend),
			zap.String("db", location))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
	a.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
