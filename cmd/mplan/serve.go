package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/mplan/internal/graph"
	"github.com/joss/mplan/internal/health"
	"github.com/joss/mplan/internal/metrics"
	"github.com/joss/mplan/internal/planning"
	"github.com/joss/mplan/internal/query"
	"github.com/joss/mplan/internal/repos"
	"github.com/joss/mplan/internal/server"
)

func serveCmd() *cobra.Command {
	var (
		factsFile string
		noHistory bool
	)

	cmd := newCommand(CommandConfig{
		Use:   "serve",
		Short: "Serve plans over HTTP",
		Long: `Serve POST /v1/plan, GET /v1/plans, GET /v1/plans/{id}, GET /health,
GET /health/detail and GET /metrics. Graph reads go through a TTL query cache.`,
		Example: "  mplan serve --addr :8088",
		Args:    cobra.NoArgs,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			srv, cleanup, err := newPlanServer(ctx, cmd, factsFile, noHistory)
			if err != nil {
				return err
			}
			defer cleanup()

			addr, err := srv.Start()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", addr)

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	})
	cmd.Flags().String("addr", "", "Listen address (default from config, :8088)")
	cmd.Flags().StringVarP(&factsFile, "facts", "f", "", "Serve plans from a fact file instead of the graph")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Disable the plan history endpoints")
	return cmd
}

// newPlanServer wires the plan server from configuration. An unreachable
// graph does not stop the server: plans are built without facts and the
// graph health check reports the outage.
func newPlanServer(ctx context.Context, cmd *cobra.Command, factsFile string, noHistory bool) (*server.Server, func(), error) {
	logger := newLogger(cmd, "server")
	m := metrics.Global()

	var (
		src     planning.FactSource
		lister  repos.Lister
		checks  []health.Check
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if factsFile != "" {
		fs, err := openFactSource(ctx, factsFile, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, fs.close)
		src, lister = fs.facts, fs.lister
	} else if db, err := connectGraph(ctx, logger); err == nil {
		closers = append(closers, func() { db.Close() })

		cache := graph.NewQueryCache(cfg.Graph.CacheSize, cfg.Graph.CacheTTL())
		m.TrackCache(cache)
		q := query.NewQuerier(graph.NewCachedDriver(db, cache))
		src, lister = q, q
		checks = append(checks, health.PingCheck("graph", true, db))
	} else if errors.Is(err, graph.ErrUnavailable) {
		logger.Warn("serving_without_graph", map[string]any{"uri": cfg.Graph.URI}, err)
		checks = append(checks, health.PingCheck("graph", true, nil))
	} else {
		return nil, nil, err
	}

	opts := []server.Option{
		server.WithLister(lister),
		server.WithMetrics(m),
		server.WithLogger(logger),
	}
	if !noHistory {
		h, err := openHistory()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { h.Close() })
		opts = append(opts, server.WithHistory(h))
		checks = append(checks, health.PingCheck("history", false, h))
	}
	opts = append(opts, server.WithHealth(health.NewChecker(checks...).WithLogger(logger)))

	engine := planning.NewEngine(src,
		planning.WithLogger(newLogger(cmd, "planning")),
		planning.WithObserver(m),
		planning.WithMinClusterWeight(cfg.Plan.MinClusterWeight),
	)
	return server.New(cfg.Server.Addr, engine, opts...), cleanup, nil
}
