package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss/mplan/internal/facts"
	"github.com/joss/mplan/internal/graph"
	"github.com/joss/mplan/internal/logging"
	"github.com/joss/mplan/internal/planning"
	"github.com/joss/mplan/internal/query"
	"github.com/joss/mplan/internal/render"
	"github.com/joss/mplan/internal/repos"
	"github.com/joss/mplan/internal/store"
)

// exit is replaced in tests.
var exit = os.Exit

// exitOnError prints err to stderr and exits. Validation errors exit
// with status 2.
func exitOnError(cmd *cobra.Command, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	if planning.IsValidation(err) {
		exit(2)
		return
	}
	exit(1)
}

// newLogger returns a logger for component at the configured level.
func newLogger(cmd *cobra.Command, component string) *logging.Logger {
	return logging.NewWithWriter(component, cmd.ErrOrStderr(), logLvl)
}

// isPretty reports whether color output should be used for w.
func isPretty(w io.Writer) bool {
	return pretty && render.IsTerminal(w)
}

// connectGraph connects to the configured graph database.
func connectGraph(ctx context.Context, logger *logging.Logger) (*graph.Memgraph, error) {
	return graph.ConnectWithRetry(ctx, cfg.Graph.Driver(), cfg.Graph.Retries, logger)
}

// openHistory opens the plan history database.
func openHistory() (*store.SQLite, error) {
	return store.OpenSQLite(cfg.History.Path)
}

// factSource is where a plan reads its facts from.
type factSource struct {
	facts  planning.FactSource
	lister repos.Lister
	close  func()
}

// openFactSource loads factsFile when given, otherwise connects to the
// graph. An unreachable graph is not an error: the plan is built without
// facts and reports data_sources.graph=false.
func openFactSource(ctx context.Context, factsFile string, logger *logging.Logger) (*factSource, error) {
	if factsFile != "" {
		b, err := facts.Load(factsFile)
		if err != nil {
			return nil, err
		}
		return &factSource{facts: b, lister: repos.Static(b.Known()), close: func() {}}, nil
	}

	db, err := connectGraph(ctx, logger)
	if err != nil {
		if !errors.Is(err, graph.ErrUnavailable) {
			return nil, err
		}
		logger.Warn("planning_without_graph", map[string]any{"uri": cfg.Graph.URI}, err)
		return &factSource{close: func() {}}, nil
	}
	q := query.NewQuerier(db)
	return &factSource{facts: q, lister: q, close: func() { db.Close() }}, nil
}

// writeOutput writes v in format. Text output uses text.
func writeOutput(w io.Writer, format render.Format, v any, text func() string) error {
	if format == render.FormatText {
		_, err := io.WriteString(w, text())
		return err
	}
	return render.Encode(w, format, v)
}
