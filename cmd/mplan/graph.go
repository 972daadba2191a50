package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/mplan/internal/facts"
	"github.com/joss/mplan/internal/ingest"
	"github.com/joss/mplan/internal/metrics"
	"github.com/joss/mplan/internal/query"
	"github.com/joss/mplan/internal/render"
)

func ingestCmd() *cobra.Command {
	var timeout time.Duration

	cmd := newCommand(CommandConfig{
		Use:     "ingest <facts-file>",
		Short:   "Load a fact file into the graph",
		Long:    "Write repositories, dependencies, shared artifacts, component counts and entities from a YAML/JSON fact file into the graph. Ingesting the same file twice is a no-op.",
		Example: "  mplan ingest shop.yaml",
		Args:    cobra.ExactArgs(1),
		RunFunc: func(cmd *cobra.Command, args []string) error {
			b, err := facts.Load(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			logger := newLogger(cmd, "ingest")
			db, err := connectGraph(ctx, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := ingest.NewIngester(db, logger).Ingest(ctx, b)
			if stats != nil {
				written := stats.Repositories + stats.Dependencies + stats.Artifacts + stats.Components + stats.Entities
				metrics.Global().RecordGraphWrites(written, stats.Errors)

				w := render.NewWriter(cmd.OutOrStdout())
				w.Header("Ingested %s", args[0])
				w.Item("Repositories: %d", stats.Repositories)
				w.Item("Dependencies: %d", stats.Dependencies)
				w.Item("Artifacts:    %d", stats.Artifacts)
				w.Item("Components:   %d", stats.Components)
				w.Item("Entities:     %d", stats.Entities)
				if stats.Errors > 0 {
					w.Item("Errors:       %d", stats.Errors)
				}
			}
			return err
		},
	})
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall ingest timeout")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := newCommand(CommandConfig{
		Use:   "stats",
		Short: "Show what the graph holds",
		Args:  cobra.NoArgs,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(cfg.Plan.Format)
			if err != nil {
				return err
			}
			db, err := connectGraph(cmd.Context(), newLogger(cmd, "graph"))
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := query.NewQuerier(db).Stats(cmd.Context())
			if err != nil {
				return err
			}
			if format != render.FormatText {
				return render.Encode(cmd.OutOrStdout(), format, stats)
			}
			w := render.NewWriter(cmd.OutOrStdout())
			w.Header("Graph %s", cfg.Graph.URI)
			w.Item("Repositories: %d", stats.Repositories)
			w.Item("Dependencies: %d", stats.Dependencies)
			w.Item("Artifacts:    %d", stats.Artifacts)
			w.Item("Components:   %d", stats.Components)
			w.Item("Entities:     %d", stats.Entities)
			return nil
		},
	})
	cmd.Flags().StringP("format", "o", "", "Output format: text, json, yaml")
	return cmd
}
