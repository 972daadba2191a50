package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/mplan/internal/health"
	"github.com/joss/mplan/internal/render"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mplan %s\n", version)
		},
	}
}

// checkCmd reports whether the graph and history database are reachable.
func checkCmd() *cobra.Command {
	return newCommand(CommandConfig{
		Use:     "check",
		Short:   "Check graph and history connectivity",
		Aliases: []string{"doctor"},
		Args:    cobra.NoArgs,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd, "graph")
			checker := health.NewChecker(
				health.Check{Name: "graph", Optional: true, Probe: func(ctx context.Context) error {
					db, err := connectGraph(ctx, logger)
					if err != nil {
						return err
					}
					return db.Close()
				}},
				health.Check{Name: "history", Probe: func(ctx context.Context) error {
					h, err := openHistory()
					if err != nil {
						return err
					}
					defer h.Close()
					return h.Ping(ctx)
				}},
			)
			status := checker.Check(cmd.Context())

			targets := map[string]string{"graph": cfg.Graph.URI, "history": cfg.History.Path}
			w := render.NewWriter(cmd.OutOrStdout())
			w.Header("mplan %s: %s", version, status.Status)
			for _, name := range status.Names() {
				c := status.Components[name]
				w.Println("%s %-8s %s (%dms)", render.BoolIcon(c.Status != health.StatusError), name, targets[name], c.Latency)
				if c.Error != "" {
					w.Nested("%s", c.Error)
				}
			}
			if status.Components["graph"].Status == health.StatusError {
				w.Println("")
				w.Empty("Plans will be built without graph facts; use --facts to plan from a file.")
			}
			if status.Status == health.Unhealthy {
				return fmt.Errorf("mplan is %s", status.Status)
			}
			return nil
		},
	})
}
