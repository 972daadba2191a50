package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/mplan/internal/metrics"
	"github.com/joss/mplan/internal/planning"
	"github.com/joss/mplan/internal/render"
	"github.com/joss/mplan/internal/repos"
	"github.com/joss/mplan/internal/tui"
)

func planCmd() *cobra.Command {
	var (
		factsFile string
		save      bool
		useTUI    bool
		all       bool
		sdlOnly   bool
		timeout   time.Duration
	)

	cmd := newCommand(CommandConfig{
		Use:   "plan [repo|glob...]",
		Short: "Build a migration plan for a set of repositories",
		Long: `Build a migration plan for the given repositories.

Arguments may be glob patterns (payments-*, team/**) matched against the
repositories known to the graph or fact file.`,
		Example: `  mplan plan storefront checkout billing
  mplan plan 'payments-*' --format json
  mplan plan --facts shop.yaml --all --save
  mplan plan --facts shop.yaml checkout billing --tui`,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(cfg.Plan.Format)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			logger := newLogger(cmd, "planning")
			src, err := openFactSource(ctx, factsFile, logger)
			if err != nil {
				return err
			}
			defer src.close()

			names := args
			if all {
				if src.lister == nil {
					return errors.New("--all needs a reachable graph or --facts")
				}
				if names, err = src.lister.Repositories(ctx); err != nil {
					return err
				}
			}
			if names, err = repos.Resolve(ctx, src.lister, names); err != nil {
				return err
			}

			engine := planning.NewEngine(src.facts,
				planning.WithLogger(logger),
				planning.WithObserver(metrics.Global()),
				planning.WithMinClusterWeight(cfg.Plan.MinClusterWeight),
			)
			plan, err := engine.Build(ctx, names)
			if err != nil {
				return err
			}

			if save {
				if err := savePlan(cmd, plan); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			switch {
			case useTUI:
				return tui.Run(plan)
			case sdlOnly:
				_, err := fmt.Fprint(out, plan.GraphQL.SDLPreview)
				return err
			}
			return writeOutput(out, format, plan, func() string {
				return render.New(isPretty(out)).Plan(plan)
			})
		},
	})

	cmd.Flags().StringVarP(&factsFile, "facts", "f", "", "Read facts from a YAML/JSON file instead of the graph")
	cmd.Flags().StringP("format", "o", "", "Output format: text, json, yaml")
	cmd.Flags().Float64("min-cluster-weight", 0, "Ignore edges lighter than this when grouping slices")
	cmd.Flags().BoolVar(&save, "save", false, "Save the plan to history")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Browse the plan interactively")
	cmd.Flags().BoolVar(&all, "all", false, "Plan every known repository")
	cmd.Flags().BoolVar(&sdlOnly, "sdl", false, "Print only the GraphQL schema preview")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall planning timeout")

	return cmd
}

func savePlan(cmd *cobra.Command, plan *planning.Plan) error {
	h, err := openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	rec, err := h.Save(cmd.Context(), plan)
	metrics.Global().RecordHistorySave(err == nil)
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved plan %s\n", rec.ID)
	return nil
}
