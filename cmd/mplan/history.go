package main

import (
	"github.com/spf13/cobra"

	"github.com/joss/mplan/internal/render"
	"github.com/joss/mplan/internal/store"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Saved plans",
		Long:  "List and show plans saved with 'mplan plan --save'",
	}

	// mplan history list [--limit n] [--repo name]
	var (
		limit int
		repo  string
	)
	listCmd := newCommand(CommandConfig{
		Use:     "list",
		Short:   "List saved plans, newest first",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(cfg.Plan.Format)
			if err != nil {
				return err
			}
			h, err := openHistory()
			if err != nil {
				return err
			}
			defer h.Close()

			if limit <= 0 {
				limit = cfg.History.Limit
			}
			records, err := h.List(cmd.Context(), store.DefaultFilter().WithLimit(limit).WithRepository(repo))
			if err != nil {
				return err
			}
			if format != render.FormatText {
				if records == nil {
					records = []*store.Record{}
				}
				return render.Encode(cmd.OutOrStdout(), format, records)
			}
			render.NewHistory(cmd.OutOrStdout()).List(records)
			return nil
		},
	})
	listCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum plans to list (default from config)")
	listCmd.Flags().StringVar(&repo, "repo", "", "Only plans covering this repository")
	listCmd.Flags().StringP("format", "o", "", "Output format: text, json, yaml")

	// mplan history show <id>
	showCmd := newCommand(CommandConfig{
		Use:   "show <id>",
		Short: "Show a saved plan",
		Args:  cobra.ExactArgs(1),
		RunFunc: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(cfg.Plan.Format)
			if err != nil {
				return err
			}
			h, err := openHistory()
			if err != nil {
				return err
			}
			defer h.Close()

			rec, err := h.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format != render.FormatText {
				return render.Encode(out, format, rec.Plan)
			}
			render.NewHistory(out).Show(rec, isPretty(out))
			return nil
		},
	})
	showCmd.Flags().StringP("format", "o", "", "Output format: text, json, yaml")

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}
