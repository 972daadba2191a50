// Package main provides the mplan CLI entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joss/mplan/internal/config"
	"github.com/joss/mplan/internal/logging"
)

var (
	version = "0.1.0"
	cfg     *config.Config
	pretty  = true
	logLvl  logging.Level
)

// flagKeys maps command flags onto configuration keys so a flag given on
// the command line overrides mplan.yaml and the environment.
var flagKeys = map[string]string{
	"format":             "plan.format",
	"min-cluster-weight": "plan.min_cluster_weight",
	"addr":               "server.addr",
	"graph-uri":          "graph.uri",
	"log-level":          "logging.level",
	"history-db":         "history.path",
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "mplan",
		Short: "Cross-repository migration planner",
		Long: `mplan: plan the migration of a set of interdependent repositories.

It reads dependency edges, shared artifacts and component counts from a
graph database (Memgraph/Neo4j) or a fact file, groups the repositories into
migration slices, orders them, and proposes a GraphQL surface and roadmap.

Use 'mplan plan <repo>...' to build a plan.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := config.New()
			bindFlags(v, cmd)
			if err := config.ReadFile(v, configFile); err != nil {
				return err
			}
			loaded, err := config.Load(v)
			if err != nil {
				return err
			}
			cfg = loaded
			logLvl = logging.ParseLevel(cfg.Logging.Level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./mplan.yaml or $MPLAN_HOME/mplan.yaml)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Color output on terminals")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("graph-uri", "", "Graph database bolt URI")

	rootCmd.AddGroup(
		&cobra.Group{ID: "planning", Title: "Planning:"},
		&cobra.Group{ID: "graph", Title: "Graph:"},
		&cobra.Group{ID: "runtime", Title: "Runtime:"},
	)

	// Planning commands
	plan := planCmd()
	plan.GroupID = "planning"
	rootCmd.AddCommand(plan)

	history := historyCmd()
	history.GroupID = "planning"
	rootCmd.AddCommand(history)

	// Graph commands
	ingest := ingestCmd()
	ingest.GroupID = "graph"
	rootCmd.AddCommand(ingest)

	stats := statsCmd()
	stats.GroupID = "graph"
	rootCmd.AddCommand(stats)

	// Runtime commands
	serve := serveCmd()
	serve.GroupID = "runtime"
	rootCmd.AddCommand(serve)

	check := checkCmd()
	check.GroupID = "runtime"
	rootCmd.AddCommand(check)

	// Ungrouped
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			_ = v.BindPFlag(key, f)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		exit(1)
	}
}
