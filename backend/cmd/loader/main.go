package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"uhnw-graph/backend/pkg/config"
	"uhnw-graph/backend/pkg/logger"
)

var (
	cfg       *config.Config
	stateFile string
	dataFile  string
	dryRun    bool
)

var rootCmd = &cobra.Command{
	Use:   "loader",
	Short: "Resolve people and companies from heterogeneous sources into the graph",
	Long: `loader ingests person and organisation facts from knowledge-base dumps,
regulator registers, annual-report extractions and rankings, deduplicates them
into canonical entities and merges them into Neo4j.

Repeated runs converge: every write is an idempotent upsert and the crawl
frontier remembers which knowledge-base ids have been expanded.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("state-file") {
			loaded.StateFile = stateFile
		}
		if cmd.Flags().Changed("data-file") {
			loaded.DataFile = dataFile
		}
		if cmd.Flags().Changed("dry-run") {
			loaded.DryRun = dryRun
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return logger.Init(cfg.Env)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", "", "crawl frontier file (overrides STATE_FILE)")
	rootCmd.PersistentFlags().StringVar(&dataFile, "data-file", "", "knowledge-base snapshot file (overrides DATA_FILE)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log writes instead of sending them to Neo4j")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
