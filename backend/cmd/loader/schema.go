package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"uhnw-graph/backend/internal/graph"
	"uhnw-graph/backend/pkg/logger"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the uniqueness constraints and indexes the loader relies on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return err
		}
		repo := graph.NewRepository(driver, cfg.Neo4jDatabase).WithURI(cfg.Neo4jURI)
		defer repo.Close()

		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Get().Error("Schema migration failed")
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Schema ready on %s\n", green("✓"), cfg.Neo4jURI)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
