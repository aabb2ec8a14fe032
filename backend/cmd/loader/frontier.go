package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"uhnw-graph/backend/internal/frontier"
	"uhnw-graph/backend/pkg/logger"
)

var frontierCmd = &cobra.Command{
	Use:   "frontier",
	Short: "Inspect or reset the crawl frontier",
}

var frontierPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Print the ids discovered but not yet expanded",
	Long: `Print the pending ids as the next crawl request:

  [{"qid": "Q1"}, {"qid": "Q2"}]`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := frontier.Load(cfg.StateFile, logger.Get())
		if err != nil {
			return err
		}
		return writeNext(t.PendingIDs())
	},
}

var frontierResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every known id and start the crawl over",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, _ := frontier.Load(cfg.StateFile, logger.Get())
		n := t.Len()
		t.Reset()
		if err := t.Save(cfg.StateFile); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Frontier reset (%d id(s) forgotten)\n", green("✓"), n)
		return nil
	},
}

// nextRequest is one element of the crawl request printed for pending ids.
type nextRequest struct {
	QID string `json:"qid"`
}

func nextRequests(ids []string) []nextRequest {
	out := make([]nextRequest, 0, len(ids))
	for _, id := range ids {
		out = append(out, nextRequest{QID: id})
	}
	return out
}

func writeNext(ids []string) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(nextRequests(ids))
}

func printNext(ids []string) {
	if len(ids) == 0 {
		fmt.Println("  Frontier exhausted")
		return
	}
	fmt.Printf("  %d id(s) pending:\n", len(ids))
	_ = writeNext(ids)
}

func init() {
	frontierCmd.AddCommand(frontierPendingCmd)
	frontierCmd.AddCommand(frontierResetCmd)
	rootCmd.AddCommand(frontierCmd)
}
