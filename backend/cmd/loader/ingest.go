package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"uhnw-graph/backend/internal/adapter"
	"uhnw-graph/backend/internal/constants"
	"uhnw-graph/backend/internal/graph"
	"uhnw-graph/backend/internal/ingest"
	"uhnw-graph/backend/internal/record"
	"uhnw-graph/backend/pkg/logger"
)

var (
	ingestLimit int
	ingestReset bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <kind> <path>",
	Short: "Ingest one source file (or annual-report directory)",
	Long: fmt.Sprintf(`Ingest one source into the graph.

Kinds: %s

wikidata_sparql input resumes the crawl: the frontier and snapshot files are
read before the run and saved after it, and the ids still to expand are
printed as {"next": [{"qid": ...}]}.

Examples:
  # Ingest the MAS personnel register
  loader ingest MAS_csv ./MAS_Personnel_merged.csv

  # Ingest the newest 20 annual reports, four parsers at a time
  INGEST_PARSE_WORKERS=4 loader ingest annual_report ./reports --limit 20

  # Preview a knowledge-base dump without writing
  loader ingest wikidata ./data.json --dry-run`, strings.Join(adapter.Kinds, ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, path := args[0], args[1]
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		opts := adapter.Options{Workers: cfg.ParseWorkers, Limit: ingestLimit, Logger: logger.Get()}
		if kind == adapter.KindAnnualReport {
			done, err := store.ProcessedSourceFiles(ctx, constants.SourceAnnualReport)
			if err != nil {
				return err
			}
			opts.Skip = func(name string) bool { return done[name] }
		}

		batches, err := adapter.Load(ctx, kind, path, opts)
		if err != nil {
			return err
		}
		return runBatches(ctx, store, filesFor(kind), batches)
	},
}

var manifestCmd = &cobra.Command{
	Use:   "manifest <file>",
	Short: "Ingest every source listed in a YAML manifest, in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m, err := adapter.LoadManifest(args[0])
		if err != nil {
			return err
		}
		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		done, err := store.ProcessedSourceFiles(ctx, constants.SourceAnnualReport)
		if err != nil {
			return err
		}
		batches, err := m.Load(ctx, adapter.Options{
			Workers: cfg.ParseWorkers,
			Limit:   ingestLimit,
			Skip:    func(name string) bool { return done[name] },
			Logger:  logger.Get(),
		})
		if err != nil {
			return err
		}

		files := ingest.Files{Reset: ingestReset}
		for _, s := range m.Sources {
			if s.Kind == adapter.KindWikidataSPARQL {
				files = filesFor(s.Kind)
				break
			}
		}
		return runBatches(ctx, store, files, batches)
	},
}

// filesFor returns the process-state files a kind resumes from. Only the
// crawl keeps state between runs.
func filesFor(kind string) ingest.Files {
	if kind != adapter.KindWikidataSPARQL {
		return ingest.Files{}
	}
	return ingest.Files{StatePath: cfg.StateFile, DataPath: cfg.DataFile, Reset: ingestReset}
}

func runBatches(ctx context.Context, store graph.Store, files ingest.Files, batches []record.Batch) error {
	log := logger.Get()
	res, err := ingest.Ingest(ctx, store, files, ingest.OptionsFromConfig(cfg, log, nil), batches)
	if err != nil {
		log.Error("Ingestion failed", zap.Error(err))
		return err
	}
	printSummary(res.Summary, files.StatePath != "")
	return nil
}

func printSummary(s ingest.Summary, crawl bool) {
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("%s Ingested %d batch(es), %d record(s)\n", green("✓"), s.Batches, s.Records)
	if s.Skipped > 0 {
		fmt.Printf("  %s %d record(s) skipped\n", yellow("⚠"), s.Skipped)
	}
	fmt.Printf("  Persons:   %s created, %d merged\n", cyan(s.PersonsCreated), s.PersonsMerged)
	fmt.Printf("  Companies: %s created, %d merged\n", cyan(s.CompaniesCreated), s.CompaniesMerged)
	fmt.Printf("  Roles:     %d   Family edges: %d\n", s.RoleEdges, s.FamilyEdges)
	if s.Ambiguous > 0 {
		fmt.Printf("  %s %d ambiguous match(es) resolved by tie-break\n", yellow("⚠"), s.Ambiguous)
	}
	if crawl {
		printNext(s.Pending)
	}
}

func init() {
	ingestCmd.PersistentFlags().IntVar(&ingestLimit, "limit", 0, "maximum number of annual-report files to take (0 = all)")
	ingestCmd.PersistentFlags().BoolVar(&ingestReset, "reset", false, "ignore the frontier and snapshot files and start a fresh crawl")
	ingestCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(ingestCmd)
}
