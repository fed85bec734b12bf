package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"romcurator/internal/catalog"
	"romcurator/internal/config"
	"romcurator/internal/ingest"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run the full ingest pipeline: discover, hash, expand, correlate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
				defer cancel()

				logger, err := newLogger(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				report, runErr := ingest.New(cfg, store, logger).Run(signalCtx)
				if report != nil {
					if outErr := printReport(cmd, ctx, report); outErr != nil {
						return outErr
					}
				}
				return runErr
			})
		},
	}
}

func printReport(cmd *cobra.Command, ctx *commandContext, report *ingest.Report) error {
	if ctx.jsonOutput(cmd) {
		return writeJSON(cmd, report)
	}

	rows := make([][]string, 0, len(report.Scan))
	for root, stats := range report.Scan {
		rows = append(rows, []string{
			root,
			strconv.Itoa(stats.Discovered),
			strconv.Itoa(stats.Excluded),
			strconv.Itoa(stats.Unreadable),
			strconv.FormatInt(stats.MissedFlagged, 10),
		})
	}
	printTable(cmd,
		[]string{"Root", "Discovered", "Excluded", "Unreadable", "Missing"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", report.RunID)
	fmt.Fprintf(out, "Hashed %d files (%d cache hits, %d failed, %d skipped)\n",
		report.Hash.Hashed, report.Hash.CacheHits, report.Hash.Failed, report.Hash.Skipped)
	fmt.Fprintf(out, "Expanded %d containers, %d members (%d salvaged, %d password-locked, %d corrupt)\n",
		report.Archive.Containers, report.Archive.Members,
		report.Archive.Salvaged, report.Archive.PasswordRequired, report.Archive.Corrupt)
	fmt.Fprintf(out, "Linked %d exact + %d fuzzy, queued %d for review, %d unmatched\n",
		report.Correlate.ExactLinked, report.Correlate.FuzzyLinked,
		report.Correlate.Queued, report.Correlate.Unmatched)
	return nil
}
