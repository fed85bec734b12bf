package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"romcurator/internal/catalog"
	"romcurator/internal/config"
	"romcurator/internal/correlate"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "match",
		Short: "Correlate cataloged files against imported reference entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				logger, err := newLogger(cfg)
				if err != nil {
					return err
				}
				matcher := correlate.New(store, logger, correlate.Options{
					AutoLinkThreshold: cfg.Matching.AutoLinkThreshold,
					ReviewThreshold:   cfg.Matching.ReviewThreshold,
				})
				stats, runErr := matcher.Run(cmdCtx)

				if ctx.jsonOutput(cmd) {
					if err := writeJSON(cmd, stats); err != nil {
						return err
					}
					return runErr
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Examined %d instances\n", stats.Examined)
				fmt.Fprintf(out, "Linked %d exact, %d fuzzy\n", stats.ExactLinked, stats.FuzzyLinked)
				fmt.Fprintf(out, "Queued %d for review (%d duplicates), %d unmatched, %d skipped\n",
					stats.Queued, stats.Duplicates, stats.Unmatched, stats.Skipped)
				return runErr
			})
		},
	}
}
