package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"romcurator/internal/catalog"
	"romcurator/internal/config"
	"romcurator/internal/refimport"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dat-file>...",
		Short: "Import reference catalogs from Logiqx DAT files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				logger, err := newLogger(cfg)
				if err != nil {
					return err
				}
				importer := refimport.New(store, logger)

				results := make([]refimport.Stats, 0, len(args))
				for _, path := range args {
					stats, err := importer.ImportFile(cmdCtx, path)
					if err != nil {
						return err
					}
					results = append(results, stats)
				}

				if ctx.jsonOutput(cmd) {
					return writeJSON(cmd, results)
				}
				rows := make([][]string, 0, len(results))
				for _, stats := range results {
					rows = append(rows, []string{
						stats.Source,
						stats.Platform,
						strconv.Itoa(stats.Entries),
						strconv.Itoa(stats.Clones),
					})
				}
				printTable(cmd,
					[]string{"Source", "Platform", "Entries", "Clones"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight})
				return nil
			})
		},
	}
}
