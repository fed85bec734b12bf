package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"romcurator/internal/catalog"
	"romcurator/internal/config"
	"romcurator/internal/selection"
)

func newSelectCommand(ctx *commandContext) *cobra.Command {
	var policyName string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Produce an immutable 1G1R selection set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				policy, err := cfg.Policy(policyName)
				if err != nil {
					return err
				}
				logger, err := newLogger(cfg)
				if err != nil {
					return err
				}
				selector := selection.New(store, logger, selection.Policy{
					Name:              policy.Name,
					RegionOrder:       policy.RegionOrder,
					LanguageOrder:     policy.LanguageOrder,
					ExcludeClones:     policy.ExcludeClones,
					ExcludeUnverified: policy.ExcludeUnverified,
				})

				if dryRun {
					entries, stats, err := selector.Preview(cmdCtx)
					if err != nil {
						return err
					}
					if ctx.jsonOutput(cmd) {
						return writeJSON(cmd, struct {
							Policy  string                   `json:"policy"`
							Stats   selection.Stats          `json:"stats"`
							Entries []catalog.SelectionEntry `json:"entries"`
						}{policy.Name, stats, entries})
					}
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Dry run of policy %s; nothing persisted\n", policy.Name)
					fmt.Fprintf(out, "Considered %d games, selected %d, skipped %d\n",
						stats.Games, stats.Selected, stats.Skipped)
					printEntryTable(cmd, cmdCtx, store, entries)
					return nil
				}

				set, stats, err := selector.Run(cmdCtx)
				if err != nil {
					return err
				}

				if ctx.jsonOutput(cmd) {
					entries, err := store.SelectionEntries(cmdCtx, set.ID)
					if err != nil {
						return err
					}
					return writeJSON(cmd, struct {
						Set     *catalog.SelectionSet     `json:"set"`
						Stats   selection.Stats           `json:"stats"`
						Entries []*catalog.SelectionEntry `json:"entries"`
					}{set, stats, entries})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Selection set %s (policy %s)\n", set.ID, set.PolicyName)
				fmt.Fprintf(out, "Considered %d games, selected %d, skipped %d\n",
					stats.Games, stats.Selected, stats.Skipped)
				return printSelectionEntries(cmd, cmdCtx, store, set.ID)
			})
		},
	}
	cmd.Flags().StringVar(&policyName, "policy", "", "Named selection policy (default: first configured)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Evaluate the policy without writing a set")
	return cmd
}

func printSelectionEntries(cmd *cobra.Command, ctx context.Context, store *catalog.Store, setID string) error {
	entries, err := store.SelectionEntries(ctx, setID)
	if err != nil {
		return err
	}
	values := make([]catalog.SelectionEntry, 0, len(entries))
	for _, entry := range entries {
		values = append(values, *entry)
	}
	printEntryTable(cmd, ctx, store, values)
	return nil
}

func printEntryTable(cmd *cobra.Command, ctx context.Context, store *catalog.Store, entries []catalog.SelectionEntry) {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		title := ""
		if game, err := store.GameByID(ctx, entry.GameID); err == nil && game != nil {
			title = game.Title
		}
		variant := ""
		if release, err := store.ReleaseByID(ctx, entry.ReleaseID); err == nil && release != nil {
			variant = releaseLabel(release)
		}
		rows = append(rows, []string{title, variant, entry.Reason})
	}
	printTable(cmd,
		[]string{"Game", "Release", "Reason"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft})
}

func releaseLabel(release *catalog.Release) string {
	label := release.Region
	if release.Version != "" {
		if label != "" {
			label += " "
		}
		label += "v" + release.Version
	}
	if label == "" {
		label = "unspecified"
	}
	return label
}
