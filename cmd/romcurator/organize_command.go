package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"romcurator/internal/catalog"
	"romcurator/internal/config"
	"romcurator/internal/organizer"
)

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	var setID string
	var policyName string
	var apply bool

	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Lay a selection set out under the destination directory",
		Long: "Organize plans destination paths for a frozen selection set. Without " +
			"--apply nothing is moved; the plan is printed for review.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				resolvedSet, err := resolveSetID(cmdCtx, store, setID, policyName)
				if err != nil {
					return err
				}
				org, err := newOrganizer(cfg, store)
				if err != nil {
					return err
				}

				if !apply {
					plan, err := org.Plan(cmdCtx, resolvedSet)
					if err != nil {
						return err
					}
					return printPlan(cmd, ctx, plan)
				}

				runID := uuid.NewString()
				stats, err := org.Apply(cmdCtx, resolvedSet, runID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput(cmd) {
					return writeJSON(cmd, struct {
						RunID string          `json:"run_id"`
						Stats organizer.Stats `json:"stats"`
					}{runID, stats})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Organize run %s\n", runID)
				fmt.Fprintf(out, "Moved %d of %d planned (%d cross-device, %d skipped, %d conflicts)\n",
					stats.Moved, stats.Planned, stats.CrossDevice, stats.Skipped, stats.Conflicts)
				fmt.Fprintf(out, "Undo with: romcurator undo %s\n", runID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&setID, "set", "", "Selection set to organize (default: latest)")
	cmd.Flags().StringVar(&policyName, "policy", "", "Pick the latest set of this policy when --set is omitted")
	cmd.Flags().BoolVar(&apply, "apply", false, "Move files instead of printing the plan")
	return cmd
}

func newQuarantineCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "quarantine <instance-id>",
		Short: "Move a file instance to the quarantine directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instanceID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				org, err := newOrganizer(cfg, store)
				if err != nil {
					return err
				}
				runID := uuid.NewString()
				if err := org.Quarantine(cmdCtx, instanceID, runID, reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Quarantined instance %d (run %s)\n", instanceID, runID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the file is being set aside")
	return cmd
}

func newUndoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "undo [run-id]",
		Short: "Reverse the moves of an organize run, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				runID := ""
				if len(args) == 1 {
					runID = strings.TrimSpace(args[0])
				}
				if runID == "" {
					latest, err := store.LatestOrganizeRun(cmdCtx)
					if err != nil {
						return err
					}
					if latest == "" {
						return fmt.Errorf("no organize run to undo")
					}
					runID = latest
				}
				org, err := newOrganizer(cfg, store)
				if err != nil {
					return err
				}
				reversed, err := org.Undo(cmdCtx, runID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reversed %d operations from run %s\n", reversed, runID)
				return nil
			})
		},
	}
}

func newOrganizer(cfg *config.Config, store *catalog.Store) (*organizer.Organizer, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return organizer.New(store, logger, organizer.Options{
		DestinationDir: cfg.Library.DestinationDir,
		QuarantineDir:  cfg.Paths.QuarantineDir,
		PathTemplate:   cfg.Library.PathTemplate,
		Overwrite:      cfg.Library.OverwriteExisting,
	})
}

func resolveSetID(ctx context.Context, store *catalog.Store, setID, policyName string) (string, error) {
	if strings.TrimSpace(setID) != "" {
		return setID, nil
	}
	if strings.TrimSpace(policyName) != "" {
		set, err := store.LatestSelectionSet(ctx, policyName)
		if err != nil {
			return "", err
		}
		if set == nil {
			return "", fmt.Errorf("no selection set for policy %q; run `romcurator select` first", policyName)
		}
		return set.ID, nil
	}
	sets, err := store.ListSelectionSets(ctx)
	if err != nil {
		return "", err
	}
	if len(sets) == 0 {
		return "", fmt.Errorf("no selection set found; run `romcurator select` first")
	}
	return sets[0].ID, nil
}

func printPlan(cmd *cobra.Command, ctx *commandContext, plan []organizer.PlanEntry) error {
	if ctx.jsonOutput(cmd) {
		return writeJSON(cmd, plan)
	}
	if len(plan) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to organize")
		return nil
	}
	rows := make([][]string, 0, len(plan))
	for _, entry := range plan {
		rows = append(rows, []string{
			string(entry.Action),
			entry.SourcePath,
			entry.DestPath,
			entry.Reason,
		})
	}
	printTable(cmd,
		[]string{"Action", "Source", "Destination", "Reason"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft})
	fmt.Fprintln(cmd.OutOrStdout(), "Dry run; pass --apply to move files")
	return nil
}
