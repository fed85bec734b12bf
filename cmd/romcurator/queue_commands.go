package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"romcurator/internal/catalog"
	"romcurator/internal/config"
	"romcurator/internal/curation"
	"romcurator/internal/logging"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Review the curation queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueList(cmd, ctx, 0)
		},
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAcceptCommand(ctx))
	queueCmd.AddCommand(newQueueRejectCommand(ctx))
	queueCmd.AddCommand(newQueueSweepCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open curation items, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueList(cmd, ctx, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum items to show")
	return cmd
}

func runQueueList(cmd *cobra.Command, ctx *commandContext, limit int) error {
	return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
		reviewer := newReviewer(cfg, store)
		items, err := reviewer.Queue(cmdCtx, limit)
		if err != nil {
			return err
		}
		if ctx.jsonOutput(cmd) {
			return writeJSON(cmd, items)
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Curation queue is empty")
			return nil
		}
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{
				strconv.FormatInt(item.ID, 10),
				string(item.Kind),
				formatScore(item),
				item.Detail,
			})
		}
		printTable(cmd,
			[]string{"ID", "Kind", "Score", "Detail"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft})
		return nil
	})
}

func formatScore(item *catalog.CurationItem) string {
	if item.Kind != catalog.CurationFuzzyMatch {
		return ""
	}
	return strconv.FormatFloat(item.Score, 'f', 3, 64)
}

func newQueueAcceptCommand(ctx *commandContext) *cobra.Command {
	var entryID int64
	var resolvedBy string

	cmd := &cobra.Command{
		Use:   "accept <item-id>",
		Short: "Accept an item; fuzzy matches become pinned links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				reviewer := newReviewer(cfg, store)
				if entryID != 0 {
					err = reviewer.AcceptEntry(cmdCtx, itemID, entryID, reviewerName(resolvedBy))
				} else {
					err = reviewer.Accept(cmdCtx, itemID, reviewerName(resolvedBy))
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Accepted item %d\n", itemID)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&entryID, "entry", 0, "Link this reference entry instead of the proposed one")
	cmd.Flags().StringVar(&resolvedBy, "by", "", "Name recorded as the resolver")
	return cmd
}

func newQueueRejectCommand(ctx *commandContext) *cobra.Command {
	var resolvedBy string

	cmd := &cobra.Command{
		Use:   "reject <item-id>",
		Short: "Close an item without taking its proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				reviewer := newReviewer(cfg, store)
				if err := reviewer.Reject(cmdCtx, itemID, reviewerName(resolvedBy)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rejected item %d\n", itemID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&resolvedBy, "by", "", "Name recorded as the resolver")
	return cmd
}

func newQueueSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Queue version-choice decisions for games with competing releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				reviewer := newReviewer(cfg, store)
				enqueued, err := reviewer.SweepVersionChoices(cmdCtx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d version-choice items\n", enqueued)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Requeue failed candidates for another hashing pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				requeued, err := store.RetryFailedCandidates(cmdCtx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed candidates\n", requeued)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop failed candidates from the backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				cleared, err := store.ClearFailedCandidates(cmdCtx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failed candidates\n", cleared)
				return nil
			})
		},
	}
}

func newReviewer(cfg *config.Config, store *catalog.Store) *curation.Reviewer {
	logger, err := newLogger(cfg)
	if err != nil {
		logger = logging.NewNop()
	}
	return curation.NewReviewer(store, logger, curation.Preferences{
		PreferHigherRevision: cfg.Curation.PreferHigherRevision,
		PreferVerified:       cfg.Curation.PreferVerified,
	})
}

func reviewerName(flag string) string {
	if flag != "" {
		return flag
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "cli"
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}
