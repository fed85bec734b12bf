package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"romcurator/internal/catalog"
	"romcurator/internal/config"
)

type statusSnapshot struct {
	Candidates map[catalog.CandidateState]int `json:"candidates"`
	OpenItems  int                            `json:"open_curation_items"`
	Platforms  int                            `json:"platforms"`
	Runs       []*catalog.Run                 `json:"recent_runs"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the catalog: pipeline backlog, queue depth, recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				snapshot, err := collectStatus(cmdCtx, store)
				if err != nil {
					return err
				}
				if ctx.jsonOutput(cmd) {
					return writeJSON(cmd, snapshot)
				}
				return printStatus(cmd, snapshot)
			})
		},
	}
}

func collectStatus(ctx context.Context, store *catalog.Store) (*statusSnapshot, error) {
	candidates, err := store.CandidateStats(ctx)
	if err != nil {
		return nil, err
	}
	open, err := store.OpenCurationItems(ctx, 1000)
	if err != nil {
		return nil, err
	}
	platforms, err := store.Platforms(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		return nil, err
	}
	return &statusSnapshot{
		Candidates: candidates,
		OpenItems:  len(open),
		Platforms:  len(platforms),
		Runs:       runs,
	}, nil
}

func printStatus(cmd *cobra.Command, snapshot *statusSnapshot) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	backlog := snapshot.Candidates[catalog.CandidatePending]
	failed := snapshot.Candidates[catalog.CandidateFailed]

	fmt.Fprintln(out, statusLine("Platforms", statusInfo, strconv.Itoa(snapshot.Platforms), colorize))
	fmt.Fprintln(out, statusLine("Hash backlog", backlogKind(backlog), strconv.Itoa(backlog), colorize))
	fmt.Fprintln(out, statusLine("Failed candidates", backlogKind(failed), strconv.Itoa(failed), colorize))
	fmt.Fprintln(out, statusLine("Curation queue", backlogKind(snapshot.OpenItems), strconv.Itoa(snapshot.OpenItems), colorize))

	if len(snapshot.Runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	rows := make([][]string, 0, len(snapshot.Runs))
	for _, run := range snapshot.Runs {
		rows = append(rows, []string{
			run.ID,
			string(run.Status),
			formatStamp(run.StartedAt),
			formatStamp(run.FinishedAt),
		})
	}
	printTable(cmd,
		[]string{"Run", "Status", "Started", "Finished"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft})
	return nil
}

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func backlogKind(count int) statusKind {
	if count > 0 {
		return statusWarn
	}
	return statusOK
}

func statusLine(label string, kind statusKind, message string, colorize bool) string {
	base := fmt.Sprintf("  %-20s %s", label+":", message)
	if !colorize {
		return base
	}
	switch kind {
	case statusOK:
		return ansiGreen + base + ansiReset
	case statusWarn:
		return ansiYellow + base + ansiReset
	default:
		return ansiBlue + base + ansiReset
	}
}
