package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"romcurator/internal/catalog"
	"romcurator/internal/config"
	"romcurator/internal/ingest"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report <run-id>",
		Short: "Show the persisted report and operation log of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cmdCtx context.Context, cfg *config.Config, store *catalog.Store) error {
				run, err := store.RunByID(cmdCtx, args[0])
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				operations, err := store.OperationsForRun(cmdCtx, run.ID)
				if err != nil {
					return err
				}

				if ctx.jsonOutput(cmd) {
					payload := struct {
						Run        *catalog.Run         `json:"run"`
						Report     *ingest.Report       `json:"report,omitempty"`
						Operations []*catalog.Operation `json:"operations,omitempty"`
					}{Run: run, Operations: operations}
					if run.StatsJSON != "" {
						var report ingest.Report
						if err := json.Unmarshal([]byte(run.StatsJSON), &report); err == nil {
							payload.Report = &report
						}
					}
					return writeJSON(cmd, payload)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s: %s\n", run.ID, run.Status)
				fmt.Fprintf(out, "Started %s, finished %s\n",
					formatStamp(run.StartedAt), formatStamp(run.FinishedAt))
				if run.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", run.Error)
				}
				if run.StatsJSON != "" {
					var report ingest.Report
					if err := json.Unmarshal([]byte(run.StatsJSON), &report); err == nil {
						if err := printReport(cmd, ctx, &report); err != nil {
							return err
						}
					}
				}
				if len(operations) > 0 {
					printOperations(cmd, operations)
				}
				return nil
			})
		},
	}
}

func printOperations(cmd *cobra.Command, operations []*catalog.Operation) {
	rows := make([][]string, 0, len(operations))
	for _, op := range operations {
		rows = append(rows, []string{
			strconv.FormatInt(op.ID, 10),
			string(op.Kind),
			op.SourcePath,
			op.DestPath,
			yesNo(op.Undone),
		})
	}
	printTable(cmd,
		[]string{"ID", "Kind", "Source", "Destination", "Undone"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft})
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
