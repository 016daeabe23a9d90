// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-intake/internal/index"
	"github.com/pdiddy/paper-intake/internal/tracker"
	"github.com/pdiddy/paper-intake/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracker counts and the last run",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("failed", false, "list failed papers with stage and error")

	rootCmd.AddCommand(statusCmd)
}

var statusOrder = []types.Status{
	types.StatusComplete,
	types.StatusFailed,
	types.StatusPending,
	types.StatusDownloaded,
	types.StatusExtracted,
	types.StatusAnalyzed,
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	listFailed, _ := cmd.Flags().GetBool("failed")
	out := cmd.OutOrStdout()

	recs := store.All()
	fmt.Fprintf(out, "tracker: %s (%d papers)\n", store.Path(), len(recs))
	if months := index.Months(recs); len(months) > 0 {
		fmt.Fprintf(out, "months: %s\n", strings.Join(months, ", "))
	}

	counts := tracker.CountByStatus(recs)
	for _, s := range statusOrder {
		if n := counts[s]; n > 0 {
			fmt.Fprintf(out, "  %-10s %d\n", s, n)
		}
	}

	if last, ok := store.LastRun(); ok {
		fmt.Fprintf(out, "\nlast run %s (%s), finished %s\n",
			last.RunID, last.Month, last.FinishedAt.UTC().Format("2006-01-02 15:04 UTC"))
		fmt.Fprintf(out, "  %d discovered, %d processed, %d skipped, %d failed, %d without text\n",
			last.Discovered, last.Processed, last.Skipped, last.Failed, last.Degraded)
	}

	if listFailed {
		fmt.Fprintln(out, "\nfailed papers:")
		for _, r := range recs {
			if r.Status != types.StatusFailed {
				continue
			}
			fmt.Fprintf(out, "  - %s %s [%s] (attempts: %d): %s\n", r.Month, r.Title, r.FailedStage, r.Attempts, r.Error)
		}
	}
	return nil
}
