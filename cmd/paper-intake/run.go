// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-intake/internal/analyze"
	"github.com/pdiddy/paper-intake/internal/artifact"
	"github.com/pdiddy/paper-intake/internal/discover"
	"github.com/pdiddy/paper-intake/internal/download"
	"github.com/pdiddy/paper-intake/internal/observability"
	"github.com/pdiddy/paper-intake/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every paper listed for a month",
	Long: `Run discovers the papers listed for a month, then downloads, extracts,
analyzes, and writes an artifact for each one that is not already complete.
A failed paper is recorded and the run moves on. The index is reconciled at
the end, even after Ctrl-C; rerun the same command to resume.

Exit status is 0 unless the month is invalid or the tracker cannot be read
or written.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("month", "", "month to process as YYYY-MM (default: current month)")
	runCmd.Flags().Bool("force", false, "reprocess papers that are already complete")
	runCmd.Flags().Int("limit", 0, "stop after this many papers complete (0 = no limit)")
	runCmd.Flags().Duration("delay", 0, "minimum delay between papers (default from config)")
	runCmd.Flags().Bool("use-browser", false, "render the listing in a headless browser container")
	runCmd.Flags().Bool("retry-failed", true, "reprocess papers whose last attempt failed")

	rootCmd.AddCommand(runCmd)
}

// monthFlag returns the validated --month value, defaulting to now.
func monthFlag(cmd *cobra.Command) (string, error) {
	m, _ := cmd.Flags().GetString("month")
	if m == "" {
		return discover.CurrentMonth(time.Now().UTC()), nil
	}
	return discover.ParseMonth(m)
}

func runRun(cmd *cobra.Command, args []string) error {
	month, err := monthFlag(cmd)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	limit, _ := cmd.Flags().GetInt("limit")
	delay, _ := cmd.Flags().GetDuration("delay")
	if delay == 0 {
		delay = cfg.Download.RateDelay
	}
	useBrowser, _ := cmd.Flags().GetBool("use-browser")
	retryFailed, _ := cmd.Flags().GetBool("retry-failed")

	store, err := openStore()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	hook := download.WithAttemptHook(metrics.RecordFetchAttempt)

	pages := newPageFetcher(hook)
	disc, err := newDiscoverer(pages, useBrowser, os.Stdout)
	if err != nil {
		return err
	}
	extractor, err := newExtractor()
	if err != nil {
		return err
	}
	maintainer := newMaintainer()
	defer closeMaintainer(maintainer)

	orch := &pipeline.Orchestrator{
		Discoverer: disc,
		Downloader: download.New(cfg.Download, cfg.HTTP, hook),
		Extractor:  extractor,
		Analyzer:   analyze.New(cfg.Analysis, cfg.HTTP, loadedSecrets, logger),
		Artifacts:  artifact.NewWriter(cfg.Storage),
		Index:      maintainer,
		Store:      store,
		Categories: cfg.Categories,
		Metrics:    metrics,
		Log:        logger,
		Out:        os.Stdout,
	}
	if cfg.Discovery.ResolveDetails {
		orch.Details = discover.NewResolver(pages)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := orch.Run(ctx, month, pipeline.Options{
		Force:       force,
		Limit:       limit,
		RateDelay:   delay,
		RetryFailed: retryFailed,
	})
	if err != nil {
		return err
	}

	if path := cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(cfg.Storage.Path(path), time.Now()); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("writing metrics")
		}
	}
	logger.Debug().Str("run_id", sum.RunID).Int("failed", sum.Failed).Msg("run complete")
	return nil
}
