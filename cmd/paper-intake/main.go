// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-intake CLI.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-intake/internal/observability"
	"github.com/pdiddy/paper-intake/internal/secrets"
	"github.com/pdiddy/paper-intake/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Loaded once in PersistentPreRunE and shared by the subcommands.
var (
	cfg           types.IntakeConfig
	loadedSecrets map[string]string
	logger        zerolog.Logger
)

// rootCmd is the base command for the paper-intake CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-intake",
	Short: "Collect, analyze, and index the AI papers of a month",
	Long: `paper-intake discovers the papers listed for a month on Hugging Face,
downloads their PDFs, extracts text, assesses each paper against a set of
business categories, and keeps a Markdown index of everything processed.

Progress is recorded in a tracker file after every paper, so an interrupted
run resumes where it stopped. The tracker is not locked: do not run two
commands against the same base directory at once.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = c
		logger = observability.NewLogger(cfg.Logging, os.Stderr)

		s, err := secrets.Load(".secrets", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-intake.yaml or ~/.config/paper-intake/paper-intake.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
