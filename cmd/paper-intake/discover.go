// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the papers of a month without downloading them",
	Long: `Discover fetches the month listing and prints the papers found, with
their keys and PDF links. Nothing is downloaded and the tracker is not
touched, which makes it a quick check of the listing parser.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().String("month", "", "month to list as YYYY-MM (default: current month)")
	discoverCmd.Flags().Int("limit", 5, "number of papers to print (0 = all)")
	discoverCmd.Flags().Bool("use-browser", false, "render the listing in a headless browser container")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	month, err := monthFlag(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	useBrowser, _ := cmd.Flags().GetBool("use-browser")

	disc, err := newDiscoverer(newPageFetcher(), useBrowser, os.Stdout)
	if err != nil {
		return err
	}
	refs, err := disc.Discover(cmd.Context(), month)
	if err != nil {
		return err
	}

	shown := refs
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for i, r := range shown {
		fmt.Printf("%3d. %s\n", i+1, r.Title)
		fmt.Printf("     key: %s\n", r.Key)
		fmt.Printf("     page: %s\n", r.SourceURL)
		if r.PDFURL != "" {
			fmt.Printf("     pdf: %s\n", r.PDFURL)
		}
	}
	if len(shown) < len(refs) {
		fmt.Printf("... and %d more\n", len(refs)-len(shown))
	}
	return nil
}
