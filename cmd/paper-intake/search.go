// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-intake/internal/index"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over the paper artifacts",
	Long: `Search queries the SQLite catalog built from the artifacts of completed
papers. The query uses SQLite full-text syntax: words, "quoted phrases",
prefix*, AND/OR/NOT. Run "paper-intake index" first if the catalog is new.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("limit", 20, "maximum number of results")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if cfg.Storage.CatalogFile == "" {
		return errors.New("search needs storage.catalog_file to be set")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	cat, err := index.OpenCatalog(cfg.Storage.Path(cfg.Storage.CatalogFile))
	if err != nil {
		return err
	}
	defer cat.Close()

	hits, err := cat.Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if hits == nil {
			hits = []index.SearchResult{}
		}
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Fprintln(out, "no matches")
		return nil
	}
	for i, h := range hits {
		fmt.Fprintf(out, "%d. %s (%s", i+1, h.Title, h.Month)
		if h.Relevance != "" {
			fmt.Fprintf(out, ", relevance: %s", h.Relevance)
		}
		fmt.Fprintf(out, ")\n   %s\n   %s\n", h.ArtifactPath, h.Snippet)
	}
	return nil
}
