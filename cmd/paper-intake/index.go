// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the index and search catalog from the tracker",
	Long: `Index regenerates the Markdown index, and syncs the search catalog, from
the tracker alone. Nothing is downloaded. The index file is rewritten only
when its content changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		m := newMaintainer()
		defer closeMaintainer(m)

		_, err = m.Reconcile(cmd.Context(), store.All(), cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
