package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Load the remote dataset into the local cache",
	Long:  `Download the remote CSV and store it in the local cache. Nothing is downloaded if the cache is already populated.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, closeFn, err := openEngine()
		if err != nil {
			return fmt.Errorf("failed to open stores: %w", err)
		}
		defer closeFn()

		n, err := engine.RefreshDataset(cmd.Context())
		if err != nil {
			return err
		}
		log.Info("Dataset is cached", "rows", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
