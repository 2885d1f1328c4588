package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mergestat/timediff"
	"github.com/spf13/cobra"
)

var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show database statistics",
	Long:  `Display statistics about the credential store, the dataset cache and the refresh job.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, closeFn, err := openEngine()
		if err != nil {
			return fmt.Errorf("failed to open stores: %w", err)
		}
		defer closeFn()

		stats, err := engine.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get database stats: %w", err)
		}

		fmt.Println("Database Statistics:")
		fmt.Printf("Users: %s\n", humanize.Comma(stats.Users))
		fmt.Printf("Dataset: %s\n", stats.Dataset)

		if load := stats.Dataset.LastLoad; load != nil {
			fmt.Printf("Last Load: %s (%s)\n", load.LoadedAt.Format(time.RFC3339), timediff.TimeDiff(load.LoadedAt))
			fmt.Printf("Source: %s\n", load.Source)
			fmt.Printf("Run ID: %s\n", load.RunID)
		}

		for _, src := range stats.Sources {
			state := "not checked"
			switch {
			case src.Loaded:
				state = fmt.Sprintf("loaded, %s rows", humanize.Comma(int64(src.Rows)))
			case src.Error != "":
				state = "error: " + src.Error
			}
			fmt.Printf("Source %s: %s\n", src.Label, state)
		}

		for _, job := range stats.Jobs {
			fmt.Printf("\nJob %s (%s): %s\n", job.Name, job.Schedule, job.Status)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbStatsCmd)
}
