package cmd

import (
	"fmt"

	"github.com/ccoveille/go-safecast"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/farsisweep/internal/database"
	"github.com/jon4hz/farsisweep/internal/models"
	"github.com/jon4hz/farsisweep/internal/tracker"
	"github.com/mergestat/timediff"
	"github.com/spf13/cobra"
)

var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show database statistics",
	Long:  `Display the number of stored and new records per category, the video files and the acknowledged URLs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := database.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close() //nolint: errcheck

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get database stats: %w", err)
		}

		fmt.Println("Database Statistics:")
		for _, category := range models.Categories {
			ts := stats.Table(category)
			fmt.Printf("  %-9s total: %d, new: %d", category, ts.Total, ts.New)
			if ts.LastScraped != nil {
				fmt.Printf(", last scraped: %s", timediff.TimeDiff(*ts.LastScraped))
			}
			fmt.Println()
		}
		fmt.Printf("Video Files: %d (%s)\n", stats.VideoFiles, humanize.Bytes(stats.VideoBytes))

		ts := tracker.New(db, cfg.Output.ProcessedURLsPath).Stats()
		fmt.Println("\nProcessed URLs:")
		for _, category := range models.Categories {
			fmt.Printf("  %-9s %d\n", category, ts.Processed[category])
		}
		if ts.Exists {
			size, err := safecast.Convert[uint64](ts.Size)
			if err != nil {
				return err
			}
			fmt.Printf("Cache File: %s (%s)\n", ts.CacheFile, humanize.Bytes(size))
		} else {
			fmt.Printf("Cache File: %s (missing)\n", ts.CacheFile)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbStatsCmd)
}
