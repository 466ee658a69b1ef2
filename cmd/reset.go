package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/database"
	"github.com/jon4hz/farsisweep/internal/tracker"
	"github.com/spf13/cobra"
)

var resetCmdFlags struct {
	MarkNew bool
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the acknowledged URLs",
	Long:  `Remove the processed URL cache so every new record is reported again. With --mark-new every stored record is flagged as new as well.`,
	RunE:  reset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetCmdFlags.MarkNew, "mark-new", false, "Also flag every stored record as new")

	rootCmd.AddCommand(resetCmd)
}

func reset(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if err := tracker.New(db, cfg.Output.ProcessedURLsPath).Reset(); err != nil {
		return err
	}

	if resetCmdFlags.MarkNew {
		n, err := db.SetAllNew(cmd.Context(), true)
		if err != nil {
			return fmt.Errorf("failed to mark records as new: %w", err)
		}
		log.Info("marked records as new", "count", n)
	}

	log.Info("reset complete")
	return nil
}
