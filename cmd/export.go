package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var exportCmdFlags struct {
	Output string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the database as a JSON snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, e, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		path, err := e.Export(cmd.Context(), exportCmdFlags.Output)
		if err != nil {
			return err
		}
		log.Info("snapshot written", "path", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportCmdFlags.Output, "output", "o", "", "Snapshot path, overrides output.export_path")
	rootCmd.AddCommand(exportCmd)
}
