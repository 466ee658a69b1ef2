package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Process new content once",
	Long:  `Collect the content that is new and not yet acknowledged, write a notification file for it and mark it as processed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, e, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		path, err := e.Notify(cmd.Context())
		if err != nil {
			return err
		}
		if path != "" {
			log.Info("notification written", "path", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
