package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var sitemapCmdFlags struct {
	Force bool
}

var sitemapCmd = &cobra.Command{
	Use:   "sitemap",
	Short: "Refresh the categorized sitemap URLs",
	Long:  `Parse the sitemap index and write the categorized URL file. The refresh is skipped when the feed was not rebuilt since the last check, unless --force is set.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, e, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		if sitemapCmdFlags.Force {
			err = e.Sitemap().Refresh(cmd.Context())
		} else {
			err = e.Sitemap().Run(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("failed to update sitemap: %w", err)
		}
		log.Info("sitemap updated")
		return nil
	},
}

func init() {
	sitemapCmd.Flags().BoolVar(&sitemapCmdFlags.Force, "force", false, "Skip the feed check")
	rootCmd.AddCommand(sitemapCmd)
}
