package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/api"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the farsisweep daemon",
	Long:  `Start the daemon: the crawl runs on the configured schedule and the HTTP API serves stats, new content and job control.`,
	Example: `farsisweep serve --config config.yml
farsisweep serve -c /path/to/config.yml --log-level debug
`,
	RunE: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) error {
	cfg, e, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	server, err := api.New(cfg, e)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	log.Info("farsisweep started successfully", "schedule", cfg.Schedule, "listen", cfg.Listen)
	err = g.Wait()
	log.Info("shutting down gracefully...")
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
