package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/jon4hz/farsisweep/internal/config"
	"github.com/jon4hz/farsisweep/internal/database"
	"github.com/jon4hz/farsisweep/internal/engine"
	"github.com/spf13/cobra"
)

var rootCmdPersistentFlags struct {
	LogFile    string
	ConfigFile string
	LogLevel   string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogFile, "log-file", "", "File to write logs to")
	rootCmd.PersistentFlags().StringVarP(&rootCmdPersistentFlags.ConfigFile, "config", "c", "", "Path to config file (default: search for config.yml in current dir, ~/.farsisweep, /etc/farsisweep)")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "", "Log level (debug, info, warn, error) - overrides config file setting")
}

var rootCmd = &cobra.Command{
	Use:   "farsisweep",
	Short: "Farsisweep crawls a Persian media catalog into a local database",
	Long:  `Farsisweep discovers shows, episodes and movies through the site's sitemaps, extracts their metadata and video links, and keeps them in a local database with new content tracking.`,
	Example: `farsisweep crawl --config config.yml
  farsisweep -c /path/to/config.yml --log-level debug serve
  farsisweep crawl --spiders movies --limit 10 --export`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if rootCmdPersistentFlags.LogLevel != "" {
			setLogLevel(rootCmdPersistentFlags.LogLevel)
		}
		logToFile()
	},
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func logToFile() {
	if rootCmdPersistentFlags.LogFile == "" {
		return
	}
	file, err := os.OpenFile(rootCmdPersistentFlags.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		log.Errorf("failed to open log file: %v", err)
		return
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.Info("logging to both console and file", "file", rootCmdPersistentFlags.LogFile)
}

// loadConfig loads the config and applies its log level unless the flag overrides it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rootCmdPersistentFlags.LogLevel == "" && cfg.LogLevel != "" {
		setLogLevel(cfg.LogLevel)
	}
	return cfg, nil
}

// setup opens the database and builds the engine. The returned cleanup stops
// the engine and closes the database.
func setup() (*config.Config, *engine.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	e, err := engine.New(cfg, db)
	if err != nil {
		db.Close() //nolint:errcheck
		return nil, nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}

	cleanup := func() {
		if err := e.Close(); err != nil {
			log.Error("failed to stop engine", "error", err)
		}
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}
	return cfg, e, cleanup, nil
}

// shutdownSignals cancel the command context, so running crawls release their locks.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func Execute() error {
	return execute(context.Background(), rootCmd)
}

func execute(ctx context.Context, root *cobra.Command) error {
	return fang.Execute(ctx, root, fang.WithNotifySignal(shutdownSignals...))
}
