// =============================================================================
// folio - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand is
// attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (folio)
//   ├── importCmd     (folio import FILE|DIR)
//   ├── statementsCmd (folio statements FILE)
//   ├── validateCmd   (folio validate)
//   └── versionCmd    (folio version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration before a subcommand runs
//   3. Setting up logging, and closing the log file afterwards
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/ginjaninja78/folio/internal/calendar"
	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/logger"
	"github.com/ginjaninja78/folio/internal/store"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose forces debug logging regardless of log_level.
var verbose bool

// Set by loadConfig before a subcommand runs.
var (
	appConfig *config.Config
	appLog    *slog.Logger
	closeLog  = func() error { return nil }
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "folio - Import broker transaction exports into a portfolio database",
	Long: `folio imports CSV and Excel transaction exports from brokers into a
SQLite transaction store.

Each file goes through header mapping, formatting and validation, duplicate
filtering, configurable transforms, settlement date calculation and schema
evolution before its rows are appended.

Example Usage:
  folio import exports/                 # Import every export in a directory
  folio import trades.xlsx --sheet Q1   # Import one worksheet
  folio import trades.csv --dry-run     # Show what would be imported
  folio statements statement.csv        # Apply broker-reported settlement dates
  folio validate                        # Check the configuration`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd {
		case cmd.Root(), versionCmd:
			return nil
		}
		if cmd.Name() == "help" {
			return nil
		}
		return loadConfig()
	},

	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main(). An interrupt cancels
// the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file (created with defaults if missing)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig reads the configuration file and opens the logger.
func loadConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log, closeFn, err := logger.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}

	appConfig = cfg
	appLog = log
	closeLog = closeFn
	appLog.Debug("configuration loaded", "path", cfgFile, "db", cfg.DBPath)
	return nil
}

// openStore opens the configured database.
func openStore() (*store.Store, error) {
	return store.Open(appConfig.DBPath)
}

// loadCalendars builds the trading calendars with the configured holidays.
func loadCalendars() (*calendar.Calendars, error) {
	cal, err := calendar.New(appConfig.Settlement.Holidays)
	if err != nil {
		return nil, fmt.Errorf("failed to load trading calendars: %w", err)
	}
	return cal, nil
}
