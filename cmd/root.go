// =============================================================================
// CFDI to CSV Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand is
// attached to it and shares its flags.
//
// COBRA CLI STRUCTURE:
//   rootCmd (cfdi2csv)
//   ├── convertCmd (cfdi2csv convert)
//   ├── checkCmd   (cfdi2csv check)
//   └── versionCmd (cfdi2csv version)
//
// The root command owns:
//   1. The global flags (--config, --verbose)
//   2. Loading the configuration (config.LoadOrDefault)
//   3. Setting up logging (zerolog, console on stderr plus an optional
//      JSON log file)
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging regardless of log_level.
var verbose bool

// logFile is the open log_file, closed when the command returns.
var logFile *os.File

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "cfdi2csv",
	Short: "CFDI to CSV Converter - Flatten CFDI 4.0 invoices into a spreadsheet",
	Long: `cfdi2csv reads CFDI 4.0 electronic invoice XML documents and flattens
each one into rows of a single 30-column table: one row with the document
header data, then one row per line item.

Key Features:
  - Concurrent processing with output kept in input order
  - Per-document failure isolation with an error log
  - CSV or XLSX output, configurable header labels and cell transformations
  - Data quality checks on amounts, dates and stamps

Example Usage:
  cfdi2csv convert                        # Convert every document in input_dir
  cfdi2csv convert a.xml b.xml -o out.csv # Convert the given documents
  cfdi2csv check ./input/*.xml            # Run data quality checks only`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// Finalizers run after every command, failing ones included.
	cobra.OnFinalize(closeLogFile)

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file; a missing default file is not an error",
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

// loadConfig loads the configuration and sets up the global logger from it.
func loadConfig(cmd *cobra.Command) (*config.MainConfig, error) {
	cfg, err := config.LoadOrDefault(cfgFile, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := setupLogging(cfg); err != nil {
		return nil, err
	}

	log.Debug().Str("config", cfgFile).Msg("configuration loaded")
	return cfg, nil
}

func setupLogging(cfg *config.MainConfig) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		out = zerolog.MultiLevelWriter(out, f)
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// closeLogFile closes the log_file, if one was opened, and points the global
// logger back at the console.
func closeLogFile() {
	if logFile == nil {
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	logFile.Close()
	logFile = nil
}
