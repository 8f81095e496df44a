// =============================================================================
// CFDI to CSV Converter - Configuration Module
// =============================================================================
//
// This module is responsible for loading the application configuration.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults (Default)
//   2. The YAML config file (config.yaml)
//   3. A .env file in the working directory, if present
//   4. CFDI2CSV_* environment variables
//
// Command line flags are applied on top of the result by the cmd package.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/extractor"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/flatten"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/xlsxparser"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/xmlreader"
)

// Output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CFDI2CSV_"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// INPUT SETTINGS
	// =========================================================================

	// InputDir is scanned for documents when no files are given on the
	// command line.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// InputPattern is the glob used to select documents in InputDir.
	// Default: "*.xml"
	InputPattern string `yaml:"input_pattern"`

	// Recursive also scans subdirectories of InputDir.
	Recursive bool `yaml:"recursive"`

	// InputEncoding is the encoding of the documents, e.g. "ISO-8859-1".
	// A byte-order mark in a document overrides it.
	// Default: "UTF-8"
	InputEncoding string `yaml:"input_encoding"`

	// ArchiveDir, if set, receives the input documents after a batch in
	// which every document succeeded.
	ArchiveDir string `yaml:"archive_dir"`

	// ArchiveByDate files archived documents under YYYY/MM/DD
	// subdirectories of ArchiveDir.
	ArchiveByDate bool `yaml:"archive_by_date"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is where the output, error log and summary are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// OutputFile is the output file name. Placeholders:
	//   {timestamp} - YYYYMMDD_HHMMSS
	//   {date}      - YYYYMMDD
	//   {uuid}      - a random UUID
	// The extension matching OutputFormat is added when missing.
	// Default: "cfdi_{timestamp}"
	OutputFile string `yaml:"output_file"`

	// OutputFormat is "csv" or "xlsx".
	// Default: "csv"
	OutputFormat string `yaml:"output_format"`

	// UseCRLF ends CSV rows with \r\n.
	UseCRLF bool `yaml:"use_crlf"`

	// CSVBOM starts CSV output with a UTF-8 byte-order mark.
	CSVBOM bool `yaml:"csv_bom"`

	// ColumnLabels overrides header labels by column key, e.g.
	//   column_labels:
	//     Archivo: "File"
	ColumnLabels map[string]string `yaml:"column_labels"`

	// ColumnLabelsTemplate, if set, is an XLSX workbook listing column keys
	// and labels (see xlsxparser). ColumnLabels wins over it.
	ColumnLabelsTemplate string `yaml:"column_labels_template"`

	// ColumnLabelsSheet is the template worksheet. Empty means the first.
	ColumnLabelsSheet string `yaml:"column_labels_sheet"`

	// Transformations rewrite cell values of the given columns.
	Transformations []flatten.Rule `yaml:"transformations"`

	// WriteErrorLog writes a log of failed documents next to the output.
	// Default: true
	WriteErrorLog bool `yaml:"write_error_log"`

	// WriteSummary writes a processing summary next to the output.
	// Default: true
	WriteSummary bool `yaml:"write_summary"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFile, if set, also receives JSON log lines.
	LogFile string `yaml:"log_file"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of documents processed at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps processing the remaining documents after one
	// fails.
	// Default: true
	ContinueOnError bool `yaml:"continue_on_error"`

	// RootPolicy is "lenient" (non-invoice documents yield an empty record)
	// or "strict" (they fail).
	// Default: "lenient"
	RootPolicy string `yaml:"root_policy"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the built-in configuration.
func Default() *MainConfig {
	cfg := &MainConfig{
		WriteErrorLog:   true,
		WriteSummary:    true,
		ContinueOnError: true,
	}
	applyMainConfigDefaults(cfg)
	return cfg
}

// LoadMainConfig loads the main configuration from a YAML file, then applies
// .env and environment overrides.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read or parsed, or the result is
//     invalid. A missing file satisfies errors.Is(err, fs.ErrNotExist).
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Keys absent from the file keep their defaults.
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(config)
}

// LoadOrDefault behaves like LoadMainConfig, except that a missing file is
// not an error unless explicit is set: the defaults (plus environment
// overrides) are used instead.
func LoadOrDefault(configPath string, explicit bool) (*MainConfig, error) {
	cfg, err := LoadMainConfig(configPath)
	if err == nil || explicit || !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	return finish(Default())
}

func finish(config *MainConfig) (*MainConfig, error) {
	applyMainConfigDefaults(config)

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	if err := ApplyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	if err := validateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.InputPattern == "" {
		config.InputPattern = "*.xml"
	}
	if config.InputEncoding == "" {
		config.InputEncoding = xmlreader.DefaultEncoding
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.OutputFile == "" {
		config.OutputFile = "cfdi_{timestamp}"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = FormatCSV
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.RootPolicy == "" {
		config.RootPolicy = extractor.RootLenient.String()
	}
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// loadDotEnv loads ./.env when it exists. Variables already set in the
// process environment are not overwritten.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ApplyEnvOverrides replaces config values with CFDI2CSV_* environment
// variables that are set and non-empty.
func ApplyEnvOverrides(config *MainConfig) error {
	strs := map[string]*string{
		"INPUT_DIR":      &config.InputDir,
		"INPUT_ENCODING": &config.InputEncoding,
		"OUTPUT_DIR":     &config.OutputDir,
		"OUTPUT_FORMAT":  &config.OutputFormat,
		"LOG_LEVEL":      &config.LogLevel,
		"ROOT_POLICY":    &config.RootPolicy,
	}
	for key, dst := range strs {
		if v := getEnv(EnvPrefix+key, ""); v != "" {
			*dst = v
		}
	}

	if v := getEnv(EnvPrefix+"MAX_CONCURRENCY", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_CONCURRENCY=%q is not an integer", EnvPrefix, v)
		}
		config.MaxConcurrency = n
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return fallback
}

// =============================================================================
// VALIDATION
// =============================================================================

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	var errs []error

	config.OutputFormat = strings.ToLower(config.OutputFormat)
	if config.OutputFormat != FormatCSV && config.OutputFormat != FormatXLSX {
		errs = append(errs, fmt.Errorf("output_format must be %q or %q, got %q", FormatCSV, FormatXLSX, config.OutputFormat))
	}
	if _, err := extractor.ParseRootPolicy(config.RootPolicy); err != nil {
		errs = append(errs, fmt.Errorf("root_policy: %w", err))
	}
	if _, err := xmlreader.LookupEncoding(config.InputEncoding); err != nil {
		errs = append(errs, fmt.Errorf("input_encoding: %w", err))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(config.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if config.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency))
	}
	layout, err := config.Layout()
	if err != nil {
		errs = append(errs, fmt.Errorf("column_labels: %w", err))
	} else if _, err := flatten.NewTransformer(config.Transformations, layout); err != nil {
		errs = append(errs, fmt.Errorf("transformations: %w", err))
	}

	return errors.Join(errs...)
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// Layout returns the output layout with the template labels, then
// ColumnLabels, applied.
func (c *MainConfig) Layout() (*flatten.Layout, error) {
	labels := make(map[string]string)
	if c.ColumnLabelsTemplate != "" {
		tmpl, err := xlsxparser.ParseLabels(c.ColumnLabelsTemplate, c.ColumnLabelsSheet)
		if err != nil {
			return nil, err
		}
		for k, v := range tmpl.Labels {
			labels[k] = v
		}
	}
	for k, v := range c.ColumnLabels {
		labels[k] = v
	}
	return flatten.DefaultLayout().WithLabels(labels)
}

// Transformer returns the compiled cell transformations for layout.
func (c *MainConfig) Transformer(layout *flatten.Layout) (*flatten.Transformer, error) {
	return flatten.NewTransformer(c.Transformations, layout)
}

// Policy returns the parsed root policy.
func (c *MainConfig) Policy() (extractor.RootPolicy, error) {
	return extractor.ParseRootPolicy(c.RootPolicy)
}

// Level returns the parsed log level.
func (c *MainConfig) Level() (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(c.LogLevel))
}
