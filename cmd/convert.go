// =============================================================================
// CFDI to CSV Converter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, which runs the whole batch:
// discovery, conversion, output, reports and archival.
//
// COMMAND USAGE:
//   cfdi2csv convert [files...] [flags]
//
// With no file arguments the documents are discovered in input_dir.
//
// PROCESSING PIPELINE:
//   1. Load configuration and apply flag overrides
//   2. Select the input documents
//   3. Open the output sink (CSV or XLSX)
//   4. Convert the documents concurrently; the coordinator writes rows in
//      input order and reports each document as it completes
//   5. Write the error log and processing summary
//   6. Archive the inputs if every document succeeded
//
// EXIT STATUS:
//   Failed documents are reported but do not fail the command, unless
//   continue_on_error is off (--fail-fast). Config, sink and archival errors
//   always do.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/config"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/converter"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/csvwriter"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/extractor"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/xlsxwriter"
	"github.com/ginjaninja78/cfdi-xml-to-csv/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

type convertFlags struct {
	inputDir    string
	pattern     string
	recursive   bool
	output      string
	format      string
	concurrency int
	strictRoot  bool
	failFast    bool
	dryRun      bool
	crlf        bool
	bom         bool
}

var convertOpts convertFlags

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert CFDI documents into one CSV or XLSX table",
	Long: `The convert command flattens every selected CFDI document into the output
table: one row per document followed by one row per line item.

Documents are processed concurrently, and the rows are written in the same
order as the input. A document that cannot be read, parsed or extracted is
reported and left out of the output; the others are still converted.

On completion:
  - An error log listing failed documents is written to output_dir
  - A processing summary is written to output_dir
  - If archive_dir is set and every document succeeded, the inputs are moved
    there`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyConvertFlags(cmd, cfg)
		return runConvert(cmd.Context(), cfg, args)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(convertCmd)

	f := convertCmd.Flags()
	f.StringVar(&convertOpts.inputDir, "input-dir", "", "Directory scanned for documents (overrides input_dir)")
	f.StringVar(&convertOpts.pattern, "pattern", "", "Glob selecting documents in the input directory (overrides input_pattern)")
	f.BoolVar(&convertOpts.recursive, "recursive", false, "Also scan subdirectories of the input directory")
	f.StringVarP(&convertOpts.output, "output", "o", "", "Output file path (overrides output_dir and output_file)")
	f.StringVar(&convertOpts.format, "format", "", "Output format: csv or xlsx (overrides output_format)")
	f.IntVar(&convertOpts.concurrency, "concurrency", 0, "Maximum documents processed at once (overrides max_concurrency)")
	f.BoolVar(&convertOpts.strictRoot, "strict-root", false, "Fail documents whose root is not a Comprobante")
	f.BoolVar(&convertOpts.failFast, "fail-fast", false, "Stop launching documents after the first failure")
	f.BoolVar(&convertOpts.dryRun, "dry-run", false, "Convert without writing any output file")
	f.BoolVar(&convertOpts.crlf, "crlf", false, "End CSV rows with CRLF")
	f.BoolVar(&convertOpts.bom, "bom", false, "Start CSV output with a UTF-8 byte-order mark")
}

// applyConvertFlags copies the flags that were set onto cfg.
func applyConvertFlags(cmd *cobra.Command, cfg *config.MainConfig) {
	f := cmd.Flags()
	if f.Changed("input-dir") {
		cfg.InputDir = convertOpts.inputDir
	}
	if f.Changed("pattern") {
		cfg.InputPattern = convertOpts.pattern
	}
	if f.Changed("recursive") {
		cfg.Recursive = convertOpts.recursive
	}
	if f.Changed("format") {
		cfg.OutputFormat = strings.ToLower(convertOpts.format)
	}
	if f.Changed("concurrency") {
		cfg.MaxConcurrency = convertOpts.concurrency
	}
	if convertOpts.strictRoot {
		cfg.RootPolicy = extractor.RootStrict.String()
	}
	if convertOpts.failFast {
		cfg.ContinueOnError = false
	}
	if f.Changed("crlf") {
		cfg.UseCRLF = convertOpts.crlf
	}
	if f.Changed("bom") {
		cfg.CSVBOM = convertOpts.bom
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runConvert(ctx context.Context, cfg *config.MainConfig, args []string) error {
	startTime := time.Now()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Flags bypass config validation, so the derived settings are checked
	// here.
	if cfg.OutputFormat != config.FormatCSV && cfg.OutputFormat != config.FormatXLSX {
		return fmt.Errorf("unknown output format %q", cfg.OutputFormat)
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	layout, err := cfg.Layout()
	if err != nil {
		return fmt.Errorf("invalid column labels: %w", err)
	}
	transformer, err := cfg.Transformer(layout)
	if err != nil {
		return fmt.Errorf("invalid transformations: %w", err)
	}

	fmt.Println("=== CFDI to CSV Converter ===")

	// =========================================================================
	// STEP 1: SELECT INPUT DOCUMENTS
	// =========================================================================

	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.ArchiveDir)
	fm.UseTimestampSubdirs = cfg.ArchiveByDate

	inputFiles := args
	if len(inputFiles) == 0 {
		inputFiles, err = fm.DiscoverInputFiles(cfg.InputPattern, cfg.Recursive)
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}
	if len(inputFiles) == 0 {
		fmt.Printf("No documents matching %q found in %s.\n", cfg.InputPattern, cfg.InputDir)
		return nil
	}
	fmt.Printf("Found %d document(s) to convert\n", len(inputFiles))

	// =========================================================================
	// STEP 2: OPEN THE OUTPUT
	// =========================================================================

	var (
		sink       converter.Sink
		outputPath string
	)
	if convertOpts.dryRun {
		fmt.Println("Dry run: no output will be written.")
	} else {
		if err := fm.EnsureDirectories(); err != nil {
			return err
		}
		outputPath = outputFilePath(cfg)
		if dir := filepath.Dir(outputPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		sink, err = openSink(cfg, outputPath)
		if err != nil {
			return err
		}
	}

	// =========================================================================
	// STEP 3: CONVERT
	// =========================================================================

	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	skip := color.New(color.FgYellow).SprintFunc()

	conv := converter.New(converter.Options{
		Encoding:        cfg.InputEncoding,
		RootPolicy:      policy,
		MaxConcurrency:  cfg.MaxConcurrency,
		ContinueOnError: cfg.ContinueOnError,
		Layout:          layout,
		Transformer:     transformer,
		OnResult: func(r converter.Result) {
			name := filepath.Base(r.FilePath)
			switch {
			case r.Success:
				fmt.Printf("  %s %s (%d rows)\n", ok("✓"), name, r.Stats.RowsEmitted)
			case r.Skipped:
				fmt.Printf("  %s %s: skipped\n", skip("-"), name)
			default:
				fmt.Printf("  %s %s: %v\n", bad("✗"), name, r.Error)
			}
		},
	}, log.Logger)

	batch, runErr := conv.RunBatch(ctx, inputFiles, sink)
	if sink != nil {
		if err := sink.Close(); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("failed to finish output: %w", err))
		}
	}
	if runErr != nil {
		return runErr
	}

	// =========================================================================
	// STEP 4: REPORTS
	// =========================================================================

	summary := buildSummary(batch, startTime, outputPath)

	fmt.Println("\n=== Conversion Complete ===")
	fmt.Printf("Total documents: %d\n", len(inputFiles))
	fmt.Printf("Successful:      %s\n", ok(batch.Succeeded))
	fmt.Printf("Failed:          %s\n", bad(batch.Failed))
	if batch.Skipped > 0 {
		fmt.Printf("Skipped:         %s\n", skip(batch.Skipped))
	}
	fmt.Printf("Rows written:    %d\n", batch.RowsWritten)
	fmt.Printf("Time elapsed:    %s\n", batch.Duration)
	if outputPath != "" {
		fmt.Printf("Output:          %s\n", outputPath)
	}

	if !convertOpts.dryRun {
		if err := writeReports(cfg, batch, &summary); err != nil {
			return err
		}
	}

	// =========================================================================
	// STEP 5: ARCHIVE
	// =========================================================================

	if !convertOpts.dryRun && cfg.ArchiveDir != "" && batch.Failed == 0 && batch.Skipped == 0 {
		for _, path := range inputFiles {
			dst, err := fm.ArchiveInputFile(path)
			if err != nil {
				return fmt.Errorf("failed to archive %s: %w", path, err)
			}
			log.Debug().Str("file", path).Str("archive", dst).Msg("input archived")
		}
		fmt.Printf("Archived %d document(s) to %s\n", len(inputFiles), cfg.ArchiveDir)
	}

	if !cfg.ContinueOnError && (batch.Failed > 0 || batch.Skipped > 0) {
		return fmt.Errorf("%d of %d document(s) failed", batch.Failed, len(inputFiles))
	}
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %d document(s) skipped", batch.Skipped)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func outputFilePath(cfg *config.MainConfig) string {
	if convertOpts.output != "" {
		return convertOpts.output
	}
	name := utils.GenerateOutputFileName(cfg.OutputFile, "."+cfg.OutputFormat, nil)
	return filepath.Join(cfg.OutputDir, name)
}

func openSink(cfg *config.MainConfig, path string) (converter.Sink, error) {
	var (
		sink converter.Sink
		err  error
	)
	switch cfg.OutputFormat {
	case config.FormatXLSX:
		sink, err = xlsxwriter.Create(path, "")
	default:
		sink, err = csvwriter.Create(path, csvwriter.Options{UseCRLF: cfg.UseCRLF, WriteBOM: cfg.CSVBOM})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}
	return sink, nil
}

func buildSummary(batch *converter.BatchResult, startTime time.Time, outputPath string) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		StartTime:       startTime,
		EndTime:         time.Now(),
		OutputFile:      outputPath,
		TotalFiles:      len(batch.Results),
		SuccessfulFiles: batch.Succeeded,
		FailedFiles:     batch.Failed,
		SkippedFiles:    batch.Skipped,
		TotalRows:       batch.RowsWritten,
	}
	for _, r := range batch.Results {
		if r.Success {
			summary.TotalLineItems += r.Stats.LineItems
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   r.FilePath,
				Rows:        r.Stats.RowsEmitted,
				LineItems:   r.Stats.LineItems,
				ProcessTime: r.Stats.ProcessingTime,
			})
			continue
		}
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    r.FilePath,
			ErrorMessage: r.Error.Error(),
			ErrorType:    failureType(r),
		})
	}
	return summary
}

func failureType(r converter.Result) string {
	if r.Skipped {
		return "Skipped"
	}
	return converter.ErrorKind(r.Error)
}

func writeReports(cfg *config.MainConfig, batch *converter.BatchResult, summary *utils.ProcessingSummary) error {
	if cfg.WriteErrorLog {
		var entries []utils.ErrorLogEntry
		for _, r := range batch.Failures() {
			if r.Skipped {
				continue
			}
			entries = append(entries, utils.ErrorLogEntry{
				Timestamp:    summary.EndTime,
				FileName:     r.FilePath,
				ErrorType:    failureType(r),
				ErrorMessage: r.Error.Error(),
			})
		}
		path, err := utils.WriteErrorLog(entries, cfg.OutputDir)
		if err != nil {
			return err
		}
		if path != "" {
			fmt.Printf("Errors have been logged to %s\n", path)
		}
	}

	if cfg.WriteSummary {
		path, err := utils.WriteSummaryLog(*summary, cfg.OutputDir)
		if err != nil {
			return err
		}
		log.Debug().Str("summary", path).Msg("summary written")
	}
	return nil
}
