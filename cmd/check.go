// =============================================================================
// CFDI to CSV Converter - Check Command
// =============================================================================
//
// This file defines the 'check' command, which extracts each document and
// runs the record checks of the validation package on it. Nothing is
// written.
//
// COMMAND USAGE:
//   cfdi2csv check [files...] [flags]
//
// FLAGS:
//   --require-stamp : Report documents without a TimbreFiscalDigital
//   --warnings      : Also print warning findings
//
// EXIT STATUS:
//   Non-zero when any document fails to extract or has an error finding.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/converter"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/validation"
	"github.com/ginjaninja78/cfdi-xml-to-csv/pkg/utils"
)

var (
	requireStamp bool
	showWarnings bool
)

var checkCmd = &cobra.Command{
	Use:   "check [files...]",
	Short: "Run data quality checks on CFDI documents",
	Long: `The check command extracts every selected document and checks what its
values say: amounts must be decimal numbers, dates must parse and the stamp
UUID must be well formed. Amounts that should add up but do not (line items
against SubTotal, SubTotal plus taxes against Total) are reported as warnings.

With no file arguments the documents are discovered in input_dir.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		policy, err := cfg.Policy()
		if err != nil {
			return err
		}

		files := args
		if len(files) == 0 {
			fm := utils.NewFileManager(cfg.InputDir, "", "")
			files, err = fm.DiscoverInputFiles(cfg.InputPattern, cfg.Recursive)
			if err != nil {
				return fmt.Errorf("failed to discover input files: %w", err)
			}
		}

		opts := validation.DefaultValidationOptions()
		opts.RequireStamp = requireStamp
		validator := validation.NewValidatorWithOptions(opts)

		conv := converter.New(converter.Options{
			Encoding:   cfg.InputEncoding,
			RootPolicy: policy,
		}, log.Logger)

		ok := color.New(color.FgGreen).SprintFunc()
		bad := color.New(color.FgRed).SprintFunc()
		warn := color.New(color.FgYellow).SprintFunc()

		failed := 0
		for _, path := range files {
			name := filepath.Base(path)

			r := conv.ConvertFile(path)
			if !r.Success {
				failed++
				fmt.Printf("  %s %s: %v\n", bad("✗"), name, r.Error)
				continue
			}

			res := validator.Validate(r.Record)
			switch {
			case !res.IsValid:
				failed++
				fmt.Printf("  %s %s: %d error(s), %d warning(s)\n", bad("✗"), name, res.ErrorCount, res.WarningCount)
			case res.WarningCount > 0:
				fmt.Printf("  %s %s: %d warning(s)\n", warn("!"), name, res.WarningCount)
			default:
				fmt.Printf("  %s %s\n", ok("✓"), name)
			}

			if findings := res.Findings(showWarnings); len(findings) > 0 {
				report := strings.TrimRight(validation.FormatErrors(findings), "\n")
				for _, line := range strings.Split(report, "\n") {
					fmt.Printf("      %s\n", line)
				}
			}
		}

		fmt.Printf("\nChecked %d document(s), %d with errors\n", len(files), failed)
		if failed > 0 {
			return fmt.Errorf("%d document(s) failed the checks", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&requireStamp, "require-stamp", false, "Report documents without a certification stamp as errors")
	checkCmd.Flags().BoolVarP(&showWarnings, "warnings", "w", false, "Also print warning findings")
}
