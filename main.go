// =============================================================================
// CFDI to CSV Converter - Main Entry Point
// =============================================================================
//
// USAGE:
//   cfdi2csv convert   - Flatten CFDI documents into a CSV or XLSX table
//   cfdi2csv check     - Run data quality checks without writing output
//   cfdi2csv version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Loading, extraction, flattening, sinks and batching
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/cfdi-xml-to-csv/cmd"
)

func main() {
	cmd.Execute()
}
