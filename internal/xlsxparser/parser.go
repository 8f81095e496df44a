// =============================================================================
// CFDI to CSV Converter - XLSX Label Template Parser
// =============================================================================
//
// This module reads header labels from an XLSX template, so the people who
// consume the output can rename columns without editing YAML.
//
// TEMPLATE STRUCTURE:
//   The first sheet (or the named sheet) holds one column per row. Row 1 is a
//   title row and is skipped.
//
//   | Column A   | Column B             |
//   |------------|----------------------|
//   | Column Key | Label                |
//   | Archivo    | Source File          |
//   | Fecha      | Issue Date           |
//   | UUID       | Fiscal Folio         |
//
//   Column A must be one of the output column keys (see flatten.Layout).
//   Rows with an empty key or an empty label are ignored. A key listed twice
//   is an error.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Template column positions (0-based).
const (
	keyColumn   = 0
	labelColumn = 1
	dataStart   = 1
)

// LabelTemplate is a parsed label template.
type LabelTemplate struct {
	// TemplateFile is the path the template was read from.
	TemplateFile string

	// Sheet is the worksheet that was read.
	Sheet string

	// Labels maps column keys to header labels.
	Labels map[string]string
}

// ParseLabels reads the label template at templatePath.
//
// PARAMETERS:
//   - templatePath: The path to the XLSX template file.
//   - sheet: The worksheet to read. Empty means the first sheet.
//
// RETURNS:
//   - The parsed template. Unknown keys are not checked here; the layout
//     rejects them when the labels are applied.
//   - An error if the file cannot be read or a key is listed twice.
func ParseLabels(templatePath, sheet string) (*LabelTemplate, error) {
	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open template file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("template file has no sheets")
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %q: %w", sheet, err)
	}

	tmpl := &LabelTemplate{
		TemplateFile: templatePath,
		Sheet:        sheet,
		Labels:       make(map[string]string),
	}

	for i := dataStart; i < len(rows); i++ {
		key, label := cell(rows[i], keyColumn), cell(rows[i], labelColumn)
		if key == "" || label == "" {
			continue
		}
		if _, dup := tmpl.Labels[key]; dup {
			return nil, fmt.Errorf("row %d: column key %q is listed more than once", i+1, key)
		}
		tmpl.Labels[key] = label
	}

	return tmpl, nil
}

// cell returns the trimmed value at col, or "" for short rows.
func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
