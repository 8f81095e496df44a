// =============================================================================
// CFDI to CSV Converter - XLSX Sink
// =============================================================================
//
// Writes the flattened grid to a single worksheet of an .xlsx workbook using
// excelize's StreamWriter, so memory stays flat for large batches.
//
// LAYOUT:
//   - Row 1 is the header, in bold, frozen while scrolling
//   - Every following row is one flattened row, same 30-column grid as CSV
//   - Every cell is written as text, so amounts like "0.160000" and codes
//     with leading zeros keep their exact form
//
// The workbook is only saved to disk on Close.
//
// =============================================================================

package xlsxwriter

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet name used when none is given.
const DefaultSheet = "CFDI"

// Writer streams rows into one worksheet.
type Writer struct {
	path   string
	file   *excelize.File
	stream *excelize.StreamWriter
	bold   int
	row    int
}

// Create prepares a workbook that Close saves to path.
//
// PARAMETERS:
//   - path: Destination .xlsx file.
//   - sheet: Worksheet name. Empty means DefaultSheet.
//
// RETURNS:
//   - A Writer, or an error if the workbook cannot be prepared.
func Create(path, sheet string) (*Writer, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name worksheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open stream writer: %w", err)
	}

	return &Writer{path: path, file: f, stream: sw, bold: bold}, nil
}

// WriteHeader writes the header row and freezes it.
func (w *Writer) WriteHeader(header []string) error {
	if err := w.stream.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	return w.setRow(header, excelize.RowOpts{StyleID: w.bold})
}

// WriteRows appends rows below the last written row.
func (w *Writer) WriteRows(rows [][]string) error {
	for _, r := range rows {
		if err := w.setRow(r); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) setRow(values []string, opts ...excelize.RowOpts) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}

	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := w.stream.SetRow(cell, cells, opts...); err != nil {
		return fmt.Errorf("failed to write row %d: %w", w.row, err)
	}
	return nil
}

// Close flushes the stream and saves the workbook.
func (w *Writer) Close() error {
	defer w.file.Close()

	if err := w.stream.Flush(); err != nil {
		return fmt.Errorf("failed to flush worksheet: %w", err)
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
