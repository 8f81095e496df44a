// =============================================================================
// CFDI to CSV Converter - CSV Sink
// =============================================================================
//
// Writes the flattened grid as comma-separated text using encoding/csv, which
// quotes any field containing the delimiter, a quote or a line break.
//
// OPTIONS:
//   - UseCRLF: terminate rows with \r\n instead of \n
//   - WriteBOM: start the file with a UTF-8 byte-order mark, which some
//     spreadsheet applications need to detect UTF-8 (e.g. for "Ñ")
//
// =============================================================================

package csvwriter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options controls the CSV dialect.
type Options struct {
	UseCRLF  bool
	WriteBOM bool
}

// Writer writes rows to a CSV stream.
type Writer struct {
	buf      *bufio.Writer
	csv      *csv.Writer
	closer   io.Closer
	opts     Options
	wroteBOM bool
}

// New creates a Writer on w. Close flushes but does not close w.
func New(w io.Writer, opts Options) *Writer {
	buf := bufio.NewWriter(w)
	cw := csv.NewWriter(buf)
	cw.UseCRLF = opts.UseCRLF
	return &Writer{buf: buf, csv: cw, opts: opts}
}

// Create creates (or truncates) the file at path and returns a Writer on it.
// Close closes the file.
func Create(path string, opts Options) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	w := New(f, opts)
	w.closer = f
	return w, nil
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader(header []string) error {
	if err := w.writeBOM(); err != nil {
		return err
	}
	return w.WriteRows([][]string{header})
}

// WriteRows writes rows and flushes them through to the underlying writer.
func (w *Writer) WriteRows(rows [][]string) error {
	if err := w.writeBOM(); err != nil {
		return err
	}
	if err := w.csv.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush rows: %w", err)
	}
	return nil
}

func (w *Writer) writeBOM() error {
	if !w.opts.WriteBOM || w.wroteBOM {
		return nil
	}
	w.wroteBOM = true
	if _, err := w.buf.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write byte-order mark: %w", err)
	}
	return nil
}

// Close flushes pending output and closes the file opened by Create.
func (w *Writer) Close() error {
	w.csv.Flush()
	err := w.csv.Error()
	if ferr := w.buf.Flush(); err == nil {
		err = ferr
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to close CSV output: %w", err)
	}
	return nil
}
