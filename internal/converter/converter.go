// =============================================================================
// CFDI to CSV Converter - Converter Module
// =============================================================================
//
// This module contains the core conversion logic. It runs the pipeline for a
// single invoice document, and (in batch.go) fans that pipeline out over a
// list of documents.
//
// CONVERSION PIPELINE:
//   1. Load the document text (encoding, BOM)
//   2. Parse the XML tree
//   3. Extract the InvoiceRecord
//   4. Flatten the record into rows
//
// CONCURRENCY:
//   The pipeline reads and writes no shared state, so a Converter can run any
//   number of ConvertFile calls at once. Only the batch coordinator touches
//   the output sink.
//
// =============================================================================

package converter

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/extractor"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/flatten"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/types"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/xmlreader"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single document.
type Result struct {
	// FilePath is the path to the input document, also written to the file
	// column of its rows.
	FilePath string

	// Success indicates whether the document was converted.
	Success bool

	// Skipped is set for documents that were never started because the batch
	// was cancelled or stopped after a failure.
	Skipped bool

	// Error contains the error if processing failed.
	Error error

	// Record is the extracted invoice. Nil on failure.
	Record *types.InvoiceRecord

	// Rows are the flattened rows: the document row then one per line item.
	Rows [][]string

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing of one document.
type ProcessingStats struct {
	// LineItems is the number of line items in the document.
	LineItems int

	// RowsEmitted is the number of rows produced, header excluded.
	RowsEmitted int

	// ProcessingTime is the time taken to process the document.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Options configures a Converter.
type Options struct {
	// Encoding is the expected input encoding label. Empty means UTF-8.
	Encoding string

	// RootPolicy decides how non-invoice documents are handled.
	RootPolicy extractor.RootPolicy

	// MaxConcurrency bounds the number of documents processed at once.
	// Values below 1 mean 1.
	MaxConcurrency int

	// ContinueOnError keeps launching documents after one has failed.
	ContinueOnError bool

	// Layout is the output column layout. Nil means flatten.DefaultLayout.
	Layout *flatten.Layout

	// Transformer rewrites cell values. Nil writes values verbatim.
	Transformer *flatten.Transformer

	// OnResult, if set, is called once per document in input order,
	// including skipped documents. It runs on the coordinator goroutine.
	OnResult func(Result)
}

// Converter converts invoice documents into rows.
type Converter struct {
	opts      Options
	extractor *extractor.Extractor
	flattener *flatten.Flattener
	log       zerolog.Logger
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter instance.
//
// PARAMETERS:
//   - opts: Pipeline and batch settings.
//   - log: The logger; per-document entries carry a "file" field.
//
// RETURNS:
//   - A new Converter instance.
func New(opts Options, log zerolog.Logger) *Converter {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	return &Converter{
		opts:      opts,
		extractor: extractor.New(extractor.Options{RootPolicy: opts.RootPolicy}, log),
		flattener: flatten.New(opts.Layout, opts.Transformer),
		log:       log.With().Str("component", "converter").Logger(),
	}
}

// Header returns the header row written once per batch.
func (c *Converter) Header() []string {
	return c.flattener.Header()
}

// =============================================================================
// SINGLE DOCUMENT
// =============================================================================

// ConvertFile runs the conversion pipeline for one document.
//
// PARAMETERS:
//   - path: The path to the XML document.
//
// RETURNS:
//   - A Result struct. Failures are reported in Result.Error, never by panic,
//     so a bad document cannot affect the others.
func (c *Converter) ConvertFile(path string) Result {
	startTime := time.Now()
	result := Result{FilePath: path}
	log := c.log.With().Str("file", path).Logger()

	// =========================================================================
	// STEP 1-2: LOAD AND PARSE
	// =========================================================================

	root, err := xmlreader.LoadAndParse(path, xmlreader.LoadOptions{Encoding: c.opts.Encoding})
	if err != nil {
		return c.fail(log, result, startTime, fmt.Errorf("failed to read document: %w", err))
	}

	// =========================================================================
	// STEP 3: EXTRACT
	// =========================================================================

	rec, err := c.extractor.Extract(root)
	if err != nil {
		return c.fail(log, result, startTime, fmt.Errorf("failed to extract invoice: %w", err))
	}

	// =========================================================================
	// STEP 4: FLATTEN
	// =========================================================================

	result.Record = rec
	result.Rows = c.flattener.Flatten(path, rec)
	result.Success = true
	result.Stats = ProcessingStats{
		LineItems:      len(rec.LineItems),
		RowsEmitted:    len(result.Rows),
		ProcessingTime: time.Since(startTime),
	}

	log.Debug().
		Int("line_items", result.Stats.LineItems).
		Int("rows", result.Stats.RowsEmitted).
		Dur("elapsed", result.Stats.ProcessingTime).
		Msg("document converted")

	return result
}

func (c *Converter) fail(log zerolog.Logger, result Result, startTime time.Time, err error) Result {
	result.Error = err
	result.Stats.ProcessingTime = time.Since(startTime)
	log.Warn().
		Err(err).
		Str("error_kind", ErrorKind(err)).
		Msg("document failed")
	return result
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// ErrorKind names the category of a per-document error for reports:
// IoError, EncodingError, ParseError, MissingFieldError, UnexpectedRootError
// or Unknown.
func ErrorKind(err error) string {
	var (
		ioErr    *xmlreader.IoError
		encErr   *xmlreader.EncodingError
		parseErr *xmlreader.ParseError
		fieldErr *extractor.MissingFieldError
		rootErr  *extractor.UnexpectedRootError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ioErr):
		return "IoError"
	case errors.As(err, &encErr):
		return "EncodingError"
	case errors.As(err, &parseErr):
		return "ParseError"
	case errors.As(err, &fieldErr):
		return "MissingFieldError"
	case errors.As(err, &rootErr):
		return "UnexpectedRootError"
	default:
		return "Unknown"
	}
}
