// =============================================================================
// CFDI to CSV Converter - XML Reader Errors
// =============================================================================
//
// Error kinds raised before extraction starts. Each one aborts processing of
// a single document only; the converter reports it and moves on.
//
//   IoError       : the file cannot be opened or read
//   EncodingError : the bytes are not valid text in the expected encoding
//   ParseError    : the text is not well-formed XML
//
// =============================================================================

package xmlreader

import "fmt"

// IoError reports a file that could not be opened or read.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// EncodingError reports input bytes that do not decode to valid text.
// Offset is the byte position of the first invalid sequence, or -1 when the
// decoder itself failed.
type EncodingError struct {
	Path     string
	Encoding string
	Offset   int
	Err      error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s text in %s: %v", e.Encoding, e.Path, e.Err)
	}
	return fmt.Sprintf("invalid %s text in %s at byte %d", e.Encoding, e.Path, e.Offset)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ParseError reports text that is not a well-formed XML document.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed XML: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
