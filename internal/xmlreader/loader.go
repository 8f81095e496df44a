// =============================================================================
// CFDI to CSV Converter - Document Loader
// =============================================================================
//
// This module reads the raw text of a single invoice document and prepares it
// for the XML parser.
//
// LOADING PROCESS:
//   1. Read the whole file
//   2. Decode it to UTF-8 (byte-order marks are honoured and removed)
//   3. Reject text that is not valid UTF-8 after decoding
//   4. Strip a leftover leading U+FEFF and any leading whitespace
//
// ENCODINGS:
//   UTF-8 is the default. Other labels (e.g. "ISO-8859-1", "Windows-1252")
//   are resolved through the WHATWG encoding index, which is what older
//   invoicing systems exporting Latin-1 XML need.
//
// =============================================================================

package xmlreader

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is the encoding assumed when none is configured.
const DefaultEncoding = "UTF-8"

// LoadOptions controls how a document's bytes are turned into text.
type LoadOptions struct {
	// Encoding is the label of the expected input encoding.
	// Empty means UTF-8.
	Encoding string
}

// LookupEncoding resolves an encoding label. UTF-8 returns a nil encoding,
// meaning the bytes are only validated, never rewritten.
func LookupEncoding(label string) (encoding.Encoding, error) {
	if label == "" || isUTF8Label(label) {
		return nil, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	return enc, nil
}

func isUTF8Label(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}

// Load reads the document at path and returns its text.
//
// PARAMETERS:
//   - path: The path to the XML document.
//   - opts: Encoding settings.
//
// RETURNS:
//   - The decoded text with the BOM and leading whitespace removed.
//   - *IoError when the file cannot be read.
//   - *EncodingError when the bytes are not valid text.
func Load(path string, opts LoadOptions) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &IoError{Path: path, Err: err}
	}
	return Decode(path, data, opts)
}

// Decode turns raw document bytes into text. The name is only used for error
// messages.
func Decode(name string, data []byte, opts LoadOptions) (string, error) {
	label := opts.Encoding
	if label == "" {
		label = DefaultEncoding
	}

	enc, err := LookupEncoding(label)
	if err != nil {
		return "", &EncodingError{Path: name, Encoding: label, Offset: -1, Err: err}
	}

	// A byte-order mark always wins over the configured encoding.
	var fallback transform.Transformer = transform.Nop
	if enc != nil {
		fallback = enc.NewDecoder()
	}
	decoded, _, err := transform.Bytes(xunicode.BOMOverride(fallback), data)
	if err != nil {
		return "", &EncodingError{Path: name, Encoding: label, Offset: -1, Err: err}
	}

	if offset := firstInvalidUTF8(decoded); offset >= 0 {
		return "", &EncodingError{Path: name, Encoding: label, Offset: offset}
	}

	text := string(decoded)
	text = strings.TrimPrefix(text, "\ufeff")
	return strings.TrimLeftFunc(text, unicode.IsSpace), nil
}

// firstInvalidUTF8 returns the byte offset of the first invalid UTF-8
// sequence, or -1 if b is valid.
func firstInvalidUTF8(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
