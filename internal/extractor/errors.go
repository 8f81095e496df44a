package extractor

import "fmt"

// MissingFieldError reports a required attribute absent from an element.
// The XML was well-formed but does not follow the invoice layout.
type MissingFieldError struct {
	// Element locates the element, e.g. "Conceptos/Concepto[2]".
	Element string

	// Field is the missing attribute name.
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required attribute %q on %s", e.Field, e.Element)
}

// UnexpectedRootError reports a root element that is not an invoice.
type UnexpectedRootError struct {
	Got  string
	Want string
}

func (e *UnexpectedRootError) Error() string {
	return fmt.Sprintf("unexpected root element %q, want %q", e.Got, e.Want)
}
