// =============================================================================
// CFDI to CSV Converter - XML Tree Parser
// =============================================================================
//
// Thin layer over github.com/beevik/etree. The extractor only relies on:
//   - attribute lookup by name          (Attr)
//   - child lookup by local name + URI  (Child)
//   - ordered direct-child iteration    (etree's ChildElements / Tag)
//   - the element's namespace URI       (etree's NamespaceURI)
//
// =============================================================================

package xmlreader

import (
	"errors"
	"io"

	"github.com/beevik/etree"
)

var errNoRoot = errors.New("document has no root element")

// Parse parses well-formed XML text and returns its root element.
//
// The text handed in by Load is already UTF-8, so whatever encoding the XML
// declaration names is accepted without a second conversion.
func Parse(text string) (*etree.Element, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	if err := doc.ReadFromString(text); err != nil {
		return nil, &ParseError{Err: err}
	}

	root := doc.Root()
	if root == nil {
		return nil, &ParseError{Err: errNoRoot}
	}
	return root, nil
}

// LoadAndParse runs Load followed by Parse.
func LoadAndParse(path string, opts LoadOptions) (*etree.Element, error) {
	text, err := Load(path, opts)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

// =============================================================================
// LOOKUP HELPERS
// =============================================================================

// Attr returns the value of the unprefixed attribute name on el.
func Attr(el *etree.Element, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Space == "" && a.Key == name {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first direct child of el whose local name is local and
// whose namespace URI is ns, or nil.
func Child(el *etree.Element, local, ns string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == local && c.NamespaceURI() == ns {
			return c
		}
	}
	return nil
}

// Children returns the direct children of el with the given local name,
// in document order. Namespaces are not compared.
func Children(el *etree.Element, local string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == local {
			out = append(out, c)
		}
	}
	return out
}
