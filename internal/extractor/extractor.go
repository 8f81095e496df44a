// =============================================================================
// CFDI to CSV Converter - Invoice Extractor
// =============================================================================
//
// Walks a parsed invoice tree and produces an InvoiceRecord.
//
// EXTRACTION PROCESS:
//   1. Check the root element is an invoice (see RootPolicy)
//   2. Read the root attributes
//   3. Read Emisor and Receptor (absent elements yield empty parties)
//   4. Read every Concepto, keeping the LAST Traslado of each
//   5. Read the document-level Impuestos, keeping EVERY Traslado
//   6. Read the TimbreFiscalDigital stamp under Complemento
//
// NAMESPACES:
//   Structural children (Emisor, Conceptos, Impuestos, Complemento...) are
//   matched by local name within the root's own namespace URI. The stamp is
//   matched by local name within StampNamespace. Line items and transfers are
//   matched by local name only.
//
// =============================================================================

package extractor

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/types"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/xmlreader"
)

const (
	// DocumentType is the expected local name of the root element.
	DocumentType = "Comprobante"

	// StampNamespace is the namespace URI of the TimbreFiscalDigital element.
	StampNamespace = "http://www.sat.gob.mx/TimbreFiscalDigital"
)

// RootPolicy decides what happens when the root is not a Comprobante.
type RootPolicy int

const (
	// RootLenient logs a warning and returns an empty record.
	RootLenient RootPolicy = iota

	// RootStrict fails the document with *UnexpectedRootError.
	RootStrict
)

// ParseRootPolicy converts a configuration value into a RootPolicy.
func ParseRootPolicy(s string) (RootPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return RootLenient, nil
	case "strict":
		return RootStrict, nil
	default:
		return RootLenient, fmt.Errorf("unknown root policy %q (want lenient or strict)", s)
	}
}

func (p RootPolicy) String() string {
	if p == RootStrict {
		return "strict"
	}
	return "lenient"
}

// Options configures an Extractor.
type Options struct {
	RootPolicy RootPolicy
}

// Extractor converts parsed invoice trees into records. It holds no
// per-document state and is safe for concurrent use.
type Extractor struct {
	rootPolicy RootPolicy
	log        zerolog.Logger
}

// New creates an Extractor.
func New(opts Options, log zerolog.Logger) *Extractor {
	return &Extractor{
		rootPolicy: opts.RootPolicy,
		log:        log.With().Str("component", "extractor").Logger(),
	}
}

// Extract builds an InvoiceRecord from the root element of a parsed document.
//
// PARAMETERS:
//   - root: The document's root element.
//
// RETURNS:
//   - The extracted record. Under the lenient policy an unexpected root
//     yields an empty record and no error.
//   - *MissingFieldError when a required attribute is absent.
//   - *UnexpectedRootError when the root is not a Comprobante and the
//     policy is strict.
func (x *Extractor) Extract(root *etree.Element) (*types.InvoiceRecord, error) {
	if root.Tag != DocumentType {
		if x.rootPolicy == RootStrict {
			return nil, &UnexpectedRootError{Got: root.Tag, Want: DocumentType}
		}
		x.log.Warn().
			Str("root", root.Tag).
			Msg("document root is not a Comprobante, emitting empty record")
		return &types.InvoiceRecord{}, nil
	}

	ns := root.NamespaceURI()
	rec := &types.InvoiceRecord{}

	if err := readAttrs(root, DocumentType, comprobanteFields, rec); err != nil {
		return nil, err
	}

	if el := xmlreader.Child(root, "Emisor", ns); el != nil {
		if err := readAttrs(el, "Emisor", emisorFields, &rec.Issuer); err != nil {
			return nil, err
		}
	}
	if el := xmlreader.Child(root, "Receptor", ns); el != nil {
		if err := readAttrs(el, "Receptor", receptorFields, &rec.Recipient); err != nil {
			return nil, err
		}
	}

	items, err := x.lineItems(xmlreader.Child(root, "Conceptos", ns), ns)
	if err != nil {
		return nil, err
	}
	rec.LineItems = items

	if el := xmlreader.Child(root, "Impuestos", ns); el != nil {
		summary, err := x.taxSummary(el, ns)
		if err != nil {
			return nil, err
		}
		rec.TaxSummary = summary
	}

	complemento := xmlreader.Child(root, "Complemento", ns)
	if el := xmlreader.Child(complemento, "TimbreFiscalDigital", StampNamespace); el != nil {
		if err := readAttrs(el, "Complemento/TimbreFiscalDigital", timbreFields, &rec.DigitalStamp); err != nil {
			return nil, err
		}
	} else {
		x.log.Debug().Msg("document has no TimbreFiscalDigital stamp")
	}

	return rec, nil
}

// lineItems reads every Concepto under conceptos. A nil conceptos yields no
// items.
func (x *Extractor) lineItems(conceptos *etree.Element, ns string) ([]types.LineItem, error) {
	var items []types.LineItem
	for i, c := range xmlreader.Children(conceptos, "Concepto") {
		path := fmt.Sprintf("Conceptos/Concepto[%d]", i+1)

		var item types.LineItem
		if err := readAttrs(c, path, conceptoFields, &item); err != nil {
			return nil, err
		}

		impuestos := xmlreader.Child(c, "Impuestos", ns)
		traslados := xmlreader.Child(impuestos, "Traslados", ns)
		for j, t := range xmlreader.Children(traslados, "Traslado") {
			var tax types.TaxDetail
			tpath := fmt.Sprintf("%s/Impuestos/Traslados/Traslado[%d]", path, j+1)
			if err := readAttrs(t, tpath, trasladoFields, &tax); err != nil {
				return nil, err
			}
			// Only one transfer per line item is kept.
			item.Tax = &tax
		}

		items = append(items, item)
	}
	return items, nil
}

// taxSummary reads the document-level Impuestos element.
func (x *Extractor) taxSummary(impuestos *etree.Element, ns string) (types.TaxSummary, error) {
	var summary types.TaxSummary
	if err := readAttrs(impuestos, "Impuestos", impuestosFields, &summary); err != nil {
		return types.TaxSummary{}, err
	}

	traslados := xmlreader.Child(impuestos, "Traslados", ns)
	for j, t := range xmlreader.Children(traslados, "Traslado") {
		var tax types.TaxDetail
		path := fmt.Sprintf("Impuestos/Traslados/Traslado[%d]", j+1)
		if err := readAttrs(t, path, trasladoFields, &tax); err != nil {
			return types.TaxSummary{}, err
		}
		summary.Transfers = append(summary.Transfers, tax)
	}
	return summary, nil
}
