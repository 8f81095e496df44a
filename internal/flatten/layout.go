// =============================================================================
// CFDI to CSV Converter - Column Layout
// =============================================================================
//
// The output grid is described by a Layout: an ordered list of columns, each
// belonging to one block.
//
// BLOCKS:
//   BlockDocument  (21 columns) - file, root, parties, tax total, stamp
//   BlockLineItem  ( 9 columns) - line item fields and its transfer tax
//
// A row is produced by merging a Values map (column key -> value) against the
// full layout. Columns the map does not supply are written as "", which is
// what blanks the line item block on document rows and vice versa.
//
// =============================================================================

package flatten

import (
	"fmt"
	"sort"
	"strings"
)

// Block identifies a contiguous run of columns owned by one entity level.
type Block int

const (
	BlockDocument Block = iota
	BlockLineItem
)

func (b Block) String() string {
	switch b {
	case BlockDocument:
		return "document"
	case BlockLineItem:
		return "line-item"
	default:
		return fmt.Sprintf("Block(%d)", int(b))
	}
}

// Column keys. The key is stable; the label is what the header row shows.
const (
	ColFile                       = "Archivo"
	ColVersion                    = "Version"
	ColIssueDate                  = "Fecha"
	ColPaymentForm                = "FormaPago"
	ColSubtotal                   = "SubTotal"
	ColTotal                      = "Total"
	ColInvoiceType                = "TipoDeComprobante"
	ColPaymentMethod              = "MetodoPago"
	ColPlaceOfIssue               = "LugarExpedicion"
	ColIssuerTaxID                = "EmisorRfc"
	ColIssuerName                 = "EmisorNombre"
	ColIssuerRegime               = "EmisorRegimenFiscal"
	ColRecipientTaxID             = "ReceptorRfc"
	ColRecipientName              = "ReceptorNombre"
	ColRecipientUsage             = "ReceptorUsoCFDI"
	ColRecipientRegime            = "ReceptorRegimenFiscal"
	ColTotalTransferredTax        = "TotalImpuestosTrasladados"
	ColStampUUID                  = "UUID"
	ColCertificationDate          = "FechaTimbrado"
	ColCertifyingAuthorityTaxID   = "RfcProvCertif"
	ColCertifyingAuthorityCertNum = "NoCertificadoSAT"

	ColProductServiceCode = "ClaveProdServ"
	ColDescription        = "Descripcion"
	ColQuantity           = "Cantidad"
	ColUnitValue          = "ValorUnitario"
	ColRateOrFee          = "TasaOCuota"
	ColAmount             = "Importe"
	ColBase               = "Base"
	ColFactorType         = "TipoFactor"
	ColTaxCode            = "Impuesto"
)

// Column is one position in the output grid.
type Column struct {
	Key   string
	Label string
	Block Block
}

// Values maps column keys to cell values for a single row.
type Values map[string]string

// Layout is the ordered column contract shared by every row of a batch.
type Layout struct {
	columns []Column
	index   map[string]int
}

var documentKeys = []string{
	ColFile, ColVersion, ColIssueDate, ColPaymentForm, ColSubtotal, ColTotal,
	ColInvoiceType, ColPaymentMethod, ColPlaceOfIssue,
	ColIssuerTaxID, ColIssuerName, ColIssuerRegime,
	ColRecipientTaxID, ColRecipientName, ColRecipientUsage, ColRecipientRegime,
	ColTotalTransferredTax,
	ColStampUUID, ColCertificationDate, ColCertifyingAuthorityTaxID, ColCertifyingAuthorityCertNum,
}

var lineItemKeys = []string{
	ColProductServiceCode, ColDescription, ColQuantity, ColUnitValue,
	ColRateOrFee, ColAmount, ColBase, ColFactorType, ColTaxCode,
}

// DefaultLayout returns the 30-column layout: 21 document columns followed
// by 9 line item columns, labelled with their keys.
func DefaultLayout() *Layout {
	cols := make([]Column, 0, len(documentKeys)+len(lineItemKeys))
	for _, k := range documentKeys {
		cols = append(cols, Column{Key: k, Label: k, Block: BlockDocument})
	}
	for _, k := range lineItemKeys {
		cols = append(cols, Column{Key: k, Label: k, Block: BlockLineItem})
	}
	return newLayout(cols)
}

func newLayout(cols []Column) *Layout {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c.Key] = i
	}
	return &Layout{columns: cols, index: index}
}

// WithLabels returns a copy of the layout whose header labels are replaced
// according to labels (key -> label). Order and keys are unchanged.
//
// RETURNS:
//   - An error naming every key in labels that is not a column of the layout.
func (l *Layout) WithLabels(labels map[string]string) (*Layout, error) {
	var unknown []string
	for k := range labels {
		if _, ok := l.index[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown column keys: %s", strings.Join(unknown, ", "))
	}

	cols := make([]Column, len(l.columns))
	copy(cols, l.columns)
	for i := range cols {
		if label, ok := labels[cols[i].Key]; ok && label != "" {
			cols[i].Label = label
		}
	}
	return newLayout(cols), nil
}

// Columns returns a copy of the ordered columns.
func (l *Layout) Columns() []Column {
	out := make([]Column, len(l.columns))
	copy(out, l.columns)
	return out
}

// Len returns the number of columns.
func (l *Layout) Len() int { return len(l.columns) }

// HasColumn reports whether key is a column of the layout.
func (l *Layout) HasColumn(key string) bool {
	_, ok := l.index[key]
	return ok
}

// Header returns the header row.
func (l *Layout) Header() []string {
	row := make([]string, len(l.columns))
	for i, c := range l.columns {
		row[i] = c.Label
	}
	return row
}

// Row merges values against the layout. Unsupplied columns are "" and keys
// outside the layout are ignored.
func (l *Layout) Row(values Values) []string {
	row := make([]string, len(l.columns))
	for k, v := range values {
		if i, ok := l.index[k]; ok {
			row[i] = v
		}
	}
	return row
}
