package flatten

import "github.com/ginjaninja78/cfdi-xml-to-csv/internal/types"

// Flattener turns InvoiceRecords into rows of a fixed Layout.
type Flattener struct {
	layout    *Layout
	transform *Transformer
}

// New creates a Flattener. A nil layout means DefaultLayout and a nil
// transformer writes every value verbatim.
func New(layout *Layout, transform *Transformer) *Flattener {
	if layout == nil {
		layout = DefaultLayout()
	}
	return &Flattener{layout: layout, transform: transform}
}

// Layout returns the layout rows are produced against.
func (f *Flattener) Layout() *Layout { return f.layout }

// Header returns the header row, emitted once per batch.
func (f *Flattener) Header() []string { return f.layout.Header() }

// Flatten returns the rows for one record: the document row first, then one
// row per line item in document order. Every row has exactly Layout().Len()
// fields. source fills the file column.
func (f *Flattener) Flatten(source string, rec *types.InvoiceRecord) [][]string {
	rows := make([][]string, 0, len(rec.LineItems)+1)
	rows = append(rows, f.row(DocumentValues(source, rec)))
	for _, item := range rec.LineItems {
		rows = append(rows, f.row(LineItemValues(item)))
	}
	return rows
}

func (f *Flattener) row(values Values) []string {
	f.transform.Apply(values)
	return f.layout.Row(values)
}

// DocumentValues returns the document block values of rec.
func DocumentValues(source string, rec *types.InvoiceRecord) Values {
	return Values{
		ColFile:                       source,
		ColVersion:                    rec.Version,
		ColIssueDate:                  rec.IssueDate,
		ColPaymentForm:                rec.PaymentForm,
		ColSubtotal:                   rec.Subtotal,
		ColTotal:                      rec.Total,
		ColInvoiceType:                rec.InvoiceType,
		ColPaymentMethod:              rec.PaymentMethod,
		ColPlaceOfIssue:               rec.PlaceOfIssue,
		ColIssuerTaxID:                rec.Issuer.TaxID,
		ColIssuerName:                 rec.Issuer.LegalName,
		ColIssuerRegime:               rec.Issuer.TaxRegime,
		ColRecipientTaxID:             rec.Recipient.TaxID,
		ColRecipientName:              rec.Recipient.LegalName,
		ColRecipientUsage:             rec.Recipient.CFDIUsage,
		ColRecipientRegime:            rec.Recipient.TaxRegime,
		ColTotalTransferredTax:        rec.TaxSummary.TotalTransferredTax,
		ColStampUUID:                  rec.DigitalStamp.UUID,
		ColCertificationDate:          rec.DigitalStamp.CertificationDate,
		ColCertifyingAuthorityTaxID:   rec.DigitalStamp.CertifyingAuthorityTaxID,
		ColCertifyingAuthorityCertNum: rec.DigitalStamp.CertifyingAuthorityCertNumber,
	}
}

// LineItemValues returns the line item block values of item. An item without
// a tax detail leaves the five tax columns empty.
func LineItemValues(item types.LineItem) Values {
	tax := item.TaxOrEmpty()
	return Values{
		ColProductServiceCode: item.ProductServiceCode,
		ColDescription:        item.Description,
		ColQuantity:           item.Quantity,
		ColUnitValue:          item.UnitValue,
		ColRateOrFee:          tax.RateOrFee,
		ColAmount:             tax.Amount,
		ColBase:               tax.Base,
		ColFactorType:         tax.FactorType,
		ColTaxCode:            tax.TaxCode,
	}
}
