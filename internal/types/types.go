// =============================================================================
// CFDI to CSV Converter - Shared Types
// =============================================================================
//
// This package contains the normalized invoice record shared by the extractor,
// the row flattener, the record checks and the converter. Keeping it in its
// own package avoids import cycles between those modules.
//
// RECORD SHAPE:
//   InvoiceRecord (one per source document)
//   ├── Issuer         (exactly one, possibly all-empty)
//   ├── Recipient      (exactly one, possibly all-empty)
//   ├── LineItems      (zero or more, document order)
//   │   └── Tax        (at most one TaxDetail per item)
//   ├── TaxSummary     (exactly one)
//   │   └── Transfers  (zero or more TaxDetail, document order)
//   └── DigitalStamp   (exactly one, all-empty when the document is unstamped)
//
// All leaf values are raw attribute text. Amounts and dates are not parsed
// here; that is left to consumers such as the validation package.
//
// =============================================================================

package types

// =============================================================================
// INVOICE RECORD
// =============================================================================

// InvoiceRecord is the normalized form of one invoice document.
// It is built once by the extractor and treated as read-only afterwards.
type InvoiceRecord struct {
	// Version is the document schema version (e.g. "4.0").
	Version string

	// IssueDate is the issue timestamp as written in the document.
	IssueDate string

	// DigitalSeal is the issuer's seal over the document.
	DigitalSeal string

	// PaymentForm is the payment form catalog code (e.g. "01").
	PaymentForm string

	// CertificateNumber is the issuer certificate serial number.
	CertificateNumber string

	// CertificateBody is the base64 issuer certificate.
	CertificateBody string

	Subtotal      string
	Total         string
	InvoiceType   string
	PaymentMethod string
	PlaceOfIssue  string

	Issuer       Issuer
	Recipient    Recipient
	LineItems    []LineItem
	TaxSummary   TaxSummary
	DigitalStamp DigitalStamp
}

// Issuer identifies the party that emitted the invoice.
type Issuer struct {
	TaxID     string
	LegalName string
	TaxRegime string
}

// Recipient identifies the party the invoice is addressed to.
type Recipient struct {
	TaxID       string
	LegalName   string
	CFDIUsage   string
	TaxDomicile string
	TaxRegime   string
}

// =============================================================================
// LINE ITEMS AND TAXES
// =============================================================================

// LineItem is a single concept billed by the invoice.
type LineItem struct {
	TaxObjectFlag      string
	UnitValue          string
	Amount             string
	ProductServiceCode string
	Description        string
	Quantity           string
	UnitCode           string

	// Tax is the item's transfer tax. Nil when the item carries none.
	// When the document lists several, only the last one is kept.
	Tax *TaxDetail
}

// TaxSummary holds the document-level tax totals.
type TaxSummary struct {
	TotalTransferredTax string

	// Transfers keeps every document-level transfer tax in document order.
	Transfers []TaxDetail
}

// TaxDetail is one transfer tax entry.
type TaxDetail struct {
	RateOrFee  string
	Amount     string
	Base       string
	FactorType string
	TaxCode    string
}

// =============================================================================
// CERTIFICATION STAMP
// =============================================================================

// DigitalStamp is the certification stamp added by the certifying authority.
type DigitalStamp struct {
	Version                       string
	UUID                          string
	CertificationDate             string
	CertifyingAuthorityTaxID      string
	CertifiedSeal                 string
	CertifyingAuthorityCertNumber string
	AuthoritySeal                 string
}

// IsZero reports whether the stamp carries no data, which is the case for
// documents without a certification complement.
func (s DigitalStamp) IsZero() bool {
	return s == DigitalStamp{}
}

// TaxOrEmpty returns the item's tax, or an all-empty TaxDetail when the item
// has none.
func (li LineItem) TaxOrEmpty() TaxDetail {
	if li.Tax == nil {
		return TaxDetail{}
	}
	return *li.Tax
}
