// =============================================================================
// CFDI to CSV Converter - Field Tables
// =============================================================================
//
// Every element the extractor reads is described by an ordered table of
// (source attribute, required?, target field) entries. One generic routine,
// readAttrs, consumes any table, so adding a field or a schema revision means
// editing a table rather than the walking code.
//
// REQUIRED ATTRIBUTES:
//   A required attribute that is absent fails the whole document with a
//   MissingFieldError. Optional attributes default to the empty string.
//
// =============================================================================

package extractor

import (
	"github.com/beevik/etree"

	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/types"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/xmlreader"
)

// field maps one XML attribute onto a field of T.
type field[T any] struct {
	Attr     string
	Required bool
	Set      func(*T, string)
}

// readAttrs copies the attributes listed in table from el into target.
// element names the element in error messages.
func readAttrs[T any](el *etree.Element, element string, table []field[T], target *T) error {
	for _, f := range table {
		value, ok := xmlreader.Attr(el, f.Attr)
		if !ok && f.Required {
			return &MissingFieldError{Element: element, Field: f.Attr}
		}
		f.Set(target, value)
	}
	return nil
}

// =============================================================================
// DOCUMENT ROOT
// =============================================================================

var comprobanteFields = []field[types.InvoiceRecord]{
	{"Version", true, func(r *types.InvoiceRecord, v string) { r.Version = v }},
	{"Fecha", true, func(r *types.InvoiceRecord, v string) { r.IssueDate = v }},
	{"Sello", false, func(r *types.InvoiceRecord, v string) { r.DigitalSeal = v }},
	{"FormaPago", false, func(r *types.InvoiceRecord, v string) { r.PaymentForm = v }},
	{"NoCertificado", false, func(r *types.InvoiceRecord, v string) { r.CertificateNumber = v }},
	{"Certificado", false, func(r *types.InvoiceRecord, v string) { r.CertificateBody = v }},
	{"SubTotal", true, func(r *types.InvoiceRecord, v string) { r.Subtotal = v }},
	{"Total", true, func(r *types.InvoiceRecord, v string) { r.Total = v }},
	{"TipoDeComprobante", true, func(r *types.InvoiceRecord, v string) { r.InvoiceType = v }},
	{"MetodoPago", false, func(r *types.InvoiceRecord, v string) { r.PaymentMethod = v }},
	{"LugarExpedicion", true, func(r *types.InvoiceRecord, v string) { r.PlaceOfIssue = v }},
}

// =============================================================================
// PARTIES
// =============================================================================

// Party attributes are never fatal.
var emisorFields = []field[types.Issuer]{
	{"Rfc", false, func(p *types.Issuer, v string) { p.TaxID = v }},
	{"Nombre", false, func(p *types.Issuer, v string) { p.LegalName = v }},
	{"RegimenFiscal", false, func(p *types.Issuer, v string) { p.TaxRegime = v }},
}

var receptorFields = []field[types.Recipient]{
	{"Rfc", false, func(p *types.Recipient, v string) { p.TaxID = v }},
	{"Nombre", false, func(p *types.Recipient, v string) { p.LegalName = v }},
	{"UsoCFDI", false, func(p *types.Recipient, v string) { p.CFDIUsage = v }},
	{"DomicilioFiscalReceptor", false, func(p *types.Recipient, v string) { p.TaxDomicile = v }},
	{"RegimenFiscalReceptor", false, func(p *types.Recipient, v string) { p.TaxRegime = v }},
}

// =============================================================================
// LINE ITEMS AND TAXES
// =============================================================================

var conceptoFields = []field[types.LineItem]{
	{"ObjetoImp", false, func(li *types.LineItem, v string) { li.TaxObjectFlag = v }},
	{"ValorUnitario", true, func(li *types.LineItem, v string) { li.UnitValue = v }},
	{"Importe", false, func(li *types.LineItem, v string) { li.Amount = v }},
	{"ClaveProdServ", true, func(li *types.LineItem, v string) { li.ProductServiceCode = v }},
	{"Descripcion", true, func(li *types.LineItem, v string) { li.Description = v }},
	{"Cantidad", true, func(li *types.LineItem, v string) { li.Quantity = v }},
	{"ClaveUnidad", false, func(li *types.LineItem, v string) { li.UnitCode = v }},
}

// TasaOCuota and Importe are absent on "Exento" transfers.
var trasladoFields = []field[types.TaxDetail]{
	{"TasaOCuota", false, func(t *types.TaxDetail, v string) { t.RateOrFee = v }},
	{"Importe", false, func(t *types.TaxDetail, v string) { t.Amount = v }},
	{"Base", true, func(t *types.TaxDetail, v string) { t.Base = v }},
	{"TipoFactor", true, func(t *types.TaxDetail, v string) { t.FactorType = v }},
	{"Impuesto", true, func(t *types.TaxDetail, v string) { t.TaxCode = v }},
}

var impuestosFields = []field[types.TaxSummary]{
	{"TotalImpuestosTrasladados", true, func(s *types.TaxSummary, v string) { s.TotalTransferredTax = v }},
}

// =============================================================================
// CERTIFICATION STAMP
// =============================================================================

var timbreFields = []field[types.DigitalStamp]{
	{"Version", true, func(s *types.DigitalStamp, v string) { s.Version = v }},
	{"NoCertificadoSAT", true, func(s *types.DigitalStamp, v string) { s.CertifyingAuthorityCertNumber = v }},
	{"FechaTimbrado", true, func(s *types.DigitalStamp, v string) { s.CertificationDate = v }},
	{"RfcProvCertif", true, func(s *types.DigitalStamp, v string) { s.CertifyingAuthorityTaxID = v }},
	{"SelloCFD", true, func(s *types.DigitalStamp, v string) { s.CertifiedSeal = v }},
	{"UUID", true, func(s *types.DigitalStamp, v string) { s.UUID = v }},
	{"SelloSAT", true, func(s *types.DigitalStamp, v string) { s.AuthoritySeal = v }},
}
