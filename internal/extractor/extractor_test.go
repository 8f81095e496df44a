package extractor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/types"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/xmlreader"
)

const sampleInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" xmlns:tfd="http://www.sat.gob.mx/TimbreFiscalDigital"
	Version="4.0" Fecha="2024-03-15T10:20:30" FormaPago="03" SubTotal="200.00" Total="232.00"
	TipoDeComprobante="I" MetodoPago="PUE" LugarExpedicion="64000" NoCertificado="30001000000400002434">
	<cfdi:Emisor Rfc="EKU9003173C9" Nombre="ESCUELA KEMPER URGATE" RegimenFiscal="601"/>
	<cfdi:Receptor Rfc="URE180429TM6" Nombre="UNIVERSIDAD ROBOTICA ESPAÑOLA" UsoCFDI="G03"
		DomicilioFiscalReceptor="65000" RegimenFiscalReceptor="601"/>
	<cfdi:Conceptos>
		<cfdi:Concepto ClaveProdServ="50211503" Cantidad="1" ClaveUnidad="H87" Descripcion="Cigarros"
			ValorUnitario="150.00" Importe="150.00" ObjetoImp="02">
			<cfdi:Impuestos>
				<cfdi:Traslados>
					<cfdi:Traslado Base="150.00" Impuesto="002" TipoFactor="Tasa" TasaOCuota="0.080000" Importe="12.00"/>
					<cfdi:Traslado Base="150.00" Impuesto="002" TipoFactor="Tasa" TasaOCuota="0.160000" Importe="24.00"/>
				</cfdi:Traslados>
			</cfdi:Impuestos>
		</cfdi:Concepto>
		<cfdi:Parte ClaveProdServ="ignored"/>
		<cfdi:Concepto ClaveProdServ="01010101" Cantidad="2" Descripcion="Servicio" ValorUnitario="25.00"
			Importe="50.00" ObjetoImp="01"/>
	</cfdi:Conceptos>
	<cfdi:Impuestos TotalImpuestosTrasladados="32.00">
		<cfdi:Traslados>
			<cfdi:Traslado Base="150.00" Impuesto="002" TipoFactor="Tasa" TasaOCuota="0.160000" Importe="24.00"/>
			<cfdi:Traslado Base="50.00" Impuesto="002" TipoFactor="Tasa" TasaOCuota="0.160000" Importe="8.00"/>
		</cfdi:Traslados>
	</cfdi:Impuestos>
	<cfdi:Complemento>
		<tfd:TimbreFiscalDigital Version="1.1" UUID="6F1E3C2A-7B8D-4E5F-9A0B-1C2D3E4F5A6B"
			FechaTimbrado="2024-03-15T10:21:00" RfcProvCertif="SAT970701NN3" SelloCFD="abc"
			NoCertificadoSAT="30001000000400002495" SelloSAT="xyz"/>
	</cfdi:Complemento>
</cfdi:Comprobante>`

func parse(t *testing.T, text string) *etree.Element {
	t.Helper()
	root, err := xmlreader.Parse(text)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return root
}

func newExtractor(policy RootPolicy) *Extractor {
	return New(Options{RootPolicy: policy}, zerolog.Nop())
}

func TestExtract_FullInvoice(t *testing.T) {
	rec, err := newExtractor(RootLenient).Extract(parse(t, sampleInvoice))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Version != "4.0" || rec.Total != "232.00" || rec.PlaceOfIssue != "64000" {
		t.Fatalf("unexpected root fields: %+v", rec)
	}
	if rec.Issuer.TaxID != "EKU9003173C9" || rec.Issuer.TaxRegime != "601" {
		t.Fatalf("unexpected issuer: %+v", rec.Issuer)
	}
	if rec.Recipient.LegalName != "UNIVERSIDAD ROBOTICA ESPAÑOLA" || rec.Recipient.CFDIUsage != "G03" {
		t.Fatalf("unexpected recipient: %+v", rec.Recipient)
	}
	if len(rec.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(rec.LineItems))
	}
	if rec.LineItems[1].Tax != nil {
		t.Fatalf("expected second line item without tax, got %+v", rec.LineItems[1].Tax)
	}
	if rec.TaxSummary.TotalTransferredTax != "32.00" {
		t.Fatalf("expected total transferred tax 32.00, got %q", rec.TaxSummary.TotalTransferredTax)
	}
	if len(rec.TaxSummary.Transfers) != 2 || rec.TaxSummary.Transfers[1].Amount != "8.00" {
		t.Fatalf("expected both document transfers in order, got %+v", rec.TaxSummary.Transfers)
	}
	if rec.DigitalStamp.UUID != "6F1E3C2A-7B8D-4E5F-9A0B-1C2D3E4F5A6B" {
		t.Fatalf("unexpected stamp UUID %q", rec.DigitalStamp.UUID)
	}
	if rec.DigitalStamp.CertifyingAuthorityCertNumber != "30001000000400002495" {
		t.Fatalf("unexpected stamp certificate %q", rec.DigitalStamp.CertifyingAuthorityCertNumber)
	}
}

func TestExtract_LastLineItemTransferWins(t *testing.T) {
	rec, err := newExtractor(RootLenient).Extract(parse(t, sampleInvoice))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tax := rec.LineItems[0].Tax
	if tax == nil {
		t.Fatalf("expected first line item to carry a tax detail")
	}
	want := types.TaxDetail{
		RateOrFee:  "0.160000",
		Amount:     "24.00",
		Base:       "150.00",
		FactorType: "Tasa",
		TaxCode:    "002",
	}
	if *tax != want {
		t.Fatalf("expected last transfer %+v, got %+v", want, *tax)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	root := parse(t, sampleInvoice)
	x := newExtractor(RootLenient)

	first, err := x.Extract(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := x.Extract(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical records:\n%+v\n%+v", first, second)
	}
}

func TestExtract_MissingComplementYieldsEmptyStamp(t *testing.T) {
	doc := `<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Version="4.0" Fecha="2024-01-01T00:00:00"
		SubTotal="1" Total="1" TipoDeComprobante="I" LugarExpedicion="00000"/>`

	rec, err := newExtractor(RootLenient).Extract(parse(t, doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.DigitalStamp.IsZero() {
		t.Fatalf("expected empty stamp, got %+v", rec.DigitalStamp)
	}
	if rec.Issuer != (types.Issuer{}) || rec.Recipient != (types.Recipient{}) {
		t.Fatalf("expected default parties, got %+v / %+v", rec.Issuer, rec.Recipient)
	}
	if len(rec.LineItems) != 0 {
		t.Fatalf("expected no line items, got %d", len(rec.LineItems))
	}
}

func TestExtract_StampInWrongNamespaceIsIgnored(t *testing.T) {
	doc := `<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" xmlns:old="urn:old-stamp"
		Version="4.0" Fecha="2024-01-01T00:00:00" SubTotal="1" Total="1" TipoDeComprobante="I" LugarExpedicion="00000">
		<cfdi:Complemento><old:TimbreFiscalDigital UUID="x"/></cfdi:Complemento>
	</cfdi:Comprobante>`

	rec, err := newExtractor(RootLenient).Extract(parse(t, doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.DigitalStamp.IsZero() {
		t.Fatalf("expected stamp in foreign namespace to be ignored, got %+v", rec.DigitalStamp)
	}
}

func TestExtract_UnexpectedRoot(t *testing.T) {
	root := parse(t, `<cfdi:Retenciones xmlns:cfdi="http://www.sat.gob.mx/esquemas/retencionpago/2" Version="2.0"/>`)

	rec, err := newExtractor(RootLenient).Extract(root)
	if err != nil {
		t.Fatalf("lenient policy: unexpected error: %v", err)
	}
	if !reflect.DeepEqual(rec, &types.InvoiceRecord{}) {
		t.Fatalf("lenient policy: expected default record, got %+v", rec)
	}

	_, err = newExtractor(RootStrict).Extract(root)
	var rootErr *UnexpectedRootError
	if !errors.As(err, &rootErr) {
		t.Fatalf("strict policy: expected UnexpectedRootError, got %T (%v)", err, err)
	}
	if rootErr.Got != "Retenciones" {
		t.Fatalf("expected Got=Retenciones, got %q", rootErr.Got)
	}
}

func TestExtract_MissingRequiredAttributes(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		element string
		field   string
	}{
		{
			name: "root",
			doc: `<cfdi:Comprobante xmlns:cfdi="urn:c" Version="4.0" SubTotal="1" Total="1"
				TipoDeComprobante="I" LugarExpedicion="00000"/>`,
			element: "Comprobante",
			field:   "Fecha",
		},
		{
			name: "line item",
			doc: `<cfdi:Comprobante xmlns:cfdi="urn:c" Version="4.0" Fecha="f" SubTotal="1" Total="1"
				TipoDeComprobante="I" LugarExpedicion="00000">
				<cfdi:Conceptos>
					<cfdi:Concepto ClaveProdServ="1" Descripcion="a" Cantidad="1" ValorUnitario="1"/>
					<cfdi:Concepto ClaveProdServ="2" Descripcion="b" ValorUnitario="1"/>
				</cfdi:Conceptos>
			</cfdi:Comprobante>`,
			element: "Conceptos/Concepto[2]",
			field:   "Cantidad",
		},
		{
			name: "line item transfer",
			doc: `<cfdi:Comprobante xmlns:cfdi="urn:c" Version="4.0" Fecha="f" SubTotal="1" Total="1"
				TipoDeComprobante="I" LugarExpedicion="00000">
				<cfdi:Conceptos>
					<cfdi:Concepto ClaveProdServ="1" Descripcion="a" Cantidad="1" ValorUnitario="1">
						<cfdi:Impuestos><cfdi:Traslados>
							<cfdi:Traslado Base="1" TipoFactor="Tasa"/>
						</cfdi:Traslados></cfdi:Impuestos>
					</cfdi:Concepto>
				</cfdi:Conceptos>
			</cfdi:Comprobante>`,
			element: "Conceptos/Concepto[1]/Impuestos/Traslados/Traslado[1]",
			field:   "Impuesto",
		},
		{
			name: "tax summary",
			doc: `<cfdi:Comprobante xmlns:cfdi="urn:c" Version="4.0" Fecha="f" SubTotal="1" Total="1"
				TipoDeComprobante="I" LugarExpedicion="00000">
				<cfdi:Impuestos/>
			</cfdi:Comprobante>`,
			element: "Impuestos",
			field:   "TotalImpuestosTrasladados",
		},
		{
			name: "stamp",
			doc: `<cfdi:Comprobante xmlns:cfdi="urn:c" xmlns:tfd="http://www.sat.gob.mx/TimbreFiscalDigital"
				Version="4.0" Fecha="f" SubTotal="1" Total="1" TipoDeComprobante="I" LugarExpedicion="00000">
				<cfdi:Complemento>
					<tfd:TimbreFiscalDigital Version="1.1" FechaTimbrado="f" RfcProvCertif="r"
						SelloCFD="s" NoCertificadoSAT="n" SelloSAT="s"/>
				</cfdi:Complemento>
			</cfdi:Comprobante>`,
			element: "Complemento/TimbreFiscalDigital",
			field:   "UUID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newExtractor(RootLenient).Extract(parse(t, tt.doc))
			var mErr *MissingFieldError
			if !errors.As(err, &mErr) {
				t.Fatalf("expected MissingFieldError, got %T (%v)", err, err)
			}
			if mErr.Element != tt.element || mErr.Field != tt.field {
				t.Fatalf("expected %s/%s, got %s/%s", tt.element, tt.field, mErr.Element, mErr.Field)
			}
		})
	}
}

func TestExtract_ExemptTransferHasNoRate(t *testing.T) {
	doc := `<cfdi:Comprobante xmlns:cfdi="urn:c" Version="4.0" Fecha="f" SubTotal="1" Total="1"
		TipoDeComprobante="I" LugarExpedicion="00000">
		<cfdi:Conceptos>
			<cfdi:Concepto ClaveProdServ="1" Descripcion="a" Cantidad="1" ValorUnitario="1">
				<cfdi:Impuestos><cfdi:Traslados>
					<cfdi:Traslado Base="1" Impuesto="002" TipoFactor="Exento"/>
				</cfdi:Traslados></cfdi:Impuestos>
			</cfdi:Concepto>
		</cfdi:Conceptos>
	</cfdi:Comprobante>`

	rec, err := newExtractor(RootLenient).Extract(parse(t, doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tax := rec.LineItems[0].TaxOrEmpty()
	if tax.FactorType != "Exento" || tax.RateOrFee != "" || tax.Amount != "" {
		t.Fatalf("unexpected exempt transfer: %+v", tax)
	}
}

func TestParseRootPolicy(t *testing.T) {
	if p, err := ParseRootPolicy("Strict"); err != nil || p != RootStrict {
		t.Fatalf("expected strict, got %v, %v", p, err)
	}
	if p, err := ParseRootPolicy(""); err != nil || p != RootLenient {
		t.Fatalf("expected lenient default, got %v, %v", p, err)
	}
	if _, err := ParseRootPolicy("loose"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
