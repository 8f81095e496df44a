package flatten

import (
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/extractor"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/types"
	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/xmlreader"
)

func sampleRecord(items int) *types.InvoiceRecord {
	rec := &types.InvoiceRecord{
		Version:   "4.0",
		IssueDate: "2024-01-01T00:00:00",
		Subtotal:  "100.00",
		Total:     "116.00",
		Issuer:    types.Issuer{TaxID: "AAA010101AAA", LegalName: "ACME"},
	}
	for i := 0; i < items; i++ {
		item := types.LineItem{
			ProductServiceCode: "01010101",
			Description:        "Item",
			Quantity:           "1",
			UnitValue:          "100.00",
		}
		if i%2 == 0 {
			item.Tax = &types.TaxDetail{RateOrFee: "0.160000", Amount: "16.00", Base: "100.00", FactorType: "Tasa", TaxCode: "002"}
		}
		rec.LineItems = append(rec.LineItems, item)
	}
	return rec
}

func TestDefaultLayout_Shape(t *testing.T) {
	l := DefaultLayout()
	if l.Len() != 30 {
		t.Fatalf("expected 30 columns, got %d", l.Len())
	}
	cols := l.Columns()
	for i, c := range cols {
		want := BlockDocument
		if i >= 21 {
			want = BlockLineItem
		}
		if c.Block != want {
			t.Fatalf("column %d (%s): expected block %s, got %s", i, c.Key, want, c.Block)
		}
	}
	if cols[0].Key != ColFile || cols[20].Key != ColCertifyingAuthorityCertNum || cols[29].Key != ColTaxCode {
		t.Fatalf("unexpected column order: %v", l.Header())
	}
}

func TestFlatten_RowCountAndWidth(t *testing.T) {
	f := New(nil, nil)
	for _, k := range []int{0, 1, 5} {
		rows := f.Flatten("a.xml", sampleRecord(k))
		if len(rows) != k+1 {
			t.Fatalf("k=%d: expected %d rows, got %d", k, k+1, len(rows))
		}
		for i, row := range rows {
			if len(row) != 30 {
				t.Fatalf("k=%d row %d: expected 30 fields, got %d", k, i, len(row))
			}
		}
	}
}

func TestFlatten_PositionalBlanking(t *testing.T) {
	rows := New(nil, nil).Flatten("a.xml", sampleRecord(3))

	for i, v := range rows[0][21:] {
		if v != "" {
			t.Fatalf("document row: expected line item column %d empty, got %q", i, v)
		}
	}
	for r, row := range rows[1:] {
		for i, v := range row[:21] {
			if v != "" {
				t.Fatalf("detail row %d: expected document column %d empty, got %q", r, i, v)
			}
		}
	}
	// Item 1 has no tax: the five tax columns stay blank.
	if got := rows[2][25:]; !reflect.DeepEqual(got, []string{"", "", "", "", ""}) {
		t.Fatalf("expected blank tax columns, got %q", got)
	}
	if got := rows[1][25]; got != "0.160000" {
		t.Fatalf("expected rate 0.160000, got %q", got)
	}
}

func TestFlatten_EndToEndMinimalDocument(t *testing.T) {
	doc := `<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Version="4.0" Fecha="2024-01-01T00:00:00"
		FormaPago="01" SubTotal="100.00" Total="116.00" TipoDeComprobante="I" MetodoPago="PUE" LugarExpedicion="00000">
		<cfdi:Emisor Rfc="AAA010101AAA"/>
		<cfdi:Receptor Rfc="XAXX010101000"/>
		<cfdi:Conceptos>
			<cfdi:Concepto ClaveProdServ="01010101" Descripcion="Item" Cantidad="1" ValorUnitario="100.00"/>
		</cfdi:Conceptos>
		<cfdi:Impuestos TotalImpuestosTrasladados="16.00"/>
	</cfdi:Comprobante>`

	root, err := xmlreader.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rec, err := extractor.New(extractor.Options{}, zerolog.Nop()).Extract(root)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	rows := New(nil, nil).Flatten("minimal.xml", rec)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	wantHeader := []string{
		"minimal.xml", "4.0", "2024-01-01T00:00:00", "01", "100.00", "116.00", "I", "PUE", "00000",
		"AAA010101AAA", "", "", "XAXX010101000", "", "", "", "16.00", "", "", "", "",
		"", "", "", "", "", "", "", "", "",
	}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Fatalf("document row mismatch:\nexpected %q\ngot      %q", wantHeader, rows[0])
	}

	wantDetail := append(make([]string, 21), "01010101", "Item", "1", "100.00", "", "", "", "", "")
	if !reflect.DeepEqual(rows[1], wantDetail) {
		t.Fatalf("detail row mismatch:\nexpected %q\ngot      %q", wantDetail, rows[1])
	}
}

func TestWithLabels(t *testing.T) {
	base := DefaultLayout()
	l, err := base.WithLabels(map[string]string{ColFile: "File", ColTaxCode: "Tax"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := l.Header()
	if h[0] != "File" || h[29] != "Tax" || h[1] != ColVersion {
		t.Fatalf("unexpected header: %v", h)
	}
	if base.Header()[0] != ColFile {
		t.Fatalf("expected base layout to be unchanged, got %q", base.Header()[0])
	}

	_, err = base.WithLabels(map[string]string{"Nope": "x", "Also": "y"})
	if err == nil || !strings.Contains(err.Error(), "Also, Nope") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLayoutRow_IgnoresUnknownKeys(t *testing.T) {
	row := DefaultLayout().Row(Values{"Unknown": "x", ColTotal: "9"})
	if len(row) != 30 || row[5] != "9" {
		t.Fatalf("unexpected row %q", row)
	}
}

func TestFlatten_TransformKeepsBlocksBlank(t *testing.T) {
	layout := DefaultLayout()
	tr, err := NewTransformer([]Rule{
		{Column: ColPaymentMethod, Actions: []Action{{Type: "if_empty_use_default", Value: "PPD"}}},
		{Column: ColTaxCode, Actions: []Action{{Type: "if_empty_use_default", Value: "000"}}},
	}, layout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := New(layout, tr).Flatten("a.xml", sampleRecord(2))
	methodIdx, taxIdx := 7, 29
	if layout.Header()[methodIdx] != ColPaymentMethod || layout.Header()[taxIdx] != ColTaxCode {
		t.Fatalf("unexpected column positions: %v", layout.Header())
	}

	if got := rows[0][methodIdx]; got != "PPD" {
		t.Fatalf("document row: expected default payment method, got %q", got)
	}
	if got := rows[0][taxIdx]; got != "" {
		t.Fatalf("document row: expected tax code column blank, got %q", got)
	}

	// Item 0 carries tax 002, item 1 has none.
	if got := rows[1][taxIdx]; got != "002" {
		t.Fatalf("detail row 1: expected tax code kept, got %q", got)
	}
	if got := rows[2][taxIdx]; got != "000" {
		t.Fatalf("detail row 2: expected default tax code, got %q", got)
	}
	for r, row := range rows[1:] {
		if got := row[methodIdx]; got != "" {
			t.Fatalf("detail row %d: expected payment method column blank, got %q", r+1, got)
		}
	}
}
