// =============================================================================
// CFDI to CSV Converter - Record Checks
// =============================================================================
//
// This module runs data quality checks on extracted invoice records. It is not
// schema validation: extraction already guarantees the required attributes
// exist. The checks look at what the attribute values say.
//
// CHECKS:
//   Errors (the value cannot be right):
//     - Amounts that are not decimal numbers
//     - Issue and certification dates that do not parse
//     - A stamp UUID that is not a well-formed UUID
//     - A missing stamp, when RequireStamp is set
//   Warnings (the values disagree, which discounts or withholdings can
//   legitimately cause):
//     - Cantidad x ValorUnitario differs from a line item's Importe
//     - The sum of line item Importe differs from SubTotal
//     - SubTotal + TotalImpuestosTrasladados differs from Total
//     - The sum of document-level transfers differs from their total
//
// Amounts are compared with shopspring/decimal, never with floats.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/cfdi-xml-to-csv/internal/types"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single finding.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Field is the attribute the finding is about.
	Field string

	// Value is the offending value.
	Value string

	// Rule names the check, e.g. "decimal" or "subtotal_sum".
	Rule string

	// Message is a human-readable explanation.
	Message string

	// LineItem is the 1-based line item number, or 0 for the document.
	LineItem int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	where := "Document"
	if e.LineItem > 0 {
		where = fmt.Sprintf("Concepto %d", e.LineItem)
	}
	return fmt.Sprintf("[%s] %s, Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		where,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the findings for one record.
type ValidationResult struct {
	// IsValid is true if there are no error-severity findings.
	IsValid bool

	// Errors contains all findings, warnings included, in check order.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	// FieldsValidated counts the values that were looked at.
	FieldsValidated int
}

// Findings returns the error findings, plus the warnings when
// includeWarnings is set, in check order.
func (r *ValidationResult) Findings(includeWarnings bool) []*ValidationError {
	var out []*ValidationError
	for _, e := range r.Errors {
		if e.Severity == SeverityError || includeWarnings {
			out = append(out, e)
		}
	}
	return out
}

func (r *ValidationResult) add(e *ValidationError) {
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityError {
		r.ErrorCount++
	} else {
		r.WarningCount++
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions tunes the checks.
type ValidationOptions struct {
	// DateLayout is the time layout of Fecha and FechaTimbrado.
	DateLayout string

	// Tolerance is the largest difference accepted between amounts that
	// should agree.
	Tolerance decimal.Decimal

	// RequireStamp reports unstamped documents as errors.
	RequireStamp bool
}

// DefaultValidationOptions returns the default options: ISO local date-time
// without zone and a one-cent tolerance.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		DateLayout: "2006-01-02T15:04:05",
		Tolerance:  decimal.New(1, -2),
	}
}

// Validator checks invoice records.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a Validator with the default options.
func NewValidator() *Validator {
	return NewValidatorWithOptions(DefaultValidationOptions())
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	return &Validator{options: options}
}

// Validate runs every check on rec.
//
// PARAMETERS:
//   - rec: The extracted record.
//
// RETURNS:
//   - A ValidationResult; IsValid is false when any error-severity finding
//     was made.
func (v *Validator) Validate(rec *types.InvoiceRecord) *ValidationResult {
	res := &ValidationResult{}

	v.checkDocument(rec, res)
	v.checkLineItems(rec, res)
	v.checkTaxSummary(rec, res)
	v.checkStamp(rec, res)

	res.IsValid = res.ErrorCount == 0
	return res
}

// =============================================================================
// CHECKS
// =============================================================================

func (v *Validator) checkDocument(rec *types.InvoiceRecord, res *ValidationResult) {
	v.date(res, 0, "Fecha", rec.IssueDate)
	subtotal, okSub := v.amount(res, 0, "SubTotal", rec.Subtotal, true)
	total, okTotal := v.amount(res, 0, "Total", rec.Total, true)

	taxTotal, okTax := v.amount(res, 0, "TotalImpuestosTrasladados", rec.TaxSummary.TotalTransferredTax, false)
	if okSub && okTotal && okTax && rec.TaxSummary.TotalTransferredTax != "" {
		expected := subtotal.Add(taxTotal)
		if !v.close(expected, total) {
			res.add(&ValidationError{
				Severity: SeverityWarning,
				Field:    "Total",
				Value:    rec.Total,
				Rule:     "total_sum",
				Message:  fmt.Sprintf("SubTotal + TotalImpuestosTrasladados is %s", expected.String()),
			})
		}
	}

	if okSub && len(rec.LineItems) > 0 {
		sum := decimal.Zero
		for _, item := range rec.LineItems {
			d, err := decimal.NewFromString(item.Amount)
			if err != nil {
				// Missing or bad line amounts are reported per item.
				return
			}
			sum = sum.Add(d)
		}
		if !v.close(sum, subtotal) {
			res.add(&ValidationError{
				Severity: SeverityWarning,
				Field:    "SubTotal",
				Value:    rec.Subtotal,
				Rule:     "subtotal_sum",
				Message:  fmt.Sprintf("line item Importe adds up to %s", sum.String()),
			})
		}
	}
}

func (v *Validator) checkLineItems(rec *types.InvoiceRecord, res *ValidationResult) {
	for i, item := range rec.LineItems {
		n := i + 1
		qty, okQty := v.amount(res, n, "Cantidad", item.Quantity, true)
		unit, okUnit := v.amount(res, n, "ValorUnitario", item.UnitValue, true)
		amount, okAmount := v.amount(res, n, "Importe", item.Amount, false)

		if okQty && okUnit && okAmount && item.Amount != "" {
			expected := qty.Mul(unit)
			if !v.close(expected, amount) {
				res.add(&ValidationError{
					Severity: SeverityWarning,
					Field:    "Importe",
					Value:    item.Amount,
					Rule:     "line_amount",
					Message:  fmt.Sprintf("Cantidad x ValorUnitario is %s", expected.String()),
					LineItem: n,
				})
			}
		}

		if item.Tax != nil {
			v.taxDetail(res, n, *item.Tax)
		}
	}
}

func (v *Validator) checkTaxSummary(rec *types.InvoiceRecord, res *ValidationResult) {
	sum := decimal.Zero
	summable := rec.TaxSummary.TotalTransferredTax != "" && len(rec.TaxSummary.Transfers) > 0
	for _, t := range rec.TaxSummary.Transfers {
		v.taxDetail(res, 0, t)
		d, err := decimal.NewFromString(t.Amount)
		if err != nil {
			summable = false
			continue
		}
		sum = sum.Add(d)
	}
	if !summable {
		return
	}

	total, err := decimal.NewFromString(rec.TaxSummary.TotalTransferredTax)
	if err == nil && !v.close(sum, total) {
		res.add(&ValidationError{
			Severity: SeverityWarning,
			Field:    "TotalImpuestosTrasladados",
			Value:    rec.TaxSummary.TotalTransferredTax,
			Rule:     "transfer_sum",
			Message:  fmt.Sprintf("document transfers add up to %s", sum.String()),
		})
	}
}

func (v *Validator) checkStamp(rec *types.InvoiceRecord, res *ValidationResult) {
	if rec.DigitalStamp.IsZero() {
		if v.options.RequireStamp {
			res.add(&ValidationError{
				Severity: SeverityError,
				Field:    "TimbreFiscalDigital",
				Rule:     "stamp_required",
				Message:  "document has no certification stamp",
			})
		}
		return
	}

	res.FieldsValidated++
	if _, err := uuid.Parse(rec.DigitalStamp.UUID); err != nil || len(rec.DigitalStamp.UUID) != 36 {
		res.add(&ValidationError{
			Severity: SeverityError,
			Field:    "UUID",
			Value:    rec.DigitalStamp.UUID,
			Rule:     "uuid",
			Message:  "stamp UUID is not in 8-4-4-4-12 form",
		})
	}
	v.date(res, 0, "FechaTimbrado", rec.DigitalStamp.CertificationDate)
}

// =============================================================================
// FIELD HELPERS
// =============================================================================

func (v *Validator) taxDetail(res *ValidationResult, lineItem int, t types.TaxDetail) {
	v.amount(res, lineItem, "Base", t.Base, true)
	v.amount(res, lineItem, "TasaOCuota", t.RateOrFee, false)
	v.amount(res, lineItem, "Importe", t.Amount, false)
}

// amount parses value as a decimal. An empty optional value is accepted
// without a finding and returns (zero, true); callers that compare amounts
// check for the empty value themselves.
func (v *Validator) amount(res *ValidationResult, lineItem int, field, value string, required bool) (decimal.Decimal, bool) {
	if value == "" && !required {
		return decimal.Zero, true
	}
	res.FieldsValidated++
	d, err := decimal.NewFromString(value)
	if err != nil {
		res.add(&ValidationError{
			Severity: SeverityError,
			Field:    field,
			Value:    value,
			Rule:     "decimal",
			Message:  "not a decimal number",
			LineItem: lineItem,
		})
		return decimal.Zero, false
	}
	return d, true
}

func (v *Validator) date(res *ValidationResult, lineItem int, field, value string) {
	res.FieldsValidated++
	if _, err := time.Parse(v.options.DateLayout, value); err != nil {
		res.add(&ValidationError{
			Severity: SeverityError,
			Field:    field,
			Value:    value,
			Rule:     "date",
			Message:  fmt.Sprintf("not a date in layout %s", v.options.DateLayout),
			LineItem: lineItem,
		})
	}
}

func (v *Validator) close(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(v.options.Tolerance)
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FormatErrors formats findings for display or logging.
//
// PARAMETERS:
//   - errors: The findings to format.
//
// RETURNS:
//   - A formatted string containing all findings.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}
