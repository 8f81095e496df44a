// =============================================================================
// CFDI to CSV Converter - Cell Transformations
// =============================================================================
//
// Optional per-column rewriting of cell values before they are placed in the
// grid. Without rules, every value is written verbatim.
//
// Rules are validated and compiled once by NewTransformer; applying them never
// fails. Actions that cannot interpret a value (e.g. format_number on text)
// leave it unchanged.
//
// Only values a row actually supplies are transformed, so the blank columns
// of the other block stay blank.
//
// SUPPORTED ACTIONS:
//   - prepend_string / append_string : add Value before / after
//   - trim / uppercase / lowercase
//   - normalize_whitespace           : collapse runs of whitespace
//   - replace                        : replace Find with Value
//   - regex_replace                  : replace regexp Find with Value
//   - pad_zeros_to_length            : left-pad with zeros to Value chars
//   - remove_leading_zeros
//   - format_number                  : fixed Value decimal places
//   - format_date                    : "input_layout|output_layout"
//   - lookup                         : LookupTable, unknown values kept
//   - lookup_with_default            : LookupTable, unknown values -> Value
//   - if_empty_use_default           : Value when the cell is empty
//
// =============================================================================

package flatten

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rule lists the actions applied, in order, to one column.
type Rule struct {
	Column  string   `yaml:"column"`
	Actions []Action `yaml:"actions"`
}

// Action is a single transformation step.
type Action struct {
	Type        string            `yaml:"type"`
	Value       string            `yaml:"value,omitempty"`
	Find        string            `yaml:"find,omitempty"`
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

type compiledAction struct {
	Action
	re     *regexp.Regexp
	length int
	places int32
	layout [2]string
}

// Transformer applies compiled rules to row values.
type Transformer struct {
	rules map[string][]compiledAction
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NewTransformer validates rules against layout and compiles them.
//
// RETURNS:
//   - A Transformer, or nil when rules is empty.
//   - An error for an unknown column, an unknown action type or an invalid
//     action parameter.
func NewTransformer(rules []Rule, layout *Layout) (*Transformer, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	if layout == nil {
		layout = DefaultLayout()
	}

	t := &Transformer{rules: make(map[string][]compiledAction, len(rules))}
	for i, rule := range rules {
		if !layout.HasColumn(rule.Column) {
			return nil, fmt.Errorf("transformation rule %d: unknown column %q", i+1, rule.Column)
		}
		for j, action := range rule.Actions {
			ca, err := compileAction(action)
			if err != nil {
				return nil, fmt.Errorf("transformation rule %d (%s) action %d: %w", i+1, rule.Column, j+1, err)
			}
			t.rules[rule.Column] = append(t.rules[rule.Column], ca)
		}
	}
	return t, nil
}

func compileAction(a Action) (compiledAction, error) {
	ca := compiledAction{Action: a}
	switch a.Type {
	case "prepend_string", "append_string", "trim", "uppercase", "lowercase",
		"normalize_whitespace", "remove_leading_zeros", "lookup",
		"lookup_with_default", "if_empty_use_default":

	case "replace":
		if a.Find == "" {
			return ca, fmt.Errorf("replace requires find")
		}

	case "regex_replace":
		re, err := regexp.Compile(a.Find)
		if err != nil {
			return ca, fmt.Errorf("invalid regex pattern: %w", err)
		}
		ca.re = re

	case "pad_zeros_to_length":
		n, err := strconv.Atoi(a.Value)
		if err != nil || n <= 0 {
			return ca, fmt.Errorf("pad_zeros_to_length requires a positive length, got %q", a.Value)
		}
		ca.length = n

	case "format_number":
		n, err := strconv.Atoi(a.Value)
		if err != nil || n < 0 {
			return ca, fmt.Errorf("format_number requires a non-negative number of places, got %q", a.Value)
		}
		ca.places = int32(n)

	case "format_date":
		in, out, ok := strings.Cut(a.Value, "|")
		if !ok || strings.TrimSpace(in) == "" || strings.TrimSpace(out) == "" {
			return ca, fmt.Errorf("format_date requires \"input_layout|output_layout\", got %q", a.Value)
		}
		ca.layout = [2]string{strings.TrimSpace(in), strings.TrimSpace(out)}

	default:
		return ca, fmt.Errorf("unknown transformation type: %s", a.Type)
	}
	return ca, nil
}

// Apply rewrites values in place. A nil Transformer does nothing.
func (t *Transformer) Apply(values Values) {
	if t == nil {
		return
	}
	for col, actions := range t.rules {
		v, ok := values[col]
		if !ok {
			continue
		}
		for _, a := range actions {
			v = a.apply(v)
		}
		values[col] = v
	}
}

func (a compiledAction) apply(value string) string {
	switch a.Type {
	case "prepend_string":
		return a.Value + value
	case "append_string":
		return value + a.Value
	case "trim":
		return strings.TrimSpace(value)
	case "uppercase":
		return strings.ToUpper(value)
	case "lowercase":
		return strings.ToLower(value)
	case "normalize_whitespace":
		return strings.TrimSpace(whitespaceRun.ReplaceAllString(value, " "))
	case "replace":
		return strings.ReplaceAll(value, a.Find, a.Value)
	case "regex_replace":
		return a.re.ReplaceAllString(value, a.Value)
	case "pad_zeros_to_length":
		return PadLeft(value, a.length, '0')
	case "remove_leading_zeros":
		if value == "" {
			return value
		}
		if trimmed := strings.TrimLeft(value, "0"); trimmed != "" {
			return trimmed
		}
		return "0"
	case "format_number":
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return value
		}
		return d.StringFixed(a.places)
	case "format_date":
		ts, err := time.Parse(a.layout[0], value)
		if err != nil {
			return value
		}
		return ts.Format(a.layout[1])
	case "lookup":
		if r, ok := a.LookupTable[value]; ok {
			return r
		}
		return value
	case "lookup_with_default":
		if r, ok := a.LookupTable[value]; ok {
			return r
		}
		return a.Value
	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return a.Value
		}
		return value
	}
	return value
}

// PadLeft pads s on the left with padChar up to length runes.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
