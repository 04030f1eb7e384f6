/*
validation.go - Template validation rules

PURPOSE:
  Checks an administrator's template before it can be saved or used.
  Each column gets at most one message: the first rule it fails.

RULE CHAIN (first failure wins):
  1. Label:       empty, shorter than MinLabelLength, or outside LabelPattern
  2. Definition:  longer than MaxDefinitionLength
  3. Source:      displayed without a source
  4. Option:      displayed, the catalog offers options, none chosen
  5. Column rule: one per column name (see columnRule)
  6. User input:  hidden USER_INPUT column whose catalog allows other sources
  7. Tag:         stock-based mode, tag-capable column, no tag
  8. Cycle:       CALCULATED column on a calculation cycle

  A template is valid when every column not disabled by stock-based mode
  passes the chain. Columns referenced by a rule but absent from the
  template make that rule not apply.

MESSAGES:
  Rules produce messages.Message keys; rendering belongs to a
  messages.Lookup.

SEE ALSO:
  - rules.go: Rules configuration
  - dependencies.go: FindCircularCalculatedDependencies
  - messages/bundles/en.yaml: Rendered text for each key
*/
package template

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/messages"
)

// Message keys produced by Validator.
const (
	MsgLabelEmpty                      = "template.column.labelEmpty"
	MsgLabelTooShort                   = "template.column.labelTooShort"
	MsgLabelInvalidCharacters          = "template.column.labelInvalidCharacters"
	MsgDefinitionTooLong               = "template.column.definitionTooLong"
	MsgSourceEmpty                     = "template.column.sourceEmpty"
	MsgOptionEmpty                     = "template.column.optionEmpty"
	MsgPeriodsToAverageRequired        = "template.column.periodsToAverageRequired"
	MsgPeriodsToAverageTooSmall        = "template.column.periodsToAverageTooSmall"
	MsgDisplayMismatch                 = "template.column.displayMismatch"
	MsgAdjustedConsumptionNotDisplayed = "template.column.adjustedConsumptionNotDisplayed"
	MsgStockoutDaysRequired            = "template.column.stockoutDaysRequired"
	MsgRequestedQuantityHidden         = "template.column.requestedQuantityHidden"
	MsgIsaRequiresStockBased           = "template.column.isaRequiresStockBased"
	MsgUserInputNotDisplayed           = "template.column.userInputNotDisplayed"
	MsgTagRequired                     = "template.column.tagRequired"
	MsgCircularDependency              = "template.column.circularDependency"
)

// Validator applies the template rule chain.
type Validator struct {
	rules   Rules
	pattern *regexp.Regexp
}

// NewValidator creates a validator. It panics if rules.LabelPattern does
// not compile, since the pattern is process configuration.
func NewValidator(rules Rules) *Validator {
	return &Validator{rules: rules, pattern: regexp.MustCompile(rules.LabelPattern)}
}

// Rules returns the configuration the validator was built with.
func (v *Validator) Rules() Rules { return v.rules }

// IsValid reports whether every enabled column passes the rule chain.
func (v *Validator) IsValid(t *Template) bool {
	for _, c := range t.Columns() {
		if t.IsColumnDisabled(c) {
			continue
		}
		if v.ColumnError(c, t) != nil {
			return false
		}
	}
	return true
}

// Errors returns the failing message of every enabled column, keyed by
// column name. Empty when the template is valid.
func (v *Validator) Errors(t *Template) map[catalog.Name]*messages.Message {
	out := make(map[catalog.Name]*messages.Message)
	for _, c := range t.Columns() {
		if t.IsColumnDisabled(c) {
			continue
		}
		if msg := v.ColumnError(c, t); msg != nil {
			out[c.Name] = msg
		}
	}
	return out
}

// ColumnError returns the first rule col violates, or nil.
func (v *Validator) ColumnError(col *Column, t *Template) *messages.Message {
	if msg := v.labelError(col); msg != nil {
		return msg
	}
	if utf8.RuneCountInString(col.Definition) > v.rules.MaxDefinitionLength {
		return messages.New(MsgDefinitionTooLong, "max", strconv.Itoa(v.rules.MaxDefinitionLength))
	}
	if col.IsDisplayed && col.Source == "" {
		return messages.New(MsgSourceEmpty)
	}
	if col.IsDisplayed && col.Def != nil && len(col.Def.Options) > 0 && col.Option == nil {
		return messages.New(MsgOptionEmpty)
	}
	if msg := v.columnRule(col, t); msg != nil {
		return msg
	}
	if col.IsUserInput() && !col.IsDisplayed && col.Def != nil && len(col.Def.Sources) > 1 {
		return messages.New(MsgUserInputNotDisplayed)
	}
	if !col.HasTag() && t.PopulateStockOnHandFromStockCards && col.Def != nil && col.Def.SupportsTag {
		return messages.New(MsgTagRequired)
	}
	if col.IsCalculated() {
		if violators := t.FindCircularCalculatedDependencies(col.Name); len(violators) > 0 {
			labels := make([]string, len(violators))
			for i, name := range violators {
				labels[i] = t.LabelOf(name)
			}
			return messages.New(MsgCircularDependency, "labels", strings.Join(labels, ", "))
		}
	}
	return nil
}

func (v *Validator) labelError(col *Column) *messages.Message {
	if strings.TrimSpace(col.Label) == "" {
		return messages.New(MsgLabelEmpty)
	}
	if utf8.RuneCountInString(col.Label) < v.rules.MinLabelLength {
		return messages.New(MsgLabelTooShort, "min", strconv.Itoa(v.rules.MinLabelLength))
	}
	if !v.pattern.MatchString(col.Label) {
		return messages.New(MsgLabelInvalidCharacters)
	}
	return nil
}

// columnRule is the column-specific rule. At most one applies per column.
func (v *Validator) columnRule(col *Column, t *Template) *messages.Message {
	switch col.Name {
	case catalog.AverageConsumption:
		if t.NumberOfPeriodsToAverage == nil {
			return messages.New(MsgPeriodsToAverageRequired)
		}
		if *t.NumberOfPeriodsToAverage < v.rules.MinPeriodsToAverage {
			return messages.New(MsgPeriodsToAverageTooSmall, "min", strconv.Itoa(v.rules.MinPeriodsToAverage))
		}

	case catalog.RequestedQuantity:
		return displayMismatch(col, t, catalog.RequestedQuantityExplanation)

	case catalog.RequestedQuantityExplanation:
		return displayMismatch(col, t, catalog.RequestedQuantity)

	case catalog.AdditionalQuantityRequired:
		adjusted, ok := t.Column(catalog.AdjustedConsumption)
		if ok && col.IsDisplayed && !adjusted.IsDisplayed {
			return messages.New(MsgAdjustedConsumptionNotDisplayed, "label", adjusted.Label)
		}

	case catalog.TotalStockoutDays:
		if col.IsDisplayed {
			return nil
		}
		for _, name := range []catalog.Name{catalog.AdjustedConsumption, catalog.AverageConsumption} {
			if other, ok := t.Column(name); ok && other.IsDisplayed && other.IsCalculated() {
				return messages.New(MsgStockoutDaysRequired, "label", other.Label)
			}
		}

	case catalog.CalculatedOrderQuantity:
		if col.IsDisplayed {
			return nil
		}
		requested, rqOK := t.Column(catalog.RequestedQuantity)
		explanation, exOK := t.Column(catalog.RequestedQuantityExplanation)
		if (rqOK && !requested.IsDisplayed) || (exOK && !explanation.IsDisplayed) {
			return messages.New(MsgRequestedQuantityHidden,
				"requestedQuantity", t.LabelOf(catalog.RequestedQuantity),
				"requestedQuantityExplanation", t.LabelOf(catalog.RequestedQuantityExplanation))
		}

	case catalog.CalculatedOrderQuantityIsa:
		if col.IsDisplayed && !t.PopulateStockOnHandFromStockCards {
			return messages.New(MsgIsaRequiresStockBased)
		}
	}
	return nil
}

func displayMismatch(col *Column, t *Template, partner catalog.Name) *messages.Message {
	other, ok := t.Column(partner)
	if ok && other.IsDisplayed != col.IsDisplayed {
		return messages.New(MsgDisplayMismatch, "label", other.Label)
	}
	return nil
}

// Render renders every column error of t through lookup, keyed by column
// name and sorted for stable output.
func (v *Validator) Render(t *Template, lookup messages.Lookup) []RenderedError {
	errs := v.Errors(t)
	out := make([]RenderedError, 0, len(errs))
	for name, msg := range errs {
		out = append(out, RenderedError{Column: name, Label: t.LabelOf(name), Message: msg, Text: messages.Render(lookup, msg)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Column < out[j].Column })
	return out
}

// RenderedError is one column's validation failure with display text.
type RenderedError struct {
	Column  catalog.Name      `json:"column"`
	Label   string            `json:"label"`
	Message *messages.Message `json:"message"`
	Text    string            `json:"text"`
}
