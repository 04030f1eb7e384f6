/*
validation.go - Line-item validation

PURPOSE:
  Per-field checks on the values a facility entered. A field yields at
  most one message; a line item yields a map of column -> message.

RULES:
  stockOnHand, totalConsumedQuantity   negative -> negativeValue
  totalStockoutDays                    > period days -> exceedsPeriodDuration
  requestedQuantity                    nil and required -> required
  requestedQuantityExplanation         empty and required -> required
  other numeric USER_INPUT columns     negative -> negativeValue

  requestedQuantity is required in emergency requisitions and whenever
  the template displays neither calculated order quantity. The
  explanation is required once a quantity is requested for a full-supply
  product next to a displayed calculated order quantity.

  Only displayed columns not disabled by stock-based mode are checked.
  Skipped line items have no errors.

SEE ALSO:
  - status.go: Submit and authorize run ValidateRequisition
  - messages/bundles/en.yaml: Rendered text
*/
package requisition

import (
	"strconv"
	"strings"

	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/messages"
	"github.com/warp/requisition-engine/template"
)

// Message keys produced by Validator.
const (
	MsgNegativeValue         = "requisition.lineItem.negativeValue"
	MsgExceedsPeriodDuration = "requisition.lineItem.exceedsPeriodDuration"
	MsgRequired              = "requisition.lineItem.required"
)

// Validator checks line items against their requisition's template.
type Validator struct {
	cfg Config
}

// NewValidator creates a line-item validator.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// fieldRule checks one column of a line item.
type fieldRule func(v *Validator, li *LineItem, req *Requisition) *messages.Message

var fieldRules = map[catalog.Name]fieldRule{
	catalog.StockOnHand:                  (*Validator).StockOnHand,
	catalog.TotalConsumedQuantity:        (*Validator).TotalConsumedQuantity,
	catalog.TotalStockoutDays:            (*Validator).TotalStockoutDays,
	catalog.RequestedQuantity:            (*Validator).RequestedQuantity,
	catalog.RequestedQuantityExplanation: (*Validator).RequestedQuantityExplanation,
}

// =============================================================================
// FIELD RULES
// =============================================================================

// StockOnHand rejects a negative stock on hand.
func (v *Validator) StockOnHand(li *LineItem, _ *Requisition) *messages.Message {
	return nonNegative(li.StockOnHand)
}

// TotalConsumedQuantity rejects a negative consumption.
func (v *Validator) TotalConsumedQuantity(li *LineItem, _ *Requisition) *messages.Message {
	return nonNegative(li.TotalConsumedQuantity)
}

// TotalStockoutDays rejects more stockout days than the period has.
func (v *Validator) TotalStockoutDays(li *LineItem, req *Requisition) *messages.Message {
	if li.TotalStockoutDays == nil {
		return nil
	}
	if *li.TotalStockoutDays < 0 {
		return messages.New(MsgNegativeValue)
	}
	days := req.Period.Days(v.cfg.DaysPerMonth)
	if *li.TotalStockoutDays > days {
		return messages.New(MsgExceedsPeriodDuration, "days", strconv.FormatInt(days, 10))
	}
	return nil
}

// RequestedQuantity requires a quantity when nothing else can drive the
// order.
func (v *Validator) RequestedQuantity(li *LineItem, req *Requisition) *messages.Message {
	if li.RequestedQuantity != nil {
		return nonNegative(li.RequestedQuantity)
	}
	if req.Emergency || !calculatedOrderDisplayed(req) {
		return messages.New(MsgRequired)
	}
	return nil
}

// RequestedQuantityExplanation requires a reason for overriding a
// displayed calculated order quantity.
func (v *Validator) RequestedQuantityExplanation(li *LineItem, req *Requisition) *messages.Message {
	if req.Template == nil || !req.Template.HasDisplayed(catalog.RequestedQuantityExplanation) {
		return nil
	}
	if li.RequestedQuantity == nil || li.NonFullSupply || !calculatedOrderDisplayed(req) {
		return nil
	}
	if strings.TrimSpace(li.RequestedQuantityExplanation) == "" {
		return messages.New(MsgRequired)
	}
	return nil
}

func calculatedOrderDisplayed(req *Requisition) bool {
	if req.Template == nil {
		return false
	}
	return req.Template.HasDisplayed(catalog.CalculatedOrderQuantity) ||
		req.Template.HasDisplayed(catalog.CalculatedOrderQuantityIsa)
}

func nonNegative(p *int64) *messages.Message {
	if p != nil && *p < 0 {
		return messages.New(MsgNegativeValue)
	}
	return nil
}

// =============================================================================
// LINE ITEM / REQUISITION
// =============================================================================

// ValidateLineItem checks every displayed, enabled column of li. The
// result is empty for a valid or skipped line item.
func (v *Validator) ValidateLineItem(li *LineItem, req *Requisition) map[catalog.Name]*messages.Message {
	errs := make(map[catalog.Name]*messages.Message)
	if li == nil || li.Skipped || req.Template == nil {
		return errs
	}
	for _, col := range req.Template.Columns() {
		if !col.IsDisplayed || req.Template.IsColumnDisabled(col) {
			continue
		}
		if msg := v.checkColumn(col, li, req); msg != nil {
			errs[col.Name] = msg
		}
	}
	return errs
}

func (v *Validator) checkColumn(col *template.Column, li *LineItem, req *Requisition) *messages.Message {
	if rule, ok := fieldRules[col.Name]; ok {
		return rule(v, li, req)
	}
	if !col.IsUserInput() || col.Def == nil || col.Def.Type != catalog.TypeNumeric {
		return nil
	}
	if q, ok := li.Quantity(col.Name); ok {
		return nonNegative(q)
	}
	return nil
}

// ValidateRequisition validates every line item and returns the errors of
// the invalid ones, keyed by line item ID.
func (v *Validator) ValidateRequisition(req *Requisition) map[string]map[catalog.Name]*messages.Message {
	out := make(map[string]map[catalog.Name]*messages.Message)
	for _, li := range req.LineItems {
		if errs := v.ValidateLineItem(li, req); len(errs) > 0 {
			out[li.ID] = errs
		}
	}
	return out
}
