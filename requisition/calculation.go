/*
calculation.go - Line-item formulas

PURPOSE:
  One method per CALCULATED column. Each takes the line item and its
  requisition (for the template, period, status and reasons) and returns
  the derived value without writing it; cascade.go stores results.

FORMULAS:
  total                      = beginningBalance + totalReceivedQuantity
  stockOnHand                = total + totalLossesAndAdjustments - totalConsumedQuantity
  totalConsumedQuantity      = total + totalLossesAndAdjustments - stockOnHand
  totalLossesAndAdjustments  = sum(+qty CREDIT, -qty DEBIT) over adjustments
  adjustedConsumption        = ceil(consumed * days / (days - stockoutDays))
                               (+ additionalQuantityRequired when displayed)
  averageConsumption         = ceil(mean of the last N adjusted consumptions)
  maximumStockQuantity       = round(maxPeriodsOfStock * averageConsumption)
  calculatedOrderQuantity    = max(0, maximumStockQuantity - stockOnHand)
  calculatedOrderQuantityIsa = max(0, idealStockAmount - stockOnHand)
  packsToShip                = orderQuantity / netContent, rounded by threshold
  totalCost                  = packsToShip * netContent * pricePerPack

FALLBACKS:
  Absent template columns, prices and reasons are expected data states.
  They give 0 or nil, never an error or panic.

SEE ALSO:
  - cascade.go: Evaluation order and writes
  - config.go: DaysPerMonth, MaximumStockOption
*/
package requisition

import (
	"github.com/shopspring/decimal"
	"github.com/warp/requisition-engine/catalog"
)

// Calculator evaluates line-item formulas.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator with the given constants.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Config returns the calculator's constants.
func (c *Calculator) Config() Config { return c.cfg }

// =============================================================================
// STOCK BALANCE
// =============================================================================

// Total is beginning balance plus received quantity.
func (c *Calculator) Total(li *LineItem, _ *Requisition) int64 {
	return value(li.BeginningBalance) + value(li.TotalReceivedQuantity)
}

// StockOnHand is what should remain after consumption, losses and adjustments.
func (c *Calculator) StockOnHand(li *LineItem, req *Requisition) int64 {
	return c.Total(li, req) + value(li.TotalLossesAndAdjustments) - value(li.TotalConsumedQuantity)
}

// TotalConsumedQuantity is the consumption implied by a counted stock on hand.
func (c *Calculator) TotalConsumedQuantity(li *LineItem, req *Requisition) int64 {
	return c.Total(li, req) + value(li.TotalLossesAndAdjustments) - value(li.StockOnHand)
}

// TotalLossesAndAdjustments sums the line item's adjustments against the
// requisition's reasons.
func (c *Calculator) TotalLossesAndAdjustments(li *LineItem, req *Requisition) int64 {
	return SumAdjustments(li.StockAdjustments, req.StockAdjustmentReasons)
}

// SumAdjustments adds CREDIT adjustments and subtracts the others.
// Adjustments whose reason is unknown contribute nothing.
func SumAdjustments(adjustments []StockAdjustment, reasons []Reason) int64 {
	byID := make(map[string]Reason, len(reasons))
	for _, r := range reasons {
		byID[r.ID] = r
	}
	var sum int64
	for _, adj := range adjustments {
		reason, ok := byID[adj.ReasonID]
		if !ok {
			continue
		}
		if reason.ReasonType == ReasonCredit {
			sum += adj.Quantity
		} else {
			sum -= adj.Quantity
		}
	}
	return sum
}

// =============================================================================
// CONSUMPTION
// =============================================================================

// AdjustedConsumption scales consumption up to cover the days the product
// was out of stock. When stockout days equal the whole period the
// consumption is returned unchanged.
func (c *Calculator) AdjustedConsumption(li *LineItem, req *Requisition) int64 {
	consumed := value(li.TotalConsumedQuantity)
	days := req.Period.Days(c.cfg.DaysPerMonth)
	nonStockoutDays := days - value(li.TotalStockoutDays)
	if nonStockoutDays == 0 {
		return consumed
	}

	adjusted := decimal.NewFromInt(consumed).
		Mul(decimal.NewFromInt(days)).
		Div(decimal.NewFromInt(nonStockoutDays)).
		Ceil().
		IntPart()

	if req.Template != nil && req.Template.HasDisplayed(catalog.AdditionalQuantityRequired) {
		adjusted += value(li.AdditionalQuantityRequired)
	}
	return adjusted
}

// AverageConsumption is the ceiling of the mean adjusted consumption over
// the template's number of periods to average, counting this period.
func (c *Calculator) AverageConsumption(li *LineItem, req *Requisition) int64 {
	periods := 1
	if req.Template != nil && req.Template.NumberOfPeriodsToAverage != nil && *req.Template.NumberOfPeriodsToAverage > 1 {
		periods = *req.Template.NumberOfPeriodsToAverage
	}
	previous := li.PreviousAdjustedConsumptions
	if len(previous) > periods-1 {
		previous = previous[len(previous)-(periods-1):]
	}
	sum := value(li.AdjustedConsumption)
	for _, v := range previous {
		sum += v
	}
	count := int64(len(previous) + 1)
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(count)).Ceil().IntPart()
}

// MaximumStockQuantity is max periods of stock times average consumption,
// but only when the template selects the default option; otherwise 0.
func (c *Calculator) MaximumStockQuantity(li *LineItem, req *Requisition) int64 {
	if req.Template == nil {
		return 0
	}
	col, ok := req.Template.Column(catalog.MaximumStockQuantity)
	if !ok || col.Option == nil || col.Option.Name != c.cfg.MaximumStockOption {
		return 0
	}
	return li.ApprovedProduct.MaxPeriodsOfStock.
		Mul(decimal.NewFromInt(value(li.AverageConsumption))).
		Round(0).
		IntPart()
}

// =============================================================================
// ORDER QUANTITIES
// =============================================================================

// CalculatedOrderQuantity is the stock needed to reach the maximum stock
// quantity. Nil when the template lacks stock on hand or maximum stock.
func (c *Calculator) CalculatedOrderQuantity(li *LineItem, req *Requisition) *int64 {
	if req.Template == nil || !req.Template.Has(catalog.StockOnHand) || !req.Template.Has(catalog.MaximumStockQuantity) {
		return nil
	}
	maximum := value(li.MaximumStockQuantity)
	if req.Template.IsCalculated(catalog.MaximumStockQuantity) {
		maximum = c.MaximumStockQuantity(li, req)
	}
	return Int(max(0, maximum-c.stockOnHandOperand(li, req)))
}

// CalculatedOrderQuantityIsa is the stock needed to reach the ideal stock
// amount. Nil when the template lacks the ISA column or the line item has
// no ideal stock amount.
func (c *Calculator) CalculatedOrderQuantityIsa(li *LineItem, req *Requisition) *int64 {
	if req.Template == nil || !req.Template.Has(catalog.CalculatedOrderQuantityIsa) || li.IdealStockAmount == nil {
		return nil
	}
	return Int(max(0, *li.IdealStockAmount-c.stockOnHandOperand(li, req)))
}

// stockOnHandOperand is stock on hand as an order-quantity input: derived
// when the column is CALCULATED, stored otherwise.
func (c *Calculator) stockOnHandOperand(li *LineItem, req *Requisition) int64 {
	if req.Template.IsCalculated(catalog.StockOnHand) {
		return c.StockOnHand(li, req)
	}
	return value(li.StockOnHand)
}

// OrderQuantity is the quantity a full-supply order ships: the requested
// quantity when the column is displayed and filled in, else the ISA order
// quantity when the template has it, else the calculated order quantity.
func (c *Calculator) OrderQuantity(li *LineItem, req *Requisition) *int64 {
	if req.Template == nil {
		return li.RequestedQuantity
	}
	if req.Template.HasDisplayed(catalog.RequestedQuantity) && li.RequestedQuantity != nil {
		return li.RequestedQuantity
	}
	if req.Template.Has(catalog.CalculatedOrderQuantityIsa) {
		return c.CalculatedOrderQuantityIsa(li, req)
	}
	return c.CalculatedOrderQuantity(li, req)
}

// shippedQuantity picks which quantity packsToShip converts.
func (c *Calculator) shippedQuantity(li *LineItem, req *Requisition) int64 {
	switch {
	case req.Emergency:
		return value(li.RequestedQuantity)
	case req.Status.IsAfterAuthorize():
		return value(li.ApprovedQuantity)
	case li.NonFullSupply:
		return value(li.RequestedQuantity)
	default:
		return value(c.OrderQuantity(li, req))
	}
}

// =============================================================================
// PACKS AND COST
// =============================================================================

// PacksToShip converts the shipped quantity into whole packs. A remainder
// at or above the pack rounding threshold adds a pack. A quantity smaller
// than one pack still ships one pack unless the orderable rounds to zero.
func (c *Calculator) PacksToShip(li *LineItem, req *Requisition) int64 {
	quantity := c.shippedQuantity(li, req)
	netContent := li.Orderable.NetContent
	if netContent == 0 || quantity <= 0 {
		return 0
	}
	packs := quantity / netContent
	remainder := quantity % netContent
	if remainder > 0 && remainder >= li.Orderable.PackRoundingThreshold {
		return packs + 1
	}
	if packs == 0 && !li.Orderable.RoundToZero {
		return 1
	}
	return packs
}

// PricePerPack is the program price of the orderable, falling back to the
// line item's own price. Nil when neither is known.
func (c *Calculator) PricePerPack(li *LineItem, req *Requisition) *decimal.Decimal {
	if p := li.Orderable.ProgramPrice(req.ProgramID); p != nil {
		return p
	}
	return li.PricePerPack
}

// TotalCost is packs to ship times net content times price per pack.
// Zero when no price is known.
func (c *Calculator) TotalCost(li *LineItem, req *Requisition) decimal.Decimal {
	price := c.PricePerPack(li, req)
	if price == nil {
		return decimal.Zero
	}
	return decimal.NewFromInt(c.PacksToShip(li, req)).
		Mul(decimal.NewFromInt(li.Orderable.NetContent)).
		Mul(*price)
}
