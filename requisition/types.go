/*
Package requisition provides line-item calculation and validation.

PURPOSE:
  A requisition is one facility's order for one program and processing
  period: a grid of line items (one per product) whose columns are shaped
  by the program's template. This package derives the CALCULATED columns
  of each line item and checks the user-entered ones.

KEY CONCEPTS IN THIS FILE (types.go):
  - Requisition: Header (program, facility, period, status, emergency) + line items
  - LineItem: Raw stock facts for one product plus derived columns
  - Orderable: Product packaging (net content, rounding) and program prices
  - Reason: Stock adjustment reason (CREDIT adds, DEBIT removes)

NULLABLE QUANTITIES:
  Quantities are *int64. nil means "not entered / not derivable", which
  is different from 0. Formulas treat nil operands as 0 unless a formula
  states otherwise (calculated order quantities return nil).

DESIGN PRINCIPLES:
  1. Formulas never fail: missing columns, prices or reasons give 0 or nil
  2. Only CALCULATED columns are written by the engine
  3. No locking; one editing session owns a requisition at a time

SEE ALSO:
  - calculation.go: Formulas
  - cascade.go: Dependency-ordered recalculation
  - validation.go: Line-item validation
  - template/types.go: Column configuration
*/
package requisition

import (
	"github.com/shopspring/decimal"
	"github.com/warp/requisition-engine/template"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ProgramOrderable is the per-program pricing of an orderable.
type ProgramOrderable struct {
	ProgramID    string
	PricePerPack *decimal.Decimal
}

// Orderable is a product as it is packed and shipped.
type Orderable struct {
	ID                    string
	ProductCode           string
	FullProductName       string
	DispensingUnit        string
	NetContent            int64
	PackRoundingThreshold int64
	RoundToZero           bool
	Programs              []ProgramOrderable
}

// ProgramPrice returns the price per pack for programID, or nil.
func (o Orderable) ProgramPrice(programID string) *decimal.Decimal {
	for _, p := range o.Programs {
		if p.ProgramID == programID {
			return p.PricePerPack
		}
	}
	return nil
}

// ApprovedProduct carries the facility-type approval of a product.
type ApprovedProduct struct {
	MaxPeriodsOfStock decimal.Decimal
}

// ReasonType says whether an adjustment adds or removes stock.
type ReasonType string

const (
	ReasonCredit ReasonType = "CREDIT"
	ReasonDebit  ReasonType = "DEBIT"
)

// Reason is a stock adjustment reason.
type Reason struct {
	ID         string
	Name       string
	ReasonType ReasonType
}

// StockAdjustment is one loss or adjustment entry of a line item.
type StockAdjustment struct {
	ReasonID string
	Quantity int64
}

// =============================================================================
// LINE ITEM
// =============================================================================

// LineItem is one product row of a requisition.
type LineItem struct {
	ID              string
	Orderable       Orderable
	ApprovedProduct ApprovedProduct

	BeginningBalance           *int64
	TotalReceivedQuantity      *int64
	TotalConsumedQuantity      *int64
	TotalLossesAndAdjustments  *int64
	Total                      *int64
	StockOnHand                *int64
	TotalStockoutDays          *int64
	NumberOfNewPatientsAdded   *int64
	AdditionalQuantityRequired *int64
	AdjustedConsumption        *int64
	AverageConsumption         *int64
	IdealStockAmount           *int64
	MaximumStockQuantity       *int64
	CalculatedOrderQuantity    *int64
	CalculatedOrderQuantityIsa *int64
	RequestedQuantity          *int64
	ApprovedQuantity           *int64
	PacksToShip                *int64

	RequestedQuantityExplanation string
	Remarks                      string

	PricePerPack *decimal.Decimal
	TotalCost    *decimal.Decimal

	// PreviousAdjustedConsumptions holds adjusted consumption of earlier
	// periods, most recent last.
	PreviousAdjustedConsumptions []int64
	StockAdjustments             []StockAdjustment

	Skipped       bool
	NonFullSupply bool
}

// =============================================================================
// REQUISITION
// =============================================================================

// Requisition is a facility's order for a program and period.
type Requisition struct {
	ID                     string
	ProgramID              string
	FacilityID             string
	Status                 Status
	Emergency              bool
	Period                 ProcessingPeriod
	Template               *template.Template
	LineItems              []*LineItem
	StockAdjustmentReasons []Reason
}

// LineItem returns the line item with the given ID, or nil.
func (r *Requisition) LineItem(id string) *LineItem {
	for _, li := range r.LineItems {
		if li.ID == id {
			return li
		}
	}
	return nil
}

// Reason returns the stock adjustment reason with the given ID.
func (r *Requisition) Reason(id string) (Reason, bool) {
	for _, reason := range r.StockAdjustmentReasons {
		if reason.ID == id {
			return reason, true
		}
	}
	return Reason{}, false
}

// =============================================================================
// HELPERS
// =============================================================================

// Int returns a pointer to v.
func Int(v int64) *int64 { return &v }

func value(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
