package requisition

import (
	"github.com/warp/requisition-engine/catalog"
)

// Quantity returns the stored value of a numeric column, and false when
// name is not a quantity column of a line item.
func (li *LineItem) Quantity(name catalog.Name) (*int64, bool) {
	p := li.quantityField(name)
	if p == nil {
		return nil, false
	}
	return *p, true
}

// SetQuantity stores v in a numeric column. It returns false when name is
// not a quantity column.
func (li *LineItem) SetQuantity(name catalog.Name, v *int64) bool {
	p := li.quantityField(name)
	if p == nil {
		return false
	}
	*p = v
	return true
}

func (li *LineItem) quantityField(name catalog.Name) **int64 {
	switch name {
	case catalog.BeginningBalance:
		return &li.BeginningBalance
	case catalog.TotalReceivedQuantity:
		return &li.TotalReceivedQuantity
	case catalog.TotalConsumedQuantity:
		return &li.TotalConsumedQuantity
	case catalog.TotalLossesAndAdjustments:
		return &li.TotalLossesAndAdjustments
	case catalog.Total:
		return &li.Total
	case catalog.StockOnHand:
		return &li.StockOnHand
	case catalog.TotalStockoutDays:
		return &li.TotalStockoutDays
	case catalog.NumberOfNewPatientsAdded:
		return &li.NumberOfNewPatientsAdded
	case catalog.AdditionalQuantityRequired:
		return &li.AdditionalQuantityRequired
	case catalog.AdjustedConsumption:
		return &li.AdjustedConsumption
	case catalog.AverageConsumption:
		return &li.AverageConsumption
	case catalog.IdealStockAmount:
		return &li.IdealStockAmount
	case catalog.MaximumStockQuantity:
		return &li.MaximumStockQuantity
	case catalog.CalculatedOrderQuantity:
		return &li.CalculatedOrderQuantity
	case catalog.CalculatedOrderQuantityIsa:
		return &li.CalculatedOrderQuantityIsa
	case catalog.RequestedQuantity:
		return &li.RequestedQuantity
	case catalog.ApprovedQuantity:
		return &li.ApprovedQuantity
	case catalog.PacksToShip:
		return &li.PacksToShip
	}
	return nil
}
