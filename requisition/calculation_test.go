package requisition_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/requisition-engine/catalog"
	"github.com/warp/requisition-engine/requisition"
	"github.com/warp/requisition-engine/template"
)

// =============================================================================
// STOCK BALANCE
// =============================================================================

func TestTotalAndStockOnHand(t *testing.T) {
	// GIVEN: bb 20, received 10, losses/adjustments 25, consumed 15
	calc := newCalculator()
	req := monthly(catalogTemplate(catalog.Total, catalog.StockOnHand))
	li := &requisition.LineItem{
		BeginningBalance:          i64(20),
		TotalReceivedQuantity:     i64(10),
		TotalLossesAndAdjustments: i64(25),
		TotalConsumedQuantity:     i64(15),
	}

	// THEN: total = 30, stock on hand = 30 + 25 - 15
	assert.Equal(t, int64(30), calc.Total(li, req))
	assert.Equal(t, int64(40), calc.StockOnHand(li, req))
}

func TestTotalConsumedQuantity_InverseOfStockOnHand(t *testing.T) {
	calc := newCalculator()
	req := monthly(catalogTemplate())
	li := &requisition.LineItem{
		BeginningBalance:          i64(20),
		TotalReceivedQuantity:     i64(10),
		TotalLossesAndAdjustments: i64(25),
		StockOnHand:               i64(40),
	}
	assert.Equal(t, int64(15), calc.TotalConsumedQuantity(li, req))
}

func TestTotal_NilOperandsAreZero(t *testing.T) {
	calc := newCalculator()
	req := monthly(catalogTemplate())
	assert.Equal(t, int64(0), calc.Total(&requisition.LineItem{}, req))
	assert.Equal(t, int64(7), calc.Total(&requisition.LineItem{TotalReceivedQuantity: i64(7)}, req))
}

func TestSumAdjustments(t *testing.T) {
	reasons := []requisition.Reason{
		{ID: "transfer-in", Name: "Transfer In", ReasonType: requisition.ReasonCredit},
		{ID: "expired", Name: "Expired", ReasonType: requisition.ReasonDebit},
	}
	adjustments := []requisition.StockAdjustment{
		{ReasonID: "transfer-in", Quantity: 10},
		{ReasonID: "expired", Quantity: 4},
		{ReasonID: "unknown", Quantity: 100},
	}

	assert.Equal(t, int64(6), requisition.SumAdjustments(adjustments, reasons))
	assert.Equal(t, int64(0), requisition.SumAdjustments(adjustments, nil), "unmatched reasons contribute 0")
	assert.Equal(t, int64(0), requisition.SumAdjustments(nil, reasons))
}

func TestTotalLossesAndAdjustments_UsesRequisitionReasons(t *testing.T) {
	calc := newCalculator()
	req := monthly(catalogTemplate())
	req.StockAdjustmentReasons = []requisition.Reason{{ID: "damaged", ReasonType: requisition.ReasonDebit}}
	li := &requisition.LineItem{StockAdjustments: []requisition.StockAdjustment{{ReasonID: "damaged", Quantity: 3}}}

	assert.Equal(t, int64(-3), calc.TotalLossesAndAdjustments(li, req))
}

// =============================================================================
// CONSUMPTION
// =============================================================================

func TestAdjustedConsumption(t *testing.T) {
	calc := newCalculator()

	t.Run("scales consumption over non-stockout days", func(t *testing.T) {
		req := monthly(catalogTemplate(catalog.AdjustedConsumption))
		li := &requisition.LineItem{TotalConsumedQuantity: i64(30), TotalStockoutDays: i64(10)}
		// 30 * 30 / 20 = 45
		assert.Equal(t, int64(45), calc.AdjustedConsumption(li, req))
	})

	t.Run("rounds up", func(t *testing.T) {
		req := monthly(catalogTemplate(catalog.AdjustedConsumption))
		li := &requisition.LineItem{TotalConsumedQuantity: i64(10), TotalStockoutDays: i64(7)}
		// 10 * 30 / 23 = 13.04
		assert.Equal(t, int64(14), calc.AdjustedConsumption(li, req))
	})

	t.Run("no stockout leaves consumption unchanged", func(t *testing.T) {
		req := monthly(catalogTemplate(catalog.AdjustedConsumption))
		li := &requisition.LineItem{TotalConsumedQuantity: i64(12)}
		assert.Equal(t, int64(12), calc.AdjustedConsumption(li, req))
	})

	t.Run("stockout for the whole period returns consumption", func(t *testing.T) {
		tpl := catalogTemplate(catalog.AdditionalQuantityRequired, catalog.AdjustedConsumption)
		req := monthly(tpl)
		li := &requisition.LineItem{
			TotalConsumedQuantity:      i64(12),
			TotalStockoutDays:          i64(30),
			AdditionalQuantityRequired: i64(5),
		}
		assert.Equal(t, int64(12), calc.AdjustedConsumption(li, req))
	})

	t.Run("adds additional quantity when displayed", func(t *testing.T) {
		tpl := catalogTemplate(catalog.AdditionalQuantityRequired, catalog.AdjustedConsumption)
		req := monthly(tpl)
		li := &requisition.LineItem{
			TotalConsumedQuantity:      i64(30),
			TotalStockoutDays:          i64(10),
			AdditionalQuantityRequired: i64(5),
		}
		assert.Equal(t, int64(50), calc.AdjustedConsumption(li, req))

		configure(t, tpl, catalog.AdditionalQuantityRequired, hidden)
		assert.Equal(t, int64(45), calc.AdjustedConsumption(li, req))
	})

	t.Run("period length rounds to whole days", func(t *testing.T) {
		req := monthly(catalogTemplate(catalog.AdjustedConsumption))
		req.Period.DurationInMonths = 0.5 // 15 days
		li := &requisition.LineItem{TotalConsumedQuantity: i64(10), TotalStockoutDays: i64(5)}
		// 10 * 15 / 10 = 15
		assert.Equal(t, int64(15), calc.AdjustedConsumption(li, req))
	})
}

func TestAverageConsumption(t *testing.T) {
	calc := newCalculator()

	t.Run("averages over the configured periods", func(t *testing.T) {
		req := monthly(catalogTemplate(catalog.AverageConsumption)) // 3 periods
		li := &requisition.LineItem{
			AdjustedConsumption:          i64(41),
			PreviousAdjustedConsumptions: []int64{10, 20, 30},
		}
		// (20 + 30 + 41) / 3 = 30.33
		assert.Equal(t, int64(31), calc.AverageConsumption(li, req))
	})

	t.Run("fewer previous periods than configured", func(t *testing.T) {
		req := monthly(catalogTemplate(catalog.AverageConsumption))
		li := &requisition.LineItem{AdjustedConsumption: i64(10), PreviousAdjustedConsumptions: []int64{20}}
		assert.Equal(t, int64(15), calc.AverageConsumption(li, req))
	})

	t.Run("unset periods uses the current period only", func(t *testing.T) {
		tpl := template.New("t", "p", nil)
		req := monthly(tpl)
		li := &requisition.LineItem{AdjustedConsumption: i64(10), PreviousAdjustedConsumptions: []int64{20}}
		assert.Equal(t, int64(10), calc.AverageConsumption(li, req))
	})
}

func TestMaximumStockQuantity(t *testing.T) {
	calc := newCalculator()
	li := &requisition.LineItem{
		AverageConsumption: i64(9),
		ApprovedProduct:    requisition.ApprovedProduct{MaxPeriodsOfStock: decimal.NewFromFloat(1.5)},
	}

	t.Run("default option", func(t *testing.T) {
		req := monthly(catalogTemplate(catalog.MaximumStockQuantity))
		// 1.5 * 9 = 13.5
		assert.Equal(t, int64(14), calc.MaximumStockQuantity(li, req))
	})

	t.Run("other option", func(t *testing.T) {
		tpl := catalogTemplate(catalog.MaximumStockQuantity)
		configure(t, tpl, catalog.MaximumStockQuantity, func(c *template.Column) {
			c.Option = &catalog.Option{Name: "custom", Label: "Custom"}
		})
		assert.Equal(t, int64(0), calc.MaximumStockQuantity(li, monthly(tpl)))
	})

	t.Run("column absent", func(t *testing.T) {
		assert.Equal(t, int64(0), calc.MaximumStockQuantity(li, monthly(catalogTemplate())))
	})
}

// =============================================================================
// ORDER QUANTITIES
// =============================================================================

func TestCalculatedOrderQuantity(t *testing.T) {
	calc := newCalculator()

	t.Run("user input operands", func(t *testing.T) {
		// GIVEN: stock on hand 5 and maximum stock 12, both USER_INPUT
		req := monthly(catalogTemplate(catalog.StockOnHand, catalog.MaximumStockQuantity, catalog.CalculatedOrderQuantity))
		li := &requisition.LineItem{StockOnHand: i64(5), MaximumStockQuantity: i64(12)}

		got := calc.CalculatedOrderQuantity(li, req)

		require.NotNil(t, got)
		assert.Equal(t, int64(7), *got)
	})

	t.Run("never negative", func(t *testing.T) {
		req := monthly(catalogTemplate(catalog.StockOnHand, catalog.MaximumStockQuantity, catalog.CalculatedOrderQuantity))
		li := &requisition.LineItem{StockOnHand: i64(20), MaximumStockQuantity: i64(12)}
		assert.Equal(t, int64(0), *calc.CalculatedOrderQuantity(li, req))
	})

	t.Run("calculated stock on hand is derived", func(t *testing.T) {
		tpl := catalogTemplate(catalog.StockOnHand, catalog.MaximumStockQuantity, catalog.CalculatedOrderQuantity)
		configure(t, tpl, catalog.StockOnHand, calculated)
		li := &requisition.LineItem{
			BeginningBalance:      i64(10),
			TotalConsumedQuantity: i64(7),
			StockOnHand:           i64(999),
			MaximumStockQuantity:  i64(12),
		}
		assert.Equal(t, int64(9), *calc.CalculatedOrderQuantity(li, monthly(tpl)))
	})

	t.Run("calculated maximum stock is derived", func(t *testing.T) {
		tpl := catalogTemplate(catalog.StockOnHand, catalog.MaximumStockQuantity, catalog.CalculatedOrderQuantity)
		configure(t, tpl, catalog.MaximumStockQuantity, calculated)
		li := &requisition.LineItem{
			StockOnHand:          i64(5),
			MaximumStockQuantity: i64(999),
			AverageConsumption:   i64(10),
			ApprovedProduct:      requisition.ApprovedProduct{MaxPeriodsOfStock: decimal.NewFromInt(2)},
		}
		assert.Equal(t, int64(15), *calc.CalculatedOrderQuantity(li, monthly(tpl)))
	})

	t.Run("nil without stock on hand or maximum stock columns", func(t *testing.T) {
		li := &requisition.LineItem{StockOnHand: i64(5), MaximumStockQuantity: i64(12)}
		assert.Nil(t, calc.CalculatedOrderQuantity(li, monthly(catalogTemplate(catalog.StockOnHand))))
		assert.Nil(t, calc.CalculatedOrderQuantity(li, monthly(catalogTemplate(catalog.MaximumStockQuantity))))
	})
}

func TestCalculatedOrderQuantityIsa(t *testing.T) {
	calc := newCalculator()
	tpl := catalogTemplate(catalog.StockOnHand, catalog.IdealStockAmount, catalog.CalculatedOrderQuantityIsa)

	li := &requisition.LineItem{StockOnHand: i64(5), IdealStockAmount: i64(20)}
	got := calc.CalculatedOrderQuantityIsa(li, monthly(tpl))
	require.NotNil(t, got)
	assert.Equal(t, int64(15), *got)

	li.IdealStockAmount = nil
	assert.Nil(t, calc.CalculatedOrderQuantityIsa(li, monthly(tpl)))

	li.IdealStockAmount = i64(20)
	assert.Nil(t, calc.CalculatedOrderQuantityIsa(li, monthly(catalogTemplate(catalog.StockOnHand))))
}

func TestOrderQuantity(t *testing.T) {
	calc := newCalculator()
	li := &requisition.LineItem{
		StockOnHand:          i64(5),
		MaximumStockQuantity: i64(12),
		IdealStockAmount:     i64(25),
		RequestedQuantity:    i64(3),
	}

	withRequested := catalogTemplate(catalog.StockOnHand, catalog.MaximumStockQuantity,
		catalog.CalculatedOrderQuantity, catalog.RequestedQuantity)
	assert.Equal(t, int64(3), *calc.OrderQuantity(li, monthly(withRequested)))

	configure(t, withRequested, catalog.RequestedQuantity, hidden)
	assert.Equal(t, int64(7), *calc.OrderQuantity(li, monthly(withRequested)), "hidden requested quantity falls back to COQ")

	withIsa := catalogTemplate(catalog.StockOnHand, catalog.MaximumStockQuantity, catalog.IdealStockAmount,
		catalog.CalculatedOrderQuantity, catalog.CalculatedOrderQuantityIsa)
	assert.Equal(t, int64(20), *calc.OrderQuantity(li, monthly(withIsa)), "ISA wins over COQ")
}

// =============================================================================
// PACKS TO SHIP
// =============================================================================

func TestPacksToShip_RoundingThreshold(t *testing.T) {
	calc := newCalculator()
	req := monthly(catalogTemplate(catalog.RequestedQuantity, catalog.PacksToShip))
	req.Emergency = true

	tests := []struct {
		name      string
		quantity  int64
		threshold int64
		want      int64
	}{
		{"remainder at threshold rounds up", 15, 5, 2},
		{"remainder above threshold rounds up", 15, 4, 2},
		{"remainder below threshold rounds down", 15, 6, 1},
		{"exact packs", 30, 1, 3},
		{"sub-pack quantity ships one pack", 3, 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			li := &requisition.LineItem{
				RequestedQuantity: i64(tt.quantity),
				Orderable:         orderable(10, tt.threshold, false),
			}
			assert.Equal(t, tt.want, calc.PacksToShip(li, req))
		})
	}
}

func TestPacksToShip_Boundaries(t *testing.T) {
	calc := newCalculator()
	req := monthly(catalogTemplate(catalog.RequestedQuantity, catalog.PacksToShip))
	req.Emergency = true

	t.Run("zero net content", func(t *testing.T) {
		li := &requisition.LineItem{RequestedQuantity: i64(15), Orderable: orderable(0, 1, false)}
		assert.Equal(t, int64(0), calc.PacksToShip(li, req))
	})

	t.Run("zero quantity", func(t *testing.T) {
		li := &requisition.LineItem{RequestedQuantity: i64(0), Orderable: orderable(10, 1, false)}
		assert.Equal(t, int64(0), calc.PacksToShip(li, req))
	})

	t.Run("round to zero with sub-threshold remainder", func(t *testing.T) {
		li := &requisition.LineItem{RequestedQuantity: i64(3), Orderable: orderable(10, 5, true)}
		assert.Equal(t, int64(0), calc.PacksToShip(li, req))
	})

	t.Run("round to zero keeps full packs", func(t *testing.T) {
		li := &requisition.LineItem{RequestedQuantity: i64(13), Orderable: orderable(10, 5, true)}
		assert.Equal(t, int64(1), calc.PacksToShip(li, req))
	})
}

func TestPacksToShip_QuantitySelection(t *testing.T) {
	calc := newCalculator()
	tpl := catalogTemplate(catalog.StockOnHand, catalog.MaximumStockQuantity, catalog.CalculatedOrderQuantity,
		catalog.RequestedQuantity, catalog.ApprovedQuantity, catalog.PacksToShip)
	newItem := func() *requisition.LineItem {
		return &requisition.LineItem{
			StockOnHand:          i64(5),
			MaximumStockQuantity: i64(12), // COQ 7
			RequestedQuantity:    i64(3),
			ApprovedQuantity:     i64(9),
			Orderable:            orderable(1, 1, false),
		}
	}

	t.Run("emergency uses requested", func(t *testing.T) {
		req := monthly(tpl)
		req.Emergency = true
		req.Status = requisition.StatusApproved
		assert.Equal(t, int64(3), calc.PacksToShip(newItem(), req))
	})

	t.Run("after authorize uses approved", func(t *testing.T) {
		req := monthly(tpl)
		req.Status = requisition.StatusAuthorized
		assert.Equal(t, int64(9), calc.PacksToShip(newItem(), req))
	})

	t.Run("non-full-supply uses requested", func(t *testing.T) {
		li := newItem()
		li.NonFullSupply = true
		configure(t, tpl, catalog.RequestedQuantity, hidden)
		defer configure(t, tpl, catalog.RequestedQuantity, func(c *template.Column) { c.IsDisplayed = true })
		assert.Equal(t, int64(3), calc.PacksToShip(li, monthly(tpl)))
	})

	t.Run("displayed requested quantity", func(t *testing.T) {
		assert.Equal(t, int64(3), calc.PacksToShip(newItem(), monthly(tpl)))
	})

	t.Run("hidden requested quantity uses calculated order quantity", func(t *testing.T) {
		configure(t, tpl, catalog.RequestedQuantity, hidden)
		defer configure(t, tpl, catalog.RequestedQuantity, func(c *template.Column) { c.IsDisplayed = true })
		assert.Equal(t, int64(7), calc.PacksToShip(newItem(), monthly(tpl)))
	})
}

// =============================================================================
// TOTAL COST
// =============================================================================

func TestTotalCost(t *testing.T) {
	calc := newCalculator()
	req := monthly(catalogTemplate(catalog.RequestedQuantity, catalog.PacksToShip, catalog.TotalCost))
	req.Emergency = true

	programPrice := decimal.RequireFromString("2.50")
	ownPrice := decimal.RequireFromString("4")

	t.Run("program price", func(t *testing.T) {
		o := orderable(10, 4, false)
		o.Programs = []requisition.ProgramOrderable{
			{ProgramID: "other", PricePerPack: &ownPrice},
			{ProgramID: "prog-1", PricePerPack: &programPrice},
		}
		li := &requisition.LineItem{RequestedQuantity: i64(15), Orderable: o, PricePerPack: &ownPrice}

		// 2 packs * 10 * 2.50
		first := calc.TotalCost(li, req)
		assert.True(t, decimal.NewFromInt(50).Equal(first), "got %s", first)

		second := calc.TotalCost(li, req)
		assert.True(t, first.Equal(second), "total cost is idempotent")
	})

	t.Run("falls back to line item price", func(t *testing.T) {
		li := &requisition.LineItem{RequestedQuantity: i64(15), Orderable: orderable(10, 4, false), PricePerPack: &ownPrice}
		assert.True(t, decimal.NewFromInt(80).Equal(calc.TotalCost(li, req)))
	})

	t.Run("no price", func(t *testing.T) {
		li := &requisition.LineItem{RequestedQuantity: i64(15), Orderable: orderable(10, 4, false)}
		assert.True(t, calc.TotalCost(li, req).IsZero())
	})
}
