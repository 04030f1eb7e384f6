package requisition

// Config holds the constants the calculation and validation engines use.
type Config struct {
	// DaysPerMonth converts a period's month count into days.
	DaysPerMonth float64 `envconfig:"DAYS_PER_MONTH" default:"30"`

	// MaximumStockOption is the maximum-stock-quantity option that enables
	// the periods-of-stock formula.
	MaximumStockOption string `envconfig:"MAXIMUM_STOCK_OPTION" default:"default"`

	// MaxCascadeDepth bounds how far an edit propagates through dependents.
	MaxCascadeDepth int `envconfig:"MAX_CASCADE_DEPTH" default:"8"`
}

// DefaultConfig returns the standard engine constants.
func DefaultConfig() Config {
	return Config{
		DaysPerMonth:       30,
		MaximumStockOption: "default",
		MaxCascadeDepth:    8,
	}
}
