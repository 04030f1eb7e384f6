/*
Package catalog provides the static registry of requisition template columns.

PURPOSE:
  Every column a program template can contain is declared once here: its
  semantic type, the data sources an administrator may pick from, the
  options it offers and the other columns its formula reads. Templates
  reference these definitions by name and never mutate them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Name: Typed column identity, one constant per known column
  - Source: Where a column value comes from (user, formula, stock cards, reference data)
  - Definition: The immutable catalog entry for one column

COLUMN FLAGS:
  SupportsTag:       Column can carry a stock-card tag in stock-based mode
  CanChangeOrder:    Column may be dragged; false pins it in place
  IsDisplayRequired: Column must always be displayed
  StockBased:        Re-sourced to STOCK_CARDS when stock-based mode is on
  StockDisabled:     Hidden and ignored while stock-based mode is on

SEE ALSO:
  - registry.go: Loading and lookup
  - columns.toml: The shipped column definitions
  - template/template.go: Per-program column configuration
*/
package catalog

// =============================================================================
// COLUMN IDENTITY
// =============================================================================

// Name identifies a column. Formulas and validation rules switch on these
// constants rather than on free-form strings.
type Name string

const (
	Skipped                      Name = "skipped"
	ProductCode                  Name = "productCode"
	ProductName                  Name = "productName"
	DispensingUnit               Name = "dispensingUnit"
	BeginningBalance             Name = "beginningBalance"
	TotalReceivedQuantity        Name = "totalReceivedQuantity"
	TotalConsumedQuantity        Name = "totalConsumedQuantity"
	TotalLossesAndAdjustments    Name = "totalLossesAndAdjustments"
	Total                        Name = "total"
	StockOnHand                  Name = "stockOnHand"
	TotalStockoutDays            Name = "totalStockoutDays"
	NumberOfNewPatientsAdded     Name = "numberOfNewPatientsAdded"
	AdditionalQuantityRequired   Name = "additionalQuantityRequired"
	AdjustedConsumption          Name = "adjustedConsumption"
	AverageConsumption           Name = "averageConsumption"
	IdealStockAmount             Name = "idealStockAmount"
	MaximumStockQuantity         Name = "maximumStockQuantity"
	CalculatedOrderQuantity      Name = "calculatedOrderQuantity"
	CalculatedOrderQuantityIsa   Name = "calculatedOrderQuantityIsa"
	RequestedQuantity            Name = "requestedQuantity"
	RequestedQuantityExplanation Name = "requestedQuantityExplanation"
	ApprovedQuantity             Name = "approvedQuantity"
	Remarks                      Name = "remarks"
	PacksToShip                  Name = "packsToShip"
	PricePerPack                 Name = "pricePerPack"
	TotalCost                    Name = "totalCost"
)

func (n Name) String() string { return string(n) }

// =============================================================================
// SOURCES AND TYPES
// =============================================================================

// Source is how a column's value is obtained.
type Source string

const (
	SourceUserInput     Source = "USER_INPUT"
	SourceCalculated    Source = "CALCULATED"
	SourceStockCards    Source = "STOCK_CARDS"
	SourceReferenceData Source = "REFERENCE_DATA"
)

// Valid reports whether s is one of the known source kinds.
func (s Source) Valid() bool {
	switch s {
	case SourceUserInput, SourceCalculated, SourceStockCards, SourceReferenceData:
		return true
	}
	return false
}

// SemanticType is the kind of value a column holds.
type SemanticType string

const (
	TypeNumeric  SemanticType = "numeric"
	TypeText     SemanticType = "text"
	TypeCurrency SemanticType = "currency"
)

// Option is a named variant of a column's behaviour (e.g. how the maximum
// stock quantity is derived).
type Option struct {
	Name  string `toml:"name" json:"optionName"`
	Label string `toml:"label" json:"optionLabel"`
}

// =============================================================================
// DEFINITION
// =============================================================================

// Definition is the immutable catalog entry for a column.
type Definition struct {
	Name              Name         `toml:"name"`
	Label             string       `toml:"label"`
	Description       string       `toml:"description"`
	Type              SemanticType `toml:"type"`
	Sources           []Source     `toml:"sources"`
	Options           []Option     `toml:"options"`
	SupportsTag       bool         `toml:"supportsTag"`
	CanChangeOrder    bool         `toml:"canChangeOrder"`
	IsDisplayRequired bool         `toml:"isDisplayRequired"`
	StockBased        bool         `toml:"stockBased"`
	StockDisabled     bool         `toml:"stockDisabled"`
	Dependencies      []Name       `toml:"dependencies"`
}

// AllowsSource reports whether src is one of the definition's sources.
func (d *Definition) AllowsSource(src Source) bool {
	for _, s := range d.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// FindOption returns the option with the given name, or nil.
func (d *Definition) FindOption(name string) *Option {
	for i := range d.Options {
		if d.Options[i].Name == name {
			return &d.Options[i]
		}
	}
	return nil
}

// DependsOn reports whether the definition's formula reads the named column.
func (d *Definition) DependsOn(name Name) bool {
	for _, dep := range d.Dependencies {
		if dep == name {
			return true
		}
	}
	return false
}
