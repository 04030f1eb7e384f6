/*
registry.go - Column definition registration and lookup

PURPOSE:
  Holds the column definitions known to the process. The shipped catalog
  (columns.toml) is decoded and registered on package init, so every
  caller sees the same definitions without explicit setup.

HOW IT WORKS:
  1. columns.toml is embedded into the binary
  2. init() decodes it with BurntSushi/toml and registers each definition
  3. Templates and the factory resolve column names through Lookup

USAGE:
  def := catalog.Lookup(catalog.StockOnHand)       // nil when unknown
  def := catalog.MustLookup(catalog.StockOnHand)   // panics when unknown

  if catalog.CanAssignTag(name) { ... }            // panics when unknown

PANICS:
  Must* helpers and CanAssignTag panic on an unknown column name. An
  unknown name at those call sites is a caller bug, not a data state.

SEE ALSO:
  - types.go: Definition and Name
  - factory/template.go: Resolves persisted column names
*/
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed columns.toml
var columnsTOML []byte

// =============================================================================
// REGISTRY
// =============================================================================

var (
	registry   = make(map[Name]*Definition)
	registered []Name
	registryMu sync.RWMutex
)

func init() {
	defs, err := Parse(columnsTOML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded columns.toml: %v", err))
	}
	for _, d := range defs {
		Register(d)
	}
}

type catalogFile struct {
	Columns []*Definition `toml:"column"`
}

// Parse decodes a TOML column catalog. Every entry needs a name and at
// least one valid source.
func Parse(data []byte) ([]*Definition, error) {
	var f catalogFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	seen := make(map[Name]bool, len(f.Columns))
	for i, d := range f.Columns {
		if d.Name == "" {
			return nil, fmt.Errorf("catalog: column %d has no name", i)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("catalog: duplicate column %q", d.Name)
		}
		seen[d.Name] = true
		if len(d.Sources) == 0 {
			return nil, fmt.Errorf("catalog: column %q has no sources", d.Name)
		}
		for _, s := range d.Sources {
			if !s.Valid() {
				return nil, fmt.Errorf("catalog: column %q has unknown source %q", d.Name, s)
			}
		}
	}
	return f.Columns, nil
}

// Register adds a definition to the registry, replacing any definition
// with the same name.
func Register(d *Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[d.Name]; !ok {
		registered = append(registered, d.Name)
	}
	registry[d.Name] = d
}

// Lookup finds a registered definition by name.
// Returns nil if not found.
func Lookup(name Name) *Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// MustLookup finds a registered definition or panics.
func MustLookup(name Name) *Definition {
	d := Lookup(name)
	if d == nil {
		panic(fmt.Sprintf("catalog: column not registered: %s", name))
	}
	return d
}

// All returns the registered definitions in registration order.
func All() []*Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]*Definition, 0, len(registered))
	for _, name := range registered {
		result = append(result, registry[name])
	}
	return result
}

// =============================================================================
// CAPABILITY QUERIES
// =============================================================================

// CanAssignTag reports whether the column accepts a stock-card tag.
func CanAssignTag(name Name) bool {
	return MustLookup(name).SupportsTag
}

// IsStockBased reports whether the column is re-sourced to stock cards in
// stock-based mode. Unknown names are not stock based.
func IsStockBased(name Name) bool {
	d := Lookup(name)
	return d != nil && d.StockBased
}

// IsStockDisabled reports whether the column is hidden in stock-based mode.
// Unknown names are never disabled.
func IsStockDisabled(name Name) bool {
	d := Lookup(name)
	return d != nil && d.StockDisabled
}
