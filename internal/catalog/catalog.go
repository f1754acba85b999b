// Package catalog is the read-only registry of fictitious training instruments.
//
// The catalog is built once at package init and never mutated, so it can be
// shared freely between goroutines.
package catalog

import (
	"strings"

	"tradesim-engine/internal/model"
)

// maxQueryResults caps search results when a text query is given.
const maxQueryResults = 10

// Catalog maps symbols to instruments.
type Catalog struct {
	list     []model.Instrument
	bySymbol map[string]int
}

var std = New(builtin)

// Default returns the built-in catalog.
func Default() *Catalog { return std }

// New builds a catalog from instruments in display order.
// Later duplicates of a symbol are ignored.
func New(list []model.Instrument) *Catalog {
	c := &Catalog{
		list:     make([]model.Instrument, 0, len(list)),
		bySymbol: make(map[string]int, len(list)),
	}
	for _, in := range list {
		key := strings.ToUpper(in.Symbol)
		if _, dup := c.bySymbol[key]; dup {
			continue
		}
		c.bySymbol[key] = len(c.list)
		c.list = append(c.list, in)
	}
	return c
}

// Resolve finds an instrument by symbol, case-insensitively.
func (c *Catalog) Resolve(symbol string) (model.Instrument, bool) {
	i, ok := c.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return model.Instrument{}, false
	}
	return c.list[i], true
}

// Lookup is Resolve with a stock/medium fallback for unknown symbols.
func (c *Catalog) Lookup(symbol string) model.Instrument {
	if in, ok := c.Resolve(symbol); ok {
		return in
	}
	return model.DefaultInstrument(symbol)
}

// Len returns the number of instruments.
func (c *Catalog) Len() int { return len(c.list) }

// All returns a copy of every instrument in catalog order.
func (c *Catalog) All() []model.Instrument {
	out := make([]model.Instrument, len(c.list))
	copy(out, c.list)
	return out
}

// Search matches query against symbol and display name (case-insensitive
// substring). assetClass "all" or "" searches everything; an unknown class
// yields no results. A non-empty query returns at most 10 matches.
func (c *Catalog) Search(query, assetClass string) []model.Instrument {
	var class model.AssetClass
	filter := assetClass != "" && !strings.EqualFold(assetClass, "all")
	if filter {
		var ok bool
		if class, ok = model.ParseAssetClass(assetClass); !ok {
			return []model.Instrument{}
		}
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Instrument, 0)
	for _, in := range c.list {
		if filter && in.Class != class {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(in.Symbol), q) &&
			!strings.Contains(strings.ToLower(in.Name), q) {
			continue
		}
		out = append(out, in)
		if q != "" && len(out) == maxQueryResults {
			break
		}
	}
	return out
}
