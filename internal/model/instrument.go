package model

import "strings"

// AssetClass groups instruments by market type.
type AssetClass string

const (
	ClassStock  AssetClass = "stock"
	ClassCrypto AssetClass = "crypto"
	ClassForex  AssetClass = "forex"
	ClassIndex  AssetClass = "index"
)

// ParseAssetClass normalizes a class name. Plural catalog keys
// ("stocks", "indices") are accepted. ok is false for unknown names.
func ParseAssetClass(s string) (AssetClass, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock", "stocks":
		return ClassStock, true
	case "crypto":
		return ClassCrypto, true
	case "forex":
		return ClassForex, true
	case "index", "indices":
		return ClassIndex, true
	}
	return "", false
}

// HasSessionHours reports whether the class trades in a fixed daily window.
func (a AssetClass) HasSessionHours() bool {
	return a == ClassStock || a == ClassIndex
}

// Decimals returns the price precision used for the class.
func (a AssetClass) Decimals() int {
	if a == ClassForex {
		return 4
	}
	return 2
}

// Volatility is the instrument's volatility tier.
type Volatility string

const (
	VolLow      Volatility = "low"
	VolMedium   Volatility = "medium"
	VolHigh     Volatility = "high"
	VolVeryHigh Volatility = "very-high"
)

// Fraction returns the base per-candle volatility as a fraction of price.
func (v Volatility) Fraction() float64 {
	switch v {
	case VolLow:
		return 0.008
	case VolHigh:
		return 0.025
	case VolVeryHigh:
		return 0.045
	default:
		return 0.015
	}
}

// Tier is the product access tier required to trade an instrument.
type Tier string

const (
	TierFree    Tier = "free"
	TierGold    Tier = "gold"
	TierPremium Tier = "premium"
)

// Instrument represents a fictitious tradeable instrument.
type Instrument struct {
	Symbol     string     `json:"symbol"`
	Name       string     `json:"name"`
	Sector     string     `json:"sector"`
	Class      AssetClass `json:"class"`
	Volatility Volatility `json:"volatility"`
	Tier       Tier       `json:"tier"`
}

// DefaultInstrument is used for symbols missing from the catalog.
func DefaultInstrument(symbol string) Instrument {
	return Instrument{
		Symbol:     strings.ToUpper(symbol),
		Class:      ClassStock,
		Volatility: VolMedium,
	}
}
