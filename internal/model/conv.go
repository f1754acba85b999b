package model

import (
	"errors"
	"math"
)

// ErrInvalidLimit is returned when a candle count is out of range.
var ErrInvalidLimit = errors.New("limit must be between 1 and 1000")

// MaxCandles bounds a single candle request.
const MaxCandles = 1000

// ValidateLimit checks a requested candle count.
func ValidateLimit(n int) error {
	if n < 1 || n > MaxCandles {
		return ErrInvalidLimit
	}
	return nil
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Ptr returns a pointer to v.
func Ptr(v float64) *float64 {
	return &v
}
