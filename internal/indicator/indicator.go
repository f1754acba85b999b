// Package indicator computes technical indicators over closing-price sequences.
//
// Functions are pure: they never mutate their input and are safe for
// concurrent use.
package indicator

import "tradesim-engine/internal/model"

// Closes extracts closing prices from candles, oldest first.
func Closes(candles []model.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
