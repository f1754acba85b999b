package indicator

// NeutralRSI is returned when history is too short.
const NeutralRSI = 50.0

// RSI computes the Relative Strength Index from a simple average of gains and
// losses over the trailing period deltas. This is not Wilder's recursive
// smoothing; coaching thresholds are tuned against this variant.
//
// Returns 50 when fewer than period+1 closes exist and 100 when the trailing
// losses sum to zero.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return NeutralRSI
	}

	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta >= 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}

	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
