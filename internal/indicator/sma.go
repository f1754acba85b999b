package indicator

// SMA returns the arithmetic mean of the trailing period closes.
// ok is false when fewer than period closes are available.
func SMA(closes []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), true
}
