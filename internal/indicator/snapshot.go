package indicator

import "tradesim-engine/internal/model"

// Snapshot holds indicator values derived from one closing-price sequence.
// A nil value means history was too short for that indicator.
type Snapshot struct {
	RSI *float64         `json:"rsi"`
	SMA map[int]*float64 `json:"sma"`
}

// DefaultRSIPeriod is the RSI lookback used by coaching.
const DefaultRSIPeriod = 14

// Compute derives RSI(rsiPeriod) and SMA for each of smaPeriods.
func Compute(closes []float64, rsiPeriod int, smaPeriods ...int) Snapshot {
	snap := Snapshot{SMA: make(map[int]*float64, len(smaPeriods))}
	if len(closes) >= rsiPeriod+1 {
		snap.RSI = model.Ptr(RSI(closes, rsiPeriod))
	}
	for _, p := range smaPeriods {
		if v, ok := SMA(closes, p); ok {
			snap.SMA[p] = model.Ptr(v)
		} else {
			snap.SMA[p] = nil
		}
	}
	return snap
}
