package model

import "time"

// Timeframe is a candle interval label such as "1m" or "1d".
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
)

var intervals = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
	TF1w:  7 * 24 * time.Hour,
}

// Timeframes lists the supported timeframes in ascending order.
var Timeframes = []Timeframe{TF1m, TF5m, TF15m, TF1h, TF4h, TF1d, TF1w}

// ParseTimeframe returns the timeframe for s, defaulting to 1d.
func ParseTimeframe(s string) Timeframe {
	tf := Timeframe(s)
	if _, ok := intervals[tf]; ok {
		return tf
	}
	return TF1d
}

// Interval returns the candle spacing. Unknown values use one day.
func (tf Timeframe) Interval() time.Duration {
	if d, ok := intervals[tf]; ok {
		return d
	}
	return intervals[TF1d]
}

// Intraday reports whether candles are shaped by time-of-day volatility.
// 4h is deliberately excluded.
func (tf Timeframe) Intraday() bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF1h:
		return true
	}
	return false
}
