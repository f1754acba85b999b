package model

import (
	"encoding/json"
	"time"
)

// Candle is one synthesized OHLCV bar.
// Time is the bucket start in Unix milliseconds (UTC).
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// TS returns the candle start as a time.Time.
func (c *Candle) TS() time.Time {
	return time.UnixMilli(c.Time).UTC()
}

// Valid reports whether the candle satisfies the OHLC ordering invariants.
func (c *Candle) Valid() bool {
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return c.Low > 0 && c.Low <= lo && c.High >= hi && c.Volume >= 0
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// StreamCandle is a live candle published on the candle stream.
// Forming marks an in-progress rollup candle that later updates replace.
type StreamCandle struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Seq       int64     `json:"seq"`
	Forming   bool      `json:"forming,omitempty"`
	Candle
}

// Channel returns the PubSub channel: "pub:candle:{tf}:{symbol}".
func (c *StreamCandle) Channel() string {
	return CandleChannel(c.Timeframe, c.Symbol)
}

// JSON returns the JSON-encoded stream candle.
func (c *StreamCandle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// CandleChannel builds the PubSub channel name for a symbol/timeframe pair.
func CandleChannel(tf Timeframe, symbol string) string {
	return "pub:candle:" + string(tf) + ":" + symbol
}
