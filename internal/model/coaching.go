package model

import (
	"errors"
	"strings"
)

// Side is the trade direction the learner is considering.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ErrInvalidSide is returned for side values other than buy/sell.
var ErrInvalidSide = errors.New("side must be buy or sell")

// ParseSide validates a side value. Empty defaults to buy.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	}
	return "", ErrInvalidSide
}

// Action is the coaching recommendation shown to the learner.
type Action string

const (
	ActionDontBuy      Action = "DON'T BUY"
	ActionConsiderSell Action = "CONSIDER SELL"
	ActionCautiousBuy  Action = "CAUTIOUS BUY"
	ActionDontSell     Action = "DON'T SELL"
	ActionBuyTrend     Action = "BUY (trend)"
	ActionHold         Action = "HOLD"
	ActionWait         Action = "WAIT"
)

// Tag classifies which coaching rule fired.
type Tag string

const (
	TagOverbought       Tag = "overbought"
	TagOversold         Tag = "oversold"
	TagUptrend          Tag = "uptrend"
	TagDowntrend        Tag = "downtrend"
	TagNearResistance   Tag = "near-resistance"
	TagNeutral          Tag = "neutral"
	TagInsufficientData Tag = "insufficient-data"
)

// CoachingSignal is the coaching verdict for one symbol and side.
type CoachingSignal struct {
	Action       Action   `json:"action"`
	Tag          Tag      `json:"tag"`
	Reason       string   `json:"reason"`
	ScoreBias    int      `json:"score_bias"`
	RSI          *float64 `json:"rsi"`
	MA9          *float64 `json:"ma9"`
	MA21         *float64 `json:"ma21"`
	CurrentPrice float64  `json:"current_price"`
	Tips         []string `json:"coaching_tips"`
	MarketOpen   bool     `json:"market_open"`
	MarketStatus string   `json:"market_status"`
}

// MarketStatus reports whether an asset class is currently tradeable.
type MarketStatus struct {
	AssetClass string `json:"asset_class"`
	IsOpen     bool   `json:"is_open"`
	Message    string `json:"message"`
}

// Quote is the latest synthetic price with a bid/ask spread.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Timestamp int64   `json:"timestamp"`
}
