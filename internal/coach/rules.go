package coach

import (
	"fmt"

	"tradesim-engine/internal/model"
)

// Inputs are the derived market facts the rules are evaluated against.
type Inputs struct {
	Side      model.Side
	RSI       float64
	MA9       float64
	MA21      float64
	HasMA     bool // both MA9 and MA21 available
	Price     float64
	Stretched float64 // position in the recent range, 0 = low, 1 = high
}

// Verdict is the outcome of the first matching rule.
type Verdict struct {
	Action    model.Action
	Tag       model.Tag
	Reason    string
	ScoreBias int
	Tip       string // rule advisory, empty for neutral
}

type rule struct {
	tag   model.Tag
	match func(in Inputs) bool
	build func(in Inputs) Verdict
}

func bySide(side model.Side, buy, sell model.Action) model.Action {
	if side == model.SideBuy {
		return buy
	}
	return sell
}

func biasBySide(side model.Side, buy, sell int) int {
	if side == model.SideBuy {
		return buy
	}
	return sell
}

// rules are evaluated in order; the first match wins. The order is part of
// the contract: overbought/oversold take precedence over trend rules.
var rules = []rule{
	{
		tag:   model.TagOverbought,
		match: func(in Inputs) bool { return in.RSI >= 75 },
		build: func(in Inputs) Verdict {
			return Verdict{
				Action:    bySide(in.Side, model.ActionDontBuy, model.ActionConsiderSell),
				Tag:       model.TagOverbought,
				Reason:    fmt.Sprintf("RSI is high (%.0f). Buying now often means you're late; wait for a pullback or cleaner entry.", in.RSI),
				ScoreBias: biasBySide(in.Side, -2, 2),
				Tip:       "📈 Overbought: Most beginners buy here and lose. Wait for a dip.",
			}
		},
	},
	{
		tag:   model.TagOversold,
		match: func(in Inputs) bool { return in.RSI <= 25 },
		build: func(in Inputs) Verdict {
			return Verdict{
				Action:    bySide(in.Side, model.ActionCautiousBuy, model.ActionDontSell),
				Tag:       model.TagOversold,
				Reason:    fmt.Sprintf("RSI is low (%.0f). Could bounce, but use small size + a stop-loss.", in.RSI),
				ScoreBias: biasBySide(in.Side, 1, -1),
				Tip:       "📉 Oversold: Could bounce, but set a STOP LOSS below recent low!",
			}
		},
	},
	{
		tag: model.TagUptrend,
		match: func(in Inputs) bool {
			return in.HasMA && in.MA9 > in.MA21*1.02 && in.Price >= in.MA9*1.005 && in.Stretched > 0.60
		},
		build: func(in Inputs) Verdict {
			return Verdict{
				Action:    bySide(in.Side, model.ActionBuyTrend, model.ActionHold),
				Tag:       model.TagUptrend,
				Reason:    "Trend looks up (MA9 > MA21). Price is above MA9 — better odds than random entries. Still size small.",
				ScoreBias: biasBySide(in.Side, 3, 0),
				Tip:       "✅ Uptrend confirmed. Use 1-2% position size. Set stop below MA9.",
			}
		},
	},
	{
		tag: model.TagDowntrend,
		match: func(in Inputs) bool {
			return in.HasMA && in.MA9 < in.MA21*0.98 && in.Price < in.MA9*0.995
		},
		build: func(in Inputs) Verdict {
			return Verdict{
				Action:    bySide(in.Side, model.ActionDontBuy, model.ActionConsiderSell),
				Tag:       model.TagDowntrend,
				Reason:    "Trend looks down (MA9 < MA21). Better to wait — most beginners lose trying to catch falling moves.",
				ScoreBias: biasBySide(in.Side, -2, 1),
				Tip:       "⚠️ Downtrend: Don't try to catch a falling knife!",
			}
		},
	},
	{
		tag:   model.TagNearResistance,
		match: func(in Inputs) bool { return in.Stretched > 0.92 },
		build: func(in Inputs) Verdict {
			return Verdict{
				Action:    model.ActionWait,
				Tag:       model.TagNearResistance,
				Reason:    "Price is near recent highs. If it fails here, it can drop fast. Wait for breakout confirmation (and then a retest).",
				ScoreBias: -1,
				Tip:       "🚧 Near resistance: Wait for clear breakout + retest.",
			}
		},
	},
}

// Decide runs the rule cascade and returns the first matching verdict,
// or the neutral HOLD verdict when nothing matches.
func Decide(in Inputs) Verdict {
	for _, r := range rules {
		if r.match(in) {
			return r.build(in)
		}
	}
	return Verdict{
		Action: model.ActionHold,
		Tag:    model.TagNeutral,
		Reason: "No strong signal. Focus on risk management and patience.",
	}
}

// RuleOrder lists rule tags in evaluation order.
func RuleOrder() []model.Tag {
	tags := make([]model.Tag, 0, len(rules)+1)
	for _, r := range rules {
		tags = append(tags, r.tag)
	}
	return append(tags, model.TagNeutral)
}
