// Package coach issues rule-based trade coaching from recent synthetic candles.
//
// The recommendation (action, tag, score bias) never depends on the product
// tier; free mode only suppresses the advisory tips.
package coach

import (
	"math"
	"time"

	"tradesim-engine/internal/catalog"
	"tradesim-engine/internal/indicator"
	"tradesim-engine/internal/markethours"
	"tradesim-engine/internal/model"
	"tradesim-engine/internal/synth"
)

const (
	historyCandles = 30
	minCandles     = 15
	rangeLookback  = 20
	momentumMove   = 0.05
	fastMA         = 9
	slowMA         = 21
)

const (
	tipOpening   = "🌅 Market just opened - High volatility! Use smaller position sizes."
	tipClosing   = "🌆 Market closing soon - Volatility spikes. Consider waiting for next session."
	tipMomoUp    = "🚀 Strong upward momentum - but don't chase! Wait for pullback."
	tipMomoDown  = "💥 Strong downward move - let it settle before entering."
	tipSizeSmall = "💰 Position size: Max 2-3% of portfolio on this setup."
	tipSizeStd   = "💰 Position size: Max 1-2% of portfolio. Stay disciplined!"
)

// Engine produces CoachingSignals.
type Engine struct {
	cat   *catalog.Catalog
	sess  *markethours.Session
	synth *synth.Synthesizer
}

// New creates a coaching Engine.
func New(cat *catalog.Catalog, sess *markethours.Session, syn *synth.Synthesizer) *Engine {
	return &Engine{cat: cat, sess: sess, synth: syn}
}

// Coach synthesizes 30 daily candles for symbol and evaluates them.
func (e *Engine) Coach(symbol string, side model.Side, freeMode bool) model.CoachingSignal {
	in := e.cat.Lookup(symbol)
	now := e.sess.Now()
	candles := e.synth.GenerateAt(in, model.TF1d, historyCandles, now)
	return e.Evaluate(in, candles, side, freeMode, now)
}

// Evaluate runs the coaching rules over candles (oldest first) at time now.
func (e *Engine) Evaluate(in model.Instrument, candles []model.Candle, side model.Side, freeMode bool, now time.Time) model.CoachingSignal {
	isOpen, status := e.sess.IsOpenAt(in.Class, now)

	if len(candles) < minCandles {
		return model.CoachingSignal{
			Action:       model.ActionHold,
			Tag:          model.TagInsufficientData,
			Reason:       "Not enough historical data to analyze. Wait for more price history.",
			Tips:         []string{},
			MarketOpen:   isOpen,
			MarketStatus: status,
		}
	}

	closes := indicator.Closes(candles)
	rsi := indicator.RSI(closes, indicator.DefaultRSIPeriod)
	ma9, ok9 := indicator.SMA(closes, fastMA)
	ma21, ok21 := indicator.SMA(closes, slowMA)

	price := closes[len(closes)-1]
	prev := closes[len(closes)-2]

	v := Decide(Inputs{
		Side:      side,
		RSI:       rsi,
		MA9:       ma9,
		MA21:      ma21,
		HasMA:     ok9 && ok21,
		Price:     price,
		Stretched: stretched(closes),
	})

	tips := []string{}
	if !freeMode {
		if in.Class.HasSessionHours() {
			switch {
			case !isOpen:
				tips = append(tips, "⏰ "+status)
			case e.sess.PhaseAt(now) == markethours.PhaseOpening:
				tips = append(tips, tipOpening)
			case e.sess.PhaseAt(now) == markethours.PhaseClosing:
				tips = append(tips, tipClosing)
			}
		}
		if v.Tip != "" {
			tips = append(tips, v.Tip)
		}
		if prev != 0 && math.Abs(price-prev)/prev > momentumMove {
			if price > prev {
				tips = append(tips, tipMomoUp)
			} else {
				tips = append(tips, tipMomoDown)
			}
		}
		if side == model.SideBuy {
			if rsi < 40 {
				tips = append(tips, tipSizeSmall)
			} else {
				tips = append(tips, tipSizeStd)
			}
		}
	}

	sig := model.CoachingSignal{
		Action:       v.Action,
		Tag:          v.Tag,
		Reason:       v.Reason,
		ScoreBias:    v.ScoreBias,
		RSI:          model.Ptr(model.Round(rsi, 1)),
		CurrentPrice: model.Round(price, 2),
		Tips:         tips,
		MarketOpen:   isOpen,
		MarketStatus: status,
	}
	if ok9 {
		sig.MA9 = model.Ptr(model.Round(ma9, 2))
	}
	if ok21 {
		sig.MA21 = model.Ptr(model.Round(ma21, 2))
	}
	return sig
}

// stretched is the last close's position within the min–max range of the
// trailing 20 closes. A flat range uses a width of 1.
func stretched(closes []float64) float64 {
	n := len(closes)
	lookback := rangeLookback
	if n < lookback {
		lookback = n
	}
	recent := closes[n-lookback:]
	hi, lo := recent[0], recent[0]
	for _, c := range recent[1:] {
		hi = math.Max(hi, c)
		lo = math.Min(lo, c)
	}
	width := hi - lo
	if width <= 0 {
		width = 1
	}
	return (closes[n-1] - lo) / width
}
