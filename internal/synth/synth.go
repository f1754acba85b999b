// Package synth fabricates OHLCV candle sequences for catalog instruments.
//
// Each call starts a fresh price universe from an asset-class base price and
// walks forward with Gaussian noise, a slow sine trend, time-of-day volatility
// shaping for intraday timeframes, rare shocks and partial momentum.
// Nothing is persisted between calls.
package synth

import (
	"math"
	"time"

	"tradesim-engine/internal/catalog"
	"tradesim-engine/internal/markethours"
	"tradesim-engine/internal/model"
)

const (
	trendCycle       = 40   // candles per trend oscillation
	trendScale       = 0.05 // max trend bias as a fraction of volatility
	cryptoTrendBoost = 2.0

	noiseStdFrac = 0.3 // Gaussian σ as a fraction of shaped volatility
	spikeProb    = 0.05
	spikeMin     = 2.0
	spikeMax     = 3.0
	momentumFrac = 0.3

	wickMin       = 0.05
	wickMax       = 0.15
	bigWickProb   = 0.1
	bigWickMin    = 2.0
	bigWickMax    = 4.0
	flatWickRatio = 0.001 // wick as a fraction of price when open == close

	minVolume = 500_000
	maxVolume = 2_000_000

	priceFloor = 0.01
)

// basePriceRange is the uniform range the opening price is drawn from.
var basePriceRange = map[model.AssetClass][2]float64{
	model.ClassStock:  {12, 420},
	model.ClassCrypto: {400, 32000},
	model.ClassForex:  {0.5, 2.2},
	model.ClassIndex:  {800, 5200},
}

// Synthesizer generates candles. It holds no per-call state and is safe for
// concurrent use as long as its Source is.
type Synthesizer struct {
	cat  *catalog.Catalog
	sess *markethours.Session
	rng  Source
}

// New creates a Synthesizer. Nil arguments fall back to the built-in catalog,
// a system-clock session and the global random source.
func New(cat *catalog.Catalog, sess *markethours.Session, rng Source) *Synthesizer {
	if cat == nil {
		cat = catalog.Default()
	}
	if sess == nil {
		sess = markethours.New(nil, nil)
	}
	if rng == nil {
		rng = globalSource{}
	}
	return &Synthesizer{cat: cat, sess: sess, rng: rng}
}

// Generate returns exactly count candles for symbol, oldest first, the last
// one starting one interval before now. Unknown symbols use stock/medium
// defaults. count < 1 yields an empty slice.
func (s *Synthesizer) Generate(symbol string, tf model.Timeframe, count int) []model.Candle {
	return s.GenerateAt(s.cat.Lookup(symbol), tf, count, s.sess.Now())
}

// GenerateAt is Generate for a resolved instrument and an explicit now.
func (s *Synthesizer) GenerateAt(in model.Instrument, tf model.Timeframe, count int, now time.Time) []model.Candle {
	if count < 1 {
		return []model.Candle{}
	}
	interval := tf.Interval()
	price := s.basePrice(in.Class)

	candles := make([]model.Candle, 0, count)
	for i := count; i > 0; i-- {
		ts := now.Add(-interval * time.Duration(i))
		c, next := s.step(in, tf, price, ts, i, i == count)
		candles = append(candles, c)
		price = next
	}
	return candles
}

// Continue synthesizes the candle after prev, one interval later. n is the
// running position of the new candle and drives the trend cycle.
func (s *Synthesizer) Continue(symbol string, tf model.Timeframe, prev model.Candle, n int) model.Candle {
	in := s.cat.Lookup(symbol)
	ts := prev.TS().Add(tf.Interval())
	c, _ := s.step(in, tf, prev.Close, ts, n, false)
	return c
}

// step produces one candle opening at price. It returns the rounded candle
// and the unrounded close that seeds the next step.
func (s *Synthesizer) step(in model.Instrument, tf model.Timeframe, price float64, ts time.Time, idx int, first bool) (model.Candle, float64) {
	bias := trendBias(idx, in.Class)

	tod := 1.0
	if tf.Intraday() {
		tod = s.sess.TimeOfDayMultiplier(ts)
	}

	vol := price * in.Volatility.Fraction() * tod

	change := s.rng.NormFloat64() * vol * noiseStdFrac
	if s.rng.Float64() < spikeProb {
		change *= uniform(s.rng, spikeMin, spikeMax)
	}
	total := change + vol*bias
	if !first {
		total += total * momentumFrac * s.rng.Float64()
	}

	openPx := price
	closePx := math.Max(priceFloor, price+total)

	ratio := uniform(s.rng, wickMin, wickMax)
	if s.rng.Float64() < bigWickProb {
		ratio *= uniform(s.rng, bigWickMin, bigWickMax)
	}
	wick := price * flatWickRatio
	if body := math.Abs(closePx - openPx); body > 0 {
		wick = body * ratio
	}
	high := math.Max(openPx, closePx) + wick
	low := math.Max(priceFloor, math.Min(openPx, closePx)-wick)

	volume := int64(float64(minVolume+s.rng.Intn(maxVolume-minVolume+1)) * (1 + tod))

	d := in.Class.Decimals()
	return model.Candle{
		Time:   ts.UnixMilli(),
		Open:   model.Round(openPx, d),
		High:   model.Round(high, d),
		Low:    model.Round(low, d),
		Close:  model.Round(closePx, d),
		Volume: volume,
	}, closePx
}

func (s *Synthesizer) basePrice(class model.AssetClass) float64 {
	r, ok := basePriceRange[class]
	if !ok {
		r = basePriceRange[model.ClassStock]
	}
	return uniform(s.rng, r[0], r[1])
}

// trendBias is a sine over a 40-candle cycle scaled to ±5% (±10% for crypto).
func trendBias(idx int, class model.AssetClass) float64 {
	pos := float64(idx%trendCycle) / trendCycle
	bias := math.Sin(pos*2*math.Pi) * trendScale
	if class == model.ClassCrypto {
		bias *= cryptoTrendBoost
	}
	return bias
}
