package synth

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim-engine/internal/catalog"
	"tradesim-engine/internal/markethours"
	"tradesim-engine/internal/model"
)

var est = time.FixedZone("EST", -5*3600)

// fixedSource returns constant draws so single steps can be checked by hand.
type fixedSource struct {
	f, norm float64
	n       int
}

func (s fixedSource) Float64() float64     { return s.f }
func (s fixedSource) NormFloat64() float64 { return s.norm }
func (s fixedSource) Intn(int) int         { return s.n }

func newSynth(src Source) *Synthesizer {
	now := time.Date(2026, time.March, 9, 12, 0, 0, 0, est)
	return New(catalog.Default(), markethours.New(est, markethours.FixedClock{T: now}), src)
}

func checkInvariants(t *testing.T, candles []model.Candle, tf model.Timeframe) {
	t.Helper()
	step := tf.Interval().Milliseconds()
	for i, c := range candles {
		if !c.Valid() {
			t.Fatalf("candle %d violates OHLC invariants: %+v", i, c)
		}
		if i > 0 && c.Time-candles[i-1].Time != step {
			t.Fatalf("candle %d spacing %d, want %d", i, c.Time-candles[i-1].Time, step)
		}
	}
}

func TestGenerate_CountAndInvariants(t *testing.T) {
	s := newSynth(NewSource(42))
	symbols := []string{"SMBY", "BTN", "SOLR", "USXEUR", "TOP500", "UNKNOWN"}

	for _, sym := range symbols {
		for _, tf := range model.Timeframes {
			for _, n := range []int{1, 2, 30, 300} {
				got := s.Generate(sym, tf, n)
				require.Len(t, got, n, "%s %s", sym, tf)
				checkInvariants(t, got, tf)
			}
		}
	}
}

func TestGenerate_LastCandleOneIntervalBeforeNow(t *testing.T) {
	now := time.Date(2026, time.March, 9, 12, 0, 0, 0, est)
	s := newSynth(NewSource(1))
	got := s.Generate("PRTC", model.TF5m, 10)
	assert.Equal(t, now.Add(-5*time.Minute).UnixMilli(), got[len(got)-1].Time)
	assert.Equal(t, now.Add(-50*time.Minute).UnixMilli(), got[0].Time)
}

func TestGenerate_ZeroCount(t *testing.T) {
	s := newSynth(NewSource(1))
	assert.Empty(t, s.Generate("BTN", model.TF1d, 0))
}

func TestGenerate_SeededIsReproducible(t *testing.T) {
	a := newSynth(NewSource(7)).Generate("ETHA", model.TF1h, 120)
	b := newSynth(NewSource(7)).Generate("ETHA", model.TF1h, 120)
	assert.Equal(t, a, b)

	c := newSynth(NewSource(8)).Generate("ETHA", model.TF1h, 120)
	assert.NotEqual(t, a, c)
}

func TestGenerate_PriceRangePerClass(t *testing.T) {
	s := newSynth(NewSource(3))
	for i := 0; i < 50; i++ {
		fx := s.Generate("USXEUR", model.TF1d, 1)[0]
		assert.GreaterOrEqual(t, fx.Open, 0.5)
		assert.LessOrEqual(t, fx.Open, 2.2)

		idx := s.Generate("TOP500", model.TF1d, 1)[0]
		assert.GreaterOrEqual(t, idx.Open, 800.0)
		assert.LessOrEqual(t, idx.Open, 5200.0)
	}
}

func TestGenerate_RoundingByClass(t *testing.T) {
	s := newSynth(NewSource(9))
	for _, c := range s.Generate("USXEUR", model.TF1d, 50) {
		assert.InDelta(t, c.Close, model.Round(c.Close, 4), 1e-12)
	}
	for _, c := range s.Generate("SMBY", model.TF1d, 50) {
		assert.InDelta(t, c.Close, model.Round(c.Close, 2), 1e-12)
	}
}

func TestStep_HandComputedDaily(t *testing.T) {
	// Zero noise, all uniforms at 0.5, minimum volume draw.
	s := newSynth(fixedSource{f: 0.5, norm: 0, n: 0})
	got := s.Generate("SMBY", model.TF1d, 1)
	require.Len(t, got, 1)
	c := got[0]

	// base = 12 + 408*0.5 = 216; bias = sin(2π/40)*0.05; vol = 216*0.015
	base := 216.0
	want := base + base*0.015*math.Sin(2*math.Pi/40)*0.05
	assert.Equal(t, base, c.Open)
	assert.Equal(t, model.Round(want, 2), c.Close)
	assert.Equal(t, int64(1_000_000), c.Volume, "daily volume uses tod=1.0")
	assert.True(t, c.Valid())
}

func TestStep_IntradayVolumeShaping(t *testing.T) {
	// 12:00 EST minus one hour lands in the 11:00 lull band (0.7).
	s := newSynth(fixedSource{f: 0.5, norm: 0, n: 0})
	c := s.Generate("SMBY", model.TF1h, 1)[0]
	assert.Equal(t, int64(850_000), c.Volume)
}

func TestStep_FlatBodyWick(t *testing.T) {
	// Forex at trend index 40 has zero bias, so open == close.
	s := newSynth(fixedSource{f: 0.5, norm: 0, n: 0})
	got := s.Generate("USXEUR", model.TF1d, 40)
	first := got[0]
	assert.Equal(t, first.Open, first.Close)
	assert.Greater(t, first.High, first.Close)
	assert.Less(t, first.Low, first.Open)
}

func TestContinue_FollowsPrevious(t *testing.T) {
	s := newSynth(NewSource(11))
	hist := s.Generate("BTN", model.TF1m, 5)
	prev := hist[len(hist)-1]
	for n := 1; n <= 100; n++ {
		next := s.Continue("BTN", model.TF1m, prev, n)
		require.True(t, next.Valid(), "%+v", next)
		require.Equal(t, prev.Time+time.Minute.Milliseconds(), next.Time)
		require.Equal(t, prev.Close, next.Open)
		prev = next
	}
}

func TestTrendBias(t *testing.T) {
	assert.InDelta(t, 0.05, trendBias(10, model.ClassStock), 1e-12)
	assert.InDelta(t, 0.10, trendBias(10, model.ClassCrypto), 1e-12)
	assert.InDelta(t, -0.05, trendBias(30, model.ClassForex), 1e-12)
	assert.InDelta(t, 0, trendBias(40, model.ClassIndex), 1e-12)
}
