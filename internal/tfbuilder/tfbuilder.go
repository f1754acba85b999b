// Package tfbuilder provides an incremental timeframe resampler.
// It consumes finalized live candles of one base timeframe and maintains
// "forming" candles for each coarser timeframe, updated in O(1) per candle
// per timeframe. When a bucket closes (a candle arrives in a new bucket),
// the previous candle is finalized and emitted.
package tfbuilder

import (
	"log"

	"tradesim-engine/internal/model"
)

// tfState holds the forming candle state for one (symbol, timeframe) pair.
type tfState struct {
	bucket int64 // bucket start in Unix ms
	candle model.StreamCandle
}

// Builder resamples base candles into multiple timeframes.
// Not goroutine-safe: owned by a single producer.
type Builder struct {
	tfs []model.Timeframe

	// states[tfIdx][symbol]
	states []map[string]*tfState
	seqs   []map[string]int64

	// Metrics hooks
	OnTFCandle    func(c model.StreamCandle) // called on finalized candle (optional)
	OnStaleCandle func()                     // called when an out-of-order candle is rejected (optional)
}

// New creates a builder for tfs. Timeframes not coarser than base are
// dropped with a log line.
func New(base model.Timeframe, tfs []model.Timeframe) *Builder {
	keep := make([]model.Timeframe, 0, len(tfs))
	for _, tf := range tfs {
		if tf.Interval() <= base.Interval() {
			log.Printf("[tfbuilder] ignoring %s: not coarser than base %s", tf, base)
			continue
		}
		keep = append(keep, tf)
	}
	b := &Builder{
		tfs:    keep,
		states: make([]map[string]*tfState, len(keep)),
		seqs:   make([]map[string]int64, len(keep)),
	}
	for i := range keep {
		b.states[i] = make(map[string]*tfState, 16)
		b.seqs[i] = make(map[string]int64, 16)
	}
	return b
}

// TFs returns the enabled timeframes.
func (b *Builder) TFs() []model.Timeframe {
	return append([]model.Timeframe(nil), b.tfs...)
}

// Process folds c into every timeframe and returns the candles to publish:
// per timeframe, the finalized previous candle when a bucket closed,
// followed by a forming snapshot of the current bucket.
func (b *Builder) Process(c model.StreamCandle) []model.StreamCandle {
	out := make([]model.StreamCandle, 0, 2*len(b.tfs))

	for i, tf := range b.tfs {
		span := tf.Interval().Milliseconds()
		bucket := c.Time - c.Time%span

		st, exists := b.states[i][c.Symbol]

		if exists && bucket < st.bucket {
			if b.OnStaleCandle != nil {
				b.OnStaleCandle()
			}
			continue
		}

		if exists && bucket > st.bucket {
			// New bucket: finalize the forming candle
			st.candle.Forming = false
			out = append(out, st.candle)
			if b.OnTFCandle != nil {
				b.OnTFCandle(st.candle)
			}
			exists = false
		}

		if !exists {
			b.seqs[i][c.Symbol]++
			st = &tfState{
				bucket: bucket,
				candle: model.StreamCandle{
					Symbol:    c.Symbol,
					Timeframe: tf,
					Seq:       b.seqs[i][c.Symbol],
					Forming:   true,
					Candle: model.Candle{
						Time:   bucket,
						Open:   c.Open,
						High:   c.High,
						Low:    c.Low,
						Close:  c.Close,
						Volume: c.Volume,
					},
				},
			}
			b.states[i][c.Symbol] = st
			out = append(out, st.candle)
			continue
		}

		// Same bucket: merge OHLCV
		fc := &st.candle
		if c.High > fc.High {
			fc.High = c.High
		}
		if c.Low < fc.Low {
			fc.Low = c.Low
		}
		fc.Close = c.Close
		fc.Volume += c.Volume
		out = append(out, *fc)
	}
	return out
}
