// Package ticker advances a live synthetic market. Every tick appends one
// candle per configured symbol, continuing from the previous close, and
// hands it to a CandlePublisher through a lock-free ring.
package ticker

import (
	"context"
	"log"
	"sync"
	"time"

	"tradesim-engine/internal/metrics"
	"tradesim-engine/internal/model"
	"tradesim-engine/internal/ringbuf"
	"tradesim-engine/internal/synth"
	"tradesim-engine/internal/tfbuilder"
)

const (
	// DefaultInterval matches the learner UI's simulated tick.
	DefaultInterval = 7 * time.Second
	defaultHistory  = 120
	defaultRingSize = 1024
)

// Config configures a Ticker.
type Config struct {
	Symbols   []string
	Timeframe model.Timeframe   // candle interval of the live series (default 1m)
	Interval  time.Duration     // wall-clock period between ticks
	History   int               // candles seeded and retained per symbol
	Rollups   []model.Timeframe // coarser live series resampled from each tick
}

// State is the ticker clock, exposed to clients that animate in lockstep.
type State struct {
	TickID    int64 `json:"tick_id"`
	SimNowMs  int64 `json:"sim_now_ms"`
	StartedMs int64 `json:"started_ms"`
}

type series struct {
	window []model.Candle // oldest first, at most cfg.History
	seq    int64
}

func (s *series) last() model.Candle { return s.window[len(s.window)-1] }

// Ticker owns the live series. Step and Run must not be called concurrently;
// History and State are safe from any goroutine.
type Ticker struct {
	cfg    Config
	synth  *synth.Synthesizer
	pub    model.CandlePublisher
	ring   *ringbuf.Ring
	rollup *tfbuilder.Builder
	wake   chan struct{}
	m      *metrics.Metrics
	health *metrics.HealthStatus
	now    func() time.Time

	mu     sync.RWMutex
	series map[string]*series
	state  State
}

// New creates a Ticker. m and health may be nil.
func New(cfg Config, syn *synth.Synthesizer, pub model.CandlePublisher, m *metrics.Metrics, health *metrics.HealthStatus) *Ticker {
	if cfg.Timeframe == "" {
		cfg.Timeframe = model.TF1m
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.History <= 0 {
		cfg.History = defaultHistory
	}
	t := &Ticker{
		cfg:    cfg,
		synth:  syn,
		pub:    pub,
		ring:   ringbuf.New(defaultRingSize),
		wake:   make(chan struct{}, 1),
		m:      m,
		health: health,
		now:    time.Now,
		series: make(map[string]*series, len(cfg.Symbols)),
	}
	if len(cfg.Rollups) > 0 {
		t.rollup = tfbuilder.New(cfg.Timeframe, cfg.Rollups)
		if m != nil {
			t.rollup.OnTFCandle = func(c model.StreamCandle) {
				m.CandlesGenerated.WithLabelValues(string(c.Timeframe)).Inc()
			}
		}
	}
	return t
}

// Symbols returns the live symbols in configuration order.
func (t *Ticker) Symbols() []string {
	return append([]string(nil), t.cfg.Symbols...)
}

// Timeframe returns the live candle interval.
func (t *Ticker) Timeframe() model.Timeframe { return t.cfg.Timeframe }

// Seed synthesizes the starting history for every symbol. Called by Run;
// exposed so callers can seed before the first tick.
func (t *Ticker) Seed() {
	start := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sym := range t.cfg.Symbols {
		hist := t.synth.Generate(sym, t.cfg.Timeframe, t.cfg.History)
		t.series[sym] = &series{window: hist}
	}
	t.state = State{StartedMs: start.UnixMilli(), SimNowMs: start.UnixMilli()}
	if t.health != nil {
		t.health.SetLiveSymbols(t.Symbols())
	}
}

// Step advances every symbol by one candle and queues it for publishing.
func (t *Ticker) Step() []model.StreamCandle {
	start := time.Now()

	t.mu.Lock()
	out := make([]model.StreamCandle, 0, len(t.cfg.Symbols))
	for _, sym := range t.cfg.Symbols {
		s, ok := t.series[sym]
		if !ok {
			continue
		}
		s.seq++
		next := t.synth.Continue(sym, t.cfg.Timeframe, s.last(), int(s.seq))
		s.window = append(s.window, next)
		if len(s.window) > t.cfg.History {
			s.window = append(s.window[:0], s.window[len(s.window)-t.cfg.History:]...)
		}
		out = append(out, model.StreamCandle{
			Symbol:    sym,
			Timeframe: t.cfg.Timeframe,
			Seq:       s.seq,
			Candle:    next,
		})
	}
	t.state.TickID++
	t.state.SimNowMs = t.state.StartedMs + t.state.TickID*t.cfg.Interval.Milliseconds()

	queued := out
	if t.rollup != nil {
		queued = append([]model.StreamCandle(nil), out...)
		for _, c := range out {
			queued = append(queued, t.rollup.Process(c)...)
		}
	}
	t.mu.Unlock()

	for _, c := range queued {
		if !t.ring.Push(c) && t.m != nil {
			t.m.FanoutDrops.Inc()
		}
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}

	if t.m != nil {
		t.m.TicksTotal.Inc()
		t.m.TickDur.Observe(time.Since(start).Seconds())
	}
	if t.health != nil {
		t.health.SetLastTickTime(t.now())
	}
	return out
}

// Run seeds, then ticks every Interval until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	t.Seed()
	if t.health != nil {
		t.health.SetTickerRunning(true)
		defer t.health.SetTickerRunning(false)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.publishLoop(ctx)
	}()

	log.Printf("[ticker] live: %d symbols, tf=%s, every %s", len(t.cfg.Symbols), t.cfg.Timeframe, t.cfg.Interval)

	tk := time.NewTicker(t.cfg.Interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Printf("[ticker] stopped")
			return
		case <-tk.C:
			t.Step()
		}
	}
}

// publishLoop is the ring's only consumer.
func (t *Ticker) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.wake:
			t.flush(ctx)
		}
	}
}

// flush publishes everything queued so far. Consumer side only.
func (t *Ticker) flush(ctx context.Context) int {
	return t.ring.Drain(func(c model.StreamCandle) {
		if t.pub == nil {
			return
		}
		if err := t.pub.Publish(ctx, c); err != nil {
			log.Printf("[ticker] publish %s: %v", c.Channel(), err)
		}
	})
}

// History returns a copy of the retained live candles for symbol.
func (t *Ticker) History(symbol string) ([]model.Candle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.series[symbol]
	if !ok {
		return nil, false
	}
	return append([]model.Candle(nil), s.window...), true
}

// Latest returns the newest live candle for symbol as a stream candle.
func (t *Ticker) Latest(symbol string) (model.StreamCandle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.series[symbol]
	if !ok {
		return model.StreamCandle{}, false
	}
	return model.StreamCandle{Symbol: symbol, Timeframe: t.cfg.Timeframe, Seq: s.seq, Candle: s.last()}, true
}

// State returns the current ticker clock.
func (t *Ticker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}
