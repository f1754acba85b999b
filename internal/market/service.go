// Package market is the engine façade consumed by the HTTP gateway, the
// live ticker and the CLI. Every call is stateless apart from the optional
// journal and metrics side channels.
package market

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tradesim-engine/internal/catalog"
	"tradesim-engine/internal/coach"
	"tradesim-engine/internal/indicator"
	"tradesim-engine/internal/logger"
	"tradesim-engine/internal/markethours"
	"tradesim-engine/internal/metrics"
	"tradesim-engine/internal/model"
	"tradesim-engine/internal/synth"
)

// QuoteSpread is the synthetic bid/ask spread as a fraction of price.
const QuoteSpread = 0.001

// IndicatorSMAPeriods are the SMA windows reported by Indicators.
var IndicatorSMAPeriods = []int{9, 21, 50}

// Options wires a Service. Nil fields get defaults: the builtin catalog,
// a New York session on the system clock, the global random source, and
// no journal or metrics.
type Options struct {
	Catalog *catalog.Catalog
	Session *markethours.Session
	Source  synth.Source
	Journal model.CoachingJournal
	Metrics *metrics.Metrics
}

// Service implements the engine operations.
type Service struct {
	cat     *catalog.Catalog
	sess    *markethours.Session
	synth   *synth.Synthesizer
	coach   *coach.Engine
	journal model.CoachingJournal
	m       *metrics.Metrics
}

// New builds a Service from opts.
func New(opts Options) *Service {
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	sess := opts.Session
	if sess == nil {
		sess = markethours.New(nil, nil)
	}
	syn := synth.New(cat, sess, opts.Source)
	return &Service{
		cat:     cat,
		sess:    sess,
		synth:   syn,
		coach:   coach.New(cat, sess, syn),
		journal: opts.Journal,
		m:       opts.Metrics,
	}
}

// Catalog returns the instrument catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.cat }

// Session returns the session clock.
func (s *Service) Session() *markethours.Session { return s.sess }

// Synthesizer returns the candle synthesizer.
func (s *Service) Synthesizer() *synth.Synthesizer { return s.synth }

// Candles returns limit synthetic candles for symbol, oldest first.
func (s *Service) Candles(symbol string, tf model.Timeframe, limit int) ([]model.Candle, error) {
	if err := model.ValidateLimit(limit); err != nil {
		return nil, err
	}
	candles := s.synth.Generate(symbol, tf, limit)
	if s.m != nil {
		s.m.CandlesGenerated.WithLabelValues(string(tf)).Add(float64(len(candles)))
	}
	return candles, nil
}

// Quote synthesizes one daily candle and wraps its close in a spread.
func (s *Service) Quote(symbol string) model.Quote {
	symbol = normalizeSymbol(symbol)
	in := s.cat.Lookup(symbol)
	last := s.synth.Generate(symbol, model.TF1d, 1)[0]
	price := last.Close
	half := price * QuoteSpread / 2
	dec := in.Class.Decimals()

	if s.m != nil {
		s.m.QuotesTotal.Inc()
	}
	return model.Quote{
		Symbol:    symbol,
		Price:     price,
		Bid:       model.Round(price-half, dec),
		Ask:       model.Round(price+half, dec),
		Timestamp: last.Time,
	}
}

// Search delegates to the catalog.
func (s *Service) Search(query, assetClass string) []model.Instrument {
	return s.cat.Search(query, assetClass)
}

// Coaching evaluates the coaching rules for symbol and journals the verdict.
func (s *Service) Coaching(ctx context.Context, symbol string, side model.Side, freeMode bool) model.CoachingSignal {
	symbol = normalizeSymbol(symbol)
	sig := s.coach.Coach(symbol, side, freeMode)

	if s.m != nil {
		s.m.CoachingTotal.WithLabelValues(string(sig.Action)).Inc()
	}
	if s.journal != nil {
		s.journal.Record(model.JournalEntry{
			Symbol:    symbol,
			Side:      side,
			FreeMode:  freeMode,
			Action:    sig.Action,
			Tag:       sig.Tag,
			ScoreBias: sig.ScoreBias,
			Price:     sig.CurrentPrice,
			RSI:       sig.RSI,
		})
	}

	slog.Debug("coaching issued",
		append(logger.LogWithTrace(ctx),
			slog.String("symbol", symbol),
			slog.String("side", string(side)),
			slog.String("action", string(sig.Action)),
			slog.String("tag", string(sig.Tag)),
		)...,
	)
	return sig
}

// MarketStatus reports the session state for an asset class name.
// Unrecognized names yield an open "unknown" status.
func (s *Service) MarketStatus(assetClass string) model.MarketStatus {
	class, ok := model.ParseAssetClass(assetClass)
	if !ok {
		class = model.AssetClass(strings.ToLower(strings.TrimSpace(assetClass)))
	}
	return s.sess.Status(class)
}

// Indicators computes RSI and SMA over limit synthetic candles.
func (s *Service) Indicators(symbol string, tf model.Timeframe, limit int) (indicator.Snapshot, error) {
	candles, err := s.Candles(symbol, tf, limit)
	if err != nil {
		return indicator.Snapshot{}, err
	}
	return indicator.Compute(indicator.Closes(candles), indicator.DefaultRSIPeriod, IndicatorSMAPeriods...), nil
}

// History returns recent journal entries. Without a journal it returns none.
func (s *Service) History(ctx context.Context, symbol string, limit int) ([]model.JournalEntry, error) {
	if s.journal == nil {
		return []model.JournalEntry{}, nil
	}
	return s.journal.Recent(ctx, normalizeSymbol(symbol), limit)
}

// PurgeHistory deletes journal entries created before cutoff.
func (s *Service) PurgeHistory(ctx context.Context, before time.Time) (int64, error) {
	if s.journal == nil {
		return 0, nil
	}
	return s.journal.Purge(ctx, before)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
