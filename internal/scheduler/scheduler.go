// Package scheduler runs the engine's periodic housekeeping on cron
// schedules: market-state gauges, journal retention and health probes.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"tradesim-engine/internal/market"
	"tradesim-engine/internal/metrics"
	"tradesim-engine/internal/model"

	"github.com/robfig/cron/v3"
)

const (
	DefaultStateSpec = "@every 1m"
	DefaultProbeSpec = "@every 15s"
)

// Classes are the asset classes whose session state is exported.
var Classes = []model.AssetClass{model.ClassStock, model.ClassCrypto, model.ClassForex, model.ClassIndex}

// Config holds the job schedules. An empty PruneSpec or a zero Retention
// disables journal pruning.
type Config struct {
	StateSpec string
	ProbeSpec string
	PruneSpec string
	Retention time.Duration
}

// ProbeFunc refreshes dependency health.
type ProbeFunc func(ctx context.Context)

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron  *cron.Cron
	cfg   Config
	svc   *market.Service
	m     *metrics.Metrics
	probe ProbeFunc
	ctx   context.Context
	now   func() time.Time
}

// New creates a Scheduler. m and probe may be nil.
func New(ctx context.Context, cfg Config, svc *market.Service, m *metrics.Metrics, probe ProbeFunc) *Scheduler {
	if cfg.StateSpec == "" {
		cfg.StateSpec = DefaultStateSpec
	}
	if cfg.ProbeSpec == "" {
		cfg.ProbeSpec = DefaultProbeSpec
	}
	return &Scheduler{
		Cron:  cron.New(cron.WithLocation(svc.Session().Location())),
		cfg:   cfg,
		svc:   svc,
		m:     m,
		probe: probe,
		ctx:   ctx,
		now:   time.Now,
	}
}

// RegisterAll registers the state refresh, probe and prune jobs.
func (s *Scheduler) RegisterAll() error {
	if _, err := s.Cron.AddFunc(s.cfg.StateSpec, s.RefreshMarketState); err != nil {
		return fmt.Errorf("register market state task: %w", err)
	}
	if s.probe != nil {
		if _, err := s.Cron.AddFunc(s.cfg.ProbeSpec, func() { s.probe(s.ctx) }); err != nil {
			return fmt.Errorf("register health probe: %w", err)
		}
	}
	if s.cfg.PruneSpec != "" && s.cfg.Retention > 0 {
		if _, err := s.Cron.AddFunc(s.cfg.PruneSpec, s.pruneTask); err != nil {
			return fmt.Errorf("register journal prune: %w", err)
		}
	}
	return nil
}

// Start runs one state refresh immediately, then starts the cron scheduler.
func (s *Scheduler) Start() {
	s.RefreshMarketState()
	s.Cron.Start()
	log.Printf("[scheduler] started (%d jobs)", len(s.Cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[scheduler] stopped")
}

// RefreshMarketState exports open/closed per asset class.
func (s *Scheduler) RefreshMarketState() {
	if s.m == nil {
		return
	}
	for _, class := range Classes {
		v := 0.0
		if s.svc.MarketStatus(string(class)).IsOpen {
			v = 1
		}
		s.m.MarketState.WithLabelValues(string(class)).Set(v)
	}
}

// PruneJournal deletes journal entries older than the retention window.
func (s *Scheduler) PruneJournal(ctx context.Context) (int64, error) {
	if s.cfg.Retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.cfg.Retention)
	n, err := s.svc.PurgeHistory(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune journal before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return n, nil
}

func (s *Scheduler) pruneTask() {
	n, err := s.PruneJournal(s.ctx)
	if err != nil {
		log.Printf("[scheduler] %v", err)
		return
	}
	log.Printf("[scheduler] pruned %d journal entries", n)
}
