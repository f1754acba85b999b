package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the market engine.
type Metrics struct {
	reg *prometheus.Registry

	// Engine
	CandlesGenerated *prometheus.CounterVec // labels: timeframe
	CoachingTotal    *prometheus.CounterVec // labels: action
	QuotesTotal      prometheus.Counter

	// HTTP
	HTTPRequests *prometheus.CounterVec   // labels: route, code
	HTTPDuration *prometheus.HistogramVec // labels: route

	// Live ticker + hub
	TicksTotal  prometheus.Counter
	TickDur     prometheus.Histogram
	WSClients   prometheus.Gauge
	FanoutDrops prometheus.Counter

	// Redis publisher
	RedisPublishDur          prometheus.Histogram
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// Coaching journal
	JournalWrites    prometheus.Counter
	JournalDrops     prometheus.Counter
	JournalCommitDur prometheus.Histogram
	JournalPruned    prometheus.Counter

	// Market session
	MarketState *prometheus.GaugeVec // labels: class; 0=closed, 1=open
}

// NewMetrics creates all metrics on a private registry so independent
// instances (one per test) never collide.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),

		CandlesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_candles_generated_total",
			Help: "Synthetic candles generated (by timeframe)",
		}, []string{"timeframe"}),
		CoachingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_coaching_signals_total",
			Help: "Coaching signals issued (by action)",
		}, []string{"action"}),
		QuotesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_quotes_total",
			Help: "Quotes served",
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_http_requests_total",
			Help: "HTTP requests (by route and status code)",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradesim_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		}, []string{"route"}),

		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_ticks_total",
			Help: "Live ticker rounds completed",
		}),
		TickDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradesim_tick_duration_seconds",
			Help:    "Time to advance and publish every live symbol",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesim_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		FanoutDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_fanout_drops_total",
			Help: "Messages dropped for slow WebSocket clients",
		}),

		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradesim_redis_publish_duration_seconds",
			Help:    "Redis publish latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesim_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		JournalWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_journal_writes_total",
			Help: "Coaching journal entries committed",
		}),
		JournalDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_journal_drops_total",
			Help: "Coaching journal entries dropped (queue full)",
		}),
		JournalCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradesim_journal_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		JournalPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_journal_pruned_total",
			Help: "Coaching journal entries removed by retention",
		}),

		MarketState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradesim_market_state",
			Help: "Market session state per asset class (0=closed, 1=open)",
		}, []string{"class"}),
	}

	m.reg.MustRegister(
		m.CandlesGenerated,
		m.CoachingTotal,
		m.QuotesTotal,
		m.HTTPRequests,
		m.HTTPDuration,
		m.TicksTotal,
		m.TickDur,
		m.WSClients,
		m.FanoutDrops,
		m.RedisPublishDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.JournalWrites,
		m.JournalDrops,
		m.JournalCommitDur,
		m.JournalPruned,
		m.MarketState,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry (for tests and custom collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	TickerRunning  bool      `json:"ticker_running"`
	LastTickTime   time.Time `json:"last_tick_time"`
	LiveSymbols    []string  `json:"live_symbols"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetTickerRunning(v bool) {
	h.mu.Lock()
	h.TickerRunning = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLiveSymbols(symbols []string) {
	h.mu.Lock()
	h.LiveSymbols = symbols
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the journal database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// Probe runs one round of dependency checks. Nil dependencies are skipped.
func (h *HealthStatus) Probe(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB) {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if rdb != nil {
		h.CheckRedis(probeCtx, rdb)
	}
	if sqlDB != nil {
		h.CheckSQLite(probeCtx, sqlDB)
	}
}

// Status reports the overall state: "healthy", "degraded" or "unhealthy".
// Redis only counts when it is enabled.
func (h *HealthStatus) Status() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.statusLocked()
}

func (h *HealthStatus) statusLocked() string {
	redisOK := !h.RedisEnabled || h.RedisConnected
	switch {
	case !redisOK && !h.SQLiteOK:
		return "unhealthy"
	case !redisOK || !h.SQLiteOK:
		return "degraded"
	}
	return "healthy"
}

// ServeHTTP handles the /health endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := h.statusLocked()
	httpCode := http.StatusOK
	if overallStatus != "healthy" {
		httpCode = http.StatusServiceUnavailable
	}

	// Tick age
	tickAge := ""
	lastTick := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
		lastTick = h.LastTickTime.Format(time.RFC3339)
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		TickerRunning   bool     `json:"ticker_running"`
		LastTickTime    string   `json:"last_tick_time"`
		TickAge         string   `json:"tick_age"`
		LiveSymbols     []string `json:"live_symbols"`
		RedisEnabled    bool     `json:"redis_enabled"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		TickerRunning:   h.TickerRunning,
		LastTickTime:    lastTick,
		TickAge:         tickAge,
		LiveSymbols:     h.LiveSymbols,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
