package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"tradesim-engine/config"
	"tradesim-engine/internal/gateway"
	"tradesim-engine/internal/market"
	"tradesim-engine/internal/markethours"
	"tradesim-engine/internal/metrics"
	"tradesim-engine/internal/model"
	"tradesim-engine/internal/scheduler"
	"tradesim-engine/internal/store/redis"
	"tradesim-engine/internal/store/sqlite"
	"tradesim-engine/internal/synth"
	"tradesim-engine/internal/ticker"

	goredis "github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

// snapshotCandles is the history sent to a WebSocket client that
// subscribes to a series the ticker does not drive.
const snapshotCandles = 120

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, WebSocket stream and live ticker",
		Long: `Start the engine server.

This starts:
• REST API for candles, quotes, search, coaching and market status
• WebSocket live candle stream fed by the simulated ticker
• SQLite coaching journal and scheduled retention
• Optional Redis fan-out (REDIS_ENABLED=true)
• Prometheus metrics on /metrics and health on /health`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load("tradesim", cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, g.seed)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address override (default from config)")
	return cmd
}

// runServe wires every component and blocks until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, seed int64) error {
	log.Println("[tradesim] starting...")

	m := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetRedisEnabled(cfg.RedisEnabled)

	// Coaching journal. Store failures never stop the engine.
	var (
		journal model.CoachingJournal
		sqlDB   *sql.DB
	)
	if j, err := sqlite.Open(sqlite.Config{DBPath: cfg.SQLitePath}, m); err != nil {
		log.Printf("[tradesim] WARNING: coaching journal disabled: %v", err)
	} else {
		journal = j
		sqlDB = j.DB()
		health.SetSQLiteOK(true)
		defer j.Close()
	}

	opts := market.Options{
		Session: markethours.New(markethours.LoadLocation(cfg.MarketTZ), nil),
		Journal: journal,
		Metrics: m,
	}
	if seed != 0 {
		opts.Source = synth.NewSource(seed)
	}
	svc := market.New(opts)

	var tk *ticker.Ticker
	hub := gateway.NewHub(func(symbol string, tf model.Timeframe) []model.Candle {
		if tk != nil && tf == tk.Timeframe() {
			if hist, ok := tk.History(symbol); ok {
				return hist
			}
		}
		candles, _ := svc.Candles(symbol, tf, snapshotCandles)
		return candles
	}, m)
	defer hub.Close()

	// Live candles go straight to the hub, or through Redis when enabled so
	// several gateways can share one ticker.
	var (
		pub model.CandlePublisher = hub
		rdb *goredis.Client
	)
	if cfg.RedisEnabled {
		client, err := redis.Connect(ctx, redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Printf("[tradesim] WARNING: redis unavailable, streaming in-process: %v", err)
		} else {
			rdb = client
			health.SetRedisConnected(true)
			rp := redis.NewPublisher(client, m)
			defer rp.Close()
			pub = rp

			go func() {
				if err := hub.RunSubscriber(ctx, redis.NewSubscriber(client)); err != nil {
					log.Printf("[tradesim] redis subscriber stopped: %v", err)
				}
			}()
		}
	}

	rollups, err := cfg.ParseRollups()
	if err != nil {
		return err
	}
	tk = ticker.New(ticker.Config{
		Symbols:  cfg.ParseSymbols(),
		Interval: cfg.TickInterval,
		Rollups:  rollups,
	}, svc.Synthesizer(), pub, m, health)
	go tk.Run(ctx)

	sched := scheduler.New(ctx, scheduler.Config{
		PruneSpec: cfg.PruneCron,
		Retention: cfg.JournalRetention,
	}, svc, m, func(ctx context.Context) {
		health.Probe(ctx, rdb, sqlDB)
	})
	if err := sched.RegisterAll(); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := gateway.NewServer(gateway.Options{
		Service:         svc,
		Hub:             hub,
		Ticker:          tk,
		Health:          health,
		Metrics:         m,
		AdminTOTPSecret: cfg.AdminTOTPSecret,
	})

	log.Printf("[tradesim] ready on %s (redis=%v, journal=%v)", cfg.HTTPAddr, rdb != nil, journal != nil)
	err = srv.ListenAndServe(ctx, cfg.HTTPAddr)
	log.Println("[tradesim] shutting down")
	return err
}
