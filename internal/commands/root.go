// Package commands implements the tradesim command line.
package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"tradesim-engine/config"
	"tradesim-engine/internal/logger"
	"tradesim-engine/internal/market"
	"tradesim-engine/internal/markethours"
	"tradesim-engine/internal/synth"

	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	seed       int64
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "tradesim",
		Short: "Synthetic market engine for trading practice",
		Long: `tradesim generates plausible synthetic OHLCV candles for a fixed
catalog of instruments, coaches practice trades with simple RSI and
moving-average rules, and serves a live simulated market over HTTP
and WebSocket.

Examples:
  tradesim serve                          # HTTP + WebSocket on :8080
  tradesim candles BTN --timeframe 1h     # print 120 hourly candles
  tradesim coach SMBY --side sell         # coaching verdict
  tradesim status crypto                  # session state`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "config.yaml", "YAML config file (optional)")
	root.PersistentFlags().StringVarP(&g.logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().Int64Var(&g.seed, "seed", 0, "random seed for reproducible output (0 = random)")

	root.AddCommand(
		newServeCmd(g),
		newCandlesCmd(g),
		newQuoteCmd(g),
		newCoachCmd(g),
		newStatusCmd(g),
		newSearchCmd(g),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// load reads configuration and initializes the logger on logOut.
func (g *globalFlags) load(service string, logOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.InitWriter(logOut, service, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// offlineService builds an engine without journal or metrics for one-shot
// commands.
func (g *globalFlags) offlineService(cfg *config.Config) *market.Service {
	opts := market.Options{
		Session: markethours.New(markethours.LoadLocation(cfg.MarketTZ), nil),
	}
	if g.seed != 0 {
		opts.Source = synth.NewSource(g.seed)
	}
	return market.New(opts)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
