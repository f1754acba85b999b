package commands

import (
	"strings"

	"tradesim-engine/internal/model"

	"github.com/spf13/cobra"
)

func newCandlesCmd(g *globalFlags) *cobra.Command {
	var (
		timeframe string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "candles SYMBOL",
		Short: "Print synthetic candles as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load("tradesim-cli", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			svc := g.offlineService(cfg)
			symbol := strings.ToUpper(args[0])
			candles, err := svc.Candles(symbol, model.ParseTimeframe(timeframe), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"symbol":  symbol,
				"candles": candles,
			})
		},
	}
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", string(model.TF1d), "candle timeframe (1m, 5m, 15m, 1h, 4h, 1d, 1w)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 120, "number of candles (1-1000)")
	return cmd
}

func newQuoteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "quote SYMBOL",
		Short: "Print a synthetic bid/ask quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load("tradesim-cli", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), g.offlineService(cfg).Quote(args[0]))
		},
	}
}

func newCoachCmd(g *globalFlags) *cobra.Command {
	var (
		side     string
		freeMode bool
	)
	cmd := &cobra.Command{
		Use:   "coach SYMBOL",
		Short: "Print a coaching verdict for a practice trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := model.ParseSide(side)
			if err != nil {
				return err
			}
			cfg, err := g.load("tradesim-cli", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			symbol := strings.ToUpper(args[0])
			sig := g.offlineService(cfg).Coaching(cmd.Context(), symbol, s, freeMode)
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"symbol":   symbol,
				"coaching": sig,
			})
		},
	}
	cmd.Flags().StringVarP(&side, "side", "s", string(model.SideBuy), "trade side (buy or sell)")
	cmd.Flags().BoolVar(&freeMode, "free-mode", false, "free tier (no coaching tips)")
	return cmd
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status [CLASS]",
		Short: "Print market session state for an asset class",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load("tradesim-cli", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			class := string(model.ClassStock)
			if len(args) == 1 {
				class = args[0]
			}
			return printJSON(cmd.OutOrStdout(), g.offlineService(cfg).MarketStatus(class))
		},
	}
}

func newSearchCmd(g *globalFlags) *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search the instrument catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load("tradesim-cli", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return printJSON(cmd.OutOrStdout(), g.offlineService(cfg).Search(query, class))
		},
	}
	cmd.Flags().StringVar(&class, "class", "all", "asset class filter (stock, crypto, forex, index, all)")
	return cmd
}
