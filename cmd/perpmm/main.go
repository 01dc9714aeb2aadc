// Command perpmm is a market-making engine for a perpetual-futures venue.
//
// Architecture:
//
//	internal/config      — YAML + env config, validated at boot
//	internal/venue       — REST + WebSocket adapter implementing the venue SDK contract
//	internal/risk        — RiskGate: margin/collateral/exposure checks before every quote cycle
//	internal/spread      — SpreadEngine: book health, mid price, imbalance-driven dynamic spread
//	internal/sizer       — Sizer: per-level order sizes from fixed/percentage/tiered config
//	internal/inventory   — InventoryShaper: skews quotes and flags hedge need from position
//	internal/oracle      — PriceOracle: multi-source median reference price with TTL cache
//	internal/hedge       — HedgeExecutor: reduce-only market order when inventory drifts too far
//	internal/quoteengine — QuoteEngine: the live per-market quoting loop
//	internal/backtest    — BacktestEngine: fill-probability replay over historical/synthetic bars
//	internal/simulator   — Simulator: synthetic OHLCV bar generation
//	internal/api         — optional read-only dashboard (HTTP + WebSocket)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "perpmm",
		Short:         "Market-making engine for a perpetual-futures venue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to config.yaml")

	root.AddCommand(newLiveCmd())
	root.AddCommand(newBacktestCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newTestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var configPath string

func defaultConfigPath() string {
	if p := os.Getenv("PERPMM_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func newLogger(cfg loggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

type loggingConfig struct {
	Level  string
	Format string
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
