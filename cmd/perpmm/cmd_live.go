package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"perpmm/internal/api"
	"perpmm/internal/config"
	"perpmm/internal/hedge"
	"perpmm/internal/inventory"
	"perpmm/internal/oracle"
	"perpmm/internal/quoteengine"
	"perpmm/internal/risk"
	"perpmm/internal/sizer"
	"perpmm/internal/spread"
	"perpmm/internal/venue"
	"perpmm/pkg/types"
)

func newLiveCmd() *cobra.Command {
	var marketID int64
	var testOnly bool

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Start live quoting against the configured venue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(marketID, testOnly)
		},
	}
	cmd.Flags().Int64VarP(&marketID, "market", "m", 0, "restrict quoting to a single market ID (0 = all markets)")
	cmd.Flags().BoolVarP(&testOnly, "test", "t", false, "run startup checks only, then exit")
	return cmd
}

// newHedger wires the venue's PlaceOrder call behind hedge.PlaceOrderFunc.
func newHedger(v venue.Venue, logger *slog.Logger) *hedge.Executor {
	place := func(ctx context.Context, intent types.OrderIntent) error {
		_, err := v.PlaceOrder(ctx, intent)
		return err
	}
	return hedge.New(place, logger)
}

func runLive(marketID int64, testOnly bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(loggingConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	v, err := venue.New(*cfg, logger)
	if err != nil {
		return fmt.Errorf("build venue adapter: %w", err)
	}

	gate := risk.NewGate(cfg.Risk)
	spreadEngine := spread.NewEngine(cfg.Spread)
	sz := sizer.New(cfg.Sizing, cfg.Risk)
	shaper := inventory.New(cfg, gate)
	orc := oracle.New(cfg.Oracle, logger)
	hedger := newHedger(v, logger)

	eng := quoteengine.New(cfg, v, orc, gate, spreadEngine, sz, shaper, hedger, logger).WithMarketFilter(marketID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := v.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("venue feed stopped", "error", err)
		}
	}()

	if testOnly {
		if _, err := v.GetAllMarkets(ctx); err != nil {
			return fmt.Errorf("venue connectivity check failed: %w", err)
		}
		logger.Info("startup checks passed")
		return nil
	}

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start quote engine: %w", err)
	}

	if cfg.DryRun {
		logger.Warn("dry-run mode: no real orders will be placed")
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, *cfg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "port", cfg.Dashboard.Port)
	}

	logger.Info("quote engine running",
		"max_levels", cfg.MaxLevels,
		"requote_interval_ms", cfg.RequoteIntervalMs,
		"dry_run", cfg.DryRun,
		"market_filter", marketID,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}
	eng.Stop()
	return nil
}
