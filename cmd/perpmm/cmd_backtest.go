package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"perpmm/internal/backtest"
	"perpmm/internal/config"
	"perpmm/internal/simulator"
	"perpmm/internal/spread"
	"perpmm/pkg/types"
)

func newBacktestCmd() *cobra.Command {
	var dataFile string
	var steps int
	var outFile string

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay historical or synthetic bars through the fill-probability model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(dataFile, steps, outFile)
		},
	}
	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "bar file (.json or .csv); synthetic data is used if omitted")
	cmd.Flags().IntVarP(&steps, "steps", "s", 1000, "number of synthetic bars to generate when --data is omitted")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the equity curve + summary to this file (.json or .csv)")
	return cmd
}

func runBacktest(dataFile string, steps int, outFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	bars, err := loadBars(dataFile, steps, cfg)
	if err != nil {
		return err
	}

	spreadEngine := spread.NewEngine(cfg.Spread)
	engine := backtest.New(cfg, spreadEngine, time.Now().UnixNano())
	result, equity := engine.Run(bars)

	fmt.Printf("trades=%d wins=%d losses=%d winRate=%.4f pnl=%.4f sharpe=%.4f maxDD=%.4f calmar=%.4f fillRate=%.4f\n",
		result.NumTrades, result.NumWins, result.NumLosses, result.WinRate,
		result.TotalPnl, result.SharpeRatio, result.MaxDrawdown, result.Calmar, result.FillRate)

	if outFile != "" {
		return writeBacktestOutput(outFile, result, equity)
	}
	return nil
}

func loadBars(dataFile string, steps int, cfg *config.Config) ([]types.HistoricalBar, error) {
	if dataFile == "" {
		gen := simulator.New(cfg.Simulator, simulator.ScenarioNone, time.Now().UnixNano())
		return gen.Generate(steps, time.Now()), nil
	}

	f, err := os.Open(dataFile)
	if err != nil {
		return nil, fmt.Errorf("open bar file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(dataFile)) {
	case ".csv":
		return simulator.LoadCSV(f)
	default:
		return simulator.LoadJSON(f)
	}
}

// backtestExport is the JSON shape for a completed backtest, per the bar
// file/export contract (summary, equity curve, generation timestamp).
type backtestExport struct {
	Summary     types.BacktestResult `json:"summary"`
	Equity      []equityPointExport  `json:"equity"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

type equityPointExport struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

func writeBacktestOutput(outFile string, result types.BacktestResult, equity []types.EquityPoint) error {
	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if strings.ToLower(filepath.Ext(outFile)) == ".csv" {
		w := csv.NewWriter(f)
		defer w.Flush()
		if err := w.Write([]string{"timestamp", "equity"}); err != nil {
			return err
		}
		for _, p := range equity {
			if err := w.Write([]string{
				p.Timestamp.Format(time.RFC3339),
				strconv.FormatFloat(p.Equity, 'f', -1, 64),
			}); err != nil {
				return err
			}
		}
		return nil
	}

	points := make([]equityPointExport, len(equity))
	for i, p := range equity {
		points[i] = equityPointExport{Timestamp: p.Timestamp, Equity: p.Equity}
	}
	export := backtestExport{Summary: result, Equity: points, GeneratedAt: time.Now()}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}
