// Package backtest implements the BacktestEngine (C9): replays an ordered
// list of historical bars through a probabilistic fill model and the same
// spread engine the live engine uses (orders are sized at the configured
// fixed size), producing an equity curve and summary performance metrics.
//
// Grounded on the teacher's internal/strategy/inventory.go (fill processing,
// weighted-average entry price, realized PnL on reduce/flip) generalized
// from per-fill YES/NO token bookkeeping to a single signed position, and on
// internal/strategy/flow_tracker.go's rolling-window bookkeeping style
// (single-threaded replay, no locking since nothing else touches this
// state). The fill-probability model and performance metrics have no
// teacher analogue and are built directly from stdlib math.
package backtest

import (
	"math"
	"math/rand"
	"time"

	"perpmm/internal/config"
	"perpmm/internal/spread"
	"perpmm/pkg/types"
)

// floatGenerator is the uniform(0,1) draw used by the fill model. *rand.Rand
// satisfies it; tests substitute a fixed sequence to make fills deterministic.
type floatGenerator interface {
	Float64() float64
}

// Engine replays bars against a synthetic fill model.
type Engine struct {
	cfg    *config.Config
	spread *spread.Engine
	rng    floatGenerator
}

// New builds a BacktestEngine. seed makes fill draws reproducible across
// runs of the same bar sequence.
func New(cfg *config.Config, spreadEngine *spread.Engine, seed int64) *Engine {
	return &Engine{cfg: cfg, spread: spreadEngine, rng: rand.New(rand.NewSource(seed))}
}

// Run replays every bar in order and returns the summary result plus the
// equity curve sampled once per bar.
func (e *Engine) Run(bars []types.HistoricalBar) (types.BacktestResult, []types.EquityPoint) {
	balance := e.cfg.Backtest.InitialBalance
	if balance == 0 {
		balance = 10000
	}
	startBalance := balance
	maxAge := time.Duration(e.cfg.Backtest.MaxOrderAgeSeconds) * time.Second
	if maxAge == 0 {
		maxAge = 60 * time.Second
	}

	var pos types.Position
	var pending []*types.RestingOrder
	var filledHistory []*types.RestingOrder
	var equity []types.EquityPoint
	var spreads []float64
	var placed, filled int

	for _, bar := range bars {
		// 1 & 2: fill sweep, then position update on each fill.
		still := pending[:0]
		for _, order := range pending {
			p := fillProbability(order.Side, order.Price, bar)
			if e.rng.Float64() < p {
				order.Filled = true
				order.FillPrice = order.Price
				order.FilledAt = bar.Timestamp
				filled++
				applyFill(&pos, &balance, order.Side, order.Price, order.Size)
				filledHistory = append(filledHistory, order)
				continue
			}
			still = append(still, order)
		}
		pending = still

		// 3: age cancellation.
		kept := pending[:0]
		for _, order := range pending {
			if bar.Timestamp.Sub(order.PlacedAt) < maxAge {
				kept = append(kept, order)
			}
		}
		pending = kept

		// 4: mark to market.
		if pos.Size > 0 {
			pos.UnrealizedPnL = pos.Size * (bar.Close - pos.EntryPrice)
		} else if pos.Size < 0 {
			pos.UnrealizedPnL = -pos.Size * (pos.EntryPrice - bar.Close)
		} else {
			pos.UnrealizedPnL = 0
		}

		// 5: quote placement against a synthesized single-level book.
		mid := bar.Close
		bidDepth, askDepth := bar.BidDepth, bar.AskDepth
		if bidDepth == 0 {
			bidDepth = 50
		}
		if askDepth == 0 {
			askDepth = 50
		}
		book := types.OrderbookSnapshot{
			Timestamp: bar.Timestamp,
			Bids:      []types.PriceLevel{{Price: mid * 0.999, Size: bidDepth}},
			Asks:      []types.PriceLevel{{Price: mid * 1.001, Size: askDepth}},
		}
		result := e.spread.DynamicSpread(book)
		spreads = append(spreads, result.Spread)

		size := e.cfg.Sizing.FixedSize
		for i := 0; i < e.cfg.MaxLevels; i++ {
			spacing := result.Spread * float64(i+1) * 0.5
			bidPrice := book.Bids[0].Price * (1 - spacing)
			askPrice := book.Asks[0].Price * (1 + spacing)

			pending = append(pending,
				&types.RestingOrder{
					OrderIntent: types.OrderIntent{Side: types.Bid, Price: bidPrice, Size: size, FillMode: types.FillLimit},
					PlacedAt:    bar.Timestamp,
				},
				&types.RestingOrder{
					OrderIntent: types.OrderIntent{Side: types.Ask, Price: askPrice, Size: size, FillMode: types.FillLimit},
					PlacedAt:    bar.Timestamp,
				},
			)
			placed += 2
		}

		equity = append(equity, types.EquityPoint{
			Timestamp: bar.Timestamp,
			Equity:    balance + pos.UnrealizedPnL,
		})
	}

	result := computeMetrics(filledHistory, equity, spreads, startBalance, balance, placed, filled)
	return result, equity
}

// fillProbability implements the bid/ask fill model from spec §4.9.
func fillProbability(side types.Side, price float64, bar types.HistoricalBar) float64 {
	if side == types.Bid {
		switch {
		case bar.Low <= price:
			return 0.8
		case bar.Close < price:
			return 0.3
		default:
			return 0.05
		}
	}
	switch {
	case bar.High >= price:
		return 0.8
	case bar.Close > price:
		return 0.3
	default:
		return 0.05
	}
}

// applyFill mutates pos and balance for a single fill, following the
// weighted-average-entry / realized-PnL rules from spec §4.9 step 2.
func applyFill(pos *types.Position, balance *float64, side types.Side, price, size float64) {
	delta := size
	if side == types.Ask {
		delta = -size
	}
	oldSize := pos.Size
	newSize := oldSize + delta

	if sign(oldSize)*sign(delta) < 0 {
		closed := math.Min(math.Abs(oldSize), math.Abs(delta))
		var pnl float64
		if oldSize > 0 {
			pnl = closed * (price - pos.EntryPrice)
		} else {
			pnl = closed * (pos.EntryPrice - price)
		}
		pos.RealizedPnL += pnl
		*balance += pnl
	}

	switch {
	case newSize == 0:
		pos.EntryPrice = 0
	case oldSize == 0 || sign(oldSize) != sign(newSize):
		pos.EntryPrice = price
	case math.Abs(newSize) > math.Abs(oldSize):
		pos.EntryPrice = (oldSize*pos.EntryPrice + delta*price) / newSize
	}
	pos.Size = newSize
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
