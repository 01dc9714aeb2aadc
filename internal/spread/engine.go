// Package spread implements the SpreadEngine: book-health checks, mid-price
// resolution, and the depth-imbalance spread formula.
package spread

import (
	"perpmm/internal/config"
	"perpmm/pkg/types"
)

// Result is the output of DynamicSpread.
type Result struct {
	Spread    float64
	Imbalance float64
	TopBids   float64
	TopAsks   float64
}

// Engine computes spread, mid, and health from an order book snapshot.
type Engine struct {
	cfg config.SpreadConfig
}

// NewEngine builds a SpreadEngine over the spread section of Config.
func NewEngine(cfg config.SpreadConfig) *Engine {
	return &Engine{cfg: cfg}
}

// DynamicSpread maps book depth/imbalance to a target spread, per spec §4.3.
func (e *Engine) DynamicSpread(book types.OrderbookSnapshot) Result {
	d := e.cfg.DepthLevels
	if len(book.Bids) < d {
		d = len(book.Bids)
	}
	if len(book.Asks) < d {
		d = len(book.Asks)
	}

	var topBids, topAsks float64
	for i := 0; i < d; i++ {
		topBids += book.Bids[i].Size
		topAsks += book.Asks[i].Size
	}

	var imbalance float64
	if topBids+topAsks > 0 {
		imbalance = (topBids - topAsks) / (topBids + topAsks)
	}

	raw := e.cfg.Min + abs(imbalance)*(e.cfg.Max-e.cfg.Min)
	s := clamp(raw, e.cfg.Min, e.cfg.Max)

	return Result{Spread: s, Imbalance: imbalance, TopBids: topBids, TopAsks: topAsks}
}

// Mid returns (bestBid+bestAsk)/2, or false if either side is empty.
func (e *Engine) Mid(book types.OrderbookSnapshot) (float64, bool) {
	bid, ask, ok := book.BestBidAsk()
	if !ok {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// IsHealthy requires at least 2 levels on each side, a defined mid, and a
// top-of-book spread no wider than 5%. Failure suppresses quoting for the
// event (spec §4.3).
func (e *Engine) IsHealthy(book types.OrderbookSnapshot) bool {
	if len(book.Bids) < 2 || len(book.Asks) < 2 {
		return false
	}
	mid, ok := e.Mid(book)
	if !ok || mid == 0 {
		return false
	}
	bid, ask, _ := book.BestBidAsk()
	topSpread := (ask - bid) / mid
	return topSpread <= 0.05
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
