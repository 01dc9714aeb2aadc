// Package types defines the shared data structures used across all packages.
//
// This is the common vocabulary for the engine — market metadata, order
// book snapshots, positions, balances, order intents, and quote ladders. It
// has no dependency on any internal package, so it can be imported by any
// layer.
package types

import "time"

// Side is the direction of an order or position.
type Side string

const (
	Bid Side = "bid"
	Ask Side = "ask"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// FillMode enumerates the supported order execution modes.
type FillMode string

const (
	FillLimit  FillMode = "limit"
	FillMarket FillMode = "market"
	FillIOC    FillMode = "ioc"
	FillFOK    FillMode = "fok"
)

// Market describes a single tradeable perpetual-futures instrument.
// Immutable once loaded from the venue.
type Market struct {
	ID          int64
	Symbol      string
	TickSize    float64
	MinSize     float64
	MaxLeverage float64
}

// PriceLevel is a single resting size at a price.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is a point-in-time view of one market's order book.
// Bids are sorted price descending, asks price ascending. Invariant:
// when both sides are non-empty, Bids[0].Price < Asks[0].Price.
type OrderbookSnapshot struct {
	MarketID  int64
	Timestamp time.Time
	Bids      []PriceLevel
	Asks      []PriceLevel
}

// BestBidAsk returns the top of book. ok is false if either side is empty.
func (o OrderbookSnapshot) BestBidAsk() (bid, ask float64, ok bool) {
	if len(o.Bids) == 0 || len(o.Asks) == 0 {
		return 0, 0, false
	}
	return o.Bids[0].Price, o.Asks[0].Price, true
}

// Position is the per-market signed holding. Positive Size is long, negative
// is short. When Size is zero, EntryPrice is unused.
type Position struct {
	MarketID      int64
	Size          float64
	EntryPrice    float64
	UnrealizedPnL float64
	RealizedPnL   float64
}

// Notional returns the absolute dollar exposure of the position at the given
// mark price.
func (p Position) Notional(markPrice float64) float64 {
	return abs(p.Size) * markPrice
}

// Balance is the account's quote-currency collateral. Invariant:
// 0 <= Available <= Total.
type Balance struct {
	Total     float64
	Available float64
}

// OrderIntent is a request to place an order, produced by the decision
// pipeline and handed to the venue SDK.
type OrderIntent struct {
	MarketID   int64
	Side       Side
	Price      float64 // unused when FillMode is FillMarket
	Size       float64
	FillMode   FillMode
	ReduceOnly bool
}

// RestingOrder is a venue-assigned order, as tracked locally (live and
// backtest). Filled/FilledAt are populated only by the backtest fill model.
type RestingOrder struct {
	OrderIntent
	ID        string
	PlacedAt  time.Time
	Filled    bool
	FillPrice float64
	FilledAt  time.Time
}

// QuoteLadder is the full set of bid/ask levels the engine currently wants
// resting for a market, best price first on each side.
type QuoteLadder struct {
	MarketID    int64
	Bids        []PriceLevel
	Asks        []PriceLevel
	GeneratedAt time.Time
}

// LastQuotePrices remembers the best bid/ask of the most recent quote cycle
// that passed the requote-threshold gate, so the gate has something to
// compare the next cycle against.
type LastQuotePrices struct {
	MarketID  int64
	BestBid   float64
	BestAsk   float64
	Timestamp time.Time
}

// ExchangePrice is a reference price from one oracle source, or the
// aggregate of several. Source carries a compound tag (e.g.
// "aggregated(binance,bybit)") when aggregated.
type ExchangePrice struct {
	Bid       float64
	Ask       float64
	Mid       float64
	Spread    float64
	Volume24h float64
	Timestamp time.Time
	Source    string
}

// HistoricalBar is one OHLCV candle plus synthetic top-of-book depth used to
// drive the backtest's single-level synthesized book.
type HistoricalBar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	BidDepth  float64
	AskDepth  float64
}

// BacktestResult summarizes a completed replay.
type BacktestResult struct {
	TotalPnl     float64
	TotalVolume  float64
	NumTrades    int
	NumWins      int
	NumLosses    int
	WinRate      float64
	SharpeRatio  float64
	MaxDrawdown  float64
	AvgDrawdown  float64
	LongestDD    int
	Calmar       float64
	AvgWin       float64
	AvgLoss      float64
	LargestWin   float64
	LargestLoss  float64
	ProfitFactor float64
	AvgSpread    float64
	FillRate     float64
	StartBalance float64
	EndBalance   float64
}

// EquityPoint is one sample of the backtest equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
