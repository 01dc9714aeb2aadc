// Package quoteengine implements the QuoteEngine (C8): the live per-market
// quoting loop. Each subscribed market runs its own goroutine that reacts to
// order book updates and a periodic ticker, walking the same twelve-step
// pipeline every cycle (spec §4.8): health check, risk gate, reference
// price resolution, spread, inventory shaping, requote-threshold gate,
// cancel-then-place, sizing, ladder construction, and hedge dispatch.
//
// Grounded on the teacher's internal/engine.Engine (goroutine-per-market
// supervision, token/market routing, start/stop lifecycle) and
// internal/strategy/Maker.Run (the select-loop over book/fill events plus a
// periodic ticker, and the cancel-then-place reconcile shape) — generalized
// from the Avellaneda-Stoikov binary-market formula to the pipeline above.
package quoteengine

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"perpmm/internal/config"
	"perpmm/internal/hedge"
	"perpmm/internal/inventory"
	"perpmm/internal/oracle"
	"perpmm/internal/risk"
	"perpmm/internal/sizer"
	"perpmm/internal/spread"
	"perpmm/internal/venue"
	"perpmm/pkg/types"
)

// slot is one actively-traded market's mutable state.
type slot struct {
	market types.Market

	mu        sync.Mutex
	state     State
	book      types.OrderbookSnapshot
	hasBook   bool
	lastQuote *types.LastQuotePrices
	ladder    *types.QuoteLadder
	position  types.Position

	bookCh chan types.OrderbookSnapshot
	cancel context.CancelFunc
}

// Engine runs the live quoting pipeline across every subscribed market.
type Engine struct {
	cfg    *config.Config
	venue  venue.Venue
	oracle *oracle.Oracle
	gate   *risk.Gate
	spread *spread.Engine
	sizer  *sizer.Sizer
	shaper *inventory.Shaper
	hedger *hedge.Executor
	logger *slog.Logger

	// marketFilter restricts Start to a single market ID; 0 means all markets.
	marketFilter int64

	mu    sync.RWMutex
	slots map[int64]*slot

	accountMu sync.RWMutex
	account   venue.AccountInfo

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires the quote engine from its already-constructed collaborators.
func New(
	cfg *config.Config,
	v venue.Venue,
	orc *oracle.Oracle,
	gate *risk.Gate,
	spreadEngine *spread.Engine,
	sz *sizer.Sizer,
	shaper *inventory.Shaper,
	hedger *hedge.Executor,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:    cfg,
		venue:  v,
		oracle: orc,
		gate:   gate,
		spread: spreadEngine,
		sizer:  sz,
		shaper: shaper,
		hedger: hedger,
		logger: logger.With("component", "quoteengine"),
		slots:  make(map[int64]*slot),
	}
}

// WithMarketFilter restricts Start to quoting only the given market ID.
// A filter of 0 (the default) quotes every market the venue returns.
func (e *Engine) WithMarketFilter(marketID int64) *Engine {
	e.marketFilter = marketID
	return e
}

// Start loads markets, subscribes every order book, and launches one
// goroutine per market. Blocks only long enough to complete startup; the
// per-market loops run in the background until Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	markets, err := e.venue.GetAllMarkets(e.ctx)
	if err != nil {
		return err
	}
	if e.marketFilter != 0 {
		markets = filterMarket(markets, e.marketFilter)
	}

	if err := e.venue.UpdateAccountID(e.ctx); err != nil {
		e.logger.Error("update account id failed", "error", err)
	}
	e.refreshAccount()

	if e.cfg.Oracle.Enabled {
		symbols := make([]string, 0, len(markets))
		seen := make(map[string]bool)
		for _, m := range markets {
			base := baseSymbol(m.Symbol)
			if !seen[base] {
				seen[base] = true
				symbols = append(symbols, base)
			}
		}
		e.oracle.StartUpdates(e.ctx, symbols)
	}

	e.venue.OnOrderbookUpdate(e.handleBookUpdate)

	e.mu.Lock()
	for _, m := range markets {
		e.startMarketLocked(m)
	}
	e.mu.Unlock()

	e.logger.Info("quote engine started", "markets", len(markets))
	return nil
}

func (e *Engine) startMarketLocked(m types.Market) {
	marketCtx, cancel := context.WithCancel(e.ctx)
	s := &slot{
		market: m,
		state:  StateUnsubscribed,
		bookCh: make(chan types.OrderbookSnapshot, 8),
		cancel: cancel,
	}
	e.slots[m.ID] = s

	if err := e.venue.SubscribeOrderbook(marketCtx, m.ID); err != nil {
		e.logger.Error("subscribe orderbook failed", "market_id", m.ID, "error", err)
		return
	}
	s.mu.Lock()
	s.state = StateNoQuote
	s.mu.Unlock()

	e.wg.Add(1)
	go e.runMarket(marketCtx, s)
}

// filterMarket narrows a market list down to the single requested ID,
// per the live command's -m flag (spec §6).
func filterMarket(markets []types.Market, marketID int64) []types.Market {
	for _, m := range markets {
		if m.ID == marketID {
			return []types.Market{m}
		}
	}
	return nil
}

// baseSymbol strips the "-PERP" suffix markets are named with, matching the
// oracle's plain-asset symbol convention (spec §4.8 startup sequence).
func baseSymbol(symbol string) string {
	return strings.TrimSuffix(symbol, "-PERP")
}

func (e *Engine) handleBookUpdate(update types.OrderbookSnapshot) {
	e.mu.RLock()
	s, ok := e.slots[update.MarketID]
	e.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case s.bookCh <- update:
	default:
		e.logger.Warn("book channel full, dropping update", "market_id", update.MarketID)
	}
}

func (e *Engine) runMarket(ctx context.Context, s *slot) {
	defer e.wg.Done()

	interval := time.Duration(e.cfg.RequoteIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case book := <-s.bookCh:
			s.mu.Lock()
			s.book = book
			s.hasBook = true
			s.mu.Unlock()
			e.runCycle(ctx, s)
		case <-ticker.C:
			e.refreshAccount()
			e.runCycle(ctx, s)
		}
	}
}

// runCycle executes the twelve-step pipeline from spec §4.8 for one market.
func (e *Engine) runCycle(ctx context.Context, s *slot) {
	s.mu.Lock()
	book := s.book
	hasBook := s.hasBook
	lastQuote := s.lastQuote
	position := s.position
	s.mu.Unlock()

	if !hasBook {
		return
	}

	// Step 1: book health.
	if !e.spread.IsHealthy(book) {
		e.suppress(s)
		return
	}

	// Step 2: risk gate.
	acct := e.snapshotAccount()
	decision := e.gate.CanQuote(risk.Account{
		Leverage:      acct.Leverage,
		Balance:       acct.Balance,
		Position:      position,
		TotalNotional: totalNotional(acct),
	})
	if !decision.Allow {
		e.logger.Warn("risk denial",
			"market_id", s.market.ID, "reason", decision.Reason, "detail", decision.Detail)
		e.suppress(s)
		return
	}

	// Step 3: reference price.
	var refPrice float64
	if e.cfg.Oracle.Enabled {
		symbol := baseSymbol(s.market.Symbol)
		if price, ok := e.oracle.GetPrice(ctx, symbol); ok && e.oracle.IsFresh(symbol) {
			refPrice = price.Mid
		} else if e.cfg.Oracle.FallbackToOrderbook {
			mid, ok := e.spread.Mid(book)
			if !ok {
				e.suppress(s)
				return
			}
			refPrice = mid
		} else {
			e.suppress(s)
			return
		}
	} else {
		mid, ok := e.spread.Mid(book)
		if !ok {
			e.suppress(s)
			return
		}
		refPrice = mid
	}

	// Step 4: dynamic spread.
	spreadResult := e.spread.DynamicSpread(book)

	// Step 5: inventory shaping.
	shape := e.shaper.Shape(s.market.ID, refPrice, spreadResult.Spread, position, acct.Balance.Available)

	// Step 6: requote-threshold gate.
	if lastQuote != nil {
		bidDelta := math.Abs(shape.BidPrice-lastQuote.BestBid) / lastQuote.BestBid
		askDelta := math.Abs(shape.AskPrice-lastQuote.BestAsk) / lastQuote.BestAsk
		if bidDelta <= e.cfg.RequoteThreshold && askDelta <= e.cfg.RequoteThreshold {
			return
		}
	}
	newQuote := &types.LastQuotePrices{
		MarketID:  s.market.ID,
		BestBid:   shape.BidPrice,
		BestAsk:   shape.AskPrice,
		Timestamp: time.Now(),
	}
	s.mu.Lock()
	s.lastQuote = newQuote
	s.mu.Unlock()

	// Step 7: cancel existing orders for this market.
	marketID := s.market.ID
	if err := e.venue.CancelAllOrders(ctx, &marketID); err != nil {
		e.logger.Error("cancel existing orders failed", "market_id", marketID, "error", err)
	}

	// Step 8: per-level sizes.
	sizes := e.sizer.CalculateLevelSizes(acct.Balance.Available, e.cfg.MaxLevels)
	if !sizer.ValidateSizes(sizes, acct.Balance.Available, refPrice, e.cfg.Risk) {
		e.suppress(s)
		return
	}

	// Step 9 + 10: build and place the ladder.
	levels := len(sizes)
	if e.cfg.MaxLevels < levels {
		levels = e.cfg.MaxLevels
	}

	bids := make([]types.PriceLevel, 0, levels)
	asks := make([]types.PriceLevel, 0, levels)

	for i := 0; i < levels; i++ {
		spacing := spreadResult.Spread * float64(i+1) * 0.5
		bidPrice := shape.BidPrice * (1 - spacing)
		askPrice := shape.AskPrice * (1 + spacing)

		bidPrice = roundToTick(bidPrice, s.market.TickSize)
		askPrice = roundToTick(askPrice, s.market.TickSize)
		size := sizer.RoundSize(sizes[i], s.market.MinSize, e.cfg.Sizing.StepSize)

		if _, err := e.venue.PlaceOrder(ctx, types.OrderIntent{
			MarketID: marketID, Side: types.Bid, Price: bidPrice, Size: size, FillMode: types.FillLimit,
		}); err != nil {
			e.logger.Error("place bid failed", "market_id", marketID, "level", i, "error", err)
		} else {
			bids = append(bids, types.PriceLevel{Price: bidPrice, Size: size})
		}
		if _, err := e.venue.PlaceOrder(ctx, types.OrderIntent{
			MarketID: marketID, Side: types.Ask, Price: askPrice, Size: size, FillMode: types.FillLimit,
		}); err != nil {
			e.logger.Error("place ask failed", "market_id", marketID, "level", i, "error", err)
		} else {
			asks = append(asks, types.PriceLevel{Price: askPrice, Size: size})
		}
	}

	s.mu.Lock()
	s.state = StateQuoting
	s.ladder = &types.QuoteLadder{MarketID: marketID, Bids: bids, Asks: asks, GeneratedAt: time.Now()}
	s.mu.Unlock()

	// Step 12: hedge check.
	if e.shaper.NeedsHedge(position, acct.Balance.Available, refPrice) {
		e.hedger.Hedge(ctx, marketID, position)
	}
}

func (e *Engine) suppress(s *slot) {
	s.mu.Lock()
	if s.state == StateQuoting {
		s.state = StateSuppressed
	} else if s.state == StateUnsubscribed {
		s.state = StateNoQuote
	}
	s.mu.Unlock()
}

func (e *Engine) refreshAccount() {
	info, err := e.venue.FetchAccountInfo(e.ctx)
	if err != nil {
		e.logger.Error("fetch account info failed", "error", err)
		return
	}
	e.accountMu.Lock()
	e.account = info
	e.accountMu.Unlock()

	e.mu.RLock()
	for id, s := range e.slots {
		if pos, ok := info.Positions[id]; ok {
			s.mu.Lock()
			s.position = pos
			s.mu.Unlock()
		}
	}
	e.mu.RUnlock()
}

func (e *Engine) snapshotAccount() venue.AccountInfo {
	e.accountMu.RLock()
	defer e.accountMu.RUnlock()
	return e.account
}

func totalNotional(acct venue.AccountInfo) float64 {
	var total float64
	for _, pos := range acct.Positions {
		total += math.Abs(pos.Size * pos.EntryPrice)
	}
	return total
}

func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// Stop cancels every market's loop, waits for them to exit, stops the
// oracle, and issues a final emergency cancel-all as a safety net.
func (e *Engine) Stop() {
	e.logger.Info("shutting down quote engine")

	e.mu.RLock()
	for id := range e.slots {
		e.venue.UnsubscribeOrderbook(e.ctx, id)
	}
	e.mu.RUnlock()

	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	if e.cfg.Oracle.Enabled {
		e.oracle.Stop()
	}

	if err := risk.EmergencyCancelAll(func(marketID *int64) error {
		return e.venue.CancelAllOrders(context.Background(), marketID)
	}); err != nil {
		e.logger.Error("emergency cancel-all failed", "error", err)
	}

	e.logger.Info("quote engine shutdown complete")
}

// MarketSnapshot is one market's quoting state, read by the dashboard.
type MarketSnapshot struct {
	MarketID  int64
	Symbol    string
	TickSize  float64
	State     State
	Book      types.OrderbookSnapshot
	HasBook   bool
	LastQuote *types.LastQuotePrices
	Ladder    *types.QuoteLadder
	Position  types.Position
}

// Snapshot returns the current state of every subscribed market. Safe to
// call concurrently with the running pipeline.
func (e *Engine) Snapshot() []MarketSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]MarketSnapshot, 0, len(e.slots))
	for _, s := range e.slots {
		s.mu.Lock()
		out = append(out, MarketSnapshot{
			MarketID:  s.market.ID,
			Symbol:    s.market.Symbol,
			TickSize:  s.market.TickSize,
			State:     s.state,
			Book:      s.book,
			HasBook:   s.hasBook,
			LastQuote: s.lastQuote,
			Ladder:    s.ladder,
			Position:  s.position,
		})
		s.mu.Unlock()
	}
	return out
}

// AccountSnapshot returns the most recently fetched account state.
func (e *Engine) AccountSnapshot() venue.AccountInfo {
	return e.snapshotAccount()
}
