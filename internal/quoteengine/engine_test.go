package quoteengine

import (
	"context"
	"log/slog"
	"sync"
	"testing"
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

type fakeVenue struct {
	mu           sync.Mutex
	markets      []types.Market
	account      venue.AccountInfo
	handler      venue.OrderbookHandler
	placed       []types.OrderIntent
	cancelAllN   int
	subscribed   map[int64]bool
	unsubscribed map[int64]bool
}

func newFakeVenue(markets []types.Market, account venue.AccountInfo) *fakeVenue {
	return &fakeVenue{
		markets:      markets,
		account:      account,
		subscribed:   make(map[int64]bool),
		unsubscribed: make(map[int64]bool),
	}
}

func (f *fakeVenue) GetAllMarkets(ctx context.Context) ([]types.Market, error) {
	return f.markets, nil
}

func (f *fakeVenue) SubscribeOrderbook(ctx context.Context, marketID int64) error {
	f.mu.Lock()
	f.subscribed[marketID] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeVenue) UnsubscribeOrderbook(ctx context.Context, marketID int64) error {
	f.mu.Lock()
	f.unsubscribed[marketID] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeVenue) OnOrderbookUpdate(handler venue.OrderbookHandler) {
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
}

func (f *fakeVenue) push(update types.OrderbookSnapshot) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(update)
	}
}

func (f *fakeVenue) UpdateAccountID(ctx context.Context) error { return nil }

func (f *fakeVenue) FetchAccountInfo(ctx context.Context) (venue.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account, nil
}

func (f *fakeVenue) GetLeverage(ctx context.Context) (float64, error) {
	return f.account.Leverage, nil
}

func (f *fakeVenue) PlaceOrder(ctx context.Context, intent types.OrderIntent) (string, error) {
	f.mu.Lock()
	f.placed = append(f.placed, intent)
	f.mu.Unlock()
	return "order-1", nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, orderID string) error { return nil }

func (f *fakeVenue) CancelAllOrders(ctx context.Context, marketID *int64) error {
	f.mu.Lock()
	f.cancelAllN++
	f.mu.Unlock()
	return nil
}

func (f *fakeVenue) Close() error { return nil }

func (f *fakeVenue) placedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.placed)
}

func (f *fakeVenue) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelAllN
}

func healthyBook(marketID int64) types.OrderbookSnapshot {
	return bookAround(marketID, 99.9, 100.1)
}

// bookAround builds a two-level, size-symmetric book around the given top
// bid/ask (so DynamicSpread's imbalance term stays 0 and spread stays at
// its configured minimum regardless of the price level).
func bookAround(marketID int64, topBid, topAsk float64) types.OrderbookSnapshot {
	return types.OrderbookSnapshot{
		MarketID:  marketID,
		Timestamp: time.Now(),
		Bids:      []types.PriceLevel{{Price: topBid, Size: 10}, {Price: topBid - 0.1, Size: 10}},
		Asks:      []types.PriceLevel{{Price: topAsk, Size: 10}, {Price: topAsk + 0.1, Size: 10}},
	}
}

func testCfg() *config.Config {
	return &config.Config{
		MaxLevels:            2,
		RequoteIntervalMs:    50,
		InventorySkewEnabled: false,
		RequoteThreshold:     0.0002,
		Sizing: config.SizingConfig{
			QuantityMode: config.QuantityFixed,
			FixedSize:    0.1,
			StepSize:     0.01,
		},
		Spread: config.SpreadConfig{Min: 0.0015, Max: 0.0125, DepthLevels: 2},
		Risk: config.RiskConfig{
			MinMarginFraction:    0.1,
			MaxExposurePerSide:   1,
			MaxExposurePerMarket: 1,
			MaxTotalExposure:     1,
			MinFreeCollateral:    0,
		},
		Oracle: config.OracleConfig{Enabled: false},
	}
}

func newTestEngine(v venue.Venue, cfg *config.Config) *Engine {
	gate := risk.NewGate(cfg.Risk)
	spreadEngine := spread.NewEngine(cfg.Spread)
	sz := sizer.New(cfg.Sizing, cfg.Risk)
	shaper := inventory.New(cfg, gate)
	orc := oracle.New(cfg.Oracle, slog.Default())
	hedger := hedge.New(func(ctx context.Context, intent types.OrderIntent) error {
		return nil
	}, slog.Default())

	return New(cfg, v, orc, gate, spreadEngine, sz, shaper, hedger, slog.Default())
}

func TestStartSubscribesAndQuotesOnHealthyBook(t *testing.T) {
	t.Parallel()
	market := types.Market{ID: 1, Symbol: "BTC-PERP", TickSize: 0.01, MinSize: 0.01}
	fv := newFakeVenue([]types.Market{market}, venue.AccountInfo{
		Leverage: 0.5,
		Balance:  types.Balance{Total: 1000, Available: 1000},
	})
	cfg := testCfg()
	e := newTestEngine(fv, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer e.Stop()

	if !fv.subscribed[1] {
		t.Fatalf("expected market 1 to be subscribed")
	}

	fv.push(healthyBook(1))

	deadline := time.After(2 * time.Second)
	for fv.placedCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected at least one order to be placed within deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if fv.placedCount() < 2 {
		t.Fatalf("expected at least a bid and ask placed, got %d", fv.placedCount())
	}
}

func TestRunCycleSkipsUnhealthyBook(t *testing.T) {
	t.Parallel()
	market := types.Market{ID: 2, Symbol: "ETH-PERP", TickSize: 0.01, MinSize: 0.01}
	fv := newFakeVenue([]types.Market{market}, venue.AccountInfo{
		Leverage: 0.5,
		Balance:  types.Balance{Total: 1000, Available: 1000},
	})
	cfg := testCfg()
	e := newTestEngine(fv, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer e.Stop()

	unhealthy := types.OrderbookSnapshot{
		MarketID: 2,
		Bids:     []types.PriceLevel{{Price: 99.9, Size: 10}},
	}
	fv.push(unhealthy)

	time.Sleep(100 * time.Millisecond)
	if fv.placedCount() != 0 {
		t.Fatalf("expected no orders placed for an unhealthy book, got %d", fv.placedCount())
	}
}

func TestStopUnsubscribesAndCancelsAll(t *testing.T) {
	t.Parallel()
	market := types.Market{ID: 3, Symbol: "SOL-PERP", TickSize: 0.01, MinSize: 0.01}
	fv := newFakeVenue([]types.Market{market}, venue.AccountInfo{
		Leverage: 0.5,
		Balance:  types.Balance{Total: 1000, Available: 1000},
	})
	cfg := testCfg()
	e := newTestEngine(fv, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	e.Stop()

	if !fv.unsubscribed[3] {
		t.Fatalf("expected market 3 to be unsubscribed on stop")
	}
	if fv.cancelAllN == 0 {
		t.Fatalf("expected emergency cancel-all to have been issued on stop")
	}
}

func TestBaseSymbolStripsPerpSuffix(t *testing.T) {
	t.Parallel()
	if got := baseSymbol("BTC-PERP"); got != "BTC" {
		t.Fatalf("expected BTC, got %s", got)
	}
	if got := baseSymbol("ETH"); got != "ETH" {
		t.Fatalf("expected ETH unchanged, got %s", got)
	}
}

// TestRequoteThresholdGateSuppressesSmallDelta exercises runCycle's step 6
// gate (spec scenario: first quote stored, a small delta suppressed, a
// larger delta requotes). With InventorySkewEnabled false and zero bias,
// Shape's bid/ask move exactly with the book mid, so a 0.01% mid move stays
// under the 0.02% threshold testCfg configures, and a 0.5% move clears it.
func TestRequoteThresholdGateSuppressesSmallDelta(t *testing.T) {
	t.Parallel()
	market := types.Market{ID: 1, Symbol: "BTC-PERP", TickSize: 0.01, MinSize: 0.01}
	fv := newFakeVenue([]types.Market{market}, venue.AccountInfo{
		Leverage: 0.5,
		Balance:  types.Balance{Total: 1000, Available: 1000},
	})
	cfg := testCfg()
	e := newTestEngine(fv, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer e.Stop()

	fv.push(healthyBook(1))

	deadline := time.After(2 * time.Second)
	for fv.placedCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected the first quote to place orders")
		case <-time.After(10 * time.Millisecond):
		}
	}
	firstCount := fv.placedCount()
	firstCancels := fv.cancelCount()

	// mid moves from 100.0 to 100.01 (0.01%), under the 0.02% threshold.
	fv.push(bookAround(1, 99.91, 100.11))
	time.Sleep(150 * time.Millisecond)
	if got := fv.placedCount(); got != firstCount {
		t.Fatalf("expected a sub-threshold delta to be suppressed, placed count changed %d -> %d", firstCount, got)
	}
	if got := fv.cancelCount(); got != firstCancels {
		t.Fatalf("expected a sub-threshold delta not to trigger a re-cancel, count changed %d -> %d", firstCancels, got)
	}

	// mid moves from 100.01 to 100.5 (~0.5%), well past the threshold.
	fv.push(bookAround(1, 100.4, 100.6))
	deadline = time.After(2 * time.Second)
	for fv.placedCount() == firstCount {
		select {
		case <-deadline:
			t.Fatalf("expected an above-threshold delta to requote")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if got := fv.cancelCount(); got <= firstCancels {
		t.Fatalf("expected the requote to cancel existing orders, cancel count stayed %d", got)
	}
}

func TestRoundToTick(t *testing.T) {
	t.Parallel()
	if got := roundToTick(100.127, 0.01); got != 100.13 {
		t.Fatalf("expected 100.13, got %f", got)
	}
	if got := roundToTick(100.5, 0); got != 100.5 {
		t.Fatalf("expected unchanged price for zero tick, got %f", got)
	}
}
