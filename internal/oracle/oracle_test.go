package oracle

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"perpmm/internal/config"
	"perpmm/pkg/types"
)

type fakeSource struct {
	name  string
	price types.ExchangePrice
	err   error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, symbol string) (types.ExchangePrice, error) {
	if f.err != nil {
		return types.ExchangePrice{}, f.err
	}
	return f.price, nil
}

func newTestOracle(cfg config.OracleConfig, sources ...Source) *Oracle {
	o := &Oracle{
		cfg:    cfg,
		logger: slog.Default(),
		cache:  make(map[string]cacheEntry),
	}
	o.sources = sources
	return o
}

func TestGetPriceAggregatesMedian(t *testing.T) {
	t.Parallel()
	o := newTestOracle(config.OracleConfig{CacheTimeout: time.Minute},
		&fakeSource{name: "binance", price: types.ExchangePrice{Bid: 99, Ask: 101, Mid: 100}},
		&fakeSource{name: "bybit", price: types.ExchangePrice{Bid: 100, Ask: 102, Mid: 101}},
		&fakeSource{name: "coinbase", price: types.ExchangePrice{Bid: 98, Ask: 100, Mid: 99}},
	)

	p, ok := o.GetPrice(context.Background(), "BTC")
	if !ok {
		t.Fatalf("expected aggregation to succeed")
	}
	if p.Bid != 99 {
		t.Fatalf("expected lower-median bid 99, got %f", p.Bid)
	}
	if p.Ask != 101 {
		t.Fatalf("expected lower-median ask 101, got %f", p.Ask)
	}
	if p.Source != "aggregated(binance,bybit,coinbase)" {
		t.Fatalf("unexpected source tag: %s", p.Source)
	}
}

func TestGetPriceSkipsFailedSources(t *testing.T) {
	t.Parallel()
	o := newTestOracle(config.OracleConfig{CacheTimeout: time.Minute},
		&fakeSource{name: "binance", err: errors.New("timeout")},
		&fakeSource{name: "bybit", price: types.ExchangePrice{Bid: 100, Ask: 102, Mid: 101}},
	)

	p, ok := o.GetPrice(context.Background(), "BTC")
	if !ok {
		t.Fatalf("expected aggregation with one healthy source to succeed")
	}
	if p.Source != "aggregated(bybit)" {
		t.Fatalf("unexpected source tag: %s", p.Source)
	}
}

func TestGetPriceAllSourcesFailReturnsStale(t *testing.T) {
	t.Parallel()
	o := newTestOracle(config.OracleConfig{CacheTimeout: time.Minute},
		&fakeSource{name: "binance", price: types.ExchangePrice{Bid: 100, Ask: 101, Mid: 100.5}},
	)

	if _, ok := o.GetPrice(context.Background(), "BTC"); !ok {
		t.Fatalf("expected first fetch to populate cache")
	}

	o.sources = []Source{&fakeSource{name: "binance", err: errors.New("down")}}
	p, ok := o.GetPrice(context.Background(), "BTC")
	if !ok {
		t.Fatalf("expected stale cache fallback when all sources fail")
	}
	if p.Mid != 100.5 {
		t.Fatalf("expected stale cached mid 100.5, got %f", p.Mid)
	}
}

func TestGetPriceAllSourcesFailNoCacheReturnsFalse(t *testing.T) {
	t.Parallel()
	o := newTestOracle(config.OracleConfig{CacheTimeout: time.Minute},
		&fakeSource{name: "binance", err: errors.New("down")},
	)

	if _, ok := o.GetPrice(context.Background(), "BTC"); ok {
		t.Fatalf("expected no price when every source fails and no cache exists")
	}
}

func TestIsFreshReflectsCacheAge(t *testing.T) {
	t.Parallel()
	o := newTestOracle(config.OracleConfig{CacheTimeout: 10 * time.Millisecond},
		&fakeSource{name: "binance", price: types.ExchangePrice{Bid: 100, Ask: 101, Mid: 100.5}},
	)

	if o.IsFresh("BTC") {
		t.Fatalf("expected not fresh before first fetch")
	}
	if _, ok := o.GetPrice(context.Background(), "BTC"); !ok {
		t.Fatalf("expected fetch to succeed")
	}
	if !o.IsFresh("BTC") {
		t.Fatalf("expected fresh immediately after fetch")
	}
	time.Sleep(20 * time.Millisecond)
	if o.IsFresh("BTC") {
		t.Fatalf("expected stale after cacheTimeout elapses")
	}
}

func TestMedianOddAndEvenCounts(t *testing.T) {
	t.Parallel()
	if m := median([]float64{3, 1, 2}); m != 2 {
		t.Fatalf("expected median 2, got %f", m)
	}
	if m := median([]float64{1, 2, 3, 4}); m != 3 {
		t.Fatalf("expected lower-median index (n/2=2) value 3, got %f", m)
	}
}
