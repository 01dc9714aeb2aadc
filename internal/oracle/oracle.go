// Package oracle implements the PriceOracle (C6): a TTL-cached, median
// aggregating reference price service over one or more external ticker
// sources.
//
// Grounded on the teacher's market.Scanner polling-loop shape (a
// resty-backed client driven by a ticker, pushing results into the caller)
// generalized from a single Gamma-API poll to concurrent per-symbol,
// per-source fetch plus aggregation.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"perpmm/internal/config"
	"perpmm/pkg/types"
)

// Source fetches a single ticker for symbol (e.g. "BTC"), mapping it to the
// source's own quote-currency pair internally.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (types.ExchangePrice, error)
}

type cacheEntry struct {
	price     types.ExchangePrice
	fetchedAt time.Time
}

// Oracle aggregates prices across sources with a per-symbol TTL cache.
type Oracle struct {
	cfg     config.OracleConfig
	sources []Source
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Oracle from the configured source list, instantiating only
// the adapters named in cfg.Sources.
func New(cfg config.OracleConfig, logger *slog.Logger) *Oracle {
	o := &Oracle{
		cfg:    cfg,
		logger: logger.With("component", "oracle"),
		cache:  make(map[string]cacheEntry),
	}
	for _, name := range cfg.Sources {
		switch name {
		case "binance":
			o.sources = append(o.sources, NewBinanceSource())
		case "bybit":
			o.sources = append(o.sources, NewBybitSource())
		case "coinbase":
			o.sources = append(o.sources, NewCoinbaseSource())
		}
	}
	return o
}

// GetPrice returns the aggregated price for symbol, using the cache when
// fresh (spec §4.6). On a cache miss it queries every source concurrently
// with a 5s per-source timeout, aggregates by median, and caches the
// result. If every source fails, it returns the stale cache entry (if any)
// rather than an error.
func (o *Oracle) GetPrice(ctx context.Context, symbol string) (types.ExchangePrice, bool) {
	o.mu.RLock()
	entry, ok := o.cache[symbol]
	o.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < o.cfg.CacheTimeout {
		return entry.price, true
	}

	agg, aggOK := o.fetchAndAggregate(ctx, symbol)
	if aggOK {
		o.mu.Lock()
		o.cache[symbol] = cacheEntry{price: agg, fetchedAt: time.Now()}
		o.mu.Unlock()
		return agg, true
	}

	if ok {
		return entry.price, true
	}
	return types.ExchangePrice{}, false
}

func (o *Oracle) fetchAndAggregate(ctx context.Context, symbol string) (types.ExchangePrice, bool) {
	type result struct {
		price types.ExchangePrice
		err   error
	}
	results := make([]result, len(o.sources))

	var wg sync.WaitGroup
	for i, src := range o.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			p, err := src.Fetch(fctx, symbol)
			results[i] = result{price: p, err: err}
		}(i, src)
	}
	wg.Wait()

	var bids, asks, mids, vols []float64
	var names []string
	for i, r := range results {
		if r.err != nil {
			o.logger.Warn("oracle source fetch failed",
				"source", o.sources[i].Name(), "symbol", symbol, "error", r.err)
			continue
		}
		bids = append(bids, r.price.Bid)
		asks = append(asks, r.price.Ask)
		mids = append(mids, r.price.Mid)
		vols = append(vols, r.price.Volume24h)
		names = append(names, o.sources[i].Name())
	}

	if len(names) == 0 {
		return types.ExchangePrice{}, false
	}

	bid := median(bids)
	ask := median(asks)
	mid := median(mids)
	var spread float64
	if mid != 0 {
		spread = (ask - bid) / mid
	}

	return types.ExchangePrice{
		Bid:       bid,
		Ask:       ask,
		Mid:       mid,
		Spread:    spread,
		Volume24h: mean(vols),
		Timestamp: time.Now(),
		Source:    fmt.Sprintf("aggregated(%s)", strings.Join(names, ",")),
	}, true
}

// median returns the lower-median (index floor(n/2)) of sorted values, per
// field independently. This is the spec's chosen aggregation rule, not a
// true multivariate median — bid/ask/mid can each come from a different
// source.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// StartUpdates begins a background refresh loop per symbol: an immediate
// fetch, then one every cfg.UpdateInterval, until Stop is called.
func (o *Oracle) StartUpdates(ctx context.Context, symbols []string) {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for _, symbol := range symbols {
		o.wg.Add(1)
		go o.updateLoop(runCtx, symbol)
	}
}

func (o *Oracle) updateLoop(ctx context.Context, symbol string) {
	defer o.wg.Done()

	if _, ok := o.GetPrice(ctx, symbol); !ok {
		o.logger.Warn("initial oracle fetch failed", "symbol", symbol)
	}

	ticker := time.NewTicker(o.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, ok := o.GetPrice(ctx, symbol); !ok {
				o.logger.Warn("oracle fetch failed", "symbol", symbol)
			}
		}
	}
}

// Stop cancels all update loops and waits for them to exit.
func (o *Oracle) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// IsFresh reports whether symbol has a cache entry younger than
// cfg.CacheTimeout.
func (o *Oracle) IsFresh(symbol string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entry, ok := o.cache[symbol]
	if !ok {
		return false
	}
	return time.Since(entry.fetchedAt) < o.cfg.CacheTimeout
}
