package oracle

import (
	"context"
	"fmt"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"perpmm/pkg/types"
)

// BybitSource reads v5 linear-category tickers for <symbol>USDT. The
// client library returns a loosely-typed response (map[string]interface{}),
// so the fields named in the spec's bybit contract are pulled out by hand.
type BybitSource struct {
	client *bybit.Client
}

// NewBybitSource builds an unauthenticated bybit client; market tickers are
// public and need no API key.
func NewBybitSource() *BybitSource {
	return &BybitSource{client: bybit.NewBybitHttpClient("", "", bybit.WithBaseUrl(bybit.MAINNET))}
}

func (b *BybitSource) Name() string { return "bybit" }

func (b *BybitSource) Fetch(ctx context.Context, symbol string) (types.ExchangePrice, error) {
	pair := symbol + "USDT"
	params := map[string]interface{}{
		"category": "linear",
		"symbol":   pair,
	}
	resp, err := b.client.NewUtaBybitServiceWithParams(params).GetTickers(ctx)
	if err != nil {
		return types.ExchangePrice{}, fmt.Errorf("bybit tickers %s: %w", pair, err)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		return types.ExchangePrice{}, fmt.Errorf("bybit tickers %s: unexpected result shape", pair)
	}
	list, ok := result["list"].([]interface{})
	if !ok || len(list) == 0 {
		return types.ExchangePrice{}, fmt.Errorf("bybit tickers %s: empty list", pair)
	}
	entry, ok := list[0].(map[string]interface{})
	if !ok {
		return types.ExchangePrice{}, fmt.Errorf("bybit tickers %s: unexpected entry shape", pair)
	}

	bid := toFloat(entry["bid1Price"])
	ask := toFloat(entry["ask1Price"])
	volume := toFloat(entry["volume24h"])

	mid := (bid + ask) / 2
	var spread float64
	if mid != 0 {
		spread = (ask - bid) / mid
	}

	return types.ExchangePrice{
		Bid:       bid,
		Ask:       ask,
		Mid:       mid,
		Spread:    spread,
		Volume24h: volume,
		Timestamp: time.Now(),
		Source:    "bybit",
	}, nil
}

func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		var f float64
		fmt.Sscanf(x, "%f", &f)
		return f
	default:
		return 0
	}
}
