package oracle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"perpmm/pkg/types"
)

// BinanceSource reads the book ticker for <symbol>USDT. Binance's
// bookTicker endpoint carries no 24h volume, so Volume24h is left at zero
// (the spec treats a missing per-source field as zero, not an error).
type BinanceSource struct {
	client *binance.Client
}

// NewBinanceSource builds an unauthenticated binance client; book ticker
// reads are public and need no API key.
func NewBinanceSource() *BinanceSource {
	return &BinanceSource{client: binance.NewClient("", "")}
}

func (b *BinanceSource) Name() string { return "binance" }

func (b *BinanceSource) Fetch(ctx context.Context, symbol string) (types.ExchangePrice, error) {
	pair := symbol + "USDT"
	tickers, err := b.client.NewListBookTickersService().Symbol(pair).Do(ctx)
	if err != nil {
		return types.ExchangePrice{}, fmt.Errorf("binance bookTicker %s: %w", pair, err)
	}
	if len(tickers) == 0 {
		return types.ExchangePrice{}, fmt.Errorf("binance bookTicker %s: empty response", pair)
	}
	t := tickers[0]

	bid, err := strconv.ParseFloat(t.BidPrice, 64)
	if err != nil {
		return types.ExchangePrice{}, fmt.Errorf("binance parse bidPrice: %w", err)
	}
	ask, err := strconv.ParseFloat(t.AskPrice, 64)
	if err != nil {
		return types.ExchangePrice{}, fmt.Errorf("binance parse askPrice: %w", err)
	}

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
		Volume24h: 0,
		Timestamp: time.Now(),
		Source:    "binance",
	}, nil
}
